//go:build linux

package watcher

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Filesystem magic numbers from statfs(2).
const (
	magicNFS   = 0x6969
	magicSMB   = 0x517b
	magicCIFS  = 0xff534d42
	magicSMB2  = 0xfe534d42
	magicFUSE  = 0x65735546
	magicV9FS  = 0x01021997
	magicCODA  = 0x73757245
	magicAFS   = 0x5346414f
	magicCEPH  = 0x00c36400
	magicOCFS2 = 0x7461636f
)

func detectFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	for p := path; ; p = filepath.Dir(p) {
		if err := unix.Statfs(p, &st); err == nil {
			break
		}
		if parent := filepath.Dir(p); parent == p {
			return FSTypeUnknown
		}
	}

	switch uint32(st.Type) {
	case magicNFS, magicCODA, magicAFS, magicCEPH, magicOCFS2, magicV9FS:
		return FSTypeNFS
	case magicSMB, magicCIFS, magicSMB2:
		return FSTypeSMB
	case magicFUSE:
		// sshfs is the common FUSE case, but statfs cannot tell them apart.
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}
