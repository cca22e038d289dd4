package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	orig := Commit
	defer func() { Commit = orig }()

	Commit = "0123456789abcdef0123"
	got := String()
	if !strings.HasPrefix(got, "pipetrace "+Version+" 0123456789ab ") {
		t.Errorf("unexpected version string %q", got)
	}
	if strings.Contains(got, "cdef0123") {
		t.Errorf("commit not shortened: %q", got)
	}
}
