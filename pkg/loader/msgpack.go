package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vanderheijden86/pipetrace/pkg/model"
)

// MaxRecordSize bounds a single msgpack record. Larger length prefixes are
// treated as corruption rather than allocated.
const MaxRecordSize = 64 * 1024 * 1024

// ParseMsgpack decodes a binary trace file: a sequence of records, each a
// little-endian uint32 byte length followed by one msgpack-encoded
// instruction. A record that fails to decode is kept as a placeholder with a
// warning; a truncated file is an error.
func ParseMsgpack(r io.Reader, opts ParseOptions) ([]model.RawInstruction, error) {
	warn := opts.warn()

	var out []model.RawInstruction
	for record := 0; ; record++ {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("record %d: read length: %w", record, err)
		}
		if length > MaxRecordSize {
			return nil, fmt.Errorf("record %d: length %d exceeds limit %d", record, length, MaxRecordSize)
		}

		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("record %d: not enough bytes to load: %w", record, err)
		}

		var inst model.RawInstruction
		if err := msgpack.Unmarshal(buf, &inst); err != nil {
			warn(fmt.Sprintf("record %d: %v", record, err))
			inst = model.RawInstruction{}
		}
		out = append(out, inst)
	}
	return out, nil
}

// EncodeMsgpack writes raw in the length-prefixed record format read by
// ParseMsgpack.
func EncodeMsgpack(w io.Writer, raw []model.RawInstruction) error {
	for i := range raw {
		data, err := msgpack.Marshal(&raw[i])
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
			return fmt.Errorf("record %d: write length: %w", i, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
