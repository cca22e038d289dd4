// Package loader decodes pipeline traces into raw instructions.
//
// Three encodings are supported:
//   - a JSON array of instructions, the shape the /trace endpoint returns
//   - JSONL, one instruction object per line
//   - length-prefixed msgpack records (see ParseMsgpack)
//
// Decoding is tolerant at instruction granularity: an element that cannot be
// decoded is kept in position with no event list and a warning is reported,
// so interval derivation reports it as malformed without shifting the rows
// of the instructions that follow.
package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/pipetrace/pkg/model"
)

// QuietEnvVar suppresses the default stderr warning handler when set to 1.
const QuietEnvVar = "PIPETRACE_QUIET"

// DefaultMaxBufferSize is the default maximum JSONL line size (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures decoding.
type ParseOptions struct {
	// WarningHandler is called with warning messages (e.g., malformed JSON).
	// If nil, warnings are printed to os.Stderr.
	WarningHandler func(string)

	// BufferSize sets the maximum JSONL line size in bytes. Longer lines are
	// skipped with a warning. If 0, uses DefaultMaxBufferSize.
	BufferSize int
}

func (o ParseOptions) warn() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	if os.Getenv(QuietEnvVar) == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

// wireInstruction decodes everything but the event list, which is decoded
// separately so a bad list does not discard the instruction's identity.
type wireInstruction struct {
	WorkgroupID *int            `json:"workgroup_id"`
	WavefrontID *int            `json:"wavefront_id"`
	SIMDID      *int            `json:"simd_id"`
	Asm         string          `json:"asm"`
	Events      json.RawMessage `json:"events"`
}

// eventsError reports an instruction whose identity decoded but whose event
// list did not.
type eventsError struct{ err error }

func (e *eventsError) Error() string { return "events: " + e.err.Error() }
func (e *eventsError) Unwrap() error { return e.err }

// decodeInstruction decodes one instruction object. The returned error is a
// warning: the instruction is still usable as a placeholder.
func decodeInstruction(data []byte) (model.RawInstruction, error) {
	var w wireInstruction
	if err := json.Unmarshal(data, &w); err != nil {
		return model.RawInstruction{}, err
	}

	inst := model.RawInstruction{
		WorkgroupID: w.WorkgroupID,
		WavefrontID: w.WavefrontID,
		SIMDID:      w.SIMDID,
		Asm:         w.Asm,
	}

	trimmed := bytes.TrimSpace(w.Events)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return inst, nil
	}

	if trimmed[0] != '[' {
		return inst, &eventsError{err: fmt.Errorf("not an array (got %s)", jsonKind(trimmed[0]))}
	}

	var events []model.RawEvent
	if err := json.Unmarshal(trimmed, &events); err != nil {
		return inst, &eventsError{err: err}
	}
	if events == nil {
		events = []model.RawEvent{}
	}
	inst.Events = events
	return inst, nil
}

// jsonKind names the JSON value type that starts with c.
func jsonKind(c byte) string {
	switch {
	case c == '"':
		return "string"
	case c == '{':
		return "object"
	case c == 't' || c == 'f':
		return "boolean"
	case c == '-' || (c >= '0' && c <= '9'):
		return "number"
	default:
		return "invalid JSON"
	}
}

// ParseTrace decodes a JSON array of instructions. It fails only when the
// document itself is not a JSON array.
func ParseTrace(r io.Reader, opts ParseOptions) ([]model.RawInstruction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	data = stripBOM(data)

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("trace is not a JSON array: %w", err)
	}

	warn := opts.warn()
	out := make([]model.RawInstruction, len(elems))
	for i, elem := range elems {
		inst, err := decodeInstruction(elem)
		if err != nil {
			warn(fmt.Sprintf("instruction %d: %v", i, err))
		}
		out[i] = inst
	}
	return out, nil
}

// ParseTraceLines decodes JSONL content, one instruction per line. Blank
// lines are ignored; malformed and over-long lines are skipped with a
// warning.
func ParseTraceLines(r io.Reader, opts ParseOptions) ([]model.RawInstruction, error) {
	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	reader := bufio.NewReaderSize(r, maxCapacity)
	warn := opts.warn()

	var out []model.RawInstruction
	lineNum := 0
	for {
		lineNum++
		// ReadLine sets isPrefix when the line did not fit in the buffer.
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading trace stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		inst, err := decodeInstruction(line)
		if err != nil {
			var evErr *eventsError
			if !errors.As(err, &evErr) {
				warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
				continue
			}
			warn(fmt.Sprintf("line %d: %v", lineNum, err))
		}
		out = append(out, inst)
	}

	return out, nil
}

// EncodeTrace writes raw as a JSON array.
func EncodeTrace(w io.Writer, raw []model.RawInstruction) error {
	if raw == nil {
		raw = []model.RawInstruction{}
	}
	return json.NewEncoder(w).Encode(raw)
}

// EncodeTraceLines writes raw as JSONL, one instruction per line.
func EncodeTraceLines(w io.Writer, raw []model.RawInstruction) error {
	enc := json.NewEncoder(w)
	for i := range raw {
		if err := enc.Encode(raw[i]); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present.
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
