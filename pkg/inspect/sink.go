package inspect

import (
	"errors"
	"io"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/pipetrace/pkg/debug"
	"github.com/vanderheijden86/pipetrace/pkg/model"
)

// Payload kinds.
const (
	KindTrace = "trace"
	KindClick = "click"
)

// Payload is one message to a diagnostic sink: either the full fetched trace
// or a clicked segment with its owning instruction and event.
type Payload struct {
	Kind        string                 `json:"kind"`
	Segment     *model.SegmentID       `json:"segment,omitempty"`
	Instruction *model.Instruction     `json:"instruction,omitempty"`
	Event       *model.Event           `json:"event,omitempty"`
	Trace       []model.RawInstruction `json:"trace,omitempty"`
}

// Sink is a write-only diagnostic channel. No response is expected.
type Sink interface {
	Emit(p Payload) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Payload) error

// Emit implements Sink.
func (f SinkFunc) Emit(p Payload) error { return f(p) }

// Discard drops every payload.
var Discard Sink = SinkFunc(func(Payload) error { return nil })

// JSONSink writes each payload as one JSON line.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink returns a sink writing JSON lines to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

// Emit implements Sink.
func (s *JSONSink) Emit(p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(p)
}

// DebugSink dumps payloads to the debug log. It emits nothing unless
// debugging is enabled.
type DebugSink struct{}

// Emit implements Sink.
func (DebugSink) Emit(p Payload) error {
	debug.Dump("inspect."+p.Kind, p)
	return nil
}

// MultiSink emits to every sink in order and joins their errors.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(p Payload) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
