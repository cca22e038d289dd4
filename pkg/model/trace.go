// Package model defines the trace data model: raw instructions as fetched,
// instructions whose events have been turned into timed intervals, and the
// identifiers used to map a rendered segment back to its source.
package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/vanderheijden86/pipetrace/pkg/stage"
)

// RawEvent is one pipeline-stage transition as it appears in a trace: a
// stage code and the time the instruction entered it.
type RawEvent struct {
	Stage stage.Code `json:"stage" msgpack:"stage"`
	Time  float64    `json:"time" msgpack:"time"`
}

// RawInstruction is one element of a fetched trace. A nil Events means the
// event list was absent; an empty non-nil slice is a valid, empty list.
type RawInstruction struct {
	WorkgroupID *int       `json:"workgroup_id,omitempty" msgpack:"workgroup_id,omitempty"`
	WavefrontID *int       `json:"wavefront_id,omitempty" msgpack:"wavefront_id,omitempty"`
	SIMDID      *int       `json:"simd_id,omitempty" msgpack:"simd_id,omitempty"`
	Asm         string     `json:"asm" msgpack:"asm"`
	Events      []RawEvent `json:"events" msgpack:"events"`
}

// FirstTime returns the time of the first event, or NaN when there are none.
func (r RawInstruction) FirstTime() float64 {
	if len(r.Events) == 0 {
		return math.NaN()
	}
	return r.Events[0].Time
}

// LastTime returns the time of the last event, or NaN when there are none.
func (r RawInstruction) LastTime() float64 {
	if len(r.Events) == 0 {
		return math.NaN()
	}
	return r.Events[len(r.Events)-1].Time
}

// Event is a RawEvent with its derived end time. InstCount is the ordinal of
// the owning instruction; it is a lookup key, not an owning reference.
type Event struct {
	Stage     stage.Code `json:"stage"`
	Time      float64    `json:"time"`
	EndTime   float64    `json:"end_time"`
	InstCount int        `json:"inst_count"`
}

// Duration returns EndTime - Time.
func (e Event) Duration() float64 {
	return e.EndTime - e.Time
}

// Instruction is a trace instruction whose events carry end times.
type Instruction struct {
	Index       int     `json:"index"`
	WorkgroupID *int    `json:"workgroup_id,omitempty"`
	WavefrontID *int    `json:"wavefront_id,omitempty"`
	SIMDID      *int    `json:"simd_id,omitempty"`
	Asm         string  `json:"asm"`
	Events      []Event `json:"events"`
}

// Workgroup returns the workgroup id, or 0 when the trace did not record one.
func (i Instruction) Workgroup() int { return valueOrZero(i.WorkgroupID) }

// Wavefront returns the wavefront id, or 0 when absent.
func (i Instruction) Wavefront() int { return valueOrZero(i.WavefrontID) }

// SIMD returns the SIMD unit id, or 0 when absent.
func (i Instruction) SIMD() int { return valueOrZero(i.SIMDID) }

func valueOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// SegmentID identifies one rendered segment: the instruction ordinal and the
// position of the event within that instruction.
type SegmentID struct {
	Inst  int `json:"inst"`
	Event int `json:"event"`
}

func (s SegmentID) String() string {
	return fmt.Sprintf("%d/%d", s.Inst, s.Event)
}

// Trace is the derived form of a fetched trace. Instructions are in input
// order; instructions that could not be derived are reported in Failures and
// leave a gap in the Index sequence.
type Trace struct {
	Instructions []Instruction          `json:"instructions"`
	Failures     []*MalformedTraceError `json:"-"`
}

// EventCount returns the total number of events across all instructions.
func (t Trace) EventCount() int {
	n := 0
	for _, inst := range t.Instructions {
		n += len(inst.Events)
	}
	return n
}

// Instruction returns the instruction with the given ordinal.
func (t Trace) Instruction(index int) (Instruction, bool) {
	// Instructions are sorted by Index, with gaps where derivation failed.
	i := sort.Search(len(t.Instructions), func(i int) bool {
		return t.Instructions[i].Index >= index
	})
	if i < len(t.Instructions) && t.Instructions[i].Index == index {
		return t.Instructions[i], true
	}
	return Instruction{}, false
}

// Lookup resolves a segment identifier to its instruction and event.
func (t Trace) Lookup(id SegmentID) (Instruction, Event, bool) {
	inst, ok := t.Instruction(id.Inst)
	if !ok || id.Event < 0 || id.Event >= len(inst.Events) {
		return Instruction{}, Event{}, false
	}
	return inst, inst.Events[id.Event], true
}

// Range is a half-open time range [Start, End) in trace-native units.
type Range struct {
	Start float64 `json:"start" yaml:"start" toml:"start"`
	End   float64 `json:"end" yaml:"end" toml:"end"`
}

// DefaultRange is the range the reference client always requests.
var DefaultRange = Range{Start: 0, End: 100}

// FullRange selects every instruction.
var FullRange = Range{Start: math.Inf(-1), End: math.Inf(1)}

// Overlaps reports whether an instruction spanning [first, last] intersects r.
func (r Range) Overlaps(first, last float64) bool {
	return last >= r.Start && first < r.End
}

// Validate rejects ranges that cannot select anything meaningful.
func (r Range) Validate() error {
	if math.IsNaN(r.Start) || math.IsNaN(r.End) {
		return fmt.Errorf("range bounds must be numbers")
	}
	if r.End < r.Start {
		return fmt.Errorf("range end %g is before start %g", r.End, r.Start)
	}
	return nil
}
