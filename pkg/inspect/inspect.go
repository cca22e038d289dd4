// Package inspect is the interaction layer of the timeline. Rendering
// surfaces attach a model.SegmentID to each segment and forward pointer
// events here; the Inspector resolves the identifier against the trace when
// the event fires and either reports the segment's detail (hover) or emits
// its payload to a diagnostic sink (click).
package inspect

import (
	"fmt"
	"sync"

	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/stage"
)

// Detail is what a hover reveals about a segment. Identifier fields are 0
// when the trace did not record them.
type Detail struct {
	Segment   model.SegmentID `json:"segment"`
	Workgroup int             `json:"workgroup_id"`
	Wavefront int             `json:"wavefront_id"`
	SIMD      int             `json:"simd_id"`
	Asm       string          `json:"asm"`
	Stage     stage.Code      `json:"stage"`
	StageName string          `json:"stage_name"`
	Time      float64         `json:"time"`
	EndTime   float64         `json:"end_time"`
}

// String formats the detail as the three-line tooltip text.
func (d Detail) String() string {
	return fmt.Sprintf("wg: %d, wf: %d, simd: %d\ninst: %s\nstage: %s",
		d.Workgroup, d.Wavefront, d.SIMD, d.Asm, d.StageName)
}

// Tooltip is a visible detail surface anchored at the pointer.
type Tooltip struct {
	Detail Detail
	X, Y   float64
}

// Inspector dispatches interaction events for one trace. It never retains
// instructions or events between calls; every call looks the segment up
// again. Methods are safe for concurrent use.
type Inspector struct {
	trace  model.Trace
	stages *stage.Table
	sink   Sink

	mu      sync.Mutex
	tooltip *Tooltip
}

// New returns an Inspector over tr. A nil stages uses stage.Default(); a nil
// sink discards clicks.
func New(tr model.Trace, stages *stage.Table, sink Sink) *Inspector {
	if stages == nil {
		stages = stage.Default()
	}
	if sink == nil {
		sink = Discard
	}
	return &Inspector{trace: tr, stages: stages, sink: sink}
}

// Trace returns the trace being inspected.
func (in *Inspector) Trace() model.Trace {
	return in.trace
}

// Detail resolves id to its hover detail.
func (in *Inspector) Detail(id model.SegmentID) (Detail, error) {
	inst, ev, ok := in.trace.Lookup(id)
	if !ok {
		return Detail{}, &model.UnknownSegmentError{ID: id}
	}
	return Detail{
		Segment:   id,
		Workgroup: inst.Workgroup(),
		Wavefront: inst.Wavefront(),
		SIMD:      inst.SIMD(),
		Asm:       inst.Asm,
		Stage:     ev.Stage,
		StageName: in.stages.Name(ev.Stage),
		Time:      ev.Time,
		EndTime:   ev.EndTime,
	}, nil
}

// Hover shows the tooltip for id at the pointer position (x, y). An unknown
// id leaves the current tooltip unchanged.
func (in *Inspector) Hover(id model.SegmentID, x, y float64) (Tooltip, error) {
	d, err := in.Detail(id)
	if err != nil {
		return Tooltip{}, err
	}
	tip := Tooltip{Detail: d, X: x, Y: y}

	in.mu.Lock()
	in.tooltip = &tip
	in.mu.Unlock()
	return tip, nil
}

// Leave hides the tooltip.
func (in *Inspector) Leave() {
	in.mu.Lock()
	in.tooltip = nil
	in.mu.Unlock()
}

// Visible returns the current tooltip, if any.
func (in *Inspector) Visible() (Tooltip, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.tooltip == nil {
		return Tooltip{}, false
	}
	return *in.tooltip, true
}

// Click emits the payload of the segment id to the sink.
func (in *Inspector) Click(id model.SegmentID) error {
	inst, ev, ok := in.trace.Lookup(id)
	if !ok {
		return &model.UnknownSegmentError{ID: id}
	}
	return in.sink.Emit(Payload{
		Kind:        KindClick,
		Segment:     &id,
		Instruction: &inst,
		Event:       &ev,
	})
}

// EmitTrace emits the complete fetched trace to the sink.
func (in *Inspector) EmitTrace(raw []model.RawInstruction) error {
	return in.sink.Emit(Payload{Kind: KindTrace, Trace: raw})
}
