// Package timeline lays a derived trace out as one row of rectangles per
// instruction and renders that layout to SVG, PNG, or an interactive HTML
// page.
//
// Layout is a pure function of the trace and the options: no rectangle's
// geometry depends on any other rectangle, and a row that cannot be laid out
// is dropped without affecting the others.
package timeline

import (
	"fmt"
	"image/color"
	"math"

	"github.com/vanderheijden86/pipetrace/pkg/debug"
	"github.com/vanderheijden86/pipetrace/pkg/metrics"
	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/stage"
)

const (
	// DefaultScalingFactor maps nanosecond-scale trace times to pixels.
	DefaultScalingFactor = 1e10
	DefaultRowHeight     = 10.0
	DefaultBarHeight     = 7.0
)

// Options controls layout geometry.
type Options struct {
	ScalingFactor float64      // Pixels per trace time unit
	RowHeight     float64      // Vertical stride between instruction rows
	BarHeight     float64      // Rectangle height within a row
	Stages        *stage.Table // Stage encoding (default: stage.Default())
}

// DefaultOptions returns the default layout options.
func DefaultOptions() Options {
	return Options{
		ScalingFactor: DefaultScalingFactor,
		RowHeight:     DefaultRowHeight,
		BarHeight:     DefaultBarHeight,
		Stages:        stage.Default(),
	}
}

func (o Options) withDefaults() Options {
	if o.ScalingFactor <= 0 || math.IsInf(o.ScalingFactor, 0) || math.IsNaN(o.ScalingFactor) {
		o.ScalingFactor = DefaultScalingFactor
	}
	if o.RowHeight <= 0 {
		o.RowHeight = DefaultRowHeight
	}
	if o.BarHeight <= 0 {
		o.BarHeight = DefaultBarHeight
	}
	if o.BarHeight > o.RowHeight {
		o.BarHeight = o.RowHeight
	}
	if o.Stages == nil {
		o.Stages = stage.Default()
	}
	return o
}

// Rect is one rendered segment. ID is the only link back to the trace;
// interaction handlers resolve it with model.Trace.Lookup.
type Rect struct {
	ID       model.SegmentID
	X, Y     float64
	W, H     float64
	Fill     color.RGBA
	Stroked  bool
	Stroke   color.RGBA
	Encoding stage.Encoding
}

// Layout is the laid-out trace.
type Layout struct {
	Rects []Rect
	// Rows is the number of instruction rows drawn.
	Rows int
	// Width and Height bound every rectangle, including the row stride below
	// the last bar.
	Width, Height float64
	// Warnings holds one *model.RowError per dropped row and one
	// *stage.UnknownStageError per distinct unknown stage code.
	Warnings []error
	Summary  Summary
	Options  Options
}

// Build lays out every instruction of tr.
func Build(tr model.Trace, opts Options) Layout {
	defer metrics.Timer(metrics.Layout)()

	opts = opts.withDefaults()
	out := Layout{
		Rects:   make([]Rect, 0, tr.EventCount()),
		Options: opts,
	}

	reported := make(map[stage.Code]bool)
	for _, inst := range tr.Instructions {
		rects, err := layoutRow(inst, opts)
		if err != nil {
			debug.Log("timeline: dropping row: %v", err)
			out.Warnings = append(out.Warnings, err)
			continue
		}
		for _, r := range rects {
			if r.Encoding.Known || reported[r.Encoding.Code] {
				continue
			}
			reported[r.Encoding.Code] = true
			out.Warnings = append(out.Warnings, opts.Stages.Check(r.Encoding.Code))
		}
		for _, r := range rects {
			out.Width = math.Max(out.Width, r.X+r.W)
			out.Height = math.Max(out.Height, r.Y+opts.RowHeight)
		}
		out.Rects = append(out.Rects, rects...)
		out.Rows++
	}

	out.Summary = Summarize(tr, out)
	return out
}

// layoutRow lays out a single instruction. Any invalid event rejects the
// whole row so a partially drawn instruction never appears.
func layoutRow(inst model.Instruction, opts Options) ([]Rect, error) {
	rects := make([]Rect, 0, len(inst.Events))
	for j, ev := range inst.Events {
		if !finite(ev.Time) || !finite(ev.EndTime) {
			return nil, &model.RowError{Index: inst.Index, Reason: fmt.Sprintf("event %d has a non-finite time", j)}
		}
		if ev.EndTime < ev.Time {
			return nil, &model.RowError{Index: inst.Index, Reason: fmt.Sprintf("event %d ends at %g before it starts at %g", j, ev.EndTime, ev.Time)}
		}

		enc := opts.Stages.Encode(ev.Stage)
		r := Rect{
			ID:       model.SegmentID{Inst: inst.Index, Event: j},
			X:        ev.Time * opts.ScalingFactor,
			Y:        float64(ev.InstCount) * opts.RowHeight,
			W:        (ev.EndTime - ev.Time) * opts.ScalingFactor,
			H:        opts.BarHeight,
			Fill:     enc.Color,
			Encoding: enc,
		}
		if enc.Stroked() {
			r.Stroked = true
			r.Stroke = stage.FetchDoneStroke
		}
		if !finite(r.X) || !finite(r.W) {
			return nil, &model.RowError{Index: inst.Index, Reason: fmt.Sprintf("event %d overflows at scale %g", j, opts.ScalingFactor)}
		}
		rects = append(rects, r)
	}
	return rects, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// At returns the topmost rectangle containing the point (x, y), preferring
// the one that starts last so zero-width segments at a boundary win over the
// segment that ends there.
func (l Layout) At(x, y float64) (Rect, bool) {
	var best Rect
	found := false
	for _, r := range l.Rects {
		if y < r.Y || y > r.Y+r.H || x < r.X || x > r.X+r.W {
			continue
		}
		if !found || r.X >= best.X {
			best = r
			found = true
		}
	}
	return best, found
}

// Rect returns the rectangle for id.
func (l Layout) Rect(id model.SegmentID) (Rect, bool) {
	for _, r := range l.Rects {
		if r.ID == id {
			return r, true
		}
	}
	return Rect{}, false
}
