package loader

import (
	"math"
	"sort"

	"github.com/vanderheijden86/pipetrace/pkg/model"
)

// Select returns the instructions of raw that overlap r, ordered by the time
// of their first event. The sort is stable so instructions that start
// together keep their trace order. Instructions with no events cannot overlap
// anything and are dropped; instructions with no event list at all are kept
// so derivation can report them.
//
// raw is not modified.
func Select(raw []model.RawInstruction, r model.Range) []model.RawInstruction {
	out := make([]model.RawInstruction, 0, len(raw))
	for _, inst := range raw {
		if inst.Events == nil {
			out = append(out, inst)
			continue
		}
		if len(inst.Events) == 0 {
			continue
		}
		if r.Overlaps(inst.FirstTime(), inst.LastTime()) {
			out = append(out, inst)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return startKey(out[i]) < startKey(out[j])
	})
	return out
}

// startKey orders instructions without events after everything else.
func startKey(inst model.RawInstruction) float64 {
	if len(inst.Events) == 0 {
		return math.MaxFloat64
	}
	return inst.Events[0].Time
}
