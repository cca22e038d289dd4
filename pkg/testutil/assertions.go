package testutil

import (
	"testing"

	"github.com/vanderheijden86/pipetrace/pkg/model"
)

// AssertInstructionCount verifies the expected number of derived instructions.
func AssertInstructionCount(t *testing.T, tr model.Trace, expected int) {
	t.Helper()
	if len(tr.Instructions) != expected {
		t.Errorf("expected %d instructions, got %d", expected, len(tr.Instructions))
	}
}

// AssertIntervals verifies the interval invariants of a derived trace:
// every event ends at the next event's start, the last event is
// zero-length, and every event points back at its instruction.
func AssertIntervals(t *testing.T, tr model.Trace) {
	t.Helper()
	for _, inst := range tr.Instructions {
		n := len(inst.Events)
		for j, ev := range inst.Events {
			if ev.InstCount != inst.Index {
				t.Errorf("inst %d event %d: InstCount = %d", inst.Index, j, ev.InstCount)
			}
			want := ev.Time
			if j < n-1 {
				want = inst.Events[j+1].Time
			}
			if ev.EndTime != want {
				t.Errorf("inst %d event %d: EndTime = %v, want %v", inst.Index, j, ev.EndTime, want)
			}
		}
	}
}

// AssertOrderedIndexes verifies that instruction indexes strictly increase,
// which Trace.Lookup relies on.
func AssertOrderedIndexes(t *testing.T, tr model.Trace) {
	t.Helper()
	for i := 1; i < len(tr.Instructions); i++ {
		if tr.Instructions[i].Index <= tr.Instructions[i-1].Index {
			t.Errorf("index %d at position %d does not follow %d",
				tr.Instructions[i].Index, i, tr.Instructions[i-1].Index)
		}
	}
}

// AssertFailures verifies that exactly the given instruction indexes were
// reported as malformed.
func AssertFailures(t *testing.T, tr model.Trace, indexes ...int) {
	t.Helper()
	if len(tr.Failures) != len(indexes) {
		t.Errorf("expected %d failures, got %d: %v", len(indexes), len(tr.Failures), tr.Failures)
		return
	}
	for i, f := range tr.Failures {
		if f.Index != indexes[i] {
			t.Errorf("failure %d: index %d, want %d", i, f.Index, indexes[i])
		}
	}
}
