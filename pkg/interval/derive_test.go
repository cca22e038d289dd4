package interval

import (
	"errors"
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/stage"
)

func TestDerive_SingleInstructionScenario(t *testing.T) {
	raw := []model.RawInstruction{{
		Asm: "v_add_f32 v0, v1, v2",
		Events: []model.RawEvent{
			{Stage: 1, Time: 0.0},
			{Stage: 3, Time: 0.2},
			{Stage: 12, Time: 0.5},
		},
	}}

	tr := Derive(raw)
	if len(tr.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", tr.Failures)
	}
	if len(tr.Instructions) != 1 {
		t.Fatalf("got %d instructions, want 1", len(tr.Instructions))
	}

	want := []float64{0.2, 0.5, 0.5}
	for j, ev := range tr.Instructions[0].Events {
		if ev.EndTime != want[j] {
			t.Errorf("event %d: EndTime = %v, want %v", j, ev.EndTime, want[j])
		}
		if ev.InstCount != 0 {
			t.Errorf("event %d: InstCount = %d, want 0", j, ev.InstCount)
		}
	}
}

func TestDerive_MissingEventsIsolated(t *testing.T) {
	raw := []model.RawInstruction{
		{Asm: "a", Events: []model.RawEvent{{Stage: 1, Time: 1}, {Stage: 2, Time: 2}}},
		{Asm: "b"}, // no event list
		{Asm: "c", Events: []model.RawEvent{{Stage: 0, Time: 3}}},
	}

	tr := Derive(raw)

	if len(tr.Failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(tr.Failures))
	}
	var mte *model.MalformedTraceError
	if !errors.As(tr.Failures[0], &mte) || mte.Index != 1 {
		t.Errorf("failure = %v, want index 1", tr.Failures[0])
	}

	if len(tr.Instructions) != 2 {
		t.Fatalf("got %d instructions, want 2", len(tr.Instructions))
	}
	if tr.Instructions[1].Index != 2 || tr.Instructions[1].Events[0].InstCount != 2 {
		t.Errorf("instruction after failure should keep input position, got %+v", tr.Instructions[1])
	}
}

func TestDerive_EmptyEventListIsValid(t *testing.T) {
	tr := Derive([]model.RawInstruction{{Asm: "s_endpgm", Events: []model.RawEvent{}}})
	if len(tr.Failures) != 0 {
		t.Fatalf("empty list should not fail: %v", tr.Failures)
	}
	if len(tr.Instructions) != 1 || len(tr.Instructions[0].Events) != 0 {
		t.Errorf("got %+v", tr.Instructions)
	}
}

func TestDerive_UnknownStagesPassThrough(t *testing.T) {
	tr := Derive([]model.RawInstruction{{Events: []model.RawEvent{{Stage: 99, Time: 1}}}})
	if len(tr.Failures) != 0 {
		t.Fatalf("stage codes are not validated, got %v", tr.Failures)
	}
	if tr.Instructions[0].Events[0].Stage != stage.Code(99) {
		t.Errorf("stage = %d", tr.Instructions[0].Events[0].Stage)
	}
}

func TestDerive_DoesNotReorderOrMutate(t *testing.T) {
	wg := 4
	raw := []model.RawInstruction{{
		WorkgroupID: &wg,
		Events:      []model.RawEvent{{Stage: 3, Time: 5}, {Stage: 1, Time: 2}},
	}}
	before := cloneRaw(raw)

	tr := Derive(raw)

	if !reflect.DeepEqual(raw, before) {
		t.Error("Derive modified its input")
	}
	evs := tr.Instructions[0].Events
	// Order is trusted: the first event ends at the second's start even though
	// that makes the first interval run backwards.
	if evs[0].Stage != 3 || evs[0].EndTime != 2 {
		t.Errorf("event order changed: %+v", evs)
	}

	*tr.Instructions[0].WorkgroupID = 9
	if *raw[0].WorkgroupID != 4 {
		t.Error("derived instruction shares id storage with input")
	}
}

func cloneRaw(in []model.RawInstruction) []model.RawInstruction {
	out := make([]model.RawInstruction, len(in))
	for i, r := range in {
		out[i] = r
		out[i].Events = append([]model.RawEvent(nil), r.Events...)
		out[i].WorkgroupID = copyInt(r.WorkgroupID)
	}
	return out
}

// rawTraceGen draws traces whose event times are non-decreasing within each
// instruction, which is what real traces look like.
func rawTraceGen() *rapid.Generator[[]model.RawInstruction] {
	instGen := rapid.Custom(func(t *rapid.T) model.RawInstruction {
		n := rapid.IntRange(0, 8).Draw(t, "events")
		events := make([]model.RawEvent, n)
		now := rapid.Float64Range(0, 1e-3).Draw(t, "start")
		for j := range events {
			now += rapid.Float64Range(0, 1e-6).Draw(t, "gap")
			events[j] = model.RawEvent{
				Stage: stage.Code(rapid.IntRange(0, 20).Draw(t, "stage")),
				Time:  now,
			}
		}
		return model.RawInstruction{Asm: "inst", Events: events}
	})
	return rapid.SliceOfN(instGen, 0, 20)
}

func TestDerive_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rawTraceGen().Draw(t, "trace")
		tr := Derive(raw)

		if len(tr.Failures) != 0 {
			t.Fatalf("well-formed input failed: %v", tr.Failures)
		}
		if len(tr.Instructions) != len(raw) {
			t.Fatalf("instruction count %d != %d", len(tr.Instructions), len(raw))
		}

		for i, inst := range tr.Instructions {
			if inst.Index != i {
				t.Fatalf("Index = %d at position %d", inst.Index, i)
			}
			if len(inst.Events) != len(raw[i].Events) {
				t.Fatalf("instruction %d: %d events, want %d", i, len(inst.Events), len(raw[i].Events))
			}
			for j, ev := range inst.Events {
				if ev.InstCount != i {
					t.Fatalf("event %d/%d InstCount = %d", i, j, ev.InstCount)
				}
				if j < len(inst.Events)-1 {
					if ev.EndTime != raw[i].Events[j+1].Time {
						t.Fatalf("event %d/%d EndTime = %v, want next start %v", i, j, ev.EndTime, raw[i].Events[j+1].Time)
					}
				} else if ev.EndTime != ev.Time {
					t.Fatalf("last event %d/%d EndTime = %v, want %v", i, j, ev.EndTime, ev.Time)
				}
				if ev.EndTime < ev.Time {
					t.Fatalf("event %d/%d ends before it starts", i, j)
				}
			}
		}
	})
}

func TestDerive_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rawTraceGen().Draw(t, "trace")
		first := Derive(raw)
		second := Derive(raw)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("derivation is not deterministic")
		}
	})
}
