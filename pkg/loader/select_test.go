package loader_test

import (
	"testing"

	"github.com/vanderheijden86/pipetrace/pkg/loader"
	"github.com/vanderheijden86/pipetrace/pkg/model"
)

func inst(asm string, times ...float64) model.RawInstruction {
	events := make([]model.RawEvent, len(times))
	for i, tm := range times {
		events[i] = model.RawEvent{Stage: 1, Time: tm}
	}
	return model.RawInstruction{Asm: asm, Events: events}
}

func asms(raw []model.RawInstruction) []string {
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = r.Asm
	}
	return out
}

func TestSelect_RangeAndOrder(t *testing.T) {
	raw := []model.RawInstruction{
		inst("late", 30, 35),
		inst("early", 1, 4),
		inst("straddle", 8, 12),
		inst("before", 0, 2),
		inst("mid", 15, 16),
		inst("tie", 15, 40),
	}

	got := asms(loader.Select(raw, model.Range{Start: 10, End: 31}))
	want := []string{"straddle", "mid", "tie", "late"}
	if len(got) != len(want) {
		t.Fatalf("Select = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Select = %v, want %v", got, want)
		}
	}
}

func TestSelect_HalfOpenEnd(t *testing.T) {
	raw := []model.RawInstruction{inst("at-end", 20, 25), inst("at-start", 5, 10)}
	got := asms(loader.Select(raw, model.Range{Start: 10, End: 20}))
	if len(got) != 1 || got[0] != "at-start" {
		t.Errorf("Select = %v", got)
	}
}

func TestSelect_EventlessInstructions(t *testing.T) {
	raw := []model.RawInstruction{
		{Asm: "missing"},
		{Asm: "empty", Events: []model.RawEvent{}},
		inst("ok", 1),
	}
	got := asms(loader.Select(raw, model.FullRange))
	if len(got) != 2 || got[0] != "ok" || got[1] != "missing" {
		t.Errorf("Select = %v, want [ok missing]", got)
	}
}

func TestSelect_DoesNotModifyInput(t *testing.T) {
	raw := []model.RawInstruction{inst("b", 2), inst("a", 1)}
	_ = loader.Select(raw, model.FullRange)
	if raw[0].Asm != "b" {
		t.Error("Select reordered its input")
	}
}
