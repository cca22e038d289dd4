// Package interval turns a fetched trace, where each event only records when
// an instruction entered a stage, into timed intervals: every event gets the
// end time at which the instruction left that stage.
package interval

import (
	"github.com/vanderheijden86/pipetrace/pkg/debug"
	"github.com/vanderheijden86/pipetrace/pkg/metrics"
	"github.com/vanderheijden86/pipetrace/pkg/model"
)

// Derive computes end times for every event in raw.
//
// An event ends when the next event of the same instruction starts; the last
// event of an instruction ends when it starts. Event order is taken as given
// and is not checked for monotonic times.
//
// An instruction without an event list is reported in Trace.Failures and left
// out of Trace.Instructions; the rest of the batch is still derived and keeps
// its input position as Index. raw is not modified.
func Derive(raw []model.RawInstruction) model.Trace {
	defer metrics.Timer(metrics.Derive)()

	tr := model.Trace{Instructions: make([]model.Instruction, 0, len(raw))}
	for i, r := range raw {
		inst, err := deriveOne(i, r)
		if err != nil {
			debug.Log("skipping instruction %d: %v", i, err)
			tr.Failures = append(tr.Failures, err)
			continue
		}
		tr.Instructions = append(tr.Instructions, inst)
	}
	return tr
}

func deriveOne(i int, r model.RawInstruction) (model.Instruction, *model.MalformedTraceError) {
	if r.Events == nil {
		return model.Instruction{}, &model.MalformedTraceError{Index: i, Reason: "event list is missing"}
	}

	events := make([]model.Event, len(r.Events))
	for j, ev := range r.Events {
		end := ev.Time
		if j != len(r.Events)-1 {
			end = r.Events[j+1].Time
		}
		events[j] = model.Event{
			Stage:     ev.Stage,
			Time:      ev.Time,
			EndTime:   end,
			InstCount: i,
		}
	}

	return model.Instruction{
		Index:       i,
		WorkgroupID: copyInt(r.WorkgroupID),
		WavefrontID: copyInt(r.WavefrontID),
		SIMDID:      copyInt(r.SIMDID),
		Asm:         r.Asm,
		Events:      events,
	}, nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
