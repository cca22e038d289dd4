package timeline

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/stage"
)

// StageStats summarizes the time instructions spent in one stage. The
// zero-length final event of each instruction is excluded.
type StageStats struct {
	Encoding stage.Encoding
	Count    int
	Mean     float64
	StdDev   float64
	Max      float64
	Total    float64
}

// Summary describes a laid-out trace.
type Summary struct {
	Instructions int
	Events       int
	Failures     int
	DroppedRows  int
	Start, End   float64 // Earliest event start and latest event end
	Stages       []StageStats
}

// Span returns End - Start, or 0 for an empty trace.
func (s Summary) Span() float64 {
	if s.Events == 0 {
		return 0
	}
	return s.End - s.Start
}

// Summarize computes the summary of tr as laid out in l. Only rows that were
// laid out contribute to the time span and stage statistics.
func Summarize(tr model.Trace, l Layout) Summary {
	s := Summary{
		Instructions: len(tr.Instructions),
		Failures:     len(tr.Failures),
		Start:        math.Inf(1),
		End:          math.Inf(-1),
	}
	for _, w := range l.Warnings {
		if _, ok := w.(*model.RowError); ok {
			s.DroppedRows++
		}
	}

	durations := make(map[stage.Code][]float64)
	for _, r := range l.Rects {
		_, ev, ok := tr.Lookup(r.ID)
		if !ok {
			continue
		}
		s.Events++
		s.Start = math.Min(s.Start, ev.Time)
		s.End = math.Max(s.End, ev.EndTime)

		inst, _ := tr.Instruction(r.ID.Inst)
		if r.ID.Event == len(inst.Events)-1 {
			continue
		}
		durations[ev.Stage] = append(durations[ev.Stage], ev.Duration())
	}
	if s.Events == 0 {
		s.Start, s.End = 0, 0
	}

	stages := l.Options.Stages
	if stages == nil {
		stages = stage.Default()
	}
	codes := make([]stage.Code, 0, len(durations))
	for c := range durations {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	for _, c := range codes {
		d := durations[c]
		mean, std := stat.MeanStdDev(d, nil)
		if len(d) < 2 {
			std = 0
		}
		st := StageStats{
			Encoding: stages.Encode(c),
			Count:    len(d),
			Mean:     mean,
			StdDev:   std,
		}
		for _, v := range d {
			st.Max = math.Max(st.Max, v)
			st.Total += v
		}
		s.Stages = append(s.Stages, st)
	}
	return s
}
