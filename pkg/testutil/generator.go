// Package testutil provides synthetic trace generators and assertions.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/stage"
)

// GeneratorConfig controls trace generation.
type GeneratorConfig struct {
	Seed         int64   // Random seed for determinism (0 = 42)
	Instructions int     // Number of instructions (default: 32)
	Wavefronts   int     // Wavefronts sharing the issue slot (default: 4)
	CycleTime    float64 // Seconds per cycle (default: 1ns)
	StartTime    float64 // Time of the first fetch (default: 0)

	// MissingEventsRate is the fraction of instructions emitted without an
	// event list.
	MissingEventsRate float64
	// UnknownStageRate is the fraction of events given an undefined stage code.
	UnknownStageRate float64
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:         42,
		Instructions: 32,
		Wavefronts:   4,
		CycleTime:    1e-9,
	}
}

// Generator creates synthetic traces.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.Instructions <= 0 {
		cfg.Instructions = 32
	}
	if cfg.Wavefronts <= 0 {
		cfg.Wavefronts = 4
	}
	if cfg.CycleTime <= 0 {
		cfg.CycleTime = 1e-9
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Config returns the effective configuration.
func (g *Generator) Config() GeneratorConfig {
	return g.cfg
}

var asmPool = []string{
	"s_load_dwordx4 s[0:3], s[4:5], 0x0",
	"s_waitcnt lgkmcnt(0)",
	"v_mov_b32 v1, s0",
	"v_add_f32 v2, v0, v1",
	"v_mul_f32 v3, v2, v2",
	"v_fma_f32 v4, v3, v1, v0",
	"buffer_load_dword v5, v0, s[0:3], 0 offen",
	"buffer_store_dword v4, v0, s[0:3], 0 offen",
	"ds_read_b32 v6, v0",
	"ds_write_b32 v0, v6",
	"v_cmp_gt_f32 vcc, v2, v1",
	"s_cbranch_vccz BB0_2",
	"s_endpgm",
}

// pipeline is the stage walk of one instruction.
var pipeline = []stage.Code{
	stage.FetchStart,
	stage.FetchDone,
	stage.Issue,
	stage.DecodeStart,
	stage.DecodeDone,
	stage.ReadStart,
	stage.ReadDone,
	stage.ExecStart,
	stage.ExecDone,
	stage.WriteStart,
	stage.WriteDone,
	stage.Complete,
}

// Trace generates a raw trace. Instructions are fetched one cycle apart and
// issued in order; each stage lasts a random number of cycles, and the
// wait-issue stall stretches so no instruction issues before its
// predecessor.
func (g *Generator) Trace() []model.RawInstruction {
	out := make([]model.RawInstruction, g.cfg.Instructions)
	fetch := g.cfg.StartTime
	lastIssue := g.cfg.StartTime

	for i := range out {
		wg := i / (g.cfg.Wavefronts * 16)
		wf := i % g.cfg.Wavefronts
		simd := wf % 4
		inst := model.RawInstruction{
			WorkgroupID: &wg,
			WavefrontID: &wf,
			SIMDID:      &simd,
			Asm:         asmPool[g.rng.Intn(len(asmPool))],
		}

		if g.rng.Float64() < g.cfg.MissingEventsRate {
			out[i] = inst
			fetch += g.cfg.CycleTime
			continue
		}

		events := make([]model.RawEvent, 0, len(pipeline))
		t := fetch
		for _, code := range pipeline {
			if code == stage.Issue && t <= lastIssue {
				t = lastIssue + g.cfg.CycleTime
			}
			if code == stage.Issue {
				lastIssue = t
			}
			if g.rng.Float64() < g.cfg.UnknownStageRate {
				code = stage.Code(stage.NumColors + g.rng.Intn(80))
			}
			events = append(events, model.RawEvent{Stage: code, Time: t})
			t += float64(1+g.rng.Intn(4)) * g.cfg.CycleTime
		}
		inst.Events = events
		out[i] = inst
		fetch += g.cfg.CycleTime
	}
	return out
}

// Fixed returns the three-instruction trace used throughout the tests: the
// second instruction has a single event and the third has none recorded.
func Fixed() []model.RawInstruction {
	wg, wf, simd := 1, 2, 3
	return []model.RawInstruction{
		{
			WorkgroupID: &wg, WavefrontID: &wf, SIMDID: &simd,
			Asm: "v_add_f32 v2, v0, v1",
			Events: []model.RawEvent{
				{Stage: stage.FetchStart, Time: 0.0},
				{Stage: stage.Issue, Time: 0.2},
				{Stage: stage.Complete, Time: 0.5},
			},
		},
		{
			Asm:    "s_endpgm",
			Events: []model.RawEvent{{Stage: stage.FetchStart, Time: 1.0}},
		},
		{
			Asm: "s_nop 0",
		},
	}
}

// Describe summarizes a generated trace for test failure messages.
func Describe(raw []model.RawInstruction) string {
	events, missing := 0, 0
	for _, r := range raw {
		if r.Events == nil {
			missing++
		}
		events += len(r.Events)
	}
	return fmt.Sprintf("%d instructions, %d events, %d without events", len(raw), events, missing)
}
