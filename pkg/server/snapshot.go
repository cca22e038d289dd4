package server

import (
	"context"
	"time"

	"github.com/vanderheijden86/pipetrace/internal/datasource"
	"github.com/vanderheijden86/pipetrace/pkg/debug"
	"github.com/vanderheijden86/pipetrace/pkg/inspect"
	"github.com/vanderheijden86/pipetrace/pkg/interval"
	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/timeline"
)

// Snapshot is one fetched, derived and laid-out trace. It is immutable once
// built; a reload builds a new one.
type Snapshot struct {
	Raw       []model.RawInstruction
	Trace     model.Trace
	Layout    timeline.Layout
	Inspector *inspect.Inspector
	Range     model.Range
	// Err is the fetch failure, if any. A failed snapshot is empty.
	Err      error
	LoadedAt time.Time
}

// Empty reports whether the snapshot has nothing to draw.
func (s *Snapshot) Empty() bool {
	return len(s.Layout.Rects) == 0
}

// LoadSnapshot fetches r from f and runs the trace through the deriver and
// the layout. Nothing is derived until the fetch has returned the complete
// payload. On failure the snapshot is empty and carries the error; there is
// no retry. A successful fetch is emitted to sink as the trace payload.
func LoadSnapshot(ctx context.Context, f datasource.Fetcher, r model.Range, opts timeline.Options, sink inspect.Sink) *Snapshot {
	snap := &Snapshot{Range: r, LoadedAt: time.Now()}

	raw, err := f.Fetch(ctx, r)
	if err != nil {
		debug.Log("server: fetch failed: %v", err)
		snap.Err = err
		raw = nil
	}
	snap.Raw = raw
	snap.Trace = interval.Derive(raw)
	snap.Layout = timeline.Build(snap.Trace, opts)
	snap.Inspector = inspect.New(snap.Trace, snap.Layout.Options.Stages, sink)

	if err == nil {
		if emitErr := snap.Inspector.EmitTrace(raw); emitErr != nil {
			debug.Log("server: diagnostic sink: %v", emitErr)
		}
	}
	return snap
}
