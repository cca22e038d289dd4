package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/vanderheijden86/pipetrace/internal/datasource"
	"github.com/vanderheijden86/pipetrace/pkg/inspect"
	"github.com/vanderheijden86/pipetrace/pkg/loader"
	"github.com/vanderheijden86/pipetrace/pkg/server"
)

// termIsTerminal is swapped out by tests.
var termIsTerminal = term.IsTerminal

// openSource returns the fetcher for location. Decoding warnings go to
// stderr through the command's warning printer.
func (o *RootOptions) openSource(location string, stderr io.Writer) (datasource.Fetcher, error) {
	return datasource.Open(location, loader.ParseOptions{
		WarningHandler: func(msg string) { o.warn(stderr, "%s", msg) },
	})
}

// diagnosticSink builds the sink from the diagnostics config. Everything is
// dumped to the debug log. A configured path also receives every payload as
// JSON lines. Without a path, clicks go to stderr unless the terminal is
// owned by a full-screen program.
func (o *RootOptions) diagnosticSink(stderr io.Writer, fullScreen bool) (inspect.Sink, func() error, error) {
	noop := func() error { return nil }
	sinks := inspect.MultiSink{inspect.DebugSink{}}

	diag := o.Config.Diagnostics
	switch {
	case diag.Quiet:
	case diag.Path != "":
		if err := os.MkdirAll(filepath.Dir(diag.Path), 0o755); err != nil {
			return nil, noop, fmt.Errorf("create diagnostics dir: %w", err)
		}
		f, err := os.OpenFile(diag.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, noop, fmt.Errorf("open diagnostics file: %w", err)
		}
		return append(sinks, inspect.NewJSONSink(f)), f.Close, nil
	case !fullScreen:
		clicks := inspect.NewJSONSink(stderr)
		sinks = append(sinks, inspect.SinkFunc(func(p inspect.Payload) error {
			if p.Kind != inspect.KindClick {
				return nil
			}
			return clicks.Emit(p)
		}))
	}
	return sinks, noop, nil
}

// loadSnapshot fetches, derives and lays out the trace at location, and
// reports per-instruction problems as warnings. A fetch failure returns an
// empty snapshot and the error.
func (o *RootOptions) loadSnapshot(ctx context.Context, location string, sink inspect.Sink, stderr io.Writer) (*server.Snapshot, error) {
	fetcher, err := o.openSource(location, stderr)
	if err != nil {
		return nil, err
	}

	if timeout, err := o.Config.Fetch.FetchTimeout(); err == nil && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	snap := server.LoadSnapshot(ctx, fetcher, o.rng(), o.layoutOptions(), sink)
	o.reportProblems(snap, stderr)
	return snap, snap.Err
}

func (o *RootOptions) reportProblems(snap *server.Snapshot, stderr io.Writer) {
	for _, f := range snap.Trace.Failures {
		o.warn(stderr, "%v", f)
	}
	for _, w := range snap.Layout.Warnings {
		o.warn(stderr, "%v", w)
	}
}
