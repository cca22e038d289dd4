package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/pipetrace/pkg/config"
	"github.com/vanderheijden86/pipetrace/pkg/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr  string
	Watch bool
	Title string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve [source]",
		Short: "Serve a trace and its interactive timeline over HTTP",
		Long: `Serve the trace at source:

  GET  /               interactive timeline page
  GET  /trace          raw instructions for ?start=&end= as a JSON array
  GET  /timeline.svg   timeline image
  GET  /timeline.png   timeline image
  POST /diag           clicked segment {"inst":N,"event":N}
  GET  /healthz        status

With --watch, a trace file is re-read whenever it changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config, "+config.DefaultAddr+")")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "reload the trace file when it changes")
	cmd.Flags().StringVar(&opts.Title, "title", "", "page title")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions, args []string) error {
	location, err := opts.sourceArg(args)
	if err != nil {
		return err
	}
	addr := opts.Addr
	if addr == "" {
		addr = opts.Config.Serve.Addr
	}
	watch := opts.Watch || opts.Config.Serve.Watch
	title := opts.Title
	if title == "" {
		title = opts.Config.Render.Title
	}

	stderr := cmd.ErrOrStderr()
	fetcher, err := opts.openSource(location, stderr)
	if err != nil {
		return err
	}
	sink, closeSink, err := opts.diagnosticSink(stderr, false)
	if err != nil {
		return err
	}
	defer closeSink()

	srv := server.New(server.Options{
		Source: fetcher,
		Range:  opts.rng(),
		Layout: opts.layoutOptions(),
		Title:  title,
		Header: opts.Config.Render.Header,
		Sink:   sink,
	})

	snap := srv.Reload(cmd.Context())
	opts.reportProblems(snap, stderr)
	if snap.Err != nil {
		opts.warn(stderr, "serving an empty timeline: %v", snap.Err)
	}

	if watch {
		if isURL(location) {
			opts.warn(stderr, "--watch ignored for remote source %s", location)
		} else if err := srv.Watch(location); err != nil {
			return err
		}
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer.Fprintf(stderr, "Serving %d instructions on http://%s\n", len(snap.Trace.Instructions), addr)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
