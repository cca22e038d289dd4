package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/pipetrace/pkg/server"
	"github.com/vanderheijden86/pipetrace/pkg/timeline"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Outputs []string
	Format  string // format for "-" (stdout)
	Title   string
	Header  bool
	DiagURL string
	Scale   float64
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render [source]",
		Short: "Render a trace to SVG, PNG or HTML",
		Long: `Render the timeline of a trace to one or more files. The format of each
output is taken from its extension (.svg, .png, .html); "-" writes to stdout
in the format given by --format. Outputs are written concurrently.

Examples:
  pipetrace render trace.json -o timeline.svg
  pipetrace render trace.msgpack -o out/timeline.png -o out/timeline.html --header
  pipetrace render http://localhost:7410 --start 0 --end 2e-6 -o - --format svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts, args)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Outputs, "output", "o", nil, "output file (repeatable; \"-\" for stdout)")
	cmd.Flags().StringVar(&opts.Format, "format", "svg", "format for stdout output (svg|png|html)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "timeline title")
	cmd.Flags().BoolVar(&opts.Header, "header", false, "draw the title, summary and legend")
	cmd.Flags().StringVar(&opts.DiagURL, "diag-url", "", "html only: endpoint that receives clicked segments")
	cmd.Flags().Float64Var(&opts.Scale, "scale", 0, "pixels per trace time unit (overrides config)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runRender(cmd *cobra.Command, opts *RenderOptions, args []string) error {
	location, err := opts.sourceArg(args)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("scale") {
		opts.Config.Render.ScalingFactor = opts.Scale
	}
	if !cmd.Flags().Changed("header") {
		opts.Header = opts.Config.Render.Header
	}
	if opts.Title == "" {
		opts.Title = opts.Config.Render.Title
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if err := checkStdoutFormat(opts.Outputs, opts.Format, stdout); err != nil {
		return err
	}

	sink, closeSink, err := opts.diagnosticSink(stderr, false)
	if err != nil {
		return err
	}
	defer closeSink()

	snap, fetchErr := opts.loadSnapshot(cmd.Context(), location, sink, stderr)
	if snap == nil {
		return fetchErr
	}

	// Each output is a pure function of the immutable layout.
	var g errgroup.Group
	for _, out := range opts.Outputs {
		if out == "-" {
			g.Go(func() error { return writeStdout(stdout, snap, opts) })
			continue
		}
		g.Go(func() error {
			return timeline.Save(snap.Trace, snap.Layout, timeline.SaveOptions{
				Path:    out,
				Title:   opts.Title,
				Header:  opts.Header,
				DiagURL: opts.DiagURL,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if fetchErr != nil {
		return fmt.Errorf("rendered an empty timeline: %w", fetchErr)
	}
	if !opts.Config.Diagnostics.Quiet {
		files := len(opts.Outputs)
		printer.Fprintf(stderr, "Rendered %d instructions (%d events) to %d output(s)\n",
			len(snap.Trace.Instructions), snap.Trace.EventCount(), files)
	}
	return nil
}

// checkStdoutFormat refuses to write binary PNG to a terminal.
func checkStdoutFormat(outputs []string, format string, stdout io.Writer) error {
	for _, out := range outputs {
		if out != "-" {
			continue
		}
		f, err := timeline.ResolveFormat(timeline.SaveOptions{Format: timeline.Format(format)})
		if err != nil {
			return err
		}
		if f == timeline.FormatPNG && isTerminal(stdout) {
			return fmt.Errorf("refusing to write PNG to a terminal; redirect stdout or use -o file.png")
		}
	}
	return nil
}

func writeStdout(w io.Writer, snap *server.Snapshot, opts *RenderOptions) error {
	bw := bufio.NewWriter(w)
	var err error
	switch timeline.Format(strings.ToLower(opts.Format)) {
	case timeline.FormatPNG:
		err = timeline.RenderPNG(bw, snap.Layout, timeline.PNGOptions{Title: opts.Title, Header: opts.Header})
	case timeline.FormatHTML:
		err = timeline.RenderHTML(bw, snap.Trace, snap.Layout, timeline.HTMLOptions{Title: opts.Title, Header: opts.Header, DiagURL: opts.DiagURL})
	default:
		err = timeline.RenderSVG(bw, snap.Layout, timeline.SVGOptions{Title: opts.Title, Header: opts.Header})
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}
