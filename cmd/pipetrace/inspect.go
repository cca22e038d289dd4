package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/server"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Segment string
	Click   bool
	JSON    bool
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [source]",
		Short: "Summarize a trace or show one segment",
		Long: `Without --segment, print per-stage statistics for the trace.

With --segment INST/EVENT, print what hovering that segment shows; --click
also emits it to the diagnostics sink, as clicking it in the page would.

Examples:
  pipetrace inspect trace.json
  pipetrace inspect trace.json --segment 12/3 --json
  pipetrace inspect trace.json --segment 12/3 --click`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Segment, "segment", "", "segment id as INST/EVENT")
	cmd.Flags().BoolVar(&opts.Click, "click", false, "emit the segment to the diagnostics sink")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "JSON output")

	return cmd
}

func runInspect(cmd *cobra.Command, opts *InspectOptions, args []string) error {
	location, err := opts.sourceArg(args)
	if err != nil {
		return err
	}
	if opts.Click && opts.Segment == "" {
		return fmt.Errorf("--click needs --segment")
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	sink, closeSink, err := opts.diagnosticSink(stderr, false)
	if err != nil {
		return err
	}
	defer closeSink()

	snap, err := opts.loadSnapshot(cmd.Context(), location, sink, stderr)
	if err != nil {
		return err
	}

	if opts.Segment == "" {
		return writeSummary(stdout, snap, opts.JSON)
	}

	id, err := parseSegmentID(opts.Segment)
	if err != nil {
		return err
	}
	detail, err := snap.Inspector.Detail(id)
	if err != nil {
		return err
	}
	if opts.Click {
		if err := snap.Inspector.Click(id); err != nil {
			return err
		}
	}

	if opts.JSON {
		return writeJSON(stdout, detail)
	}
	_, err = fmt.Fprintf(stdout, "%s\ntime: %g → %g\n", detail, detail.Time, detail.EndTime)
	return err
}

// parseSegmentID parses "INST/EVENT".
func parseSegmentID(s string) (model.SegmentID, error) {
	instPart, eventPart, ok := strings.Cut(s, "/")
	if !ok {
		return model.SegmentID{}, fmt.Errorf("invalid segment %q: want INST/EVENT", s)
	}
	inst, err := strconv.Atoi(strings.TrimSpace(instPart))
	if err != nil {
		return model.SegmentID{}, fmt.Errorf("invalid segment %q: %w", s, err)
	}
	event, err := strconv.Atoi(strings.TrimSpace(eventPart))
	if err != nil {
		return model.SegmentID{}, fmt.Errorf("invalid segment %q: %w", s, err)
	}
	return model.SegmentID{Inst: inst, Event: event}, nil
}

type stageRow struct {
	Code   int     `json:"code"`
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Max    float64 `json:"max"`
	Total  float64 `json:"total"`
}

type summaryOutput struct {
	Instructions int        `json:"instructions"`
	Events       int        `json:"events"`
	Skipped      int        `json:"skipped"`
	Start        float64    `json:"start"`
	End          float64    `json:"end"`
	Stages       []stageRow `json:"stages"`
}

func writeSummary(w io.Writer, snap *server.Snapshot, asJSON bool) error {
	s := snap.Layout.Summary
	out := summaryOutput{
		Instructions: s.Instructions,
		Events:       s.Events,
		Skipped:      s.Failures + s.DroppedRows,
		Start:        s.Start,
		End:          s.End,
		Stages:       make([]stageRow, 0, len(s.Stages)),
	}
	for _, st := range s.Stages {
		out.Stages = append(out.Stages, stageRow{
			Code:   int(st.Encoding.Code),
			Name:   st.Encoding.Name,
			Count:  st.Count,
			Mean:   st.Mean,
			StdDev: st.StdDev,
			Max:    st.Max,
			Total:  st.Total,
		})
	}
	if asJSON {
		return writeJSON(w, out)
	}

	printer.Fprintf(w, "%d instructions, %d events, %d skipped, span %g\n\n",
		out.Instructions, out.Events, out.Skipped, s.Span())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tCODE\tCOUNT\tMEAN\tSTDDEV\tMAX")
	for _, r := range out.Stages {
		printer.Fprintf(tw, "%s\t%d\t%d\t%.4g\t%.4g\t%.4g\n", r.Name, r.Code, r.Count, r.Mean, r.StdDev, r.Max)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
