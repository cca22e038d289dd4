package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/pipetrace/pkg/ui"
)

// NewTUICommand creates the tui command.
func NewTUICommand(rootOpts *RootOptions) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "tui [source]",
		Short: "Browse a trace in the terminal",
		Long: `Draw the timeline in the terminal, one row per instruction.

Arrow keys (or h/j/k/l) move between segments and show the segment's
instruction and stage. enter emits the segment to the diagnostics sink,
y copies its detail to the clipboard, q quits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := rootOpts.sourceArg(args)
			if err != nil {
				return err
			}
			if !isTerminal(cmd.OutOrStdout()) {
				return fmt.Errorf("tui needs a terminal; use render to write a file")
			}
			if title == "" {
				title = rootOpts.Config.Render.Title
			}

			stderr := cmd.ErrOrStderr()
			sink, closeSink, err := rootOpts.diagnosticSink(stderr, true)
			if err != nil {
				return err
			}
			defer closeSink()

			snap, err := rootOpts.loadSnapshot(cmd.Context(), location, sink, stderr)
			if snap == nil {
				return err
			}
			return ui.Run(snap.Layout, snap.Inspector, ui.Options{
				Title:    title,
				FetchErr: snap.Err,
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "header title")
	return cmd
}
