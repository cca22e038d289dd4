package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vanderheijden86/pipetrace/pkg/config"
	"github.com/vanderheijden86/pipetrace/pkg/debug"
	"github.com/vanderheijden86/pipetrace/pkg/metrics"
	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/timeline"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Source     string
	Start      float64
	End        float64
	Verbose    bool
	Quiet      bool
	Timings    bool

	// Config is the loaded configuration with flag overrides applied.
	Config config.Config
}

// NewRootCommand creates the root command for the pipetrace CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pipetrace",
		Short: "Pipeline execution timelines",
		Long: `pipetrace draws one row per retired instruction, one segment per
pipeline stage the instruction passed through, and lets you inspect any
segment to see the instruction and stage behind it.

A trace source is a .json, .jsonl, .msgpack or .sqlite file, or the base URL
of a server exposing GET /trace?start=&end=.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Timings {
				return metrics.WriteReport(cmd.ErrOrStderr())
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.config/pipetrace/config.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.Source, "source", "s", "", "trace file or server URL")
	cmd.PersistentFlags().Float64Var(&opts.Start, "start", 0, "range start (trace time units)")
	cmd.PersistentFlags().Float64Var(&opts.End, "end", 0, "range end, exclusive")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging to stderr")
	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress warnings and diagnostics")
	cmd.PersistentFlags().BoolVar(&opts.Timings, "timings", false, "print timing metrics on exit")

	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTUICommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewGenCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// resolve loads the config file and applies flag overrides.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if o.Verbose {
		debug.SetEnabled(true)
	}

	var (
		cfg config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.LoadFrom(o.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Fetch.Source = o.Source
	}
	if flags.Changed("start") {
		cfg.Fetch.Range.Start = o.Start
	}
	if flags.Changed("end") {
		cfg.Fetch.Range.End = o.End
	}
	if o.Quiet {
		cfg.Diagnostics.Quiet = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.Config = cfg
	debug.Dump("config", cfg)
	return nil
}

// sourceArg picks the trace source: the positional argument, then --source,
// then the config file.
func (o *RootOptions) sourceArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if o.Config.Fetch.Source != "" {
		return o.Config.Fetch.Source, nil
	}
	return "", fmt.Errorf("no trace source: pass a file or URL, or set fetch.source in %s", config.ConfigPath())
}

// layoutOptions returns the layout geometry from the config.
func (o *RootOptions) layoutOptions() timeline.Options {
	opts := timeline.DefaultOptions()
	opts.ScalingFactor = o.Config.Render.ScalingFactor
	opts.RowHeight = o.Config.Render.RowHeight
	opts.BarHeight = o.Config.Render.BarHeight
	return opts
}

func (o *RootOptions) rng() model.Range {
	return o.Config.Fetch.Range
}

var warnPrefix = color.New(color.FgYellow, color.Bold)

// warn prints a warning to w unless quiet.
func (o *RootOptions) warn(w io.Writer, format string, args ...any) {
	if o.Config.Diagnostics.Quiet {
		return
	}
	fmt.Fprintf(w, "%s %s\n", warnPrefix.Sprint("Warning:"), fmt.Sprintf(format, args...))
}

// printer formats counts with digit grouping.
var printer = message.NewPrinter(language.English)

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && termIsTerminal(int(f.Fd()))
}
