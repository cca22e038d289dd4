package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/pipetrace/pkg/loader"
	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/testutil"
)

// GenOptions holds flags for the gen command.
type GenOptions struct {
	*RootOptions
	Output string
	Gen    testutil.GeneratorConfig
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenOptions{RootOptions: rootOpts, Gen: testutil.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write a synthetic trace file",
		Long: `Write a deterministic synthetic trace for demos and fixtures. Each
instruction walks fetch, issue, decode, read, exec, write and complete with
seeded random stalls. The file format follows the output extension
(.json, .jsonl or .msgpack).

Examples:
  pipetrace gen -o demo.json
  pipetrace gen -o demo.msgpack --instructions 500 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file")
	cmd.Flags().Int64Var(&opts.Gen.Seed, "seed", opts.Gen.Seed, "random seed")
	cmd.Flags().IntVarP(&opts.Gen.Instructions, "instructions", "n", opts.Gen.Instructions, "number of instructions")
	cmd.Flags().IntVar(&opts.Gen.Wavefronts, "wavefronts", opts.Gen.Wavefronts, "wavefronts sharing the issue slot")
	cmd.Flags().Float64Var(&opts.Gen.CycleTime, "cycle", opts.Gen.CycleTime, "seconds per cycle")
	cmd.Flags().Float64Var(&opts.Gen.MissingEventsRate, "missing-rate", 0, "fraction of instructions without an event list")
	cmd.Flags().Float64Var(&opts.Gen.UnknownStageRate, "unknown-rate", 0, "fraction of events with an undefined stage")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runGen(cmd *cobra.Command, opts *GenOptions) error {
	raw := testutil.New(opts.Gen).Trace()

	if err := writeTraceFile(opts.Output, raw); err != nil {
		return err
	}
	if !opts.Config.Diagnostics.Quiet {
		printer.Fprintf(cmd.ErrOrStderr(), "Wrote %d instructions to %s\n", len(raw), opts.Output)
	}
	return nil
}

// writeTraceFile writes raw in the format implied by path's extension.
func writeTraceFile(path string, raw []model.RawInstruction) error {
	var encode func(io.Writer, []model.RawInstruction) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		encode = loader.EncodeTrace
	case ".jsonl", ".ndjson":
		encode = loader.EncodeTraceLines
	case ".msgpack", ".mpk", ".trace":
		encode = loader.EncodeMsgpack
	default:
		return fmt.Errorf("cannot write %q: want a .json, .jsonl or .msgpack file", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parent dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := encode(bw, raw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
