//go:build ignore

// generate_testdata.go writes standard trace datasets for benchmarking the
// loaders and renderers.
// Usage: go run scripts/generate_testdata.go
//
// Creates testdata/benchmark/{small,medium,large,huge}.{json,jsonl,msgpack}.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/pipetrace/pkg/loader"
	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/testutil"
)

type datasetSpec struct {
	name       string
	size       int
	wavefronts int
}

var datasets = []datasetSpec{
	{"small", 100, 2},
	{"medium", 1000, 4},
	{"large", 10000, 8},
	{"huge", 100000, 16},
}

var encoders = map[string]func(io.Writer, []model.RawInstruction) error{
	".json":    loader.EncodeTrace,
	".jsonl":   loader.EncodeTraceLines,
	".msgpack": loader.EncodeMsgpack,
}

func main() {
	outputDir := "testdata/benchmark"
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d instructions)...\n", ds.name, ds.size)

		raw := testutil.New(testutil.GeneratorConfig{
			Seed:              int64(ds.size), // Reproducible per size
			Instructions:      ds.size,
			Wavefronts:        ds.wavefronts,
			MissingEventsRate: 0.001,
		}).Trace()

		for ext, encode := range encoders {
			path := filepath.Join(outputDir, ds.name+ext)
			n, err := writeFile(path, raw, encode)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
				os.Exit(1)
			}
			fmt.Printf("  Written %s (%d bytes)\n", path, n)
		}
	}

	fmt.Println("\nDone! Test datasets created in", outputDir)
}

func writeFile(path string, raw []model.RawInstruction, encode func(io.Writer, []model.RawInstruction) error) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := encode(bw, raw); err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
