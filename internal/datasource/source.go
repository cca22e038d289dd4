// Package datasource provides the trace fetch capability: given a time range,
// return the raw instructions a trace source holds for it. Sources are local
// files (JSON, JSONL, msgpack, SQLite) or a remote /trace endpoint.
//
// Every failure is returned as a *model.FetchError so callers can leave the
// visualization empty without inspecting the cause.
package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/pipetrace/pkg/loader"
	"github.com/vanderheijden86/pipetrace/pkg/metrics"
	"github.com/vanderheijden86/pipetrace/pkg/model"
)

// Fetcher retrieves the raw trace for a half-open time range.
type Fetcher interface {
	Fetch(ctx context.Context, r model.Range) ([]model.RawInstruction, error)
}

// SourceType identifies the encoding of a trace file.
type SourceType string

const (
	SourceTypeJSON    SourceType = "json"
	SourceTypeJSONL   SourceType = "jsonl"
	SourceTypeMsgpack SourceType = "msgpack"
	SourceTypeSQLite  SourceType = "sqlite"
)

// DetectType infers the source type from a file extension.
func DetectType(path string) (SourceType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SourceTypeJSON, nil
	case ".jsonl", ".ndjson":
		return SourceTypeJSONL, nil
	case ".msgpack", ".mpk", ".trace":
		return SourceTypeMsgpack, nil
	case ".sqlite", ".sqlite3", ".db":
		return SourceTypeSQLite, nil
	default:
		return "", fmt.Errorf("cannot infer trace format from %q (want .json, .jsonl, .msgpack or .sqlite)", path)
	}
}

// FileFetcher reads a trace file and selects the instructions in range.
type FileFetcher struct {
	Path string
	// Type overrides extension-based detection when set.
	Type SourceType
	// Options controls decoding warnings.
	Options loader.ParseOptions
}

// NewFileFetcher returns a fetcher for path, detecting its format from the
// extension.
func NewFileFetcher(path string, opts loader.ParseOptions) (*FileFetcher, error) {
	typ, err := DetectType(path)
	if err != nil {
		return nil, err
	}
	return &FileFetcher{Path: path, Type: typ, Options: opts}, nil
}

// Fetch implements Fetcher.
func (f *FileFetcher) Fetch(ctx context.Context, r model.Range) ([]model.RawInstruction, error) {
	defer metrics.Timer(metrics.Fetch)()

	if err := ctx.Err(); err != nil {
		return nil, &model.FetchError{Source: f.Path, Err: err}
	}
	if err := r.Validate(); err != nil {
		return nil, &model.FetchError{Source: f.Path, Err: err}
	}

	raw, err := f.load(ctx)
	if err != nil {
		return nil, &model.FetchError{Source: f.Path, Err: err}
	}
	return loader.Select(raw, r), nil
}

func (f *FileFetcher) load(ctx context.Context) ([]model.RawInstruction, error) {
	typ := f.Type
	if typ == "" {
		var err error
		if typ, err = DetectType(f.Path); err != nil {
			return nil, err
		}
	}

	if typ == SourceTypeSQLite {
		reader, err := NewSQLiteReader(f.Path)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return reader.LoadTrace(ctx)
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer file.Close()

	switch typ {
	case SourceTypeJSON:
		return loader.ParseTrace(file, f.Options)
	case SourceTypeJSONL:
		return loader.ParseTraceLines(file, f.Options)
	case SourceTypeMsgpack:
		return loader.ParseMsgpack(file, f.Options)
	default:
		return nil, fmt.Errorf("unknown source type: %s", typ)
	}
}

// Open returns the fetcher for a location: an http(s) URL yields an
// HTTPFetcher, anything else is treated as a file path.
func Open(location string, opts loader.ParseOptions) (Fetcher, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPFetcher(location, nil, opts)
	}
	return NewFileFetcher(location, opts)
}
