package timeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/pipetrace/pkg/model"
)

// Format is a rendering surface output format.
type Format string

const (
	FormatSVG  Format = "svg"
	FormatPNG  Format = "png"
	FormatHTML Format = "html"
)

// SaveOptions controls Save.
type SaveOptions struct {
	Path    string // Output path; format inferred from extension when Format empty
	Format  Format // "svg", "png" or "html" (case-insensitive)
	Title   string
	Header  bool
	DiagURL string // html only
}

// ResolveFormat returns the output format for opts, inferring it from the
// path extension when Format is empty. Unknown extensions default to SVG.
func ResolveFormat(opts SaveOptions) (Format, error) {
	format := Format(strings.ToLower(strings.TrimPrefix(string(opts.Format), ".")))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".png":
			format = FormatPNG
		case ".html", ".htm":
			format = FormatHTML
		default:
			format = FormatSVG
		}
	}
	switch format {
	case FormatSVG, FormatPNG, FormatHTML:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want svg, png or html)", format)
	}
}

// Save renders l to opts.Path.
func Save(tr model.Trace, l Layout, opts SaveOptions) error {
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	format, err := ResolveFormat(opts)
	if err != nil {
		return err
	}
	if filepath.Ext(opts.Path) == "" {
		opts.Path += "." + string(format)
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	if format == FormatPNG {
		return SavePNG(opts.Path, l, PNGOptions{Title: opts.Title, Header: opts.Header})
	}

	file, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)

	switch format {
	case FormatHTML:
		err = RenderHTML(w, tr, l, HTMLOptions{Title: opts.Title, DiagURL: opts.DiagURL, Header: opts.Header})
	default:
		err = RenderSVG(w, l, SVGOptions{Title: opts.Title, Header: opts.Header})
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}
