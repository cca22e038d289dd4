package timeline

import (
	"bytes"
	"encoding/xml"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/vanderheijden86/pipetrace/pkg/interval"
	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/stage"
	"github.com/vanderheijden86/pipetrace/pkg/testutil"
)

func fixedLayout(t *testing.T) (model.Trace, Layout) {
	t.Helper()
	tr := interval.Derive(testutil.Fixed())
	return tr, Build(tr, scaled(100))
}

func assertValidXML(t *testing.T, content []byte) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(content))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("SVG is not valid XML: %v\nContent:\n%s", err, content)
		}
	}
}

var segRe = regexp.MustCompile(`<rect[^>]*class="seg"[^>]*>`)

func TestRenderSVG_ValidXML(t *testing.T) {
	_, l := fixedLayout(t)
	for _, header := range []bool{false, true} {
		var buf bytes.Buffer
		if err := RenderSVG(&buf, l, SVGOptions{Title: `A <"quoted"> & title`, Header: header}); err != nil {
			t.Fatalf("RenderSVG(header=%v): %v", header, err)
		}
		assertValidXML(t, buf.Bytes())
		if !strings.Contains(buf.String(), "<svg") {
			t.Error("missing <svg> root")
		}
	}
}

func TestRenderSVG_OneSegmentPerEvent(t *testing.T) {
	tr := interval.Derive(testutil.NewDefault().Trace())
	l := Build(tr, DefaultOptions())

	var buf bytes.Buffer
	if err := RenderSVG(&buf, l, SVGOptions{}); err != nil {
		t.Fatal(err)
	}
	segs := segRe.FindAllString(buf.String(), -1)
	if len(segs) != tr.EventCount() {
		t.Errorf("found %d segments, want %d", len(segs), tr.EventCount())
	}
}

func TestRenderSVG_SegmentAttributes(t *testing.T) {
	_, l := fixedLayout(t)
	var buf bytes.Buffer
	if err := RenderSVG(&buf, l, SVGOptions{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		`data-inst="0"`,
		`data-event="2"`,
		`data-inst="1"`,
		`transform="scale(0.01)"`,
		"fill:" + stage.Default().Encode(stage.Issue).Hex(),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("SVG missing %s", want)
		}
	}
	if strings.Contains(out, "stroke:#888888") {
		t.Error("no FetchDone segment, but a FetchDone stroke was drawn")
	}

	// Segment 0/1 starts at 0.2*100 px = 2000 fixed-point units and is 30 px wide.
	if !regexp.MustCompile(`<rect x="2000" y="0" width="3000" height="700"[^>]*data-event="1"`).MatchString(out) {
		t.Errorf("segment 0/1 geometry not found in:\n%s", out)
	}
	// Zero-width final segments get a hit target.
	if !strings.Contains(out, `class="hit"`) {
		t.Error("zero-width segment has no hit target")
	}
}

func TestRenderSVG_FetchDoneStroke(t *testing.T) {
	tr := interval.Derive([]model.RawInstruction{{Events: events(2, 0, 3, 1)}})
	var buf bytes.Buffer
	if err := RenderSVG(&buf, Build(tr, scaled(10)), SVGOptions{}); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "stroke:#888888") != 1 {
		t.Errorf("expected exactly one FetchDone stroke:\n%s", buf.String())
	}
}

func TestRenderSVG_HeaderLegend(t *testing.T) {
	_, l := fixedLayout(t)
	var buf bytes.Buffer
	if err := RenderSVG(&buf, l, SVGOptions{Title: "run 7", Header: true}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run 7", "instructions: 2", "skipped: 1", "wait issue", "decode", `transform="translate(0,64)"`} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q", want)
		}
	}
}

func TestRenderPNG(t *testing.T) {
	_, l := fixedLayout(t)
	var buf bytes.Buffer
	if err := RenderPNG(&buf, l, PNGOptions{Header: true}); err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != minWidth || b.Dy() != 2*int(DefaultRowHeight)+headerHeight {
		t.Errorf("PNG size = %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderPNG_TooLarge(t *testing.T) {
	tr := interval.Derive([]model.RawInstruction{{Events: events(1, 0, 12, 1)}})
	l := Build(tr, scaled(MaxPNGSide+1))
	if err := RenderPNG(io.Discard, l, PNGOptions{}); err == nil || !strings.Contains(err.Error(), "PNG limit") {
		t.Errorf("expected size limit error, got %v", err)
	}
}

func TestRenderHTML(t *testing.T) {
	tr, l := fixedLayout(t)
	var buf bytes.Buffer
	err := RenderHTML(&buf, tr, l, HTMLOptions{Title: "demo", DiagURL: "/diag"})
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<title>demo</title>",
		`class="seg"`,
		`"asm":"v_add_f32 v2, v0, v1"`,
		`"wg":1`,
		`"name":"fetch start"`,
		`var diagURL = "`,
		"sendBeacon",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(out, "<?xml") {
		t.Error("inline SVG should not carry an XML declaration")
	}
}

func TestRenderHTML_MissingIDsAreZero(t *testing.T) {
	tr := interval.Derive([]model.RawInstruction{{Asm: "s_endpgm", Events: events(1, 0)}})
	data := buildPageData(tr, Build(tr, DefaultOptions()))
	inst := data.Instructions[0]
	if inst.Workgroup != 0 || inst.Wavefront != 0 || inst.SIMD != 0 {
		t.Errorf("missing ids = %+v, want zeros", inst)
	}
}

func TestRenderHTML_EscapesScriptContent(t *testing.T) {
	tr := interval.Derive([]model.RawInstruction{{Asm: "</script><script>alert(1)</script>", Events: events(1, 0)}})
	var buf bytes.Buffer
	if err := RenderHTML(&buf, tr, Build(tr, DefaultOptions()), HTMLOptions{}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "<script>alert(1)") {
		t.Error("asm text escaped the data block")
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		opts SaveOptions
		want Format
		err  bool
	}{
		{SaveOptions{Path: "out.svg"}, FormatSVG, false},
		{SaveOptions{Path: "out.PNG"}, FormatPNG, false},
		{SaveOptions{Path: "out.html"}, FormatHTML, false},
		{SaveOptions{Path: "out"}, FormatSVG, false},
		{SaveOptions{Path: "out.svg", Format: ".png"}, FormatPNG, false},
		{SaveOptions{Path: "out.svg", Format: "pdf"}, "", true},
	}
	for _, tt := range tests {
		got, err := ResolveFormat(tt.opts)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ResolveFormat(%+v) = %q, %v", tt.opts, got, err)
		}
	}
}

func TestSave(t *testing.T) {
	tr, l := fixedLayout(t)
	dir := t.TempDir()

	for _, name := range []string{"a.svg", "nested/b.png", "c.html", "d"} {
		path := filepath.Join(dir, name)
		if err := Save(tr, l, SaveOptions{Path: path, Header: true}); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
		if filepath.Ext(path) == "" {
			path += ".svg"
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Errorf("%s not written: %v", path, err)
		}
	}

	if err := Save(tr, l, SaveOptions{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestFixed(t *testing.T) {
	tests := []struct {
		in      float64
		want    int
		wantErr bool
	}{
		{0, 0, false},
		{2.5, 250, false},
		{0.014, 1, false},
		{0.004, 0, false},
		{-1.234, -123, false},
		{math.NaN(), 0, true},
		{math.Inf(1), 0, true},
		{1e300, 0, true},
	}
	for _, tt := range tests {
		got, err := fixed(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("fixed(%g) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("fixed(%g) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCanvasSize(t *testing.T) {
	w, h, err := canvasSize(Layout{Width: 2.01, Height: 19.5}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w != 3 || h != 20 {
		t.Errorf("canvasSize = %dx%d, want 3x20", w, h)
	}

	w, h, err = canvasSize(Layout{Width: 10, Height: 10}, 64)
	if err != nil {
		t.Fatal(err)
	}
	if w != minWidth || h != 74 {
		t.Errorf("canvasSize with header = %dx%d, want %dx74", w, h, minWidth)
	}

	if w, _, err := canvasSize(Layout{}, 0); err != nil || w != 1 {
		t.Errorf("empty layout: w=%d err=%v", w, err)
	}
	if _, _, err := canvasSize(Layout{Width: math.NaN(), Height: 1}, 0); err == nil {
		t.Error("expected an error for a NaN width")
	}
	if _, _, err := canvasSize(Layout{Width: 1, Height: math.Inf(1)}, 0); err == nil {
		t.Error("expected an error for an infinite height")
	}
}

func TestRenderSVG_SegmentWidths(t *testing.T) {
	tr := interval.Derive([]model.RawInstruction{
		{Events: events(1, 0, 3, 2, 12, 5)},
		{Events: events(1, 1)},
	})
	l := Build(tr, scaled(1))

	var buf bytes.Buffer
	if err := RenderSVG(&buf, l, SVGOptions{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`<rect x="0" y="0" width="200" height="700"`,
		`<rect x="200" y="0" width="300" height="700"`,
		`<rect x="500" y="0" width="0" height="700"`,
		`<rect x="100" y="1000" width="0" height="700"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if n := strings.Count(out, `class="hit"`); n != 2 {
		t.Errorf("found %d hit targets, want 2", n)
	}
}
