package timeline

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"fortio.org/safecast"
	svg "github.com/ajstarks/svgo"

	"github.com/vanderheijden86/pipetrace/pkg/metrics"
	"github.com/vanderheijden86/pipetrace/pkg/stage"
)

// fixedPoint is the number of SVG user units per pixel. Geometry is emitted
// as integers inside a scale(1/fixedPoint) group so sub-pixel segments keep
// their width.
const fixedPoint = 100

// hitWidth is the stroke width, in pixels, of the invisible hit target drawn
// over zero-width segments.
const hitWidth = 3

var (
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorSwatch   = color.RGBA{0x22, 0x22, 0x22, 0xff}
)

// SVGOptions controls SVG output.
type SVGOptions struct {
	Title string
	// Header draws the title, summary line, and stage legend above the rows.
	Header bool
}

func (o SVGOptions) headerHeight() int {
	if !o.Header {
		return 0
	}
	return headerHeight
}

const (
	headerHeight = 64
	minWidth     = 640
	swatchStride = 96
)

// RenderSVG writes l as an SVG document. Every segment is a
// <rect class="seg" data-inst=".." data-event=".."> so a page script can map
// pointer events back to the trace.
func RenderSVG(w io.Writer, l Layout, opts SVGOptions) error {
	defer metrics.Timer(metrics.RenderSVG)()

	width, height, err := canvasSize(l, opts.headerHeight())
	if err != nil {
		return err
	}

	canvas := svg.New(w)
	canvas.Start(width, height)
	if opts.Title != "" {
		canvas.Title(opts.Title)
	}
	canvas.Rect(0, 0, width, height, "fill:"+stage.Hex(colorBackdrop))

	if opts.Header {
		drawHeaderSVG(canvas, l, opts.Title, width)
	}

	canvas.Translate(0, opts.headerHeight())
	canvas.Scale(1.0 / fixedPoint)
	for _, r := range l.Rects {
		if err := drawRectSVG(canvas, r); err != nil {
			return err
		}
	}
	canvas.Gend()
	canvas.Gend()

	canvas.End()
	return nil
}

func canvasSize(l Layout, header int) (int, int, error) {
	w, err := safecast.Convert[int](math.Ceil(l.Width))
	if err != nil {
		return 0, 0, fmt.Errorf("timeline width %g: %w", l.Width, err)
	}
	h, err := safecast.Convert[int](math.Ceil(l.Height))
	if err != nil {
		return 0, 0, fmt.Errorf("timeline height %g: %w", l.Height, err)
	}
	if w < minWidth && header > 0 {
		w = minWidth
	}
	if w < 1 {
		w = 1
	}
	return w, h + header, nil
}

func fixed(v float64) (int, error) {
	return safecast.Round[int](v * fixedPoint)
}

func drawRectSVG(canvas *svg.SVG, r Rect) error {
	x, err := fixed(r.X)
	if err != nil {
		return fmt.Errorf("segment %s: x: %w", r.ID, err)
	}
	y, err := fixed(r.Y)
	if err != nil {
		return fmt.Errorf("segment %s: y: %w", r.ID, err)
	}
	w, err := fixed(r.W)
	if err != nil {
		return fmt.Errorf("segment %s: width: %w", r.ID, err)
	}
	h, err := fixed(r.H)
	if err != nil {
		return fmt.Errorf("segment %s: height: %w", r.ID, err)
	}

	style := "fill:" + r.Encoding.Hex()
	if r.Stroked {
		style += fmt.Sprintf(";stroke:%s;stroke-width:%d", stage.Hex(r.Stroke), fixedPoint)
	}
	attrs := []string{
		`class="seg"`,
		fmt.Sprintf(`data-inst="%d"`, r.ID.Inst),
		fmt.Sprintf(`data-event="%d"`, r.ID.Event),
		fmt.Sprintf(`data-stage="%d"`, r.Encoding.Code),
		style,
	}
	canvas.Rect(x, y, w, h, attrs...)

	// A zero-width rect is not rendered and receives no pointer events.
	if w == 0 {
		canvas.Line(x, y, x, y+h,
			`class="hit"`,
			fmt.Sprintf(`data-inst="%d"`, r.ID.Inst),
			fmt.Sprintf(`data-event="%d"`, r.ID.Event),
			`pointer-events="stroke"`,
			fmt.Sprintf("stroke:transparent;stroke-width:%d", hitWidth*fixedPoint))
	}
	return nil
}

func drawHeaderSVG(canvas *svg.SVG, l Layout, title string, width int) {
	if title == "" {
		title = "Pipeline timeline"
	}
	canvas.Rect(0, 0, width, headerHeight-8, "fill:"+stage.Hex(colorHeaderBG))
	canvas.Text(12, 18, title, fmt.Sprintf("fill:%s;font-size:14px;font-family:monospace;font-weight:bold", stage.Hex(colorText)))
	canvas.Text(12, 34, summaryLine(l.Summary), fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", stage.Hex(colorSubtle)))

	for i, enc := range l.Options.legend() {
		x := 12 + i*swatchStride
		if x+swatchStride > width {
			break
		}
		canvas.Rect(x, 42, 10, 10, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", enc.Hex(), stage.Hex(colorSwatch)))
		canvas.Text(x+14, 51, enc.Name, fmt.Sprintf("fill:%s;font-size:10px;font-family:monospace", stage.Hex(colorSubtle)))
	}
}

func (o Options) legend() []stage.Encoding {
	if o.Stages == nil {
		return stage.Default().Legend()
	}
	return o.Stages.Legend()
}

func summaryLine(s Summary) string {
	line := fmt.Sprintf("instructions: %d  events: %d  span: %.4g", s.Instructions, s.Events, s.Span())
	if s.Failures > 0 || s.DroppedRows > 0 {
		line += fmt.Sprintf("  skipped: %d", s.Failures+s.DroppedRows)
	}
	return line
}
