package timeline

import (
	"fmt"
	"image/color"
	"image/png"
	"io"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/pipetrace/pkg/metrics"
)

// MaxPNGSide bounds each side of a PNG canvas.
const MaxPNGSide = 16384

// PNGOptions controls PNG output.
type PNGOptions struct {
	Title  string
	Header bool
}

// RenderPNG rasterizes l and writes it as PNG.
func RenderPNG(w io.Writer, l Layout, opts PNGOptions) error {
	dc, err := rasterize(l, opts)
	if err != nil {
		return err
	}
	return png.Encode(w, dc.Image())
}

// SavePNG rasterizes l to a file.
func SavePNG(path string, l Layout, opts PNGOptions) error {
	dc, err := rasterize(l, opts)
	if err != nil {
		return err
	}
	return dc.SavePNG(path)
}

func rasterize(l Layout, opts PNGOptions) (*gg.Context, error) {
	defer metrics.Timer(metrics.RenderPNG)()

	header := SVGOptions{Header: opts.Header}.headerHeight()
	width, height, err := canvasSize(l, header)
	if err != nil {
		return nil, err
	}
	if height < 1 {
		height = 1
	}
	if width > MaxPNGSide || height > MaxPNGSide {
		return nil, fmt.Errorf("timeline is %dx%d px, above the %d px PNG limit; lower the scaling factor or render SVG", width, height, MaxPNGSide)
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	if opts.Header {
		drawHeader(dc, l, opts.Title, width)
	}

	top := float64(header)
	for _, r := range l.Rects {
		if r.W > 0 {
			dc.SetColor(r.Fill)
			dc.DrawRectangle(r.X, top+r.Y, r.W, r.H)
			dc.Fill()
		}
		if r.Stroked {
			dc.SetColor(r.Stroke)
			dc.SetLineWidth(1)
			dc.DrawRectangle(r.X, top+r.Y, r.W, r.H)
			dc.Stroke()
		}
	}
	return dc, nil
}

func drawHeader(dc *gg.Context, l Layout, title string, width int) {
	if title == "" {
		title = "Pipeline timeline"
	}
	dc.SetColor(colorHeaderBG)
	dc.DrawRectangle(0, 0, float64(width), headerHeight-8)
	dc.Fill()

	dc.SetColor(colorText)
	dc.DrawStringAnchored(title, 12, 14, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(summaryLine(l.Summary), 12, 30, 0, 0.5)

	for i, enc := range l.Options.legend() {
		x := float64(12 + i*swatchStride)
		if x+swatchStride > float64(width) {
			break
		}
		drawSwatch(dc, x, 47, enc.Color)
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(enc.Name, x+14, 47, 0, 0.5)
	}
}

func drawSwatch(dc *gg.Context, x, y float64, c color.RGBA) {
	dc.SetColor(c)
	dc.DrawRectangle(x, y-5, 10, 10)
	dc.Fill()
	dc.SetColor(colorSwatch)
	dc.SetLineWidth(1)
	dc.DrawRectangle(x, y-5, 10, 10)
	dc.Stroke()
}
