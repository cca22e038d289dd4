package timeline

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/pipetrace/pkg/model"
)

//go:embed page.html.tmpl
var pageTemplate string

var page = template.Must(template.New("page").Parse(pageTemplate))

// HTMLOptions controls the interactive page.
type HTMLOptions struct {
	Title string
	// DiagURL receives {"inst":..,"event":..} on click via navigator.sendBeacon.
	// Empty logs clicks to the browser console only.
	DiagURL string
	Header  bool
}

// pageInstruction is the per-instruction record the page script looks
// segments up in. Missing ids are emitted as 0.
type pageInstruction struct {
	Index     int         `json:"index"`
	Workgroup int         `json:"wg"`
	Wavefront int         `json:"wf"`
	SIMD      int         `json:"simd"`
	Asm       string      `json:"asm"`
	Events    []pageEvent `json:"events"`
}

type pageEvent struct {
	Stage   int     `json:"stage"`
	Name    string  `json:"name"`
	Time    float64 `json:"time"`
	EndTime float64 `json:"end_time"`
}

type pageData struct {
	Instructions []pageInstruction `json:"instructions"`
}

type pageView struct {
	Title   string
	SVG     template.HTML
	Data    template.JS
	DiagURL string
	Status  string
}

// RenderHTML writes a self-contained page: the SVG timeline, a JSON table of
// the trace, and a script that resolves pointer events through the
// data-inst/data-event attributes of each segment.
func RenderHTML(w io.Writer, tr model.Trace, l Layout, opts HTMLOptions) error {
	title := opts.Title
	if title == "" {
		title = "Pipeline timeline"
	}

	var svgBuf bytes.Buffer
	if err := RenderSVG(&svgBuf, l, SVGOptions{Title: title, Header: opts.Header}); err != nil {
		return err
	}

	dataJSON, err := json.Marshal(buildPageData(tr, l))
	if err != nil {
		return fmt.Errorf("marshal page data: %w", err)
	}

	view := pageView{
		Title: title,
		// The SVG is generated by RenderSVG from numbers and escaped text.
		SVG:     template.HTML(stripXMLDecl(svgBuf.Bytes())),
		Data:    template.JS(dataJSON),
		DiagURL: opts.DiagURL,
		Status:  summaryLine(l.Summary),
	}
	return page.Execute(w, view)
}

func buildPageData(tr model.Trace, l Layout) pageData {
	stages := l.Options.Stages
	data := pageData{Instructions: make([]pageInstruction, 0, len(tr.Instructions))}
	for _, inst := range tr.Instructions {
		pi := pageInstruction{
			Index:     inst.Index,
			Workgroup: inst.Workgroup(),
			Wavefront: inst.Wavefront(),
			SIMD:      inst.SIMD(),
			Asm:       inst.Asm,
			Events:    make([]pageEvent, len(inst.Events)),
		}
		for j, ev := range inst.Events {
			name := ""
			if stages != nil {
				name = stages.Name(ev.Stage)
			}
			pi.Events[j] = pageEvent{Stage: int(ev.Stage), Name: name, Time: ev.Time, EndTime: ev.EndTime}
		}
		data.Instructions = append(data.Instructions, pi)
	}
	return data
}

func stripXMLDecl(b []byte) []byte {
	if bytes.HasPrefix(b, []byte("<?xml")) {
		if i := bytes.Index(b, []byte("?>")); i >= 0 {
			return bytes.TrimLeft(b[i+2:], "\r\n")
		}
	}
	return b
}
