package ui

import (
	"math"
	"strings"

	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/timeline"
)

// plainGlyphs stand in for stage colors on terminals without color. Codes
// outside the table use '?'.
const plainGlyphs = "0123456789abcde"

// cursorGlyph marks the cells of the segment under the cursor.
const cursorGlyph = "▮"

// gridRow is one instruction row of the layout, with its rects in event
// order.
type gridRow struct {
	inst  int
	rects []timeline.Rect
}

// groupRows splits the layout's rects into rows. Build emits each row's
// rects contiguously, in row order.
func groupRows(l timeline.Layout) []gridRow {
	var rows []gridRow
	for _, r := range l.Rects {
		if n := len(rows); n > 0 && rows[n-1].inst == r.ID.Inst {
			rows[n-1].rects = append(rows[n-1].rects, r)
			continue
		}
		rows = append(rows, gridRow{inst: r.ID.Inst, rects: []timeline.Rect{r}})
	}
	return rows
}

// cellSpan maps a rect to the half-open column span [start, end) at scale
// columns per layout unit. Every segment occupies at least one column.
func cellSpan(r timeline.Rect, scale float64, cols int) (int, int) {
	start := int(math.Floor(r.X * scale))
	end := int(math.Ceil((r.X + r.W) * scale))
	if end <= start {
		end = start + 1
	}
	if start >= cols {
		start = cols - 1
	}
	if end > cols {
		end = cols
	}
	if start < 0 {
		start = 0
	}
	return start, end
}

// cells assigns each column to the index of the rect drawn there, or -1.
// Later segments win shared columns, as the layout's hit test does.
func (row gridRow) cells(scale float64, cols int) []int {
	out := make([]int, cols)
	for i := range out {
		out[i] = -1
	}
	for k, r := range row.rects {
		start, end := cellSpan(r, scale, cols)
		for c := start; c < end; c++ {
			out[c] = k
		}
	}
	return out
}

// render draws the row in cols columns. cursor is the event index under the
// cursor, or -1.
func (row gridRow) render(theme Theme, scale float64, cols, cursor int, plain bool) string {
	if cols <= 0 {
		return ""
	}
	cells := row.cells(scale, cols)

	var sb strings.Builder
	for c := 0; c < cols; {
		k := cells[c]
		run := 1
		for c+run < cols && cells[c+run] == k {
			run++
		}
		c += run

		if k < 0 {
			sb.WriteString(strings.Repeat(" ", run))
			continue
		}
		r := row.rects[k]
		isCursor := r.ID.Event == cursor
		if plain {
			glyph := "?"
			if code := int(r.Encoding.Code); r.Encoding.Known && code < len(plainGlyphs) {
				glyph = plainGlyphs[code : code+1]
			}
			if isCursor {
				glyph = "#"
			}
			sb.WriteString(strings.Repeat(glyph, run))
			continue
		}
		glyph := " "
		if isCursor {
			glyph = cursorGlyph
		}
		sb.WriteString(theme.Segment(r.Encoding, isCursor).Render(strings.Repeat(glyph, run)))
	}
	return sb.String()
}

// segment returns the rect for event index j of the row.
func (row gridRow) segment(j int) (timeline.Rect, bool) {
	if j < 0 || j >= len(row.rects) {
		return timeline.Rect{}, false
	}
	return row.rects[j], true
}

// id returns the segment identifier for event index j of the row.
func (row gridRow) id(j int) model.SegmentID {
	return model.SegmentID{Inst: row.inst, Event: j}
}
