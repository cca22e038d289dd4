// Package ui is the terminal rendering surface: a bubbletea program that
// draws one row per instruction, scaled to the terminal width, and routes
// cursor movement and key presses through the inspect layer.
package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/pipetrace/pkg/inspect"
	"github.com/vanderheijden86/pipetrace/pkg/metrics"
	"github.com/vanderheijden86/pipetrace/pkg/timeline"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// gutterWidth holds the cursor marker and the instruction ordinal.
	gutterWidth = 8
	// chromeHeight is the header, the detail panel and the status/help lines.
	chromeHeight = 9
)

// Options configures the terminal surface.
type Options struct {
	Title string
	// FetchErr is shown instead of the timeline when the fetch failed.
	FetchErr error
	// Clipboard receives the detail text on copy. Defaults to the system
	// clipboard.
	Clipboard func(string) error
	// Plain draws stage glyphs instead of colors. Defaults to true on
	// terminals without color.
	Plain *bool
	Theme *Theme
}

// Model is the bubbletea model of the timeline.
type Model struct {
	layout    timeline.Layout
	inspector *inspect.Inspector
	rows      []gridRow

	rowIdx int
	segIdx int

	width    int
	height   int
	viewport viewport.Model

	title     string
	fetchErr  error
	copy      func(string) error
	plain     bool
	theme     Theme
	keys      keyMap
	quitting  bool
	statusMsg string
	statusErr bool
}

// New returns a model for l. The inspector must wrap the trace l was built
// from.
func New(l timeline.Layout, in *inspect.Inspector, opts Options) Model {
	m := Model{
		layout:    l,
		inspector: in,
		rows:      groupRows(l),
		width:     defaultWidth,
		height:    defaultHeight,
		title:     opts.Title,
		fetchErr:  opts.FetchErr,
		copy:      opts.Clipboard,
		plain:     plainTerminal(),
		keys:      defaultKeyMap(),
	}
	if m.title == "" {
		m.title = "pipetrace"
	}
	if m.copy == nil {
		m.copy = clipboard.WriteAll
	}
	if opts.Plain != nil {
		m.plain = *opts.Plain
	}
	if opts.Theme != nil {
		m.theme = *opts.Theme
	} else {
		m.theme = DefaultTheme(lipgloss.DefaultRenderer())
	}
	m.viewport = viewport.New(m.timelineWidth()+gutterWidth, m.bodyHeight())
	m.hover()
	m.refresh()
	return m
}

// Run starts the program on the terminal and blocks until it exits.
func Run(l timeline.Layout, in *inspect.Inspector, opts Options) error {
	_, err := tea.NewProgram(New(l, in, opts), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = m.timelineWidth() + gutterWidth
		m.viewport.Height = m.bodyHeight()
		m.scrollToCursor()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Left):
		m.moveSegment(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveSegment(1)
	case key.Matches(msg, m.keys.Up):
		m.moveRow(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveRow(1)
	case key.Matches(msg, m.keys.First):
		m.moveRow(-len(m.rows))
	case key.Matches(msg, m.keys.Last):
		m.moveRow(len(m.rows))
	case key.Matches(msg, m.keys.Escape):
		m.inspector.Leave()
	case key.Matches(msg, m.keys.Click):
		m.click()
	case key.Matches(msg, m.keys.Copy):
		m.copyDetail()
	default:
		return m, nil
	}
	m.refresh()
	return m, nil
}

// Cursor returns the segment under the cursor.
func (m Model) Cursor() (row, seg int) {
	return m.rowIdx, m.segIdx
}

func (m *Model) moveSegment(delta int) {
	if len(m.rows) == 0 {
		return
	}
	n := len(m.rows[m.rowIdx].rects)
	m.segIdx = clamp(m.segIdx+delta, 0, n-1)
	m.hover()
}

func (m *Model) moveRow(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.rowIdx = clamp(m.rowIdx+delta, 0, len(m.rows)-1)
	m.segIdx = clamp(m.segIdx, 0, len(m.rows[m.rowIdx].rects)-1)
	m.scrollToCursor()
	m.hover()
}

// hover moves the inspector's tooltip to the cursor segment.
func (m *Model) hover() {
	if len(m.rows) == 0 {
		return
	}
	row := m.rows[m.rowIdx]
	r, ok := row.segment(m.segIdx)
	if !ok {
		return
	}
	if _, err := m.inspector.Hover(r.ID, r.X, r.Y); err != nil {
		m.statusMsg, m.statusErr = err.Error(), true
	}
}

func (m *Model) click() {
	if len(m.rows) == 0 {
		return
	}
	id := m.rows[m.rowIdx].id(m.segIdx)
	if err := m.inspector.Click(id); err != nil {
		m.statusMsg, m.statusErr = fmt.Sprintf("Emit failed: %v", err), true
		return
	}
	m.statusMsg, m.statusErr = fmt.Sprintf("Emitted segment %s", id), false
}

func (m *Model) copyDetail() {
	tip, ok := m.inspector.Visible()
	if !ok {
		m.statusMsg, m.statusErr = "Nothing to copy", true
		return
	}
	if err := m.copy(tip.Detail.String()); err != nil {
		m.statusMsg, m.statusErr = fmt.Sprintf("Clipboard error: %v", err), true
		return
	}
	m.statusMsg, m.statusErr = fmt.Sprintf("Copied segment %s", tip.Detail.Segment), false
}

func (m *Model) scrollToCursor() {
	h := m.viewport.Height
	if h <= 0 {
		return
	}
	switch {
	case m.rowIdx < m.viewport.YOffset:
		m.viewport.SetYOffset(m.rowIdx)
	case m.rowIdx >= m.viewport.YOffset+h:
		m.viewport.SetYOffset(m.rowIdx - h + 1)
	}
}

func (m Model) timelineWidth() int {
	return max(m.width-gutterWidth, 1)
}

func (m Model) bodyHeight() int {
	return max(m.height-chromeHeight, 1)
}

// scale is the number of terminal columns per layout unit.
func (m Model) scale() float64 {
	if m.layout.Width <= 0 {
		return 0
	}
	return float64(m.timelineWidth()) / m.layout.Width
}

// refresh re-renders the rows into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderRows())
}

func (m Model) renderRows() string {
	cols := m.timelineWidth()
	scale := m.scale()
	lines := make([]string, len(m.rows))
	for i, row := range m.rows {
		cursor := -1
		marker := " "
		if i == m.rowIdx {
			cursor = m.segIdx
			marker = "▶"
		}
		gutter := m.theme.Gutter.Render(padRight(fmt.Sprintf("%s%6d ", marker, row.inst), gutterWidth))
		lines[i] = gutter + row.render(m.theme, scale, cols, cursor, m.plain)
	}
	return strings.Join(lines, "\n")
}

func (m Model) View() string {
	defer metrics.Timer(metrics.RenderUI)()

	if m.quitting {
		return ""
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	switch {
	case m.fetchErr != nil:
		sections = append(sections, m.theme.Error.Render(truncate("Fetch failed: "+m.fetchErr.Error(), m.width)))
	case len(m.rows) == 0:
		sections = append(sections, m.theme.HelpText.Render("No instructions to draw"))
	default:
		sections = append(sections, m.viewport.View(), m.renderDetail())
	}

	if m.statusMsg != "" {
		style := m.theme.Status
		if m.statusErr {
			style = m.theme.Error
		}
		sections = append(sections, style.Render(truncate(m.statusMsg, m.width)))
	}
	sections = append(sections, m.renderHelp())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	s := m.layout.Summary
	text := fmt.Sprintf("%s  %d instructions  %d events", m.title, s.Instructions, s.Events)
	if s.Failures > 0 || s.DroppedRows > 0 {
		text += fmt.Sprintf("  skipped %d", s.Failures+s.DroppedRows)
	}
	return m.theme.Header.Render(truncate(text, max(m.width-2, 1)))
}

func (m Model) renderDetail() string {
	tip, ok := m.inspector.Visible()
	body := "Move the cursor onto a segment"
	if ok {
		d := tip.Detail
		body = fmt.Sprintf("%s\ntime: %g → %g", d.String(), d.Time, d.EndTime)
	}
	inner := max(m.width-4, 1)
	return m.theme.Detail.Width(inner).Render(truncateLines(body, inner-2))
}

func (m Model) renderHelp() string {
	parts := make([]string, 0, len(m.keys.help()))
	for _, b := range m.keys.help() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.theme.HelpText.Render(truncate(strings.Join(parts, " • "), m.width))
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
