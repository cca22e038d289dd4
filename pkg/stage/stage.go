// Package stage defines the fixed encoding of pipeline stage codes: the fill
// color each stage is drawn with and its human-readable name.
//
// The table is built once and never written afterwards, so a single *Table
// can be shared by every renderer and interaction handler without locking.
package stage

import (
	"fmt"
	"image/color"
	"sync"
)

// Code is a pipeline stage code as it appears in a trace.
type Code int

// Stage codes with a defined meaning. Codes 13 and 14 are reserved for future
// stages: they have colors but no name.
const (
	Unknown     Code = 0
	FetchStart  Code = 1
	FetchDone   Code = 2
	Issue       Code = 3
	DecodeStart Code = 4
	DecodeDone  Code = 5
	ReadStart   Code = 6
	ReadDone    Code = 7
	ExecStart   Code = 8
	ExecDone    Code = 9
	WriteStart  Code = 10
	WriteDone   Code = 11
	Complete    Code = 12

	// NumColors is the number of codes with a defined color (0..14).
	NumColors = 15
	// NumNames is the number of codes with a defined name (0..12).
	NumNames = 13
)

// ReservedName is the display name of codes that have a color but no label.
const ReservedName = "reserved"

var (
	// SentinelColor fills segments whose stage code is outside the table.
	// Magenta does not appear anywhere in the palette.
	SentinelColor = color.RGBA{0xff, 0x00, 0xff, 0xff}
	// FetchDoneStroke outlines FetchDone segments, which are otherwise white.
	FetchDoneStroke = color.RGBA{0x88, 0x88, 0x88, 0xff}
)

// Encoding is the visual encoding of one stage code.
type Encoding struct {
	Code     Code
	Color    color.RGBA
	Name     string
	Known    bool // false for codes outside 0..14
	Reserved bool // true for 13 and 14
}

// Hex returns the fill color as a CSS hex string.
func (e Encoding) Hex() string {
	return Hex(e.Color)
}

// Stroked reports whether segments of this stage get the highlight outline.
func (e Encoding) Stroked() bool {
	return e.Code == FetchDone
}

// UnknownStageError is an advisory error for a stage code that has no
// defined encoding. Such stages still render, using the sentinel encoding.
type UnknownStageError struct {
	Code Code
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage code %d", e.Code)
}

// Table maps stage codes to colors and names.
type Table struct {
	colors [NumColors]color.RGBA
	names  [NumNames]string
}

// NewTable builds the stage table.
func NewTable() *Table {
	white := color.RGBA{0xff, 0xff, 0xff, 0xff}
	return &Table{
		colors: [NumColors]color.RGBA{
			{0x00, 0x00, 0x00, 0xff}, // unknown
			{0x67, 0x00, 0x1f, 0xff}, // fetch start
			white,                    // fetch done
			{0xb2, 0x18, 0x2b, 0xff}, // issue
			{0xd6, 0x60, 0x4d, 0xff}, // decode start
			white,                    // decode done
			{0xf4, 0xa5, 0x82, 0xff}, // read start
			white,                    // read done
			{0xfd, 0xdb, 0xc7, 0xff}, // exec start
			white,                    // exec done
			{0x92, 0xc5, 0xde, 0xff}, // write start
			white,                    // write done
			{0x43, 0x94, 0xc3, 0xff}, // complete
			{0x21, 0x66, 0xac, 0xff},
			{0x05, 0x30, 0x61, 0xff},
		},
		names: [NumNames]string{
			"unknown",
			"fetch start",
			"wait issue",
			"issue",
			"decode",
			"decode done",
			"read",
			"read done",
			"exec",
			"exec done",
			"write",
			"write done",
			"complete",
		},
	}
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the process-wide table.
func Default() *Table {
	defaultOnce.Do(func() {
		defaultTable = NewTable()
	})
	return defaultTable
}

// Encode returns the encoding for c. Codes outside the table get the unknown
// sentinel rather than an error.
func (t *Table) Encode(c Code) Encoding {
	if c < 0 || int(c) >= NumColors {
		return Encoding{
			Code:  c,
			Color: SentinelColor,
			Name:  fmt.Sprintf("unknown stage %d", c),
		}
	}
	enc := Encoding{Code: c, Color: t.colors[c], Known: true}
	if int(c) < NumNames {
		enc.Name = t.names[c]
	} else {
		enc.Name = ReservedName
		enc.Reserved = true
	}
	return enc
}

// Color returns the fill color for c.
func (t *Table) Color(c Code) color.RGBA {
	return t.Encode(c).Color
}

// Name returns the display name for c.
func (t *Table) Name(c Code) string {
	return t.Encode(c).Name
}

// Check returns an *UnknownStageError when c has no defined encoding.
func (t *Table) Check(c Code) error {
	if c < 0 || int(c) >= NumColors {
		return &UnknownStageError{Code: c}
	}
	return nil
}

// Legend returns the encodings of every named stage, in code order.
func (t *Table) Legend() []Encoding {
	out := make([]Encoding, 0, NumNames)
	for c := Code(0); int(c) < NumNames; c++ {
		out = append(out, t.Encode(c))
	}
	return out
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
