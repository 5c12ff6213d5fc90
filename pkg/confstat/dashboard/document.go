package dashboard

import (
	"time"

	"github.com/cognicore/confstat/pkg/confstat/histogram"
	"github.com/cognicore/confstat/pkg/confstat/series"
)

// Glyph is the visual primitive an element draws.
type Glyph string

const (
	GlyphLine Glyph = "line"
	GlyphQuad Glyph = "quad"
)

// SlotID indexes Document.Slots.
type SlotID int

// Slot is an immutable, pre-registered data source. Line holds GlyphLine
// data and Bins holds GlyphQuad data.
type Slot struct {
	ID      SlotID
	Panel   int
	Glyph   Glyph
	Variant string
	Label   string
	Line    []series.Point
	Bins    []histogram.Bin
}

// Element is a chart primitive bound to one slot at a time. Its identity
// and styling never change; only the slot it points to does.
type Element struct {
	Index int
	Glyph Glyph
	Label string
	Color string
}

// Panel is one chart with its controls.
type Panel struct {
	Title        string
	XLabel       string
	YLabel       string
	Glyph        Glyph
	VariantTitle string

	Elements []Element
	// Variants are the options of the dataset-variant switch.
	Variants []string
	// Toggle reports whether the panel has a visibility toggle whose
	// options are the element labels.
	Toggle bool

	// Bindings[v][e] is the slot element e shows under variant v.
	Bindings [][]SlotID

	Initial ControlState
}

// ControlState is the viewer-side selection of one panel: which elements
// are visible and which variant is active. The two axes are independent.
type ControlState struct {
	Active  []int // visible element indices, ascending
	Variant int   // index into Panel.Variants
}

// Document is a complete, self-contained dashboard.
type Document struct {
	ID          string
	Title       string
	GeneratedAt time.Time
	Slots       []Slot
	Panels      []Panel
}

// Slot returns the slot element e of panel p shows under variant v.
func (d *Document) Slot(p, v, e int) Slot {
	return d.Slots[d.Panels[p].Bindings[v][e]]
}

// PanelIndex returns the index of the panel with title.
func (d *Document) PanelIndex(title string) (int, bool) {
	for i, p := range d.Panels {
		if p.Title == title {
			return i, true
		}
	}
	return 0, false
}

func (p Panel) elementIndex(label string) (int, bool) {
	for _, e := range p.Elements {
		if e.Label == label {
			return e.Index, true
		}
	}
	return 0, false
}

func (p Panel) variantIndex(key string) (int, bool) {
	for i, v := range p.Variants {
		if v == key {
			return i, true
		}
	}
	return 0, false
}
