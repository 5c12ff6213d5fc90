// Package dashboard assembles precomputed series and histograms into a
// self-contained interactive document. Every chart variant is registered
// as a slot up front; viewer controls only switch which slot an element
// shows or whether it is visible.
package dashboard

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/confstat/pkg/confstat/histogram"
	"github.com/cognicore/confstat/pkg/confstat/internalerr"
	"github.com/cognicore/confstat/pkg/confstat/series"
)

// DefaultVisible is the number of leading labels a visibility toggle
// starts with.
const DefaultVisible = 9

// HistogramLabel is the label of the single element of a distribution panel.
const HistogramLabel = "count"

// Category20 is the palette assigned to elements in label order.
var Category20 = []string{
	"#1f77b4", "#aec7e8", "#ff7f0e", "#ffbb78", "#2ca02c",
	"#98df8a", "#d62728", "#ff9896", "#9467bd", "#c5b0d5",
	"#8c564b", "#c49c94", "#e377c2", "#f7b6d2", "#7f7f7f",
	"#c7c7c7", "#bcbd22", "#dbdb8d", "#17becf", "#9edae5",
}

// HistogramColor fills distribution bars.
const HistogramColor = "#AE51C0"

// Options configures a Binder.
type Options struct {
	// DefaultVisible is how many labels a visibility toggle starts with;
	// nil means DefaultVisible. Zero starts with every element hidden.
	DefaultVisible *int
	Palette        []string
	Now            func() time.Time
}

type slotKey struct {
	panel   int
	variant string
	label   string
}

// Binder registers slots and panels, then validates and freezes them
// into a Document.
type Binder struct {
	title   string
	visible int
	palette []string
	now     func() time.Time
	entropy *ulid.MonotonicEntropy

	slots  []Slot
	index  map[slotKey]SlotID
	panels []Panel
}

// NewBinder creates a binder for a document titled title.
func NewBinder(title string, opts Options) (*Binder, error) {
	visible := DefaultVisible
	if opts.DefaultVisible != nil {
		visible = *opts.DefaultVisible
	}
	if visible < 0 {
		return nil, fmt.Errorf("%w: default visible count %d", internalerr.ErrInvalidConfig, visible)
	}
	palette := opts.Palette
	if len(palette) == 0 {
		palette = Category20
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Binder{
		title:   title,
		visible: visible,
		palette: palette,
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
		index:   make(map[slotKey]SlotID),
	}, nil
}

// AddSeriesSets adds a line panel. One slot is registered per (variant,
// label); one element is created per label of the first set.
func (b *Binder) AddSeriesSets(title, variantTitle string, sets []series.Set) error {
	if len(sets) == 0 {
		return fmt.Errorf("%w: panel %q has no variants", internalerr.ErrInvalidInput, title)
	}
	p := len(b.panels)
	panel := Panel{
		Title:        title,
		XLabel:       "Date",
		YLabel:       "Submission",
		Glyph:        GlyphLine,
		VariantTitle: variantTitle,
		Toggle:       true,
	}

	for _, set := range sets {
		if len(set.Labels) != len(set.Series) {
			return fmt.Errorf("%w: variant %q has %d labels and %d series", internalerr.ErrInvalidInput, set.Variant, len(set.Labels), len(set.Series))
		}
		if _, dup := panel.variantIndex(set.Variant); dup {
			return fmt.Errorf("%w: duplicate variant %q in panel %q", internalerr.ErrInvalidConfig, set.Variant, title)
		}
		panel.Variants = append(panel.Variants, set.Variant)
		for i, label := range set.Labels {
			if err := b.register(Slot{Panel: p, Glyph: GlyphLine, Variant: set.Variant, Label: label, Line: set.Series[i]}); err != nil {
				return err
			}
		}
	}

	for i, label := range sets[0].Labels {
		panel.Elements = append(panel.Elements, Element{
			Index: i,
			Glyph: GlyphLine,
			Label: label,
			Color: b.palette[i%len(b.palette)],
		})
	}
	b.panels = append(b.panels, panel)
	return nil
}

// AddDistribution adds a quad panel with a single element and one variant
// per distribution key.
func (b *Binder) AddDistribution(title, variantTitle, xLabel string, dist histogram.Distribution) error {
	if len(dist.Keys) == 0 {
		return fmt.Errorf("%w: panel %q has no variants", internalerr.ErrInvalidInput, title)
	}
	p := len(b.panels)
	panel := Panel{
		Title:        title,
		XLabel:       xLabel,
		YLabel:       "Number of Submissions",
		Glyph:        GlyphQuad,
		VariantTitle: variantTitle,
		Elements:     []Element{{Index: 0, Glyph: GlyphQuad, Label: HistogramLabel, Color: HistogramColor}},
	}

	for _, key := range dist.Keys {
		if _, dup := panel.variantIndex(key); dup {
			return fmt.Errorf("%w: duplicate variant %q in panel %q", internalerr.ErrInvalidConfig, key, title)
		}
		panel.Variants = append(panel.Variants, key)
		h, ok := dist.ByKey[key]
		if !ok {
			// left unregistered; Build reports the missing slot
			continue
		}
		if err := b.register(Slot{Panel: p, Glyph: GlyphQuad, Variant: key, Label: HistogramLabel, Bins: h.Bins}); err != nil {
			return err
		}
	}
	b.panels = append(b.panels, panel)
	return nil
}

func (b *Binder) register(s Slot) error {
	key := slotKey{panel: s.Panel, variant: s.Variant, label: s.Label}
	if _, dup := b.index[key]; dup {
		return fmt.Errorf("%w: slot (%q, %q) registered twice", internalerr.ErrInvalidConfig, s.Variant, s.Label)
	}
	s.ID = SlotID(len(b.slots))
	b.index[key] = s.ID
	b.slots = append(b.slots, s)
	return nil
}

// Build resolves every (variant, element) pair to its slot and returns the
// document. A pair without a slot is ErrUnboundSlot; no document is
// produced in that case.
func (b *Binder) Build() (*Document, error) {
	if len(b.panels) == 0 {
		return nil, fmt.Errorf("%w: dashboard has no panels", internalerr.ErrInvalidInput)
	}

	panels := make([]Panel, len(b.panels))
	for p, panel := range b.panels {
		panel.Bindings = make([][]SlotID, len(panel.Variants))
		for v, variant := range panel.Variants {
			row := make([]SlotID, len(panel.Elements))
			for e, el := range panel.Elements {
				id, ok := b.index[slotKey{panel: p, variant: variant, label: el.Label}]
				if !ok {
					return nil, fmt.Errorf("%w: panel %q has no slot for variant %q label %q", internalerr.ErrUnboundSlot, panel.Title, variant, el.Label)
				}
				if b.slots[id].Glyph != el.Glyph {
					return nil, fmt.Errorf("%w: slot %d holds %s data, element %q draws %s", internalerr.ErrInvalidConfig, id, b.slots[id].Glyph, el.Label, el.Glyph)
				}
				row[e] = id
			}
			panel.Bindings[v] = row
		}
		panel.Initial = b.initialState(panel)
		panels[p] = panel
	}

	slots := make([]Slot, len(b.slots))
	copy(slots, b.slots)
	return &Document{
		ID:          ulid.MustNew(ulid.Now(), b.entropy).String(),
		Title:       b.title,
		GeneratedAt: b.now().UTC(),
		Slots:       slots,
		Panels:      panels,
	}, nil
}

func (b *Binder) initialState(p Panel) ControlState {
	n := len(p.Elements)
	if p.Toggle {
		n = min(b.visible, n)
	}
	active := make([]int, n)
	for i := range active {
		active[i] = i
	}
	return ControlState{Active: active, Variant: 0}
}
