package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/cognicore/confstat/pkg/confstat/frequency"
	"github.com/cognicore/confstat/pkg/confstat/internalerr"
)

// Word cloud defaults.
const (
	DefaultCloudWidth  = 1280
	DefaultCloudHeight = 640
	DefaultCloudWords  = 300
)

// cell is the side of one occupancy grid cell in pixels.
const cell = 2

// CloudOptions sizes a word cloud. Zero fields take the defaults above.
type CloudOptions struct {
	Width    int
	Height   int
	MaxWords int
	// MinScale and MaxScale bound the glyph magnification of the least and
	// most frequent words.
	MinScale float64
	MaxScale float64
	Palette  []color.Color
}

func (o CloudOptions) withDefaults() CloudOptions {
	if o.Width <= 0 {
		o.Width = DefaultCloudWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultCloudHeight
	}
	if o.MaxWords <= 0 {
		o.MaxWords = DefaultCloudWords
	}
	if o.MinScale <= 0 {
		o.MinScale = 1
	}
	if o.MaxScale < o.MinScale {
		o.MaxScale = max(o.MinScale, 6)
	}
	if len(o.Palette) == 0 {
		o.Palette = cloudPalette
	}
	return o
}

var cloudPalette = []color.Color{
	color.RGBA{0x1f, 0x77, 0xb4, 0xff},
	color.RGBA{0xff, 0x7f, 0x0e, 0xff},
	color.RGBA{0x2c, 0xa0, 0x2c, 0xff},
	color.RGBA{0xd6, 0x27, 0x28, 0xff},
	color.RGBA{0x94, 0x67, 0xbd, 0xff},
	color.RGBA{0x8c, 0x56, 0x4b, 0xff},
	color.RGBA{0xe3, 0x77, 0xc2, 0xff},
	color.RGBA{0x17, 0xbe, 0xcf, 0xff},
}

// Placement is where one word landed in the cloud.
type Placement struct {
	Keyword string
	Count   int64
	Scale   float64
	Rect    image.Rectangle
	Color   color.Color
}

// LayoutCloud places up to MaxWords of entries, most frequent first, on an
// Archimedean spiral from the canvas centre. A word that fits nowhere is
// dropped. The layout depends only on entries and opts.
func LayoutCloud(entries []frequency.Entry, opts CloudOptions) []Placement {
	opts = opts.withDefaults()
	if len(entries) > opts.MaxWords {
		entries = entries[:opts.MaxWords]
	}
	if len(entries) == 0 {
		return nil
	}

	lo, hi := entries[0].Count, entries[0].Count
	for _, e := range entries {
		lo, hi = min(lo, e.Count), max(hi, e.Count)
	}

	grid := newOccupancy(opts.Width, opts.Height)
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil()
	cx, cy := float64(opts.Width)/2, float64(opts.Height)/2
	aspect := float64(opts.Width) / float64(opts.Height)
	maxRadius := math.Hypot(cx, cy)

	var out []Placement
	for i, e := range entries {
		if e.Keyword == "" || e.Count <= 0 {
			continue
		}
		scale := opts.MaxScale
		if hi > lo {
			frac := math.Sqrt(float64(e.Count-lo) / float64(hi-lo))
			scale = opts.MinScale + (opts.MaxScale-opts.MinScale)*frac
		}
		w := int(math.Ceil(float64(font.MeasureString(face, e.Keyword).Ceil()) * scale))
		h := int(math.Ceil(float64(lineHeight) * scale))
		if w > opts.Width || h > opts.Height {
			continue
		}

		for theta := 0.0; ; theta += 0.1 {
			r := 2 * theta
			if r > maxRadius {
				break
			}
			x := int(cx+r*math.Cos(theta)*aspect) - w/2
			y := int(cy+r*math.Sin(theta)) - h/2
			rect := image.Rect(x, y, x+w, y+h)
			if !rect.In(image.Rect(0, 0, opts.Width, opts.Height)) || grid.overlaps(rect) {
				continue
			}
			grid.mark(rect)
			out = append(out, Placement{
				Keyword: e.Keyword,
				Count:   e.Count,
				Scale:   scale,
				Rect:    rect,
				Color:   opts.Palette[i%len(opts.Palette)],
			})
			break
		}
	}
	return out
}

// WordCloud lays out entries and writes the cloud as a PNG. It returns the
// placements it drew.
func WordCloud(w io.Writer, entries []frequency.Entry, opts CloudOptions) ([]Placement, error) {
	opts = opts.withDefaults()
	for _, e := range entries {
		if e.Count < 0 {
			return nil, fmt.Errorf("%w: keyword %q has negative count", internalerr.ErrInvalidInput, e.Keyword)
		}
	}
	placements := LayoutCloud(entries, opts)

	canvas := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for _, p := range placements {
		word := rasterize(p.Keyword, p.Color)
		draw.NearestNeighbor.Scale(canvas, p.Rect, word, word.Bounds(), draw.Over, nil)
	}

	if err := png.Encode(w, canvas); err != nil {
		return nil, fmt.Errorf("encode word cloud: %w", err)
	}
	return placements, nil
}

// rasterize draws word at 1x on a transparent image just large enough
// to hold it.
func rasterize(word string, c color.Color) *image.RGBA {
	face := basicfont.Face7x13
	m := face.Metrics()
	img := image.NewRGBA(image.Rect(0, 0, font.MeasureString(face, word).Ceil(), m.Height.Ceil()))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: m.Ascent},
	}
	d.DrawString(word)
	return img
}

type occupancy struct {
	cols, rows int
	used       []bool
}

func newOccupancy(w, h int) *occupancy {
	cols, rows := (w+cell-1)/cell, (h+cell-1)/cell
	return &occupancy{cols: cols, rows: rows, used: make([]bool, cols*rows)}
}

func (o *occupancy) span(r image.Rectangle) (x0, y0, x1, y1 int) {
	return r.Min.X / cell, r.Min.Y / cell, (r.Max.X + cell - 1) / cell, (r.Max.Y + cell - 1) / cell
}

func (o *occupancy) overlaps(r image.Rectangle) bool {
	x0, y0, x1, y1 := o.span(r)
	for y := y0; y < y1; y++ {
		row := o.used[y*o.cols:]
		for x := x0; x < x1; x++ {
			if row[x] {
				return true
			}
		}
	}
	return false
}

func (o *occupancy) mark(r image.Rectangle) {
	x0, y0, x1, y1 := o.span(r)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			o.used[y*o.cols+x] = true
		}
	}
}
