// Package histogram computes fixed-bin histograms of a numeric column for
// a whole table and for each category, on one shared set of bin edges.
package histogram

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
	"github.com/cognicore/confstat/pkg/confstat/table"
)

const (
	// AllKey names the whole-population histogram.
	AllKey = "_all_"

	// DefaultBins is the bin count when none is given.
	DefaultBins = 30

	// UnknownCategory replaces a null category cell.
	UnknownCategory = "Unknown"
)

// Bin is a half-open interval [Left, Right); the last bin of a histogram
// also includes Right.
type Bin struct {
	Left  float64
	Right float64
	Count int64
}

// Histogram is an ordered list of bins.
type Histogram struct {
	Bins []Bin
}

// Total returns the number of values counted.
func (h Histogram) Total() int64 {
	var n int64
	for _, b := range h.Bins {
		n += b.Count
	}
	return n
}

// Distribution holds the AllKey histogram plus one per category. Every
// histogram uses Edges.
type Distribution struct {
	Edges []float64
	Keys  []string // AllKey, then categories in sorted order
	ByKey map[string]Histogram
}

// ValueFunc derives the numeric value of a row.
type ValueFunc func(row table.Row) (float64, error)

// TextLength returns the length in characters of a text column; a null
// cell has length 0.
func TextLength(column string) ValueFunc {
	return func(row table.Row) (float64, error) {
		v, _ := row.Value(column)
		return float64(utf8.RuneCountInString(v)), nil
	}
}

// Build computes the distribution of value over t, split by categoryCol.
// Edges span the observed range of the whole table and are never
// recomputed per category.
func Build(t *table.Table, categoryCol string, value ValueFunc, bins int) (Distribution, error) {
	if bins <= 0 {
		bins = DefaultBins
	}
	if err := t.Require(categoryCol); err != nil {
		return Distribution{}, err
	}

	rows := t.Rows()
	values := make([]float64, len(rows))
	byCategory := make(map[string][]float64)
	for i, row := range rows {
		v, err := value(row)
		if err != nil {
			return Distribution{}, fmt.Errorf("row %d: %w", row.Index, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Distribution{}, fmt.Errorf("%w: row %d: non-finite value", internalerr.ErrMalformedRow, row.Index)
		}
		values[i] = v
		cat := row.String(categoryCol, UnknownCategory)
		byCategory[cat] = append(byCategory[cat], v)
	}

	edges := Edges(values, bins)
	dist := Distribution{
		Edges: edges,
		Keys:  []string{AllKey},
		ByKey: map[string]Histogram{AllKey: Count(values, edges)},
	}

	cats := make([]string, 0, len(byCategory))
	for c := range byCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		dist.Keys = append(dist.Keys, c)
		dist.ByKey[c] = Count(byCategory[c], edges)
	}
	return dist, nil
}

// Edges returns bins+1 evenly spaced edges over the range of values.
// An empty input spans [0, 1]; a constant input spans [v-0.5, v+0.5].
func Edges(values []float64, bins int) []float64 {
	lo, hi := 0.0, 1.0
	if len(values) > 0 {
		lo, hi = values[0], values[0]
		for _, v := range values[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if lo == hi {
			lo -= 0.5
			hi += 0.5
		}
	}

	edges := make([]float64, bins+1)
	width := (hi - lo) / float64(bins)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi
	return edges
}

// Count bins values on edges. Values outside the edges are ignored.
func Count(values []float64, edges []float64) Histogram {
	n := len(edges) - 1
	h := Histogram{Bins: make([]Bin, n)}
	for i := 0; i < n; i++ {
		h.Bins[i] = Bin{Left: edges[i], Right: edges[i+1]}
	}
	if n <= 0 {
		return h
	}
	lo, hi := edges[0], edges[n]
	for _, v := range values {
		if v < lo || v > hi {
			continue
		}
		// first edge strictly greater than v, minus one
		i := sort.SearchFloat64s(edges, v)
		if i < len(edges) && edges[i] == v {
			i++
		}
		i--
		if i >= n {
			i = n - 1
		}
		h.Bins[i].Count++
	}
	return h
}
