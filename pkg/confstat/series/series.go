// Package series buckets table rows by calendar date and category into
// per-category time series, once per interchangeable time column.
package series

import (
	"fmt"
	"sort"
	"time"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
	"github.com/cognicore/confstat/pkg/confstat/table"
)

// TotalLabel is the label of the all-category series, always first.
const TotalLabel = "Total"

// UnknownCategory replaces a null category cell.
const UnknownCategory = "Unknown"

// Dimension is one time column a series set can be built from.
type Dimension struct {
	Key    string // variant key shown to the viewer, e.g. "created"
	Column string // table column, e.g. "cdate"
}

// Point is the number of rows falling on one date.
type Point struct {
	Date  time.Time
	Count int64
}

// Set is every labeled series for one dimension. Labels[0] is TotalLabel,
// followed by categories in descending total count.
type Set struct {
	Variant string
	Labels  []string
	Series  [][]Point
}

// Lookup returns the series for label.
func (s Set) Lookup(label string) ([]Point, bool) {
	for i, l := range s.Labels {
		if l == label {
			return s.Series[i], true
		}
	}
	return nil, false
}

// Categories returns the labels without TotalLabel.
func (s Set) Categories() []string {
	if len(s.Labels) == 0 {
		return nil
	}
	out := make([]string, len(s.Labels)-1)
	copy(out, s.Labels[1:])
	return out
}

// Build produces one Set per dimension from t. Timestamps are converted to
// loc (UTC when nil) before truncation to dates. Category order is
// computed once and shared by every Set, so all variants carry identical
// labels. Any unparsable timestamp aborts the build.
func Build(t *table.Table, categoryCol string, dims []Dimension, loc *time.Location) ([]Set, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: no time dimensions", internalerr.ErrInvalidInput)
	}
	if loc == nil {
		loc = time.UTC
	}
	required := []string{categoryCol}
	seenKeys := make(map[string]bool, len(dims))
	for _, d := range dims {
		if d.Key == "" || seenKeys[d.Key] {
			return nil, fmt.Errorf("%w: dimension key %q empty or duplicated", internalerr.ErrInvalidInput, d.Key)
		}
		seenKeys[d.Key] = true
		required = append(required, d.Column)
	}
	if err := t.Require(required...); err != nil {
		return nil, err
	}

	rows := t.Rows()
	categories := make([]string, len(rows))
	for i, row := range rows {
		categories[i] = row.String(categoryCol, UnknownCategory)
	}
	order := rankCategories(categories)
	slot := make(map[string]int, len(order))
	for i, c := range order {
		slot[c] = i + 1
	}

	sets := make([]Set, 0, len(dims))
	for _, d := range dims {
		// per label: date -> count
		buckets := make([]map[time.Time]int64, len(order)+1)
		for i := range buckets {
			buckets[i] = make(map[time.Time]int64)
		}
		for i, row := range rows {
			ts, err := row.Time(d.Column, loc)
			if err != nil {
				return nil, fmt.Errorf("dimension %s: %w", d.Key, err)
			}
			day := table.Date(ts, loc)
			buckets[0][day]++
			buckets[slot[categories[i]]][day]++
		}

		set := Set{
			Variant: d.Key,
			Labels:  append([]string{TotalLabel}, order...),
			Series:  make([][]Point, len(buckets)),
		}
		for i, b := range buckets {
			set.Series[i] = toPoints(b)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// rankCategories orders distinct categories by descending row count, ties
// by first appearance.
func rankCategories(categories []string) []string {
	counts := make(map[string]int64)
	var order []string
	for _, c := range categories {
		if _, ok := counts[c]; !ok {
			order = append(order, c)
		}
		counts[c]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return order
}

func toPoints(bucket map[time.Time]int64) []Point {
	points := make([]Point, 0, len(bucket))
	for day, c := range bucket {
		points = append(points, Point{Date: day, Count: c})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points
}
