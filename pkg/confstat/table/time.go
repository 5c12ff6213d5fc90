package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
)

// ParseTime parses a timestamp cell. Integers and integral floats are
// milliseconds since the Unix epoch (the OpenReview cdate/mdate encoding);
// anything else goes through dateparse, with zone-less values read in
// loc. The result is expressed in loc.
func ParseTime(cell string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", internalerr.ErrMalformedRow)
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return time.Time{}, fmt.Errorf("%w: timestamp %q", internalerr.ErrMalformedRow, s)
		}
		return time.UnixMilli(int64(f)).In(loc), nil
	}

	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", internalerr.ErrMalformedRow, s, err)
	}
	return t.In(loc), nil
}

// Date truncates t to midnight of its calendar day in loc.
func Date(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Time parses the cell in column name of r.
func (r Row) Time(name string, loc *time.Location) (time.Time, error) {
	v, _ := r.Value(name)
	t, err := ParseTime(v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("row %d column %q: %w", r.Index, name, err)
	}
	return t, nil
}
