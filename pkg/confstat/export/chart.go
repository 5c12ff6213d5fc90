// Package export renders keyword statistics to static image files.
package export

import (
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/cognicore/confstat/pkg/confstat/frequency"
	"github.com/cognicore/confstat/pkg/confstat/internalerr"
)

// BarColor fills the bars of the top-K chart.
var BarColor = drawing.ColorFromHex("1f77b4")

// BarChart renders entries, in the given order, as a vertical bar chart PNG.
func BarChart(w io.Writer, entries []frequency.Entry, title string) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: bar chart %q has no entries", internalerr.ErrInvalidInput, title)
	}

	var top int64
	bars := make([]chart.Value, len(entries))
	for i, e := range entries {
		bars[i] = chart.Value{
			Label: e.Keyword,
			Value: float64(e.Count),
			Style: chart.Style{FillColor: BarColor, StrokeColor: BarColor, StrokeWidth: 1},
		}
		top = max(top, e.Count)
	}

	const barWidth, barSpacing = 24, 12
	width := max(800, len(entries)*(barWidth+barSpacing)+160)

	graph := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     720,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 220}},
		XAxis:      chart.Style{TextRotationDegrees: 90, FontSize: 9},
		YAxis: chart.YAxis{
			Name:  "Count",
			Range: &chart.ContinuousRange{Min: 0, Max: max(float64(top)*1.1, 1)},
		},
		Bars: bars,
	}
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}
