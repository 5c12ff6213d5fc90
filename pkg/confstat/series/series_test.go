package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
	"github.com/cognicore/confstat/pkg/confstat/table"
)

var dims = []Dimension{
	{Key: "created", Column: "cdate"},
	{Key: "finished", Column: "mdate"},
}

func buildTable(t *testing.T, rows ...[]string) *table.Table {
	t.Helper()
	tbl, err := table.New([]string{"area", "cdate", "mdate"})
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, tbl.Append(r))
	}
	return tbl
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildScenarioB(t *testing.T) {
	tbl := buildTable(t,
		[]string{"CV", "2024-01-01T08:00:00Z", "2024-01-03T08:00:00Z"},
		[]string{"NLP", "2024-01-01T17:30:00Z", "2024-01-03T09:00:00Z"},
	)

	sets, err := Build(tbl, "area", dims, time.UTC)
	require.NoError(t, err)
	require.Len(t, sets, 2)

	created := sets[0]
	assert.Equal(t, "created", created.Variant)
	assert.Equal(t, TotalLabel, created.Labels[0])
	assert.ElementsMatch(t, []string{"CV", "NLP"}, created.Categories())

	total, ok := created.Lookup(TotalLabel)
	require.True(t, ok)
	assert.Equal(t, []Point{{Date: day(2024, 1, 1), Count: 2}}, total)

	for _, label := range []string{"CV", "NLP"} {
		s, ok := created.Lookup(label)
		require.True(t, ok)
		assert.Equal(t, []Point{{Date: day(2024, 1, 1), Count: 1}}, s, label)
	}
}

func TestBuildOrderingAndTieBreak(t *testing.T) {
	tbl := buildTable(t,
		[]string{"RL", "2024-01-01", "2024-01-01"},
		[]string{"CV", "2024-01-01", "2024-01-01"},
		[]string{"NLP", "2024-01-02", "2024-01-02"},
		[]string{"NLP", "2024-01-03", "2024-01-03"},
		[]string{"", "2024-01-03", "2024-01-03"},
	)

	for i := 0; i < 5; i++ {
		sets, err := Build(tbl, "area", dims, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{TotalLabel, "NLP", "RL", "CV", UnknownCategory}, sets[0].Labels)
	}
}

func TestBuildLabelSetsIdenticalAcrossVariants(t *testing.T) {
	tbl := buildTable(t,
		[]string{"CV", "2024-01-01", "2024-02-01"},
		[]string{"NLP", "2024-01-02", "2024-02-01"},
		[]string{"NLP", "2024-01-02", "2024-02-05"},
		[]string{"Theory", "2024-01-05", "2024-02-09"},
	)

	sets, err := Build(tbl, "area", dims, nil)
	require.NoError(t, err)
	assert.Equal(t, sets[0].Labels, sets[1].Labels)

	finished, _ := sets[1].Lookup("NLP")
	assert.Equal(t, []Point{{Date: day(2024, 2, 1), Count: 1}, {Date: day(2024, 2, 5), Count: 1}}, finished)
}

func TestBuildTotalIsSumPerDate(t *testing.T) {
	tbl := buildTable(t,
		[]string{"CV", "2024-01-01", "2024-01-01"},
		[]string{"CV", "2024-01-03", "2024-01-04"},
		[]string{"NLP", "2024-01-01", "2024-01-04"},
		[]string{"NLP", "2024-01-02", "2024-01-04"},
		[]string{"RL", "2024-01-03", "2024-01-01"},
	)

	sets, err := Build(tbl, "area", dims, nil)
	require.NoError(t, err)

	for _, set := range sets {
		sums := make(map[time.Time]int64)
		for _, s := range set.Series[1:] {
			for _, p := range s {
				sums[p.Date] += p.Count
			}
		}
		total := set.Series[0]
		assert.Len(t, total, len(sums), set.Variant)
		for i, p := range total {
			assert.Equal(t, sums[p.Date], p.Count, "%s %v", set.Variant, p.Date)
			if i > 0 {
				assert.True(t, total[i-1].Date.Before(p.Date), "dates must ascend")
			}
		}
	}
}

func TestBuildTimezoneNormalization(t *testing.T) {
	tbl := buildTable(t,
		[]string{"CV", "2024-01-01T23:30:00-05:00", "2024-01-01T23:30:00-05:00"},
	)

	sets, err := Build(tbl, "area", dims, time.UTC)
	require.NoError(t, err)
	total, _ := sets[0].Lookup(TotalLabel)
	require.Len(t, total, 1)
	assert.Equal(t, day(2024, 1, 2), total[0].Date)
}

func TestBuildUnparsableTimestamp(t *testing.T) {
	tbl := buildTable(t,
		[]string{"CV", "2024-01-01", "2024-01-01"},
		[]string{"CV", "2024-01-01", "sometime"},
	)

	_, err := Build(tbl, "area", dims, nil)
	require.ErrorIs(t, err, internalerr.ErrMalformedRow)
	assert.Contains(t, err.Error(), "finished")
}

func TestBuildInvalidDimensions(t *testing.T) {
	tbl := buildTable(t)

	_, err := Build(tbl, "area", nil, nil)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	_, err = Build(tbl, "area", []Dimension{{Key: "a", Column: "cdate"}, {Key: "a", Column: "mdate"}}, nil)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	_, err = Build(tbl, "area", []Dimension{{Key: "x", Column: "missing"}}, nil)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestBuildEmptyTable(t *testing.T) {
	sets, err := Build(buildTable(t), "area", dims, nil)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, []string{TotalLabel}, sets[0].Labels)
	assert.Empty(t, sets[0].Series[0])
}
