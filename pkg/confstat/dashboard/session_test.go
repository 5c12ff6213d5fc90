package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/confstat/pkg/confstat/histogram"
	"github.com/cognicore/confstat/pkg/confstat/internalerr"
	"github.com/cognicore/confstat/pkg/confstat/series"
)

func TestToggleHidesOnlyThatElement(t *testing.T) {
	doc := buildSample(t, Options{})
	s := NewSession(doc)

	before, ok := s.Bound(0, "NLP")
	require.True(t, ok)
	require.True(t, s.Visible(0, "NLP"))

	require.NoError(t, s.Toggle(0, "NLP", false))
	assert.False(t, s.Visible(0, "NLP"))
	assert.True(t, s.Visible(0, "CV"))
	assert.True(t, s.Visible(0, series.TotalLabel))
	assert.Equal(t, "created", s.Variant(0))

	// the data source is untouched while hidden
	hidden, _ := s.Bound(0, "NLP")
	assert.Equal(t, before, hidden)
	assert.Equal(t, before, doc.Slots[before.ID])

	require.NoError(t, s.Toggle(0, "NLP", true))
	assert.True(t, s.Visible(0, "NLP"))
	after, _ := s.Bound(0, "NLP")
	assert.Equal(t, before, after)
	assert.Equal(t, []int{0, 1, 2}, s.State(0).Active)
}

func TestSelectVariantRebindsEveryElement(t *testing.T) {
	doc := buildSample(t, Options{})
	s := NewSession(doc)
	require.NoError(t, s.Toggle(0, "CV", false))
	visible := s.State(0).Active

	require.NoError(t, s.SelectVariant(0, "finished"))
	assert.Equal(t, "finished", s.Variant(0))
	assert.Equal(t, visible, s.State(0).Active)

	for _, label := range []string{series.TotalLabel, "CV", "NLP"} {
		slot, ok := s.Bound(0, label)
		require.True(t, ok)
		assert.Equal(t, "finished", slot.Variant)
		assert.Equal(t, label, slot.Label)
		assert.Equal(t, day2, slot.Line[0].Date)
	}
	assert.False(t, s.Visible(0, "CV"))
}

func TestSelectVariantOnDistribution(t *testing.T) {
	doc := buildSample(t, Options{})
	s := NewSession(doc)

	slot, _ := s.Bound(1, HistogramLabel)
	assert.Equal(t, histogram.AllKey, slot.Variant)

	require.NoError(t, s.SelectVariant(1, "NLP"))
	slot, _ = s.Bound(1, HistogramLabel)
	assert.Equal(t, "NLP", slot.Variant)
	assert.Equal(t, int64(1), slot.Bins[1].Count)
	assert.True(t, s.Visible(1, HistogramLabel))
}

func TestSessionErrors(t *testing.T) {
	doc := buildSample(t, Options{})
	s := NewSession(doc)

	assert.ErrorIs(t, s.SelectVariant(0, "accepted"), internalerr.ErrNotFound)
	assert.ErrorIs(t, s.Toggle(0, "RL", true), internalerr.ErrNotFound)
	assert.ErrorIs(t, s.SetActive(1, []string{HistogramLabel}), internalerr.ErrInvalidInput)
	assert.ErrorIs(t, s.SelectVariant(5, "created"), internalerr.ErrNotFound)
	assert.Equal(t, "created", s.Variant(0))
}

func TestSetActiveSortsAndDedupes(t *testing.T) {
	doc := buildSample(t, Options{})
	s := NewSession(doc)

	require.NoError(t, s.SetActive(0, []string{"NLP", series.TotalLabel, "NLP"}))
	assert.Equal(t, []int{0, 2}, s.State(0).Active)

	require.NoError(t, s.SetActive(0, nil))
	assert.Empty(t, s.State(0).Active)
	assert.False(t, s.Visible(0, series.TotalLabel))
}

func TestSessionsAreIndependent(t *testing.T) {
	doc := buildSample(t, Options{})
	a, b := NewSession(doc), NewSession(doc)

	require.NoError(t, a.SelectVariant(0, "finished"))
	require.NoError(t, a.Toggle(0, "CV", false))

	assert.Equal(t, "created", b.Variant(0))
	assert.True(t, b.Visible(0, "CV"))
	assert.Equal(t, []int{0, 1, 2}, doc.Panels[0].Initial.Active)
}
