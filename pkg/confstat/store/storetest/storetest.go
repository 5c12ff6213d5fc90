// Package storetest holds behaviour tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
	"github.com/cognicore/confstat/pkg/confstat/store"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func run(id, venue string, finished time.Duration, kws ...store.KeywordCount) store.Run {
	var occ int64
	for _, kc := range kws {
		occ += kc.Count
	}
	return store.Run{
		ID:          id,
		Venue:       venue,
		StartedAt:   base.Add(finished - time.Minute),
		FinishedAt:  base.Add(finished),
		Submissions: 10,
		Occurrences: occ,
		Keywords:    kws,
		Artifacts:   map[string]string{"csv": venue + ".csv"},
	}
}

// Run exercises open's store against the store.Store contract.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("SaveAndGet", func(t *testing.T) {
		ctx := context.Background()
		st := open(t)
		r := run("01HQ0000000000000000000001", "ICLR.cc/2024/Conference", 0,
			store.KeywordCount{Keyword: "diffusion model", Count: 5},
			store.KeywordCount{Keyword: "large language model", Count: 9},
		)
		require.NoError(t, st.SaveRun(ctx, r))

		got, err := st.GetRun(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.Venue, got.Venue)
		assert.True(t, got.StartedAt.Equal(r.StartedAt))
		assert.True(t, got.FinishedAt.Equal(r.FinishedAt))
		assert.Equal(t, int64(14), got.Occurrences)
		assert.Equal(t, 2, got.Distinct())
		assert.Equal(t, r.Artifacts, got.Artifacts)
		require.Len(t, got.Keywords, 2)
		assert.Equal(t, "large language model", got.Keywords[0].Keyword)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		st := open(t)
		_, err := st.GetRun(context.Background(), "missing")
		assert.ErrorIs(t, err, internalerr.ErrNotFound)
	})

	t.Run("SaveRejectsIncompleteRun", func(t *testing.T) {
		st := open(t)
		err := st.SaveRun(context.Background(), store.Run{ID: "x"})
		assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		ctx := context.Background()
		st := open(t)
		r := run("01HQ0000000000000000000002", "V", 0, store.KeywordCount{Keyword: "a", Count: 1})
		require.NoError(t, st.SaveRun(ctx, r))
		r.Keywords = []store.KeywordCount{{Keyword: "b", Count: 2}}
		r.Submissions = 20
		require.NoError(t, st.SaveRun(ctx, r))

		got, err := st.GetRun(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(20), got.Submissions)
		assert.Equal(t, []store.KeywordCount{{Keyword: "b", Count: 2}}, got.Keywords)
	})

	t.Run("LatestAndList", func(t *testing.T) {
		ctx := context.Background()
		st := open(t)

		_, found, err := st.LatestRun(ctx, "V")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, st.SaveRun(ctx, run("01HQ0000000000000000000010", "V", time.Hour)))
		require.NoError(t, st.SaveRun(ctx, run("01HQ0000000000000000000011", "V", 3*time.Hour)))
		require.NoError(t, st.SaveRun(ctx, run("01HQ0000000000000000000012", "V", 2*time.Hour)))
		require.NoError(t, st.SaveRun(ctx, run("01HQ0000000000000000000013", "W", 5*time.Hour)))

		latest, found, err := st.LatestRun(ctx, "V")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "01HQ0000000000000000000011", latest.ID)

		runs, err := st.ListRuns(ctx, "V", 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "01HQ0000000000000000000011", runs[0].ID)
		assert.Equal(t, "01HQ0000000000000000000012", runs[1].ID)

		all, err := st.ListRuns(ctx, "", 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)
		assert.Equal(t, "W", all[0].Venue)
	})

	t.Run("TopKeywords", func(t *testing.T) {
		ctx := context.Background()
		st := open(t)

		kws, err := st.TopKeywords(ctx, "V", 3)
		require.NoError(t, err)
		assert.Empty(t, kws)

		require.NoError(t, st.SaveRun(ctx, run("01HQ0000000000000000000020", "V", 0,
			store.KeywordCount{Keyword: "old", Count: 99},
		)))
		require.NoError(t, st.SaveRun(ctx, run("01HQ0000000000000000000021", "V", time.Hour,
			store.KeywordCount{Keyword: "c", Count: 1},
			store.KeywordCount{Keyword: "b", Count: 4},
			store.KeywordCount{Keyword: "a", Count: 4},
			store.KeywordCount{Keyword: "d", Count: 7},
		)))

		kws, err = st.TopKeywords(ctx, "V", 3)
		require.NoError(t, err)
		assert.Equal(t, []store.KeywordCount{
			{Keyword: "d", Count: 7},
			{Keyword: "a", Count: 4},
			{Keyword: "b", Count: 4},
		}, kws)
	})

	t.Run("KeywordTrend", func(t *testing.T) {
		ctx := context.Background()
		st := open(t)

		require.NoError(t, st.SaveRun(ctx, run("01HQ0000000000000000000030", "ICLR.cc/2023/Conference", 0,
			store.KeywordCount{Keyword: "llm", Count: 2},
			store.KeywordCount{Keyword: "gan", Count: 8},
		)))
		require.NoError(t, st.SaveRun(ctx, run("01HQ0000000000000000000031", "ICLR.cc/2024/Conference", time.Hour,
			store.KeywordCount{Keyword: "llm", Count: 6},
			store.KeywordCount{Keyword: "gan", Count: 2},
		)))
		require.NoError(t, st.SaveRun(ctx, run("01HQ0000000000000000000032", "ICLR.cc/2025/Conference", 2*time.Hour,
			store.KeywordCount{Keyword: "gan", Count: 1},
		)))

		trend, err := st.KeywordTrend(ctx, "llm")
		require.NoError(t, err)
		require.Len(t, trend, 3)
		assert.Equal(t, "ICLR.cc/2023/Conference", trend[0].Venue)
		assert.Equal(t, int64(2), trend[0].Count)
		assert.InDelta(t, 0.2, trend[0].Share, 1e-9)
		assert.Equal(t, int64(6), trend[1].Count)
		assert.InDelta(t, 0.75, trend[1].Share, 1e-9)
		assert.Equal(t, int64(0), trend[2].Count)
	})
}
