package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
	"github.com/cognicore/confstat/pkg/confstat/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu   sync.RWMutex
	runs map[string]store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]store.Run)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun inserts or replaces a run, keyed by ID.
func (s *Store) SaveRun(ctx context.Context, r store.Run) error {
	if r.ID == "" || r.Venue == "" {
		return fmt.Errorf("%w: run needs an id and a venue", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	r.Keywords = mergeKeywords(r.Keywords)
	s.runs[r.ID] = copyRun(r)
	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.runs[id]; ok {
		return copyRun(r), nil
	}
	return store.Run{}, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, id)
}

// LatestRun returns the most recently finished run of venue.
func (s *Store) LatestRun(ctx context.Context, venue string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := s.sortedRuns(venue)
	if len(runs) == 0 {
		return store.Run{}, false, nil
	}
	return copyRun(runs[0]), true, nil
}

// ListRuns returns runs of venue, newest first. An empty venue lists all.
func (s *Store) ListRuns(ctx context.Context, venue string, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	runs := s.sortedRuns(venue)
	if len(runs) > limit {
		runs = runs[:limit]
	}
	out := make([]store.Run, len(runs))
	for i, r := range runs {
		out[i] = copyRun(r)
	}
	return out, nil
}

// TopKeywords returns the k most frequent keywords of venue's latest run.
func (s *Store) TopKeywords(ctx context.Context, venue string, k int) ([]store.KeywordCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		k = 20
	}
	runs := s.sortedRuns(venue)
	if len(runs) == 0 {
		return nil, nil
	}
	kws := runs[0].Keywords
	if len(kws) > k {
		kws = kws[:k]
	}
	return append([]store.KeywordCount(nil), kws...), nil
}

// KeywordTrend returns keyword's count in the latest run of every venue.
func (s *Store) KeywordTrend(ctx context.Context, keyword string) ([]store.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]store.Run)
	for _, r := range s.sortedRuns("") {
		if _, seen := latest[r.Venue]; !seen {
			latest[r.Venue] = r
		}
	}

	var out []store.TrendPoint
	for venue, r := range latest {
		p := store.TrendPoint{Venue: venue, RunID: r.ID, At: r.FinishedAt}
		for _, kc := range r.Keywords {
			if kc.Keyword == keyword {
				p.Count = kc.Count
				break
			}
		}
		if r.Occurrences > 0 {
			p.Share = float64(p.Count) / float64(r.Occurrences)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].Venue < out[j].Venue
	})
	return out, nil
}

// sortedRuns returns runs of venue (all when empty), newest first.
func (s *Store) sortedRuns(venue string) []store.Run {
	var runs []store.Run
	for _, r := range s.runs {
		if venue == "" || r.Venue == venue {
			runs = append(runs, r)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].FinishedAt.Equal(runs[j].FinishedAt) {
			return runs[i].FinishedAt.After(runs[j].FinishedAt)
		}
		return runs[i].ID > runs[j].ID
	})
	return runs
}

// mergeKeywords sums duplicate keywords, drops empty ones and orders the
// result by descending count, ties by keyword.
func mergeKeywords(in []store.KeywordCount) []store.KeywordCount {
	counts := make(map[string]int64, len(in))
	for _, kc := range in {
		if kc.Keyword != "" {
			counts[kc.Keyword] += kc.Count
		}
	}
	out := make([]store.KeywordCount, 0, len(counts))
	for kw, c := range counts {
		out = append(out, store.KeywordCount{Keyword: kw, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Keyword < out[j].Keyword
		}
		return out[i].Count > out[j].Count
	})
	return out
}

func copyRun(r store.Run) store.Run {
	r.Keywords = append([]store.KeywordCount(nil), r.Keywords...)
	if r.Artifacts != nil {
		artifacts := make(map[string]string, len(r.Artifacts))
		for k, v := range r.Artifacts {
			artifacts[k] = v
		}
		r.Artifacts = artifacts
	}
	return r
}
