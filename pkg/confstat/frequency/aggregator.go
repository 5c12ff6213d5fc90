package frequency

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/confstat/pkg/confstat/keyword"
	"github.com/cognicore/confstat/pkg/confstat/submission"
)

// Aggregator accumulates canonical keyword counts. Accumulation is
// commutative, so shards can be merged in any order.
type Aggregator struct {
	normalizer  *keyword.Normalizer
	counts      map[string]int64
	occurrences int64
	submissions int64
}

// NewAggregator creates an empty aggregator. A nil normalizer uses plain
// keyword.Canonical.
func NewAggregator(n *keyword.Normalizer) *Aggregator {
	return &Aggregator{
		normalizer: n,
		counts:     make(map[string]int64),
	}
}

// Add consumes one submission's raw keywords. Every occurrence counts,
// including repeats; keywords that normalize to "" are dropped.
func (a *Aggregator) Add(keywords []string) {
	a.submissions++
	for _, raw := range keywords {
		kw := a.normalizer.Normalize(raw)
		if kw == "" {
			continue
		}
		a.counts[kw]++
		a.occurrences++
	}
}

// Merge folds other into a.
func (a *Aggregator) Merge(other *Aggregator) {
	for kw, c := range other.counts {
		a.counts[kw] += c
	}
	a.occurrences += other.occurrences
	a.submissions += other.submissions
}

// Table is a completed frequency table.
type Table struct {
	Counts      map[string]int64
	Occurrences int64 // sum of Counts
	Submissions int64
}

// Entry is one keyword with its count.
type Entry struct {
	Keyword string
	Count   int64
}

// Snapshot returns a copy of the accumulated counts.
func (a *Aggregator) Snapshot() Table {
	counts := make(map[string]int64, len(a.counts))
	for kw, c := range a.counts {
		counts[kw] = c
	}
	return Table{
		Counts:      counts,
		Occurrences: a.occurrences,
		Submissions: a.submissions,
	}
}

// Distinct returns the number of distinct canonical keywords.
func (t Table) Distinct() int {
	return len(t.Counts)
}

// Ranked returns all entries by descending count, ties by keyword.
func (t Table) Ranked() []Entry {
	entries := make([]Entry, 0, len(t.Counts))
	for kw, c := range t.Counts {
		entries = append(entries, Entry{Keyword: kw, Count: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count == entries[j].Count {
			return entries[i].Keyword < entries[j].Keyword
		}
		return entries[i].Count > entries[j].Count
	})
	return entries
}

// TopK returns the k most frequent entries; k <= 0 returns all.
func (t Table) TopK(k int) []Entry {
	entries := t.Ranked()
	if k > 0 && len(entries) > k {
		entries = entries[:k]
	}
	return entries
}

// Aggregate builds the frequency table of subs, sharding the work over
// workers goroutines. The first malformed keyword list aborts the run.
func Aggregate(ctx context.Context, subs []submission.Submission, n *keyword.Normalizer, workers int) (Table, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(subs) {
		workers = max(len(subs), 1)
	}

	shards := make([]*Aggregator, workers)
	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(subs) + workers - 1) / workers

	for w := 0; w < workers; w++ {
		shard := NewAggregator(n)
		shards[w] = shard
		lo := min(w*chunk, len(subs))
		hi := min(lo+chunk, len(subs))
		part := subs[lo:hi]

		g.Go(func() error {
			for _, s := range part {
				if err := ctx.Err(); err != nil {
					return err
				}
				kws, err := s.Keywords()
				if err != nil {
					return err
				}
				shard.Add(kws)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Table{}, err
	}

	total := NewAggregator(n)
	for _, shard := range shards {
		total.Merge(shard)
	}
	return total.Snapshot(), nil
}
