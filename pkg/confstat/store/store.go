package store

import (
	"context"
	"time"
)

// Store persists the history of confstat runs
type Store interface {
	Close() error

	// Runs
	SaveRun(ctx context.Context, r Run) error
	// GetRun returns internalerr.ErrNotFound for an unknown id.
	GetRun(ctx context.Context, id string) (Run, error)
	LatestRun(ctx context.Context, venue string) (Run, bool, error)
	ListRuns(ctx context.Context, venue string, limit int) ([]Run, error)

	// Keywords
	TopKeywords(ctx context.Context, venue string, k int) ([]KeywordCount, error)
	KeywordTrend(ctx context.Context, keyword string) ([]TrendPoint, error)
}

// Run is one completed pipeline execution over a venue
type Run struct {
	ID          string // ULID
	Venue       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Submissions int64
	Occurrences int64
	Keywords    []KeywordCount
	// Artifacts maps artifact kind ("csv", "topk", "cloud", "html") to path
	Artifacts map[string]string
}

// Distinct returns the number of distinct keywords of the run.
func (r Run) Distinct() int {
	return len(r.Keywords)
}

// KeywordCount is a canonical keyword with its occurrence count
type KeywordCount struct {
	Keyword string
	Count   int64
}

// TrendPoint is a keyword's count in the latest run of one venue
type TrendPoint struct {
	Venue string
	RunID string
	At    time.Time
	Count int64
	// Share is Count divided by the run's total occurrences.
	Share float64
}
