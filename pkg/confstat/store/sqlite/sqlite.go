package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
	"github.com/cognicore/confstat/pkg/confstat/store"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	venue TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	submissions INTEGER NOT NULL,
	occurrences INTEGER NOT NULL,
	artifacts TEXT
);

CREATE INDEX IF NOT EXISTS runs_venue_finished ON runs(venue, finished_at);

CREATE TABLE IF NOT EXISTS run_keywords (
	run_id TEXT NOT NULL,
	keyword TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY(run_id, keyword),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS run_keywords_keyword ON run_keywords(keyword);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts or replaces a run together with its keyword counts
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) error {
	if r.ID == "" || r.Venue == "" {
		return fmt.Errorf("%w: run needs an id and a venue", internalerr.ErrInvalidInput)
	}
	artifacts, err := json.Marshal(r.Artifacts)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO runs (id, venue, started_at, finished_at, submissions, occurrences, artifacts)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	venue=excluded.venue,
	started_at=excluded.started_at,
	finished_at=excluded.finished_at,
	submissions=excluded.submissions,
	occurrences=excluded.occurrences,
	artifacts=excluded.artifacts;
`
	if _, err := tx.ExecContext(ctx, stmt,
		r.ID,
		r.Venue,
		r.StartedAt.UTC().Format(timeLayout),
		r.FinishedAt.UTC().Format(timeLayout),
		r.Submissions,
		r.Occurrences,
		string(artifacts),
	); err != nil {
		return err
	}

	if err := replaceRunKeywords(ctx, tx, r.ID, r.Keywords); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceRunKeywords(ctx context.Context, tx *sql.Tx, runID string, keywords []store.KeywordCount) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_keywords WHERE run_id=?`, runID); err != nil {
		return err
	}
	if len(keywords) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_keywords (run_id, keyword, count) VALUES (?, ?, ?) ON CONFLICT(run_id, keyword) DO UPDATE SET count = count + excluded.count`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, kw := range keywords {
		if kw.Keyword == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, runID, kw.Keyword, kw.Count); err != nil {
			return err
		}
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	run, found, err := s.loadRun(ctx, `SELECT id, venue, started_at, finished_at, submissions, occurrences, artifacts FROM runs WHERE id = ?`, id)
	if err != nil {
		return store.Run{}, err
	}
	if !found {
		return store.Run{}, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, id)
	}
	return run, nil
}

// LatestRun retrieves the most recently finished run of venue
func (s *sqliteStore) LatestRun(ctx context.Context, venue string) (store.Run, bool, error) {
	return s.loadRun(ctx, `
SELECT id, venue, started_at, finished_at, submissions, occurrences, artifacts
FROM runs WHERE venue = ?
ORDER BY finished_at DESC, id DESC
LIMIT 1`, venue)
}

// ListRuns returns runs of venue, newest first. An empty venue lists all.
func (s *sqliteStore) ListRuns(ctx context.Context, venue string, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id FROM runs
WHERE ? = '' OR venue = ?
ORDER BY finished_at DESC, id DESC
LIMIT ?`, venue, venue, limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	runs := make([]store.Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// TopKeywords returns the k most frequent keywords of venue's latest run
func (s *sqliteStore) TopKeywords(ctx context.Context, venue string, k int) ([]store.KeywordCount, error) {
	if k <= 0 {
		k = 20
	}
	var runID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE venue = ? ORDER BY finished_at DESC, id DESC LIMIT 1`, venue).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.keywords(ctx, runID, k)
}

// KeywordTrend returns keyword's count in the latest run of every venue,
// oldest venue run first
func (s *sqliteStore) KeywordTrend(ctx context.Context, keyword string) ([]store.TrendPoint, error) {
	const query = `
SELECT r.venue, r.id, r.finished_at, r.occurrences, COALESCE(k.count, 0)
FROM runs r
LEFT JOIN run_keywords k ON k.run_id = r.id AND k.keyword = ?
WHERE r.id = (
	SELECT id FROM runs r2 WHERE r2.venue = r.venue
	ORDER BY r2.finished_at DESC, r2.id DESC LIMIT 1
)
ORDER BY r.finished_at ASC, r.venue ASC;
`
	rows, err := s.db.QueryContext(ctx, query, keyword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.TrendPoint
	for rows.Next() {
		var (
			p           store.TrendPoint
			at          string
			occurrences int64
		)
		if err := rows.Scan(&p.Venue, &p.RunID, &at, &occurrences, &p.Count); err != nil {
			return nil, err
		}
		if p.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, err
		}
		if occurrences > 0 {
			p.Share = float64(p.Count) / float64(occurrences)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) loadRun(ctx context.Context, query string, arg any) (store.Run, bool, error) {
	var (
		r                 store.Run
		started, finished string
		artifacts         sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&r.ID, &r.Venue, &started, &finished, &r.Submissions, &r.Occurrences, &artifacts)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return store.Run{}, false, fmt.Errorf("run %s started_at: %w", r.ID, err)
	}
	if r.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return store.Run{}, false, fmt.Errorf("run %s finished_at: %w", r.ID, err)
	}
	if artifacts.Valid && artifacts.String != "" && artifacts.String != "null" {
		if err := json.Unmarshal([]byte(artifacts.String), &r.Artifacts); err != nil {
			return store.Run{}, false, fmt.Errorf("run %s artifacts: %w", r.ID, err)
		}
	}
	if r.Keywords, err = s.keywords(ctx, r.ID, 0); err != nil {
		return store.Run{}, false, err
	}
	return r, true, nil
}

// keywords returns a run's keywords by descending count, ties by keyword;
// k <= 0 returns all.
func (s *sqliteStore) keywords(ctx context.Context, runID string, k int) ([]store.KeywordCount, error) {
	query := `SELECT keyword, count FROM run_keywords WHERE run_id = ? ORDER BY count DESC, keyword ASC`
	args := []any{runID}
	if k > 0 {
		query += ` LIMIT ?`
		args = append(args, k)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.KeywordCount
	for rows.Next() {
		var kc store.KeywordCount
		if err := rows.Scan(&kc.Keyword, &kc.Count); err != nil {
			return nil, err
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}
