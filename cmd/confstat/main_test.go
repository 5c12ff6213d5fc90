package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cognicore/confstat/pkg/confstat"
	"github.com/cognicore/confstat/pkg/confstat/config"
	"github.com/cognicore/confstat/pkg/confstat/store"
	"github.com/cognicore/confstat/pkg/confstat/store/memstore"
	"github.com/cognicore/confstat/pkg/confstat/store/sqlite"
)

func TestParseFlagsTracksExplicitFlags(t *testing.T) {
	opts, set := parseFlags([]string{"--year", "2024", "--topk", "20", "--online"})
	if opts.year != 2024 || opts.topK != 20 || !opts.online {
		t.Fatalf("unexpected options %+v", opts)
	}
	if !set["topk"] || set["output-dir"] {
		t.Errorf("explicit flags not tracked: %v", set)
	}
	if opts.conference != "ICLR" {
		t.Errorf("conference default = %q", opts.conference)
	}
}

func TestApplyFlagsOverridesOnlySetValues(t *testing.T) {
	cfg := config.Default()
	cfg.Export.OutputDir = "from-config"

	opts, set := parseFlags([]string{"--topk", "7", "--db", "runs.db", "--workers", "3"})
	applyFlags(cfg, opts, set)

	if cfg.Export.TopK != 7 {
		t.Errorf("topk = %d, want 7", cfg.Export.TopK)
	}
	if cfg.Export.OutputDir != "from-config" {
		t.Errorf("output dir overridden by default flag value: %q", cfg.Export.OutputDir)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "runs.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Keywords.Workers != 3 {
		t.Errorf("workers = %d", cfg.Keywords.Workers)
	}
}

func TestOpenStoreDrivers(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	cfg.Store.Driver = "none"
	st, err := openStore(ctx, cfg)
	if err != nil || st != nil {
		t.Fatalf("none driver: store=%v err=%v", st, err)
	}

	cfg.Store.Driver = "memory"
	st, err = openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("memory driver: %v", err)
	}
	if _, ok := st.(*memstore.Store); !ok {
		t.Errorf("memory driver returned %T", st)
	}

	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = filepath.Join(t.TempDir(), "runs.db")
	st, err = openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("sqlite driver: %v", err)
	}
	st.Close()
}

func TestBuildPipelineWithoutCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "memory"
	logger := zerolog.Nop()

	app, cleanup, err := buildPipeline(context.Background(), &config.Components{Config: cfg}, &logger)
	if err != nil {
		t.Fatalf("buildPipeline: %v", err)
	}
	defer cleanup()
	if app == nil {
		t.Fatal("expected a pipeline")
	}
}

func TestBuildPipelineLogsInOnlyWhenFetching(t *testing.T) {
	var logins, notes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&logins, 1)
		fmt.Fprint(w, `{"token":"tok"}`)
	})
	mux.HandleFunc("/groups", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"groups":[{"id":"ICLR.cc/2024/Conference","content":{"submission_name":{"value":"Submission"}}}]}`)
	})
	mux.HandleFunc("/notes", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&notes, 1)
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"notes":[{"id":"n1","cdate":1704067200000,"mdate":1704153600000,"content":{"title":{"value":"Paper"},"abstract":{"value":"Text."},"primary_area":{"value":"NLP"},"keywords":{"value":["Transformers"]}}}],"count":1}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.Default()
	cfg.Store.Driver = "memory"
	cfg.OpenReview.BaseURL = srv.URL
	cfg.OpenReview.RequestsPerMinute = 600000
	cfg.OpenReview.Username = "alice"
	cfg.OpenReview.Password = "secret"
	logger := zerolog.Nop()

	app, cleanup, err := buildPipeline(context.Background(), &config.Components{Config: cfg}, &logger)
	if err != nil {
		t.Fatalf("buildPipeline: %v", err)
	}
	defer cleanup()
	if got := atomic.LoadInt32(&logins); got != 0 {
		t.Fatalf("buildPipeline must not log in, got %d logins", got)
	}

	req := confstat.Request{Conference: "ICLR", Year: 2024, TopK: 5, OutputDir: t.TempDir()}
	if _, err := app.Run(context.Background(), req); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := atomic.LoadInt32(&logins); got != 1 {
		t.Fatalf("expected one login for the fetching run, got %d", got)
	}

	rep, err := app.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("cached run: %v", err)
	}
	if rep.Fetched {
		t.Error("cached run should not fetch")
	}
	if got := atomic.LoadInt32(&logins); got != 1 {
		t.Errorf("cached run logged in again, got %d logins", got)
	}
	if got := atomic.LoadInt32(&notes); got != 1 {
		t.Errorf("expected one notes request, got %d", got)
	}
}

func TestPrintTrend(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "runs.db")

	st, err := sqlite.OpenSQLite(ctx, cfg.Store.Path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := st.SaveRun(ctx, store.Run{
		ID:          "r1",
		Venue:       "ICLR.cc/2024/Conference",
		StartedAt:   at,
		FinishedAt:  at,
		Submissions: 2,
		Occurrences: 4,
		Keywords:    []store.KeywordCount{{Keyword: "transformer", Count: 2}},
	}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	st.Close()

	var buf bytes.Buffer
	if err := printTrend(ctx, &buf, cfg, "transformer"); err != nil {
		t.Fatalf("printTrend: %v", err)
	}
	var points []trendJSON
	if err := json.Unmarshal(buf.Bytes(), &points); err != nil {
		t.Fatalf("decode output: %v\n%s", err, buf.String())
	}
	if len(points) != 1 || points[0].Count != 2 || points[0].Share != 0.5 {
		t.Errorf("unexpected trend %+v", points)
	}

	cfg.Store.Driver = "memory"
	if err := printTrend(ctx, &buf, cfg, "transformer"); err == nil {
		t.Error("trend without sqlite should fail")
	}
}
