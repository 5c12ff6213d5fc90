package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cognicore/confstat/internal/openreview"
	"github.com/cognicore/confstat/pkg/confstat"
	"github.com/cognicore/confstat/pkg/confstat/config"
	"github.com/cognicore/confstat/pkg/confstat/export"
	"github.com/cognicore/confstat/pkg/confstat/metrics"
	"github.com/cognicore/confstat/pkg/confstat/store"
	"github.com/cognicore/confstat/pkg/confstat/store/memstore"
	"github.com/cognicore/confstat/pkg/confstat/store/sqlite"
)

type options struct {
	configPath  string
	lexiconPath string
	conference  string
	year        int
	topK        int
	outputDir   string
	online      bool
	refetch     bool
	dbPath      string
	username    string
	password    string
	workers     int
	trend       string
}

func main() {
	opts, set := parseFlags(os.Args[1:])

	cfgLogger := newLogger("local")
	loader := config.Loader{ConfigPath: opts.configPath, LexiconPath: opts.lexiconPath}
	components, err := loader.Load()
	if err != nil {
		cfgLogger.Fatal().Err(err).Msg("load config")
	}
	cfg := components.Config
	applyFlags(cfg, opts, set)
	if err := cfg.Validate(); err != nil {
		cfgLogger.Fatal().Err(err).Msg("invalid config")
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.trend != "" {
		if err := printTrend(ctx, os.Stdout, cfg, opts.trend); err != nil {
			logger.Fatal().Err(err).Msg("keyword trend")
		}
		return
	}

	if opts.year == 0 {
		logger.Fatal().Msg("--year required")
	}

	app, cleanup, err := buildPipeline(ctx, components, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build pipeline")
	}
	defer cleanup()

	report, err := app.Run(ctx, confstat.Request{
		Conference: opts.conference,
		Year:       opts.year,
		TopK:       cfg.Export.TopK,
		OutputDir:  cfg.Export.OutputDir,
		Online:     opts.online,
		Refetch:    opts.refetch,
		Metrics:    cfg.Export.Metrics,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("run cancelled")
			return
		}
		logger.Fatal().Err(err).Msg("run failed")
	}

	for _, a := range report.Artifacts {
		logger.Info().Str("kind", a.Kind).Str("path", a.Path).Bool("reused", a.Reused).Msg("artifact")
	}
	logger.Info().
		Str("run", report.RunID).
		Int("submissions", report.Submissions).
		Int("keywords", report.Distinct).
		Msg("done")
}

func parseFlags(args []string) (options, map[string]bool) {
	var opts options
	fs := flag.NewFlagSet("confstat", flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file (optional)")
	fs.StringVar(&opts.lexiconPath, "lexicon", "", "Keyword alias lexicon (optional)")
	fs.StringVar(&opts.conference, "conference", "ICLR", "Conference prefix of the OpenReview venue")
	fs.IntVar(&opts.year, "year", 0, "Conference year (required unless --trend)")
	fs.IntVar(&opts.topK, "topk", 50, "Number of keywords in the bar chart")
	fs.StringVar(&opts.outputDir, "output-dir", ".", "Directory for the generated artifacts")
	fs.BoolVar(&opts.online, "online", false, "Also render the interactive dashboard")
	fs.BoolVar(&opts.refetch, "refetch", false, "Ignore cached artifacts and fetch again")
	fs.StringVar(&opts.dbPath, "db", "", "SQLite run history path")
	fs.StringVar(&opts.username, "username", "", "OpenReview username (optional)")
	fs.StringVar(&opts.password, "password", "", "OpenReview password (optional)")
	fs.IntVar(&opts.workers, "workers", 0, "Aggregation workers, 0 for one per CPU")
	fs.StringVar(&opts.trend, "trend", "", "Print the stored history of a keyword as JSON and exit")
	fs.Parse(args)

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return opts, set
}

// applyFlags overrides cfg with the flags given on the command line.
func applyFlags(cfg *config.Config, opts options, set map[string]bool) {
	if set["topk"] {
		cfg.Export.TopK = opts.topK
	}
	if set["output-dir"] {
		cfg.Export.OutputDir = opts.outputDir
	}
	if set["db"] {
		cfg.Store.Driver = "sqlite"
		cfg.Store.Path = opts.dbPath
	}
	if set["username"] {
		cfg.OpenReview.Username = opts.username
	}
	if set["password"] {
		cfg.OpenReview.Password = opts.password
	}
	if set["workers"] {
		cfg.Keywords.Workers = opts.workers
	}
}

func buildPipeline(ctx context.Context, comp *config.Components, logger *zerolog.Logger) (*confstat.Confstat, func(), error) {
	cfg := comp.Config

	client := openreview.New(openreview.Options{
		BaseURL:    cfg.OpenReview.BaseURL,
		RPM:        cfg.OpenReview.RequestsPerMinute,
		PageSize:   cfg.OpenReview.PageSize,
		Username:   cfg.OpenReview.Username,
		Password:   cfg.OpenReview.Password,
		HTTPClient: &http.Client{Timeout: cfg.OpenReview.Timeout},
		Logger:     logger,
	})

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	workers := cfg.Keywords.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	visible := cfg.Dashboard.DefaultVisible

	app := confstat.New(confstat.Options{
		Fetcher:        client,
		Normalizer:     comp.Normalizer,
		Store:          st,
		Metrics:        metrics.New(),
		Logger:         logger,
		Location:       cfg.Location(),
		Bins:           cfg.Dashboard.Bins,
		DefaultVisible: &visible,
		Workers:        workers,
		Cloud: export.CloudOptions{
			Width:    cfg.Export.CloudWidth,
			Height:   cfg.Export.CloudHeight,
			MaxWords: cfg.Export.CloudWords,
		},
	})
	cleanup := func() {
		if err := app.Close(); err != nil {
			logger.Warn().Err(err).Msg("close store")
		}
	}
	return app, cleanup, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		st, err := sqlite.OpenSQLite(ctx, cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return st, nil
	case "memory":
		return memstore.New(), nil
	default:
		return nil, nil
	}
}

type trendJSON struct {
	Venue string    `json:"venue"`
	RunID string    `json:"run_id"`
	At    time.Time `json:"at"`
	Count int64     `json:"count"`
	Share float64   `json:"share"`
}

func printTrend(ctx context.Context, w io.Writer, cfg *config.Config, keyword string) error {
	if cfg.Store.Driver != "sqlite" {
		return fmt.Errorf("--trend needs the sqlite store, got %q", cfg.Store.Driver)
	}
	st, err := sqlite.OpenSQLite(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	points, err := st.KeywordTrend(ctx, keyword)
	if err != nil {
		return err
	}
	out := make([]trendJSON, 0, len(points))
	for _, p := range points {
		out = append(out, trendJSON{Venue: p.Venue, RunID: p.RunID, At: p.At, Count: p.Count, Share: p.Share})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trend: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
