package confstat

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/cognicore/confstat/pkg/confstat/dashboard"
	"github.com/cognicore/confstat/pkg/confstat/export"
	"github.com/cognicore/confstat/pkg/confstat/frequency"
	"github.com/cognicore/confstat/pkg/confstat/histogram"
	"github.com/cognicore/confstat/pkg/confstat/internalerr"
	"github.com/cognicore/confstat/pkg/confstat/keyword"
	"github.com/cognicore/confstat/pkg/confstat/metrics"
	"github.com/cognicore/confstat/pkg/confstat/series"
	"github.com/cognicore/confstat/pkg/confstat/store"
	"github.com/cognicore/confstat/pkg/confstat/submission"
	"github.com/cognicore/confstat/pkg/confstat/table"
)

// Panel titles of the dashboard.
const (
	TimePanelTitle     = "Submission Count w.r.t. Time Change"
	AbstractPanelTitle = "Abstract Length"
)

// Artifact kinds.
const (
	ArtifactCSV     = "csv"
	ArtifactTopK    = "topk"
	ArtifactCloud   = "cloud"
	ArtifactHTML    = "html"
	ArtifactMetrics = "metrics"
)

// Fetcher returns the raw submission records of a venue.
type Fetcher interface {
	FetchVenue(ctx context.Context, venue string) ([]map[string]any, error)
}

// Confstat is the pipeline facade
type Confstat struct {
	fetcher    Fetcher
	normalizer *keyword.Normalizer
	store      store.Store
	metrics    *metrics.Metrics
	logger     *zerolog.Logger

	columns        submission.Columns
	location       *time.Location
	bins           int
	defaultVisible *int
	workers        int
	cloud          export.CloudOptions
	now            func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Options configures a Confstat instance. Only Fetcher is needed to fetch;
// every other field has a working default.
type Options struct {
	Fetcher    Fetcher
	Normalizer *keyword.Normalizer
	Store      store.Store
	Metrics    *metrics.Metrics
	Logger     *zerolog.Logger

	Columns        submission.Columns
	Location       *time.Location
	Bins           int
	DefaultVisible *int
	Workers        int
	Cloud          export.CloudOptions
	Now            func() time.Time
}

// New creates a Confstat instance with the given dependencies
func New(opts Options) *Confstat {
	if opts.Normalizer == nil {
		opts.Normalizer = keyword.NewNormalizer()
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Columns == (submission.Columns{}) {
		opts.Columns = submission.DefaultColumns
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Bins <= 0 {
		opts.Bins = histogram.DefaultBins
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Confstat{
		fetcher:        opts.Fetcher,
		normalizer:     opts.Normalizer,
		store:          opts.Store,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		columns:        opts.Columns,
		location:       opts.Location,
		bins:           opts.Bins,
		defaultVisible: opts.DefaultVisible,
		workers:        opts.Workers,
		cloud:          opts.Cloud,
		now:            opts.Now,
		entropy:        ulid.Monotonic(rand.Reader, 0),
	}
}

// Close cleanly shuts down the instance
func (c *Confstat) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// Request selects a venue and the artifacts to produce
type Request struct {
	// Conference is the venue prefix, "ICLR" when empty.
	Conference string
	Year       int
	TopK       int
	OutputDir  string
	// Online also renders the interactive dashboard.
	Online bool
	// Refetch ignores cached artifacts and fetches again.
	Refetch bool
	// Metrics writes a Prometheus textfile next to the artifacts.
	Metrics bool
}

// Venue is the OpenReview group id, e.g. "ICLR.cc/2024/Conference".
func (r Request) Venue() string {
	return fmt.Sprintf("%s.cc/%d/Conference", r.conference(), r.Year)
}

func (r Request) conference() string {
	if r.Conference == "" {
		return "ICLR"
	}
	return r.Conference
}

// Paths returns the artifact file paths of the request, keyed by kind.
func (r Request) Paths() map[string]string {
	prefix := filepath.Join(r.OutputDir, fmt.Sprintf("%s-%d-Submissions", r.conference(), r.Year))
	return map[string]string{
		ArtifactCSV:     prefix + ".csv",
		ArtifactTopK:    fmt.Sprintf("%s-Keyword-Top-%d.png", prefix, r.TopK),
		ArtifactCloud:   prefix + "-Keyword-Cloud.png",
		ArtifactHTML:    prefix + "-Online.html",
		ArtifactMetrics: filepath.Join(r.OutputDir, "metrics.prom"),
	}
}

func (r Request) validate() error {
	switch {
	case r.Year < 1:
		return fmt.Errorf("%w: year %d", internalerr.ErrInvalidInput, r.Year)
	case r.TopK < 1:
		return fmt.Errorf("%w: top-k %d", internalerr.ErrInvalidInput, r.TopK)
	case r.OutputDir == "":
		return fmt.Errorf("%w: output directory is empty", internalerr.ErrInvalidInput)
	}
	return nil
}

// Artifact is one output file of a run
type Artifact struct {
	Kind string
	Path string
	// Reused reports that a cached file was kept instead of rewritten.
	Reused bool
}

// Report summarizes a completed run
type Report struct {
	RunID       string
	Venue       string
	Fetched     bool
	Submissions int
	Occurrences int64
	Distinct    int
	TopK        []frequency.Entry
	DocumentID  string
	Artifacts   []Artifact
}

// Run loads or fetches the venue table, computes keyword statistics and
// writes the requested artifacts. Nothing is written unless every build
// step succeeds.
func (c *Confstat) Run(ctx context.Context, req Request) (rep Report, err error) {
	if err := req.validate(); err != nil {
		return Report{}, err
	}
	started := c.now()
	if c.metrics != nil {
		defer func() { c.metrics.RunFinished(err) }()
	}

	rep = Report{RunID: c.newID(started), Venue: req.Venue()}
	log := c.logger.With().Str("run", rep.RunID).Str("venue", rep.Venue).Logger()
	paths := req.Paths()

	t, fetched, err := c.loadTable(ctx, req, paths[ArtifactCSV], &log)
	if err != nil {
		return Report{}, err
	}
	rep.Fetched = fetched

	stop := c.timer("submissions")
	subs, err := submission.FromTable(t, c.columns)
	stop()
	if err != nil {
		return Report{}, err
	}
	rep.Submissions = len(subs)
	log.Info().Int("submissions", len(subs)).Msg("loaded submissions")

	stop = c.timer("aggregate")
	freq, err := frequency.Aggregate(ctx, subs, c.normalizer, c.workers)
	stop()
	if err != nil {
		return Report{}, err
	}
	rep.Occurrences = freq.Occurrences
	rep.Distinct = freq.Distinct()
	rep.TopK = freq.TopK(req.TopK)
	log.Info().Int("keywords", rep.Distinct).Int64("occurrences", rep.Occurrences).Msg("aggregated keywords")

	// Every artifact is rendered into memory first.
	var pending []pendingArtifact
	if fetched {
		var buf bytes.Buffer
		if err := table.WriteCSV(&buf, t); err != nil {
			return Report{}, err
		}
		pending = append(pending, pendingArtifact{kind: ArtifactCSV, data: buf.Bytes()})
	} else {
		rep.Artifacts = append(rep.Artifacts, Artifact{Kind: ArtifactCSV, Path: paths[ArtifactCSV], Reused: true})
	}

	for _, kind := range []string{ArtifactTopK, ArtifactCloud} {
		if !req.Refetch && !fetched && fileExists(paths[kind]) {
			rep.Artifacts = append(rep.Artifacts, Artifact{Kind: kind, Path: paths[kind], Reused: true})
			continue
		}
		if kind == ArtifactTopK && freq.Distinct() == 0 {
			log.Warn().Msg("no keywords, skipping top-k chart")
			continue
		}
		data, err := c.renderStatic(kind, req, freq)
		if err != nil {
			return Report{}, err
		}
		pending = append(pending, pendingArtifact{kind: kind, data: data})
	}

	if req.Online {
		stop = c.timer("dashboard")
		doc, data, err := c.renderDashboard(req, t)
		stop()
		if err != nil {
			return Report{}, err
		}
		rep.DocumentID = doc.ID
		pending = append(pending, pendingArtifact{kind: ArtifactHTML, data: data})
	}

	stop = c.timer("write")
	for _, p := range pending {
		path := paths[p.kind]
		if err := export.WriteFileAtomic(path, func(w io.Writer) error {
			_, err := w.Write(p.data)
			return err
		}); err != nil {
			stop()
			return Report{}, err
		}
		if c.metrics != nil {
			c.metrics.ArtifactWritten(p.kind)
		}
		rep.Artifacts = append(rep.Artifacts, Artifact{Kind: p.kind, Path: path})
		log.Info().Str("kind", p.kind).Str("path", path).Msg("wrote artifact")
	}
	stop()

	if c.store != nil {
		if err := c.store.SaveRun(ctx, c.toRun(rep, freq, started)); err != nil {
			return Report{}, fmt.Errorf("save run: %w", err)
		}
	}

	if c.metrics != nil {
		c.metrics.ObserveFrequencies(rep.Venue, rep.Submissions, freq, rep.TopK)
		if req.Metrics {
			if err := c.metrics.WriteTextfile(paths[ArtifactMetrics]); err != nil {
				return Report{}, err
			}
			rep.Artifacts = append(rep.Artifacts, Artifact{Kind: ArtifactMetrics, Path: paths[ArtifactMetrics]})
		}
	}
	return rep, nil
}

type pendingArtifact struct {
	kind string
	data []byte
}

func (c *Confstat) loadTable(ctx context.Context, req Request, csvPath string, log *zerolog.Logger) (*table.Table, bool, error) {
	if !req.Refetch {
		f, err := os.Open(csvPath)
		if err == nil {
			defer f.Close()
			log.Info().Str("path", csvPath).Msg("reloading cached submissions")
			t, err := table.ReadCSV(f)
			if err != nil {
				return nil, false, fmt.Errorf("read %s: %w", csvPath, err)
			}
			return t, false, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, false, fmt.Errorf("open %s: %w", csvPath, err)
		}
	}

	if c.fetcher == nil {
		return nil, false, fmt.Errorf("%w: no cached table at %s and no fetcher configured", internalerr.ErrNotFound, csvPath)
	}
	log.Info().Str("page", "https://openreview.net/group?id="+req.Venue()).Msg("fetching submissions")
	stop := c.timer("fetch")
	records, err := c.fetcher.FetchVenue(ctx, req.Venue())
	stop()
	if err != nil {
		return nil, false, fmt.Errorf("fetch %s: %w", req.Venue(), err)
	}
	t, err := table.Flatten(records)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

func (c *Confstat) renderStatic(kind string, req Request, freq frequency.Table) ([]byte, error) {
	var buf bytes.Buffer
	switch kind {
	case ArtifactTopK:
		defer c.timer("bar_chart")()
		title := fmt.Sprintf("Top %d Keywords of %s %d Conference", req.TopK, req.conference(), req.Year)
		if err := export.BarChart(&buf, freq.TopK(req.TopK), title); err != nil {
			return nil, err
		}
	case ArtifactCloud:
		defer c.timer("word_cloud")()
		if _, err := export.WordCloud(&buf, freq.Ranked(), c.cloud); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: artifact kind %q", internalerr.ErrInvalidInput, kind)
	}
	return buf.Bytes(), nil
}

func (c *Confstat) renderDashboard(req Request, t *table.Table) (*dashboard.Document, []byte, error) {
	sets, err := series.Build(t, c.columns.Area, []series.Dimension{
		{Key: "created", Column: c.columns.Created},
		{Key: "finished", Column: c.columns.Modified},
	}, c.location)
	if err != nil {
		return nil, nil, err
	}
	dist, err := histogram.Build(t, c.columns.Area, histogram.TextLength(c.columns.Abstract), c.bins)
	if err != nil {
		return nil, nil, err
	}

	title := fmt.Sprintf("%s Submissions Visualization (%d)", req.conference(), req.Year)
	b, err := dashboard.NewBinder(title, dashboard.Options{DefaultVisible: c.defaultVisible, Now: c.now})
	if err != nil {
		return nil, nil, err
	}
	if err := b.AddSeriesSets(TimePanelTitle, "Date Type", sets); err != nil {
		return nil, nil, err
	}
	if err := b.AddDistribution(AbstractPanelTitle, "Primary Area", "Abstract Length", dist); err != nil {
		return nil, nil, err
	}
	doc, err := b.Build()
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := dashboard.Render(&buf, doc); err != nil {
		return nil, nil, err
	}
	return doc, buf.Bytes(), nil
}

func (c *Confstat) toRun(rep Report, freq frequency.Table, started time.Time) store.Run {
	ranked := freq.Ranked()
	kws := make([]store.KeywordCount, len(ranked))
	for i, e := range ranked {
		kws[i] = store.KeywordCount{Keyword: e.Keyword, Count: e.Count}
	}
	artifacts := make(map[string]string, len(rep.Artifacts))
	for _, a := range rep.Artifacts {
		artifacts[a.Kind] = a.Path
	}
	return store.Run{
		ID:          rep.RunID,
		Venue:       rep.Venue,
		StartedAt:   started,
		FinishedAt:  c.now(),
		Submissions: int64(rep.Submissions),
		Occurrences: freq.Occurrences,
		Keywords:    kws,
		Artifacts:   artifacts,
	}
}

func (c *Confstat) newID(at time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), c.entropy).String()
}

func (c *Confstat) timer(stage string) func() {
	if c.metrics == nil {
		return func() {}
	}
	return c.metrics.Timer(stage)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
