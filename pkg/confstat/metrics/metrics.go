// Package metrics exposes run statistics in the Prometheus text format so
// a node-exporter textfile collector can pick them up.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cognicore/confstat/pkg/confstat/frequency"
)

var keywordDesc = prometheus.NewDesc(
	"confstat_keyword_occurrences",
	"Occurrences of the top keywords in the latest run of a venue",
	[]string{"venue", "keyword"},
	nil,
)

// KeywordCollector is a custom Prometheus collector that emits the top
// keywords recorded for each venue on every gather.
type KeywordCollector struct {
	mu  sync.RWMutex
	top map[string][]frequency.Entry
}

// Describe sends the metric descriptor to the channel.
func (c *KeywordCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- keywordDesc
}

// Collect emits one gauge per (venue, keyword).
func (c *KeywordCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for venue, entries := range c.top {
		for _, e := range entries {
			ch <- prometheus.MustNewConstMetric(
				keywordDesc,
				prometheus.GaugeValue,
				float64(e.Count),
				venue,
				e.Keyword,
			)
		}
	}
}

// Set replaces the top keywords of venue.
func (c *KeywordCollector) Set(venue string, entries []frequency.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.top == nil {
		c.top = make(map[string][]frequency.Entry)
	}
	c.top[venue] = append([]frequency.Entry(nil), entries...)
}

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	submissions *prometheus.GaugeVec
	occurrences *prometheus.GaugeVec
	distinct    *prometheus.GaugeVec
	stages      *prometheus.HistogramVec
	artifacts   *prometheus.CounterVec
	runs        *prometheus.CounterVec
	keywords    *KeywordCollector
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "confstat_submissions",
			Help: "Submissions in the latest run of a venue",
		}, []string{"venue"}),
		occurrences: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "confstat_keyword_occurrences_total",
			Help: "Non-empty keyword occurrences in the latest run of a venue",
		}, []string{"venue"}),
		distinct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "confstat_keywords_distinct",
			Help: "Distinct canonical keywords in the latest run of a venue",
		}, []string{"venue"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "confstat_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confstat_artifacts_written_total",
			Help: "Artifacts written by kind",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confstat_runs_total",
			Help: "Pipeline runs by outcome",
		}, []string{"outcome"}),
		keywords: &KeywordCollector{},
	}
	m.registry.MustRegister(m.submissions, m.occurrences, m.distinct, m.stages, m.artifacts, m.runs, m.keywords)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFrequencies records the keyword statistics of venue.
func (m *Metrics) ObserveFrequencies(venue string, submissions int, t frequency.Table, top []frequency.Entry) {
	m.submissions.WithLabelValues(venue).Set(float64(submissions))
	m.occurrences.WithLabelValues(venue).Set(float64(t.Occurrences))
	m.distinct.WithLabelValues(venue).Set(float64(t.Distinct()))
	m.keywords.Set(venue, top)
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// Timer starts timing stage; call the returned func when it ends.
func (m *Metrics) Timer(stage string) func() {
	start := time.Now()
	return func() { m.ObserveStage(stage, time.Since(start)) }
}

// ArtifactWritten counts one written artifact of kind.
func (m *Metrics) ArtifactWritten(kind string) {
	m.artifacts.WithLabelValues(kind).Inc()
}

// RunFinished counts a run by outcome, "ok" or "error".
func (m *Metrics) RunFinished(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
