package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cart-analytics/internal/models"
	"cart-analytics/internal/observability"
	"cart-analytics/internal/pipeline"
	"cart-analytics/internal/reports"
	"cart-analytics/internal/source"
)

const (
	cacheVersion     = "v2"
	rejectionPreview = 20
)

var ErrNotReady = errors.New("no fact set loaded yet")

type Options struct {
	Pipeline     pipeline.Options
	Thresholds   reports.Thresholds
	CacheDir     string
	CacheEnabled bool
	Metrics      *observability.Metrics
}

// Snapshot is everything queries read. It is built off to the side and
// swapped in whole, so a reader never sees a partially assembled run.
type Snapshot struct {
	FactSet   *pipeline.FactSet
	Reports   map[string]any
	Source    string
	LoadedAt  time.Time
	FromCache bool
}

type Analytics struct {
	mu        sync.RWMutex
	snap      *Snapshot
	assembler *pipeline.Assembler
	opts      Options
	runs      atomic.Int64
	logger    *slog.Logger
}

func NewAnalytics(opts Options, logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Thresholds == (reports.Thresholds{}) {
		opts.Thresholds = reports.DefaultThresholds()
	}
	return &Analytics{
		assembler: pipeline.NewAssembler(opts.Pipeline, logger),
		opts:      opts,
		logger:    logger,
	}
}

// Load reads src, assembles facts and precomputes every report. When the
// source is versioned and the cache holds a fact set for the same version,
// assembly is skipped.
func (a *Analytics) Load(ctx context.Context, src source.Source) (*pipeline.FactSet, error) {
	ctx, span := observability.StartSpan(ctx, "analytics.load")
	span.SetTag("source", src.Name())
	defer span.End(ctx, a.logger)

	start := time.Now()

	version := ""
	if v, ok := src.(source.Versioned); ok && a.opts.CacheEnabled {
		var err error
		if version, err = v.Version(); err != nil {
			a.logger.Warn("could not fingerprint source", "source", src.Name(), "error", err)
			version = ""
		}
	}

	if version != "" {
		if fs, err := a.loadFromCache(src.Name(), version); err == nil {
			a.install(fs, src.Name(), true, start)
			if a.opts.Metrics != nil {
				a.opts.Metrics.CacheHit()
			}
			a.logger.Info("loaded from cache", "source", src.Name(), "facts", len(fs.Facts), "run_id", fs.RunID)
			return fs, nil
		}
	}

	a.logger.Info("loading source", "source", src.Name())
	ds, err := src.Load(ctx)
	if err != nil {
		span.SetError(err)
		a.failed()
		return nil, fmt.Errorf("load %s: %w", src.Name(), err)
	}

	fs, err := a.build(ctx, ds, src.Name(), start)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if version != "" {
		if err := a.saveToCache(src.Name(), version, fs); err != nil {
			a.logger.Warn("failed to save cache", "error", err)
		}
	}
	span.SetTag("facts", fmt.Sprint(len(fs.Facts)))
	return fs, nil
}

// SetDataset assembles an in-memory dataset; no cache is involved.
func (a *Analytics) SetDataset(ctx context.Context, ds *models.Dataset) (*pipeline.FactSet, error) {
	return a.build(ctx, ds, "memory", time.Now())
}

func (a *Analytics) build(ctx context.Context, ds *models.Dataset, name string, start time.Time) (*pipeline.FactSet, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.assemble")
	defer span.End(ctx, a.logger)

	fs, err := a.assembler.Assemble(ctx, ds)
	if err != nil {
		span.SetError(err)
		a.failed()
		return nil, err
	}
	a.install(fs, name, false, start)
	return fs, nil
}

func (a *Analytics) install(fs *pipeline.FactSet, name string, fromCache bool, start time.Time) {
	engine := reports.NewEngine(fs.Facts, a.opts.Thresholds)
	snap := &Snapshot{
		FactSet:   fs,
		Reports:   engine.RunAll(),
		Source:    name,
		LoadedAt:  time.Now().UTC(),
		FromCache: fromCache,
	}

	a.mu.Lock()
	a.snap = snap
	a.mu.Unlock()
	a.runs.Add(1)

	if a.opts.Metrics != nil {
		a.opts.Metrics.ObservePipeline(time.Since(start), len(fs.Facts), rejectedByEntity(fs.Rejections))
	}
}

func (a *Analytics) failed() {
	if a.opts.Metrics != nil {
		a.opts.Metrics.PipelineFailed()
	}
}

func (a *Analytics) snapshot() (*Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.snap == nil {
		return nil, ErrNotReady
	}
	return a.snap, nil
}

func (a *Analytics) Ready() bool {
	_, err := a.snapshot()
	return err == nil
}

// FromCache reports whether the current snapshot was read back from the
// cache instead of being assembled by this process.
func (a *Analytics) FromCache() bool {
	snap, err := a.snapshot()
	return err == nil && snap.FromCache
}

func (a *Analytics) Thresholds() reports.Thresholds {
	return a.opts.Thresholds
}

// Report returns the precomputed rows of a named report.
func (a *Analytics) Report(name string) (any, error) {
	snap, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	rows, ok := snap.Reports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", reports.ErrUnknownReport, name)
	}
	return rows, nil
}

func (a *Analytics) ReportNames() []string {
	return reports.Names()
}

func (a *Analytics) Summary() (models.Summary, error) {
	rows, err := a.Report("summary")
	if err != nil {
		return models.Summary{}, err
	}
	return rows.(models.Summary), nil
}

// Facts returns up to limit facts in input order. A non-positive limit
// returns all of them.
func (a *Analytics) Facts(limit int) ([]models.OrderFact, error) {
	snap, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	facts := snap.FactSet.Facts
	if limit > 0 && len(facts) > limit {
		return facts[:limit], nil
	}
	return facts, nil
}

// FactSet exposes the whole current run for exporters.
func (a *Analytics) FactSet() (*pipeline.FactSet, error) {
	snap, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.FactSet, nil
}

type PipelineSummary struct {
	RunID            string             `json:"run_id"`
	Source           string             `json:"source"`
	LoadedAt         time.Time          `json:"loaded_at"`
	FromCache        bool               `json:"from_cache"`
	Stats            pipeline.Stats     `json:"stats"`
	Gaps             pipeline.Gaps      `json:"gaps"`
	RejectedByEntity map[string]int     `json:"rejected_by_entity"`
	Rejections       []models.Rejection `json:"rejections"`
}

// PipelineSummary reports what the last run dropped or could not join. Only
// the first few rejections are listed.
func (a *Analytics) PipelineSummary() (PipelineSummary, error) {
	snap, err := a.snapshot()
	if err != nil {
		return PipelineSummary{}, err
	}
	fs := snap.FactSet
	preview := fs.Rejections
	if len(preview) > rejectionPreview {
		preview = preview[:rejectionPreview]
	}
	if preview == nil {
		preview = []models.Rejection{}
	}
	return PipelineSummary{
		RunID:            fs.RunID,
		Source:           snap.Source,
		LoadedAt:         snap.LoadedAt,
		FromCache:        snap.FromCache,
		Stats:            fs.Stats,
		Gaps:             fs.Gaps,
		RejectedByEntity: rejectedByEntity(fs.Rejections),
		Rejections:       preview,
	}, nil
}

func (a *Analytics) Stats() map[string]any {
	stats := map[string]any{
		"ready": false,
		"runs":  a.runs.Load(),
	}
	snap, err := a.snapshot()
	if err != nil {
		return stats
	}
	stats["ready"] = true
	stats["run_id"] = snap.FactSet.RunID
	stats["source"] = snap.Source
	stats["from_cache"] = snap.FromCache
	stats["loaded_at"] = snap.LoadedAt
	stats["facts"] = len(snap.FactSet.Facts)
	stats["rejected"] = len(snap.FactSet.Rejections)
	stats["reports"] = len(snap.Reports)
	return stats
}

func rejectedByEntity(rejections []models.Rejection) map[string]int {
	out := make(map[string]int)
	for _, r := range rejections {
		out[r.Entity]++
	}
	return out
}

// cacheEntry is stored as JSON. Nullable fact fields must come back as
// written, and a pointer to a zero value is not the same as null.
type cacheEntry struct {
	Version    string             `json:"version"`
	RunID      string             `json:"run_id"`
	Facts      []models.OrderFact `json:"facts"`
	Rejections []models.Rejection `json:"rejections"`
	Gaps       pipeline.Gaps      `json:"gaps"`
	Stats      pipeline.Stats     `json:"stats"`
}

func (a *Analytics) cacheFilename(name string) string {
	safe := strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(name)
	return filepath.Join(a.opts.CacheDir, fmt.Sprintf("%s_%s.json", safe, cacheVersion))
}

func (a *Analytics) saveToCache(name, version string, fs *pipeline.FactSet) error {
	if err := os.MkdirAll(a.opts.CacheDir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(a.opts.CacheDir, "facts-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	entry := cacheEntry{
		Version:    version,
		RunID:      fs.RunID,
		Facts:      fs.Facts,
		Rejections: fs.Rejections,
		Gaps:       fs.Gaps,
		Stats:      fs.Stats,
	}
	if err := json.NewEncoder(tmp).Encode(entry); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), a.cacheFilename(name))
}

var errStaleCache = errors.New("cache is stale")

func (a *Analytics) loadFromCache(name, version string) (*pipeline.FactSet, error) {
	file, err := os.Open(a.cacheFilename(name))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entry cacheEntry
	if err := json.NewDecoder(file).Decode(&entry); err != nil {
		return nil, err
	}
	if entry.Version != version || entry.RunID == "" {
		return nil, errStaleCache
	}
	return &pipeline.FactSet{
		RunID:      entry.RunID,
		Facts:      entry.Facts,
		Rejections: entry.Rejections,
		Gaps:       entry.Gaps,
		Stats:      entry.Stats,
	}, nil
}
