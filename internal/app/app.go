// Package app wires configuration into the pieces both binaries share:
// the raw-data source, the analytics service and the post-run sinks.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"cart-analytics/internal/config"
	"cart-analytics/internal/models"
	"cart-analytics/internal/notify"
	"cart-analytics/internal/observability"
	"cart-analytics/internal/pipeline"
	"cart-analytics/internal/reports"
	"cart-analytics/internal/services"
	"cart-analytics/internal/source"
	"cart-analytics/internal/warehouse"
)

func Thresholds(cfg config.ReportsConfig) reports.Thresholds {
	return reports.Thresholds{
		CategoryMinSupport:      cfg.CategoryMinSupport,
		StateMinSupport:         cfg.StateMinSupport,
		StateRecoveryMinSupport: cfg.StateRecoveryMinSupport,
		CityMinSupport:          cfg.CityMinSupport,
		PriorityMinSupport:      cfg.PriorityMinSupport,
		RecoveryShare:           cfg.RecoveryShare,
	}
}

func NewAnalytics(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *services.Analytics {
	return services.NewAnalytics(services.Options{
		Pipeline: pipeline.Options{
			Workers:   cfg.Pipeline.Workers,
			ChunkSize: cfg.Pipeline.ChunkSize,
		},
		Thresholds:   Thresholds(cfg.Reports),
		CacheDir:     cfg.Pipeline.CacheDir,
		CacheEnabled: cfg.Pipeline.CacheEnabled,
		Metrics:      metrics,
	}, logger)
}

// OpenSource returns the configured source and a close function that
// releases whatever connection it holds.
func OpenSource(cfg config.SourceConfig) (source.Source, func() error, error) {
	switch cfg.Kind {
	case "csv":
		return source.NewCSVDir(cfg.CSVDir), func() error { return nil }, nil
	case "postgres":
		pg, err := source.NewPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

type factExporter interface {
	ExportFacts(ctx context.Context, runID string, facts []models.OrderFact) (int, error)
	Close() error
}

type eventPublisher interface {
	Publish(ctx context.Context, ev notify.RunCompleted) error
	Close()
}

// Sinks receive a finished run: the warehouse gets the fact rows, then the
// queue gets a completion event. Either may be disabled.
type Sinks struct {
	warehouse factExporter
	publisher eventPublisher
	logger    *slog.Logger
}

func OpenSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Sinks, error) {
	s := &Sinks{logger: logger}

	if cfg.Warehouse.Enabled {
		wh, err := warehouse.NewClient(ctx, cfg.Warehouse, logger)
		if err != nil {
			return nil, err
		}
		if err := wh.EnsureTable(ctx); err != nil {
			wh.Close()
			return nil, err
		}
		s.warehouse = wh
	}

	if cfg.Notify.Enabled {
		pub, err := notify.NewPublisher(cfg.Notify, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.publisher = pub
	}

	return s, nil
}

func (s *Sinks) Enabled() bool {
	return s.warehouse != nil || s.publisher != nil
}

// Deliver exports fs and announces it. No event is published when the
// export fails, so consumers never see a run the warehouse lacks.
func (s *Sinks) Deliver(ctx context.Context, src string, fs *pipeline.FactSet, summary models.Summary) error {
	if s.warehouse != nil {
		if _, err := s.warehouse.ExportFacts(ctx, fs.RunID, fs.Facts); err != nil {
			return fmt.Errorf("export facts: %w", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, notify.NewRunCompleted(src, fs, summary)); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
	}
	return nil
}

// loadedRun is the part of services.Analytics that DeliverRun reads.
type loadedRun interface {
	FactSet() (*pipeline.FactSet, error)
	Summary() (models.Summary, error)
	FromCache() bool
}

// DeliverRun sends the loaded run to the sinks and reports whether it did.
// A run read back from the cache went out when it was first assembled, so
// it is skipped rather than inserted into the warehouse a second time.
func (s *Sinks) DeliverRun(ctx context.Context, src string, run loadedRun) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}

	fs, err := run.FactSet()
	if err != nil {
		return false, err
	}
	if run.FromCache() {
		s.logger.Info("run loaded from cache, already delivered", "run_id", fs.RunID)
		return false, nil
	}

	summary, err := run.Summary()
	if err != nil {
		return false, fmt.Errorf("summary: %w", err)
	}
	if err := s.Deliver(ctx, src, fs, summary); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Sinks) Close() {
	if s.warehouse != nil {
		if err := s.warehouse.Close(); err != nil {
			s.logger.Warn("close warehouse", "error", err)
		}
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
}
