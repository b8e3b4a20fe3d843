package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cart-analytics/internal/app"
	"cart-analytics/internal/config"
	"cart-analytics/internal/middleware"
	"cart-analytics/internal/observability"
	"cart-analytics/internal/server"
	"cart-analytics/internal/services"
	"cart-analytics/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard(templates.DefaultSections()).Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// newHandler builds the routed server behind the full middleware chain.
// Metrics sits innermost so the mux sets r.Pattern on the request it sees.
func newHandler(cfg *config.Config, analytics *services.Analytics, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	srv := server.NewServer(analytics, metrics, logger, &server.TemplateHandlers{
		Dashboard: handleDashboard,
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	chain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.Metrics(metrics),
	)
	return chain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"source", cfg.Source.Kind,
		"workers", cfg.Pipeline.Workers,
		"warehouse", cfg.Warehouse.Enabled,
		"notify", cfg.Notify.Enabled,
	)

	metrics := observability.NewMetrics()
	analytics := app.NewAnalytics(cfg, metrics, logger)

	src, closeSource, err := app.OpenSource(cfg.Source)
	if err != nil {
		logger.Error("failed to open source", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.LoadTimeout)
	defer cancel()

	start := time.Now()
	fs, err := analytics.Load(ctx, src)
	if err != nil {
		logger.Error("failed to build fact set", "error", err)
		os.Exit(1)
	}
	logger.Info("fact set ready",
		"facts", len(fs.Facts),
		"rejected", len(fs.Rejections),
		"duration", time.Since(start),
	)

	sinks, err := app.OpenSinks(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open sinks", "error", err)
		os.Exit(1)
	}
	if _, err := sinks.DeliverRun(ctx, src.Name(), analytics); err != nil {
		// The dashboard can serve without the warehouse copy.
		logger.Warn("failed to deliver run", "run_id", fs.RunID, "error", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analytics, metrics, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("closing source", "source", src.Name())
		return closeSource()
	})
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		sinks.Close()
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
