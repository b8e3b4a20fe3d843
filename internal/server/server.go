package server

import (
	"log/slog"
	"net/http"

	"cart-analytics/internal/handlers"
	"cart-analytics/internal/observability"
	"cart-analytics/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	metrics     *observability.Metrics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

// NewServer wires every route. metrics may be nil, in which case /metrics
// is not served.
func NewServer(analytics *services.Analytics, metrics *observability.Metrics, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		metrics:     metrics,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, metrics, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// REST API endpoints
	s.mux.HandleFunc("GET /api/summary", s.apiHandlers.HandleSummary)
	s.mux.HandleFunc("GET /api/pipeline", s.apiHandlers.HandlePipeline)
	s.mux.HandleFunc("GET /api/reports", s.apiHandlers.HandleReportNames)
	s.mux.HandleFunc("GET /api/reports/{name}", s.apiHandlers.HandleReport)
	s.mux.HandleFunc("GET /api/facts", s.apiHandlers.HandleFacts)
	s.mux.HandleFunc("GET /api/facts.csv", s.apiHandlers.HandleFactsCSV)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/reports/{name}", s.sseHandlers.HandleReport)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
