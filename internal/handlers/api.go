package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cart-analytics/internal/errors"
	"cart-analytics/internal/observability"
	"cart-analytics/internal/reports"
	"cart-analytics/internal/services"
	"cart-analytics/internal/source"
)

const (
	defaultFactLimit = 100
	maxFactLimit     = 10000
	version          = "1.0.0"
)

// Reports are precomputed per run, so responses can be cached for a while.
var cacheHeaders = map[string]string{
	"Cache-Control": "public, max-age=300",
}

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if !h.analytics.Ready() {
		status = "loading"
	}

	errors.WriteSuccess(w, map[string]string{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, summary, cacheHeaders)
}

func (h *APIHandlers) HandlePipeline(w http.ResponseWriter, r *http.Request) {
	ps, err := h.analytics.PipelineSummary()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccess(w, ps)
}

func (h *APIHandlers) HandleReportNames(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.ReportNames(), cacheHeaders)
}

func (h *APIHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.analytics.Report(r.PathValue("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, rows, cacheHeaders)
}

func (h *APIHandlers) HandleFacts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	facts, err := h.analytics.Facts(limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccess(w, facts)
}

// HandleFactsCSV streams the whole fact table as CSV.
func (h *APIHandlers) HandleFactsCSV(w http.ResponseWriter, r *http.Request) {
	facts, err := h.analytics.Facts(0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="order_facts.csv"`)
	if err := source.WriteFactsCSV(w, facts); err != nil {
		// Headers are gone by now; all that is left is to log.
		observability.FromContext(r.Context(), h.logger).Error("write facts csv", "error", err)
	}
}

func (h *APIHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, toAppError(err), observability.GetRequestID(r.Context()))
}

func toAppError(err error) error {
	var appErr *errors.AppError
	switch {
	case stderrors.As(err, &appErr):
		return appErr
	case stderrors.Is(err, services.ErrNotReady):
		return errors.ServiceUnavailable("Fact set is still loading")
	case stderrors.Is(err, reports.ErrUnknownReport):
		return errors.NotFound("Unknown report").WithDetails(err.Error())
	default:
		return errors.InternalWrap(err, "An unexpected error occurred")
	}
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultFactLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.BadRequest("limit must be a positive integer").WithDetails(raw)
	}
	return min(n, maxFactLimit), nil
}
