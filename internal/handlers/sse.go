package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"cart-analytics/internal/observability"
	"cart-analytics/internal/services"
)

const maxTableRows = 50

var reportTableTemplate = template.Must(template.New("reportTable").Parse(`
<div id="report-{{.Name}}" class="report">
{{range .Tables}}{{if .Title}}<h4>{{.Title}}</h4>{{end}}
<table class="modern-table">
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range $i, $row := .Rows}}{{if lt $i $.MaxRows}}<tr>{{range $row}}<td>{{.}}</td>{{end}}</tr>{{end}}{{end}}
</tbody>
</table>
{{else}}<p class="empty">No rows</p>
{{end}}</div>`))

var unavailableTemplate = template.Must(template.New("unavailable").Parse(
	`<div id="report-{{.}}" class="report"><p class="empty">Not available yet</p></div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, metrics *observability.Metrics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		metrics:   metrics,
		logger:    logger,
	}
}

type templateData struct {
	Name    string
	Tables  []table
	MaxRows int
}

func (h *SSEHandlers) renderReport(name string, rows any) (string, error) {
	var buf strings.Builder
	err := reportTableTemplate.Execute(&buf, templateData{Name: name, Tables: tablesOf(rows), MaxRows: maxTableRows})
	return buf.String(), err
}

func (h *SSEHandlers) renderUnavailable(name string) string {
	var buf strings.Builder
	unavailableTemplate.Execute(&buf, name)
	return buf.String()
}

func (h *SSEHandlers) open() func() {
	if h.metrics == nil {
		return func() {}
	}
	h.metrics.StreamOpened()
	return h.metrics.StreamClosed
}

// HandleReport patches the report's table into the page and publishes its
// rows as a signal for charts.
func (h *SSEHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !slices.Contains(h.analytics.ReportNames(), name) {
		http.NotFound(w, r)
		return
	}

	defer h.open()()
	sse := datastar.NewSSE(w, r)
	log := observability.FromContext(r.Context(), h.logger)

	rows, err := h.analytics.Report(name)
	if err != nil {
		sse.PatchElements(h.renderUnavailable(name))
		return
	}

	html, err := h.renderReport(name, rows)
	if err != nil {
		log.Error("render report table", "report", name, "error", err)
		return
	}
	sse.PatchElements(html)

	signals, err := json.Marshal(map[string]any{
		"reports": map[string]any{name: rows},
	})
	if err != nil {
		log.Error("marshal report signals", "report", name, "error", err)
		return
	}
	sse.PatchSignals(signals)
}

// HandleRefreshAll re-renders every report table and sends the headline
// numbers as one signal patch.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	defer h.open()()
	sse := datastar.NewSSE(w, r)
	log := observability.FromContext(r.Context(), h.logger)

	if !h.analytics.Ready() {
		sse.PatchElements(`<div id="status">Fact set is still loading</div>`)
		return
	}

	all := make(map[string]any)
	for _, name := range h.analytics.ReportNames() {
		if r.Context().Err() != nil {
			return
		}
		rows, err := h.analytics.Report(name)
		if err != nil {
			log.Warn("report unavailable", "report", name, "error", err)
			continue
		}
		html, err := h.renderReport(name, rows)
		if err != nil {
			log.Error("render report table", "report", name, "error", err)
			continue
		}
		sse.PatchElements(html)
		all[name] = rows
	}

	signals, err := json.Marshal(map[string]any{
		"reports": all,
		"stats":   h.analytics.Stats(),
	})
	if err != nil {
		log.Error("marshal all signals data", "error", err)
		return
	}
	sse.PatchSignals(signals)
}
