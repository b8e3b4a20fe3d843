package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cart-analytics/internal/models"
	"cart-analytics/internal/observability"
	"cart-analytics/internal/services"
)

func TestNewSSEHandlers(t *testing.T) {
	analytics := createTestAnalytics(t)
	metrics := observability.NewMetrics()
	logger := observability.Discard()

	handlers := NewSSEHandlers(analytics, metrics, logger)

	if handlers.analytics != analytics || handlers.metrics != metrics || handlers.logger != logger {
		t.Error("NewSSEHandlers() should set every field")
	}
}

func TestSSEHandlers_renderReport(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(t), nil, observability.Discard())

	rows := []models.CategoryRow{
		{Category: "toys", TotalOrders: 60, AbandonedOrders: 6, AbandonmentRate: 10, AvgCartValue: 40.5},
		{Category: "<script>", TotalOrders: 50, AbandonedOrders: 1, AbandonmentRate: 2},
	}

	html, err := handlers.renderReport("categories", rows)
	if err != nil {
		t.Fatalf("renderReport() failed: %v", err)
	}

	expected := []string{
		`<div id="report-categories"`,
		`<table class="modern-table">`,
		"<th>category</th>",
		"<th>abandonment_rate</th>",
		"<td>toys</td>",
		"<td>40.50</td>",
		"&lt;script&gt;",
	}
	for _, content := range expected {
		if !strings.Contains(html, content) {
			t.Errorf("expected HTML to contain %q", content)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Error("cell values must be escaped")
	}
}

func TestSSEHandlers_renderReport_LargeDataset(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(t), nil, observability.Discard())

	rows := make([]models.BucketRow, 75)
	for i := range rows {
		rows[i] = models.BucketRow{Bucket: fmt.Sprintf("b%d", i), TotalOrders: i}
	}

	html, err := handlers.renderReport("cart_values", rows)
	if err != nil {
		t.Fatal(err)
	}

	rowCount := strings.Count(html, "<tr>") - 1
	if rowCount != maxTableRows {
		t.Errorf("expected %d rows, got %d", maxTableRows, rowCount)
	}
}

func TestTablesOf(t *testing.T) {
	first := time.Date(2017, 1, 5, 11, 0, 0, 0, time.UTC)
	dq := models.DataQuality{
		Records:       10,
		FirstPurchase: &first,
		Columns:       []models.ColumnCompletion{{Column: "order_approved_at", Missing: 2, MissingPct: 20}},
	}

	tables := tablesOf(dq)
	if len(tables) != 2 {
		t.Fatalf("expected field table plus nested table, got %d", len(tables))
	}

	kv := tables[0]
	want := [][]string{
		{"records", "10"},
		{"first_purchase", "2017-01-05 11:00:00"},
		{"last_purchase", ""},
	}
	for i, row := range want {
		if strings.Join(kv.Rows[i], "|") != strings.Join(row, "|") {
			t.Errorf("row %d = %v, want %v", i, kv.Rows[i], row)
		}
	}

	nested := tables[1]
	if nested.Title != "columns" || strings.Join(nested.Rows[0], "|") != "order_approved_at|2|20.00" {
		t.Errorf("nested table = %+v", nested)
	}

	names := tablesOf([]string{"summary", "funnel"})
	if len(names[0].Rows) != 2 || names[0].Columns[0] != "value" {
		t.Errorf("string slice table = %+v", names[0])
	}
}

func TestSSEHandlers_HandleReport(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(t), observability.NewMetrics(), observability.Discard())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sse/reports/{name}", handlers.HandleReport)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sse/reports/funnel", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("expected content-type to contain 'text/event-stream', got %q", ct)
	}

	body := w.Body.String()
	for _, want := range []string{"report-funnel", "<table", "reports", "conversion_rate"} {
		if !strings.Contains(body, want) {
			t.Errorf("response should contain %q", want)
		}
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sse/reports/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown report status = %d", w.Code)
	}
}

func TestSSEHandlers_HandleReport_NotReady(t *testing.T) {
	a := services.NewAnalytics(services.Options{}, observability.Discard())
	handlers := NewSSEHandlers(a, nil, observability.Discard())

	req := httptest.NewRequest(http.MethodGet, "/sse/reports/summary", nil)
	req.SetPathValue("name", "summary")
	w := httptest.NewRecorder()
	handlers.HandleReport(w, req)

	if !strings.Contains(w.Body.String(), "Not available yet") {
		t.Errorf("expected placeholder, got %s", w.Body.String())
	}
}

func TestSSEHandlers_HandleRefreshAll(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(t), nil, observability.Discard())

	w := httptest.NewRecorder()
	handlers.HandleRefreshAll(w, httptest.NewRequest(http.MethodGet, "/sse/refresh-all", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	body := w.Body.String()
	for _, name := range []string{"report-summary", "report-categories", "report-funnel", "report-priorities"} {
		if !strings.Contains(body, name) {
			t.Errorf("response should patch %q", name)
		}
	}
	if !strings.Contains(body, "stats") || !strings.Contains(body, "event:") || !strings.Contains(body, "data:") {
		t.Error("response should contain SSE events with a stats signal")
	}
}

func TestSSEHandlers_StreamGauge(t *testing.T) {
	metrics := observability.NewMetrics()
	handlers := NewSSEHandlers(createTestAnalytics(t), metrics, observability.Discard())

	handlers.HandleRefreshAll(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sse/refresh-all", nil))

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "cart_analytics_sse_streams 0") {
		t.Error("stream gauge should return to zero after the handler finishes")
	}
}

func TestSSEConstants(t *testing.T) {
	if maxTableRows != 50 {
		t.Errorf("expected maxTableRows=50, got %d", maxTableRows)
	}
}
