package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cart-analytics/internal/config"
	"cart-analytics/internal/models"
	"cart-analytics/internal/observability"
	"cart-analytics/internal/services"
)

func newTestServer(t *testing.T, metrics *observability.Metrics) *Server {
	t.Helper()
	a := services.NewAnalytics(services.Options{}, observability.Discard())
	ds := &models.Dataset{
		Orders: []models.Order{
			{OrderID: "O1", CustomerID: "C1", Status: models.OrderDelivered, PurchaseTimestamp: time.Date(2018, 1, 2, 10, 0, 0, 0, time.UTC)},
			{OrderID: "O2", CustomerID: "C1", Status: models.OrderCanceled, PurchaseTimestamp: time.Date(2018, 1, 3, 10, 0, 0, 0, time.UTC)},
		},
		Customers: []models.Customer{{CustomerID: "C1", CustomerUniqueID: "U1", State: "SP"}},
	}
	if _, err := a.SetDataset(context.Background(), ds); err != nil {
		t.Fatal(err)
	}

	dashboard := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>dashboard</html>"))
	}
	return NewServer(a, metrics, observability.Discard(), &TemplateHandlers{Dashboard: dashboard})
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t, observability.NewMetrics())

	tests := []struct {
		method string
		path   string
		status int
		ct     string
	}{
		{http.MethodGet, "/", http.StatusOK, "text/html"},
		{http.MethodGet, "/health", http.StatusOK, "application/json"},
		{http.MethodGet, "/admin/stats", http.StatusOK, "application/json"},
		{http.MethodGet, "/metrics", http.StatusOK, "text/plain"},
		{http.MethodGet, "/api/summary", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/pipeline", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/reports", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/reports/weekdays", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/facts?limit=1", http.StatusOK, "application/json"},
		{http.MethodGet, "/api/facts.csv", http.StatusOK, "text/csv"},
		{http.MethodGet, "/sse/reports/summary", http.StatusOK, "text/event-stream"},
		{http.MethodGet, "/sse/refresh-all", http.StatusOK, "text/event-stream"},
		{http.MethodGet, "/no/such/page", http.StatusNotFound, ""},
		{http.MethodPost, "/api/summary", http.StatusMethodNotAllowed, ""},
		{http.MethodDelete, "/health", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.ct != "" && !strings.Contains(w.Header().Get("Content-Type"), tt.ct) {
				t.Errorf("content-type = %q, want %q", w.Header().Get("Content-Type"), tt.ct)
			}
		})
	}
}

func TestServer_NoMetrics(t *testing.T) {
	srv := newTestServer(t, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without metrics", w.Code)
	}
}

func testConfig() *config.Config {
	return &config.Config{Server: config.ServerConfig{ShutdownTimeout: 2 * time.Second}}
}

func TestGracefulServer_RunHooks(t *testing.T) {
	httpServer := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	gs := NewGracefulServer(httpServer, observability.Discard(), testConfig())

	var called atomic.Int32
	for i := 0; i < 3; i++ {
		gs.RegisterShutdownHook(func(ctx context.Context) error {
			called.Add(1)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- gs.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if called.Load() != 3 {
		t.Errorf("hooks called = %d, want 3", called.Load())
	}
}

func TestGracefulServer_HookErrors(t *testing.T) {
	httpServer := &http.Server{Addr: "127.0.0.1:0"}
	gs := NewGracefulServer(httpServer, observability.Discard(), testConfig())

	boom := errors.New("close failed")
	gs.RegisterShutdownHook(func(ctx context.Context) error { return boom })
	gs.RegisterShutdownHook(func(ctx context.Context) error { return nil })

	err := gs.shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected hook error, got %v", err)
	}
}

func TestGracefulServer_ListenError(t *testing.T) {
	httpServer := &http.Server{Addr: "256.0.0.1:bad"}
	gs := NewGracefulServer(httpServer, observability.Discard(), testConfig())

	if err := gs.Run(context.Background()); err == nil {
		t.Error("expected listen error")
	}
}
