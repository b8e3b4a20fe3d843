package errors

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeBadRequest, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeRateLimit, http.StatusTooManyRequests},
		{CodeServiceUnavail, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code, "x").StatusCode; got != tt.want {
				t.Errorf("status for %s = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestWriteError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, slog.Default(), fmt.Errorf("facts: %w", ServiceUnavailable("loading")), "req-2")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestWriteError_PlainError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, slog.Default(), fmt.Errorf("boom"), "req-1")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success {
		t.Error("expected success=false")
	}
	if resp.Error.RequestID != "req-1" {
		t.Errorf("expected request id req-1, got %q", resp.Error.RequestID)
	}
}

func TestWriteSuccessWithHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessWithHeaders(w, []int{1, 2}, map[string]string{"Cache-Control": "no-store"})

	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected custom header to be set")
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Error("expected json content type")
	}
}
