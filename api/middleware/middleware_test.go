package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/docreview-backend/pkg/logger"
)

func TestRequestIDPropagatesHeader(t *testing.T) {
	handler := RequestID(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: logs})
	handler := Recoverer(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if !strings.Contains(logs.String(), "panic.recovered") {
		t.Fatalf("expected panic log, got %s", logs.String())
	}
}

func TestLoggingRecordsStatus(t *testing.T) {
	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: logs})
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	out := logs.String()
	if !strings.Contains(out, `"status":418`) || !strings.Contains(out, `"path":"/api/v1/documents"`) {
		t.Fatalf("unexpected log output %s", out)
	}
}

func TestLoggingQuietsProbes(t *testing.T) {
	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: logs})
	handler := Logging(logg)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if logs.Len() != 0 {
		t.Fatalf("expected probe request to stay below info, got %s", logs.String())
	}

	verbose := logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: logs})
	Logging(verbose)(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if !strings.Contains(logs.String(), `"path":"/health/live"`) {
		t.Fatalf("expected probe request at debug level, got %s", logs.String())
	}
}

func TestRequestIDRejectsUnsafeValues(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	for _, raw := range []string{"bad id with spaces", "x\r\ny", strings.Repeat("a", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, raw)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		got := resp.Header().Get(requestIDHeader)
		if got == raw || got == "" {
			t.Fatalf("expected %q to be replaced, got %q", raw, got)
		}
		if seen != got {
			t.Fatalf("expected context id %q to match header %q", seen, got)
		}
	}
}
