package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/image/{report_number}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, n := range []string{"1001", "1002", "1003"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/image/"+n, http.NoBody))
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/image/{report_number}", "404"))
	if got < 3 {
		t.Errorf("expected >= 3 requests under the route pattern, got %f", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("{}"))
	})

	tests := []struct {
		target string
		status string
	}{
		{"/search", "200"},
		{"/search?fail=1", "502"},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, tc.target, http.NoBody))

			val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/search", tc.status))
			if val < 1 {
				t.Errorf("expected requests_total with status %s >= 1, got %f", tc.status, val)
			}
		})
	}
	if testutil.ToFloat64(httpInFlight) != 0 {
		t.Error("in-flight gauge must return to 0")
	}
}

func TestNormalizePath(t *testing.T) {
	if normalizePath("") != "unknown" || normalizePath("/health") != "/health" {
		t.Error("unexpected normalization")
	}
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	Register()
	Register() // idempotent
	SearchFilterBypassTotal.Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "reportcoach_search_filter_bypass_total") {
		t.Error("expected filter bypass counter in exposition")
	}
}
