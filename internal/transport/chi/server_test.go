package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/domain"
	domusage "github.com/legojeon/report-coach/internal/domain/usage"
	"github.com/legojeon/report-coach/internal/metrics"
	"github.com/legojeon/report-coach/internal/repository/image"
	healthuc "github.com/legojeon/report-coach/internal/usecase/health"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type fakeSearcher struct {
	err       error
	gotQuery  string
	gotK      int
	gotCaller domain.Caller
	panics    bool
	waitCtx   bool
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) (domain.SearchResponse, error) {
	if f.panics {
		panic("boom")
	}
	f.gotQuery, f.gotK = query, k
	if f.waitCtx {
		<-ctx.Done()
		return domain.SearchResponse{}, fmt.Errorf("search: %w", ctx.Err())
	}
	f.gotCaller = domain.CallerFromContext(ctx)
	if f.err != nil {
		return domain.SearchResponse{}, f.err
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(12)
	return domain.SearchResponse{
		Query:        query,
		TotalResults: 1,
		Results:      []domain.ResultItem{{Rank: 1, ReportNumber: "1001", Title: "제목"}},
	}, nil
}

type fakeHealth struct{ report healthuc.Report }

func (f fakeHealth) Check(context.Context) healthuc.Report { return f.report }

type fakeUsage struct {
	err       error
	gotPeriod domusage.Period
}

func (f *fakeUsage) Report(_ context.Context, p domusage.Period) (domusage.Report, error) {
	f.gotPeriod = p
	return domusage.Report{Period: p, TotalTokens: 42}, f.err
}

type fixture struct {
	searcher *fakeSearcher
	usage    *fakeUsage
	health   *fakeHealth
	handler  http.Handler
	imageDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		searcher: &fakeSearcher{},
		usage:    &fakeUsage{},
		health:   &fakeHealth{report: healthuc.Report{Status: healthuc.Healthy}},
		imageDir: t.TempDir(),
	}
	srv := NewServer(f.searcher, image.NewLocator(f.imageDir, zap.NewNop()), f.health, f.usage, 10, zap.NewNop())
	f.handler = NewRouter(srv, RouterOptions{RequestTimeout: 5 * time.Second}, zap.NewNop())
	return f
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestSearch_OK(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues("ok"))

	rr := f.do(http.MethodPost, "/search", `{"query": "미세먼지", "k": 3}`,
		HeaderUserID, "user-7", HeaderUsageHidden, "true")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if f.searcher.gotQuery != "미세먼지" || f.searcher.gotK != 3 {
		t.Errorf("search called with %q/%d", f.searcher.gotQuery, f.searcher.gotK)
	}
	if f.searcher.gotCaller != (domain.Caller{UserID: "user-7", Hidden: true}) {
		t.Errorf("caller = %+v", f.searcher.gotCaller)
	}
	if rr.Header().Get("X-Embedding-Tokens") != "12" {
		t.Errorf("X-Embedding-Tokens = %q", rr.Header().Get("X-Embedding-Tokens"))
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	var resp domain.SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalResults != 1 || resp.Results[0].ReportNumber != "1001" {
		t.Errorf("unexpected response %+v", resp)
	}
	if got := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues("ok")) - before; got != 1 {
		t.Errorf("ok counter delta = %v, want 1", got)
	}
}

func TestSearch_DefaultK(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodPost, "/search", `{"query": "q"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if f.searcher.gotK != 10 {
		t.Errorf("k = %d, want default 10", f.searcher.gotK)
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"empty query", domain.ErrEmptyQuery, http.StatusBadRequest, CodeEmptyQuery},
		{"invalid k", fmt.Errorf("k=0: %w", domain.ErrInvalidK), http.StatusBadRequest, CodeInvalidK},
		{"collaborator", fmt.Errorf("%w: embed: %w", domain.ErrCollaboratorUnavailable, errors.New("dial")),
			http.StatusBadGateway, CodeUnavailable},
		{"quota wins over collaborator",
			fmt.Errorf("%w: %w", domain.ErrCollaboratorUnavailable, domain.ErrEmbeddingQuotaExceeded),
			http.StatusTooManyRequests, CodeEmbeddingQuotaExceeded},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, CodeTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.searcher.err = tt.err
			rr := f.do(http.MethodPost, "/search", `{"query": "q", "k": 1}`)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if e := decodeError(t, rr); e.Code != tt.wantBody {
				t.Errorf("code = %q, want %q", e.Code, tt.wantBody)
			}
		})
	}
}

// headerCounter records every WriteHeader call, including the ones a
// ResponseRecorder would silently drop.
type headerCounter struct {
	*httptest.ResponseRecorder
	statuses []int
}

func (h *headerCounter) WriteHeader(code int) {
	h.statuses = append(h.statuses, code)
	h.ResponseRecorder.WriteHeader(code)
}

func TestSearch_RequestTimeoutWritesOnce(t *testing.T) {
	f := newFixture(t)
	f.searcher.waitCtx = true
	srv := NewServer(f.searcher, image.NewLocator(f.imageDir, zap.NewNop()), f.health, f.usage, 10, zap.NewNop())
	handler := NewRouter(srv, RouterOptions{RequestTimeout: 20 * time.Millisecond}, zap.NewNop())

	w := &headerCounter{ResponseRecorder: httptest.NewRecorder()}
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query": "q", "k": 1}`))
	handler.ServeHTTP(w, req)

	if len(w.statuses) != 1 || w.statuses[0] != http.StatusGatewayTimeout {
		t.Fatalf("WriteHeader calls = %v, want exactly [504]", w.statuses)
	}
	if e := decodeError(t, w.ResponseRecorder); e.Code != CodeTimeout {
		t.Errorf("code = %q, want %q", e.Code, CodeTimeout)
	}
}

func TestRequestTimeout_OnlySetsDeadline(t *testing.T) {
	var deadline bool
	h := RequestTimeout(10 * time.Millisecond)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
		<-r.Context().Done()
	}))

	w := &headerCounter{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !deadline {
		t.Error("request context has no deadline")
	}
	if len(w.statuses) != 0 {
		t.Errorf("middleware wrote status %v; the handler owns the response", w.statuses)
	}
}

func TestSearch_InternalErrorDoesNotLeak(t *testing.T) {
	f := newFixture(t)
	f.searcher.err = errors.New("password=hunter2")
	rr := f.do(http.MethodPost, "/search", `{"query": "q"}`)
	if strings.Contains(rr.Body.String(), "hunter2") {
		t.Errorf("internal error leaked: %s", rr.Body.String())
	}
}

func TestSearch_BadJSON(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues("invalid"))

	rr := f.do(http.MethodPost, "/search", `{"query":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeBadRequest {
		t.Errorf("code = %q", e.Code)
	}
	if f.searcher.gotQuery != "" {
		t.Error("search must not run on a bad body")
	}
	if got := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues("invalid")) - before; got != 1 {
		t.Errorf("invalid counter delta = %v", got)
	}
}

func TestSearch_PanicRecovered(t *testing.T) {
	f := newFixture(t)
	f.searcher.panics = true
	rr := f.do(http.MethodPost, "/search", `{"query": "q"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeInternal {
		t.Errorf("code = %q", e.Code)
	}
}

func TestImage(t *testing.T) {
	f := newFixture(t)
	png := []byte("\x89PNG\r\n\x1a\nfake")
	if err := os.WriteFile(filepath.Join(f.imageDir, "1001_image.png"), png, 0o600); err != nil {
		t.Fatal(err)
	}

	rr := f.do(http.MethodGet, "/image/1001", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if rr.Body.String() != string(png) {
		t.Error("unexpected image bytes")
	}

	for _, path := range []string{"/image/2002", "/image/..%2Fsecret"} {
		if rr := f.do(http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rr.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := newFixture(t)
			f.health.report = healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{healthuc.ComponentDatabase: healthuc.CheckOK},
			}
			rr := f.do(http.MethodGet, "/health", "")
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			var body healthuc.Report
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.status || body.Checks[healthuc.ComponentDatabase] != healthuc.CheckOK {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestUsage(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/usage?period=month", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if f.usage.gotPeriod != domusage.PeriodMonth {
		t.Errorf("period = %q", f.usage.gotPeriod)
	}

	if rr := f.do(http.MethodGet, "/usage", ""); rr.Code != http.StatusOK || f.usage.gotPeriod != domusage.PeriodDay {
		t.Errorf("default period: status %d period %q", rr.Code, f.usage.gotPeriod)
	}
	if rr := f.do(http.MethodGet, "/usage?period=year", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad period: status = %d", rr.Code)
	}

	f.usage.err = errors.New("valkey down")
	if rr := f.do(http.MethodGet, "/usage", ""); rr.Code != http.StatusInternalServerError {
		t.Errorf("store error: status = %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/search", `{"query": "q"}`)

	rr := f.do(http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "reportcoach_search_requests_total") {
		t.Error("search counter not exposed")
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/collections", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeNotFound {
		t.Errorf("code = %q", e.Code)
	}
}
