package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/db"
	"github.com/legojeon/report-coach/internal/domain"
	domusage "github.com/legojeon/report-coach/internal/domain/usage"
	logpkg "github.com/legojeon/report-coach/internal/logger"
	"github.com/legojeon/report-coach/internal/metrics"
	healthuc "github.com/legojeon/report-coach/internal/usecase/health"
)

// Request headers that identify the caller for usage attribution.
const (
	HeaderUserID      = "X-User-ID"
	HeaderUsageHidden = "X-Usage-Hidden"
)

const maxBodyBytes = 64 << 10

// Searcher runs the retrieval and ranking pipeline.
type Searcher interface {
	Search(ctx context.Context, query string, k int) (domain.SearchResponse, error)
}

// ImageStore resolves report images on disk.
type ImageStore interface {
	Path(number string) (string, error)
}

// HealthChecker aggregates component probes.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reads token totals for a period.
type UsageReporter interface {
	Report(ctx context.Context, period domusage.Period) (domusage.Report, error)
}

// SearchRequest is the POST /search body.
type SearchRequest struct {
	Query string `json:"query"`
	K     *int   `json:"k,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server holds the HTTP handlers.
type Server struct {
	search   Searcher
	images   ImageStore
	health   HealthChecker
	usage    UsageReporter
	defaultK int
	logger   *zap.Logger
}

// NewServer creates an HTTP API server. defaultK applies when a search omits k.
func NewServer(
	search Searcher,
	images ImageStore,
	health HealthChecker,
	usage UsageReporter,
	defaultK int,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:   search,
		images:   images,
		health:   health,
		usage:    usage,
		defaultK: defaultK,
		logger:   logger,
	}
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/search", s.Search)
	r.Get("/image/{report_number}", s.Image)
	r.Get("/health", s.Health)
	r.Get("/usage", s.Usage)
	r.Handle("/metrics", metrics.Handler())
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	k := s.defaultK
	if req.K != nil {
		k = *req.K
	}

	ctx := domain.ContextWithCaller(r.Context(), callerFromRequest(r))
	ctx, usage := domain.NewContextWithUsage(ctx)

	resp, err := s.search.Search(ctx, req.Query, k)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(searchOutcome(err)).Inc()
		s.handleDomainError(r.Context(), w, err)
		return
	}
	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

// Image handles GET /image/{report_number}.
func (s *Server) Image(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "report_number")
	path, err := s.images.Path(number)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "image not found")
			return
		}
		s.handleDomainError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

// Health handles GET /health. Degraded still answers 200.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Usage handles GET /usage?period=day|month.
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	period, ok := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if !ok {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "period must be day or month")
		return
	}
	report, err := s.usage.Report(r.Context(), period)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func callerFromRequest(r *http.Request) domain.Caller {
	hidden, _ := strconv.ParseBool(r.Header.Get(HeaderUsageHidden))
	return domain.Caller{
		UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Hidden: hidden,
	}
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.RequestUsage) {
	if n := usage.EmbeddingTokens(); n > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(n))
	}
	if n := usage.GenerationTokens(); n > 0 {
		w.Header().Set("X-Generation-Tokens", strconv.Itoa(n))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logpkg.FromContext(ctx, s.logger)
	status, code, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Warn("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, code, msg)
}
