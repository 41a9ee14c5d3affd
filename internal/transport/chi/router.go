package chi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/metrics"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	RequestTimeout time.Duration // 0 disables the per-request deadline
	Limiter        *RateLimiter  // nil disables rate limiting
}

// NewRouter builds the chi router with the full middleware stack.
func NewRouter(s *Server, opts RouterOptions, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(logger))
	r.Use(Tracing())
	r.Use(metrics.Middleware())
	r.Use(opts.Limiter.Middleware())
	if opts.RequestTimeout > 0 {
		r.Use(RequestTimeout(opts.RequestTimeout))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	s.Register(r)
	return r
}
