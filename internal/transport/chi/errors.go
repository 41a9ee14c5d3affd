package chi

import (
	"context"
	"errors"
	"net/http"

	"github.com/legojeon/report-coach/internal/domain"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest             = "bad_request"
	CodeEmptyQuery             = "empty_query"
	CodeInvalidK               = "invalid_k"
	CodeNotFound               = "not_found"
	CodeRateLimited            = "rate_limited"
	CodeEmbeddingQuotaExceeded = "embedding_quota_exceeded"
	CodeTimeout                = "timeout"
	CodeUnavailable            = "collaborator_unavailable"
	CodeInternal               = "internal_error"
)

type errorMapping struct {
	sentinel error
	status   int
	code     string
}

// errorMappings is checked in order; the first match wins. A quota error is also
// wrapped as a collaborator failure, so it must come first.
var errorMappings = []errorMapping{
	{domain.ErrEmptyQuery, http.StatusBadRequest, CodeEmptyQuery},
	{domain.ErrInvalidK, http.StatusBadRequest, CodeInvalidK},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
	{domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests, CodeEmbeddingQuotaExceeded},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
	{domain.ErrCollaboratorUnavailable, http.StatusBadGateway, CodeUnavailable},
}

// mapError picks the status, code and client-safe message for err.
func mapError(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.status, m.code, m.sentinel.Error()
		}
	}
	return http.StatusInternalServerError, CodeInternal, "internal error"
}

// searchOutcome is the status label of reportcoach_search_requests_total.
func searchOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery), errors.Is(err, domain.ErrInvalidK):
		return "invalid"
	case errors.Is(err, domain.ErrCollaboratorUnavailable),
		errors.Is(err, domain.ErrEmbeddingQuotaExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return "unavailable"
	default:
		return "error"
	}
}
