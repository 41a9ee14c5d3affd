package reportcoach

import "github.com/legojeon/report-coach/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEmptyQuery              = domain.ErrEmptyQuery
	ErrInvalidK                = domain.ErrInvalidK
	ErrCollaboratorUnavailable = domain.ErrCollaboratorUnavailable
	ErrEmbeddingQuotaExceeded  = domain.ErrEmbeddingQuotaExceeded
)
