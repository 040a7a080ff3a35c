package analyses

import (
	"errors"

	"contract-analyzer/internal/documents"
	"contract-analyzer/internal/extract"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrAnalysisInProgress    = errors.New("analysis already in progress for document")
	ErrUnsupportedFormat     = errors.New("unsupported document format")
	ErrJobQueueNotConfigured = errors.New("job queue not configured")
)

// Pipeline stages, used for failure metrics and logs.
const (
	StageFetch   = "fetch"
	StageExtract = "extract"
	StageAI      = "ai"
	StagePersist = "persist"
	StageStatus  = "status"
)

// IsPermanent reports failures that a retry cannot fix.
func IsPermanent(err error) bool {
	var parseErr *extract.DocumentParseError
	switch {
	case errors.As(err, &parseErr):
		return true
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, documents.ErrNotFound):
		return true
	default:
		return false
	}
}
