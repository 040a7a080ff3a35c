package analyses

import "context"

// Repo persists analysis results.
type Repo interface {
	Create(ctx context.Context, result AnalysisResult) error
	// ListByDocument returns results for a document, newest first.
	ListByDocument(ctx context.Context, documentID string) ([]AnalysisResult, error)
}
