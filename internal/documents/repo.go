package documents

import "context"

// DocumentsRepo defines persistence operations for documents.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	// GetByID returns the document only if userID owns it.
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	// Get returns a document regardless of owner, for background jobs.
	Get(ctx context.Context, documentID string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
	UpdateStatus(ctx context.Context, documentID, status string) error
}
