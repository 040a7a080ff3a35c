package analyses

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores analysis results in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu         sync.RWMutex
	byDocument map[string][]AnalysisResult
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byDocument: make(map[string][]AnalysisResult)}
}

// Create stores the result.
func (r *MemoryRepo) Create(ctx context.Context, result AnalysisResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDocument[result.DocumentID] = append(r.byDocument[result.DocumentID], result)
	return nil
}

// ListByDocument returns results for a document, newest first.
func (r *MemoryRepo) ListByDocument(ctx context.Context, documentID string) ([]AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	results := make([]AnalysisResult, len(r.byDocument[documentID]))
	copy(results, r.byDocument[documentID])
	r.mu.RUnlock()

	// Stable keeps insertion order for equal dates, so reverse first.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].AnalysisDate.After(results[j].AnalysisDate)
	})
	return results, nil
}

var _ Repo = (*MemoryRepo)(nil)
