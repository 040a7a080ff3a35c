package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"contract-analyzer/internal/documents"
	"contract-analyzer/internal/extract"
	"contract-analyzer/internal/llm"
	"contract-analyzer/internal/queue"
	"contract-analyzer/internal/shared/lock"
	"contract-analyzer/internal/shared/metrics"
	"contract-analyzer/internal/shared/storage/object"
	"contract-analyzer/internal/shared/telemetry"
)

const (
	defaultStorageTimeout = 30 * time.Second
	defaultAITimeout      = 120 * time.Second
)

// TextAnalyzer sends document text to a model. Failures come back as text.
type TextAnalyzer interface {
	Analyze(ctx context.Context, text, instruction string) string
}

// Service runs the document analysis pipeline and reads its results.
type Service struct {
	Repo     Repo
	DocRepo  documents.DocumentsRepo
	Store    object.ObjectStore
	Analyzer TextAnalyzer
	Locker   lock.Locker
	Queue    queue.Client

	// Instruction overrides llm.AnalysisInstruction when set.
	Instruction       string
	StorageTimeout    time.Duration
	AITimeout         time.Duration
	RejectUnsupported bool
	Now               func() time.Time
}

// Analyze runs fetch, extract, prompt, model call, parse and persist for doc.
// A run that aborts persists nothing and leaves the document status alone.
func (s *Service) Analyze(ctx context.Context, doc documents.Document) (Output, error) {
	if s.Repo == nil || s.DocRepo == nil || s.Store == nil || s.Analyzer == nil {
		return Output{}, errors.New("analysis service not configured")
	}
	if doc.ID == "" {
		return Output{}, documents.ErrInvalidInput
	}

	if s.Locker != nil {
		unlock, err := s.Locker.TryLock(ctx, "document:"+doc.ID)
		if err != nil {
			if errors.Is(err, lock.ErrHeld) {
				return Output{}, ErrAnalysisInProgress
			}
			return Output{}, fmt.Errorf("acquire document lock: %w", err)
		}
		defer unlock()
	}

	start := s.now()
	metrics.IncAnalysisStarted()
	s.logStatus(ctx, doc, "analyzing", doc.Status+"->analyzing", nil)

	data, err := s.fetch(ctx, doc.StorageKey)
	if err != nil {
		return Output{}, s.fail(ctx, doc, StageFetch, start, fmt.Errorf("fetch document %s: %w", doc.ID, err))
	}

	extracted, err := extract.Extract(ctx, data, doc.MimeType)
	if err != nil {
		return Output{}, s.fail(ctx, doc, StageExtract, start, fmt.Errorf("extract document %s: %w", doc.ID, err))
	}
	if extracted.Unsupported {
		if s.RejectUnsupported {
			return Output{}, s.fail(ctx, doc, StageExtract, start, fmt.Errorf("document %s mime %s: %w", doc.ID, doc.MimeType, ErrUnsupportedFormat))
		}
		telemetry.Warn("analysis.unsupported_format", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": doc.ID,
			"mime_type":   doc.MimeType,
		})
	}

	aiCtx, cancel := withTimeout(ctx, s.AITimeout, defaultAITimeout)
	raw := s.Analyzer.Analyze(aiCtx, extracted.Text, s.instruction())
	cancel()
	if err := ctx.Err(); err != nil {
		return Output{}, s.fail(ctx, doc, StageAI, start, err)
	}
	if llm.IsErrorText(raw) {
		telemetry.Warn("analysis.ai_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": doc.ID,
			"error":       raw,
		})
	}

	parsed := llm.ParseAnalysis(raw)
	if parsed.Fallback {
		metrics.IncParseFallback()
	}

	end := s.now()
	result := AnalysisResult{
		ID:              uuid.NewString(),
		DocumentID:      doc.ID,
		ExtractedInfo:   parsed.KeyInformation,
		RisksIdentified: parsed.RiskAssessment,
		Summary:         parsed.Summary,
		AnalysisDate:    end,
		ProcessingTime:  processingSeconds(start, end),
	}
	if err := s.Repo.Create(ctx, result); err != nil {
		return Output{}, s.fail(ctx, doc, StagePersist, start, fmt.Errorf("persist analysis result: %w", err))
	}
	if err := s.DocRepo.UpdateStatus(ctx, doc.ID, documents.StatusAnalyzed); err != nil {
		return Output{}, s.fail(ctx, doc, StageStatus, start, fmt.Errorf("update document status: %w", err))
	}

	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(start, end))
	s.logStatus(ctx, doc, documents.StatusAnalyzed, "analyzing->"+documents.StatusAnalyzed, map[string]any{
		"analysis_id":     result.ID,
		"processing_time": result.ProcessingTime,
		"parse_fallback":  parsed.Fallback,
		"duration_ms":     durationMs(start, end),
	})

	return Output{
		KeyInformation: parsed.KeyInformation,
		RiskAssessment: parsed.RiskAssessment,
		Summary:        parsed.Summary,
	}, nil
}

// Enqueue schedules a background run for doc.
func (s *Service) Enqueue(ctx context.Context, doc documents.Document) error {
	if s.Queue == nil {
		return ErrJobQueueNotConfigured
	}
	err := s.Queue.Send(ctx, queue.Message{
		DocumentID: doc.ID,
		RequestID:  requestIDFromContext(ctx),
		EnqueuedAt: s.now().Format(time.RFC3339),
		Version:    queue.MessageVersion,
	})
	if err != nil {
		return err
	}
	metrics.IncJobsEnqueued()
	return nil
}

// RunJob runs the pipeline for a queued message.
func (s *Service) RunJob(ctx context.Context, msg queue.Message) error {
	if s.DocRepo == nil {
		return errors.New("analysis service not configured")
	}
	ctx = WithRequestID(ctx, msg.RequestID)
	doc, err := s.DocRepo.Get(ctx, msg.DocumentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", msg.DocumentID, err)
	}
	_, err = s.Analyze(ctx, doc)
	return err
}

// List returns the results recorded for a document, newest first.
func (s *Service) List(ctx context.Context, documentID string) ([]AnalysisResult, error) {
	if documentID == "" {
		return nil, errors.New("documentID is required")
	}
	return s.Repo.ListByDocument(ctx, documentID)
}

func (s *Service) fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, s.StorageTimeout, defaultStorageTimeout)
	defer cancel()

	body, err := s.Store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (s *Service) fail(ctx context.Context, doc documents.Document, stage string, start time.Time, err error) error {
	end := s.now()
	metrics.IncAnalysisFailed(stage)
	metrics.ObserveAnalysisDurationMs(durationMs(start, end))
	telemetry.Error("analysis.failed", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"user_id":     doc.UserID,
		"document_id": doc.ID,
		"stage":       stage,
		"error":       err,
		"duration_ms": durationMs(start, end),
	})
	return err
}

func (s *Service) logStatus(ctx context.Context, doc documents.Document, status, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           doc.UserID,
		"document_id":       doc.ID,
		"status":            status,
		"status_transition": transition,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("analysis.status", fields)
}

func (s *Service) instruction() string {
	if s.Instruction != "" {
		return s.Instruction
	}
	return llm.AnalysisInstruction
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func withTimeout(ctx context.Context, d, def time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = def
	}
	return context.WithTimeout(ctx, d)
}

// processingSeconds truncates elapsed time to whole seconds, never negative.
func processingSeconds(start, end time.Time) int {
	elapsed := int(end.Sub(start) / time.Second)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func durationMs(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000.0
}
