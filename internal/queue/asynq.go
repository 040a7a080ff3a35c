package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"contract-analyzer/internal/shared/telemetry"
)

const (
	// TaskAnalysisRun is the asynq task type for one pipeline run.
	TaskAnalysisRun = "analysis:run"
	// QueueName is the asynq queue analysis tasks are placed on.
	QueueName = "analysis"

	defaultMaxRetry = 3
	defaultTimeout  = 10 * time.Minute
)

// Enqueuer is the subset of *asynq.Client used by AsynqClient.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqClient sends messages as asynq tasks backed by Redis.
type AsynqClient struct {
	Enqueuer Enqueuer
	MaxRetry int
	Timeout  time.Duration
}

// NewAsynqClient connects to Redis at addr.
func NewAsynqClient(addr string, db int) (*AsynqClient, *asynq.Client) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: addr, DB: db})
	return &AsynqClient{Enqueuer: client, MaxRetry: defaultMaxRetry, Timeout: defaultTimeout}, client
}

// NewTask builds the asynq task for msg.
func NewTask(msg Message) (*asynq.Task, error) {
	if msg.DocumentID == "" {
		return nil, errors.New("documentId is required")
	}
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	if msg.EnqueuedAt == "" {
		msg.EnqueuedAt = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("encode task payload: %w", err)
	}
	return asynq.NewTask(TaskAnalysisRun, payload), nil
}

// Send enqueues msg on the analysis queue.
func (c *AsynqClient) Send(ctx context.Context, msg Message) error {
	task, err := NewTask(msg)
	if err != nil {
		return err
	}
	maxRetry := c.MaxRetry
	if maxRetry < 0 {
		maxRetry = 0
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	info, err := c.Enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(QueueName),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(timeout),
	)
	if err != nil {
		return fmt.Errorf("enqueue analysis task: %w", err)
	}
	telemetry.Info("queue.enqueued", map[string]any{
		"task_id":     info.ID,
		"document_id": msg.DocumentID,
		"request_id":  msg.RequestID,
	})
	return nil
}

// Processor runs analysis tasks pulled by an asynq server.
type Processor struct {
	Handle func(ctx context.Context, msg Message) error
	// Permanent reports errors that must not be retried.
	Permanent func(err error) bool
}

// ProcessTask implements asynq.Handler.
func (p *Processor) ProcessTask(ctx context.Context, task *asynq.Task) error {
	msg, err := DecodeMessage(task.Payload())
	if err != nil {
		telemetry.Error("queue.decode_failed", map[string]any{"error": err})
		return fmt.Errorf("decode task: %v: %w", err, asynq.SkipRetry)
	}
	if p.Handle == nil {
		return errors.New("queue processor not configured")
	}
	if err := p.Handle(ctx, msg); err != nil {
		if p.Permanent != nil && p.Permanent(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

// NewServeMux routes analysis tasks to p.
func NewServeMux(p *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TaskAnalysisRun, p)
	return mux
}

var _ Client = (*AsynqClient)(nil)
var _ asynq.Handler = (*Processor)(nil)
