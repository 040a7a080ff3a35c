package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueName}, nil
}

func TestAsynqClientSend(t *testing.T) {
	fake := &fakeEnqueuer{}
	client := &AsynqClient{Enqueuer: fake, MaxRetry: 2}

	require.NoError(t, client.Send(context.Background(), Message{DocumentID: "doc-1", RequestID: "req-1"}))
	require.Len(t, fake.tasks, 1)
	assert.Equal(t, TaskAnalysisRun, fake.tasks[0].Type())

	msg, err := DecodeMessage(fake.tasks[0].Payload())
	require.NoError(t, err)
	assert.Equal(t, "doc-1", msg.DocumentID)
	assert.Equal(t, MessageVersion, msg.Version)
	assert.NotEmpty(t, msg.EnqueuedAt)

	var sawQueue bool
	for _, opt := range fake.opts[0] {
		if opt.Type() == asynq.QueueOpt {
			sawQueue = opt.Value() == QueueName
		}
	}
	assert.True(t, sawQueue, "expected analysis queue option")
}

func TestAsynqClientSendErrors(t *testing.T) {
	client := &AsynqClient{Enqueuer: &fakeEnqueuer{err: errors.New("redis down")}}
	assert.Error(t, client.Send(context.Background(), Message{DocumentID: "doc-1"}))
	assert.Error(t, client.Send(context.Background(), Message{}))
}

func TestProcessorProcessTask(t *testing.T) {
	permanent := errors.New("permanent")
	var got Message
	p := &Processor{
		Handle: func(ctx context.Context, msg Message) error {
			got = msg
			if msg.DocumentID == "bad" {
				return permanent
			}
			if msg.DocumentID == "flaky" {
				return errors.New("temporary")
			}
			return nil
		},
		Permanent: func(err error) bool { return errors.Is(err, permanent) },
	}

	task, err := NewTask(Message{DocumentID: "doc-9"})
	require.NoError(t, err)
	require.NoError(t, p.ProcessTask(context.Background(), task))
	assert.Equal(t, "doc-9", got.DocumentID)

	task, _ = NewTask(Message{DocumentID: "bad"})
	err = p.ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, _ = NewTask(Message{DocumentID: "flaky"})
	err = p.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	err = p.ProcessTask(context.Background(), asynq.NewTask(TaskAnalysisRun, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
