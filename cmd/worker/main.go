package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"contract-analyzer/internal/analyses"
	"contract-analyzer/internal/bootstrap"
	"contract-analyzer/internal/queue"
	"contract-analyzer/internal/shared/config"
	"contract-analyzer/internal/shared/telemetry"
)

const defaultShutdownTimeout = 30 * time.Second

func main() {
	defer telemetry.Sync()
	cfg := config.Load()

	app, err := bootstrap.BuildWorker(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency:     max(1, cfg.WorkerConcurrency),
			Queues:          map[string]int{queue.QueueName: 1},
			ShutdownTimeout: defaultShutdownTimeout,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				msg, _ := queue.DecodeMessage(task.Payload())
				telemetry.Error("worker.analysis.failed", map[string]any{
					"document_id": msg.DocumentID,
					"request_id":  msg.RequestID,
					"error":       err,
				})
			}),
		},
	)

	processor := &queue.Processor{
		Handle:    app.AnalysesService.RunJob,
		Permanent: analyses.IsPermanent,
	}

	if err := srv.Start(queue.NewServeMux(processor)); err != nil {
		log.Fatalf("start worker: %v", err)
	}
	telemetry.Info("worker.started", map[string]any{"concurrency": cfg.WorkerConcurrency, "queue": queue.QueueName})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	telemetry.Info("worker.shutdown", map[string]any{"timeout": defaultShutdownTimeout.String()})
	srv.Shutdown()
}
