package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/pickscan/pickscan/config"
	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/queue"
)

// Runner is the job execution entry point; satisfied by the pipeline
// orchestrator.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

type Config struct {
	Concurrency int
}

// JobWorker consumes job tasks off the redis transport and drives each one
// through the pipeline. Rasterization and extraction run here, never in the
// HTTP process.
type JobWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner Runner
	logger logger.Logger
}

func NewJobWorker(redisCfg *config.RedisConfig, cfg *Config, runner Runner, log logger.Logger) *JobWorker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		},
		// Tasks are enqueued with MaxRetry(0); the job state machine owns
		// retry, so no transport-level retry policy applies here.
		asynq.Config{
			Concurrency: cfg.Concurrency,
		},
	)

	w := &JobWorker{
		server: server,
		mux:    asynq.NewServeMux(),
		runner: runner,
		logger: log,
	}
	w.mux.HandleFunc(queue.TaskTypeJobProcess, w.handleJobProcess)
	return w
}

func (w *JobWorker) handleJobProcess(ctx context.Context, t *asynq.Task) error {
	var payload queue.JobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("Failed to unmarshal job payload",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	if payload.JobID == "" {
		return fmt.Errorf("job payload missing job id")
	}

	w.logger.Info("Picked up job",
		logger.String("jobId", payload.JobID),
	)
	return w.runner.Run(ctx, payload.JobID)
}

// Start runs the consumer loop until the context is cancelled.
func (w *JobWorker) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return w.server.Run(w.mux)
}

func (w *JobWorker) Stop() {
	w.server.Shutdown()
}
