package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pickscan/pickscan/config"
)

// TaskTypeJobProcess is the single task kind: run one digitization job.
const TaskTypeJobProcess = "job:process"

// JobPayload is the wire form of a queued job reference. The payload is a
// pointer only; all job state lives in the persistence gateway, so a worker
// picking up a stale task finds out by loading the job, not by trusting the
// payload.
type JobPayload struct {
	JobID      string    `json:"jobId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Client enqueues job tasks onto the shared redis transport.
type Client struct {
	client *asynq.Client
}

func NewClient(cfg *config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// EnqueueJob hands one job id to the worker pool. Transport-level retry is
// disabled: the job state machine owns retry semantics, and a duplicate
// delivery would race the attempt counter.
func (c *Client) EnqueueJob(ctx context.Context, jobID string) error {
	payload, err := json.Marshal(JobPayload{
		JobID:      jobID,
		EnqueuedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeJobProcess, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
	)
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
