package worker

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/queue"
)

type fakeRunner struct {
	jobIDs []string
	err    error
}

func (r *fakeRunner) Run(ctx context.Context, jobID string) error {
	r.jobIDs = append(r.jobIDs, jobID)
	return r.err
}

func newTestWorker(runner Runner) *JobWorker {
	return &JobWorker{
		mux:    asynq.NewServeMux(),
		runner: runner,
		logger: logger.NewTestLogger(),
	}
}

func TestHandleJobProcessRunsJob(t *testing.T) {
	runner := &fakeRunner{}
	w := newTestWorker(runner)

	task := asynq.NewTask(queue.TaskTypeJobProcess, []byte(`{"jobId":"j1"}`))
	err := w.handleJobProcess(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, []string{"j1"}, runner.jobIDs)
}

func TestHandleJobProcessRejectsBadPayload(t *testing.T) {
	runner := &fakeRunner{}
	w := newTestWorker(runner)

	task := asynq.NewTask(queue.TaskTypeJobProcess, []byte(`not json`))
	err := w.handleJobProcess(context.Background(), task)

	require.Error(t, err)
	assert.Empty(t, runner.jobIDs)
}

func TestHandleJobProcessRejectsMissingJobID(t *testing.T) {
	runner := &fakeRunner{}
	w := newTestWorker(runner)

	task := asynq.NewTask(queue.TaskTypeJobProcess, []byte(`{}`))
	err := w.handleJobProcess(context.Background(), task)

	require.Error(t, err)
	assert.Empty(t, runner.jobIDs)
}
