package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/pickscan/pickscan/internal/extract"
	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/internal/rasterize"
	"github.com/pickscan/pickscan/pkg/logger"
)

// fakeStore is an in-memory stand-in for the persistence gateway.
type fakeStore struct {
	mu      sync.Mutex
	jobs    map[string]*models.Job
	items   map[string]*models.Item
	images  map[string][]byte
	sources map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:    make(map[string]*models.Job),
		items:   make(map[string]*models.Item),
		images:  make(map[string][]byte),
		sources: make(map[string][]byte),
	}
}

func imageKey(jobID string, pageIndex int) string {
	return fmt.Sprintf("%s_%d", jobID, pageIndex)
}

func (s *fakeStore) SaveJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (s *fakeStore) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *fakeStore) SaveItems(ctx context.Context, items []*models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		copied := *it
		s.items[it.ID] = &copied
	}
	return nil
}

func (s *fakeStore) SavePageImage(ctx context.Context, jobID string, pageIndex int, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[imageKey(jobID, pageIndex)] = data
	return nil
}

func (s *fakeStore) GetPageImage(ctx context.Context, jobID string, pageIndex int) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.images[imageKey(jobID, pageIndex)]
	if !ok {
		return nil, "", &models.PageNotFoundError{JobID: jobID, Page: pageIndex + 1}
	}
	return data, "image/jpeg", nil
}

func (s *fakeStore) PageIndexes(ctx context.Context, jobID string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var indexes []int
	for i := 0; ; i++ {
		if _, ok := s.images[imageKey(jobID, i)]; !ok {
			break
		}
		indexes = append(indexes, i)
	}
	return indexes, nil
}

func (s *fakeStore) SaveSource(ctx context.Context, jobID string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[jobID] = data
	return nil
}

func (s *fakeStore) GetSource(ctx context.Context, jobID string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.sources[jobID]
	if !ok {
		return nil, "", errors.New("source not found")
	}
	return data, "application/pdf", nil
}

func (s *fakeStore) itemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type fakeRasterizer struct {
	mu    sync.Mutex
	pages int
	calls int
	err   error
}

func (r *fakeRasterizer) Rasterize(ctx context.Context, filename string, data []byte, contentType string) ([]rasterize.Page, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	pages := make([]rasterize.Page, r.pages)
	for i := range pages {
		pages[i] = rasterize.Page{Data: []byte(fmt.Sprintf("page-%d", i)), ContentType: "image/jpeg"}
	}
	return pages, nil
}

type fakeExtractor struct {
	mu       sync.Mutex
	failPage int // 1-based, 0 = never fail
	hook     func(req extract.PageRequest)
	requests []extract.PageRequest
}

func (e *fakeExtractor) ExtractPage(ctx context.Context, req extract.PageRequest) ([]*models.Item, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()

	if e.hook != nil {
		e.hook(req)
	}
	if e.failPage == req.Page {
		return nil, &models.ExtractionError{Page: req.Page, Err: errors.New("model unavailable")}
	}
	return []*models.Item{
		{
			ID:    fmt.Sprintf("%s-p%d-item", req.JobID, req.Page),
			JobID: req.JobID,
			Page:  req.Page,
		},
	}, nil
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	jobs []string
}

func (q *fakeEnqueuer) EnqueueJob(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, jobID)
	return nil
}

type fakePurger struct {
	store      *fakeStore
	purgedJobs []string
}

func (p *fakePurger) PurgeJob(ctx context.Context, jobID string) error {
	p.purgedJobs = append(p.purgedJobs, jobID)
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	for id, it := range p.store.items {
		if it.JobID == jobID {
			delete(p.store.items, id)
		}
	}
	return nil
}

func (p *fakePurger) PurgePage(ctx context.Context, jobID string, page int) (int, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	count := 0
	for id, it := range p.store.items {
		if it.JobID == jobID && it.Page == page {
			delete(p.store.items, id)
			count++
		}
	}
	return count, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, templateID string) (*genai.Schema, string, error) {
	return &genai.Schema{Type: genai.TypeArray}, "extract rows", nil
}

type fixture struct {
	store     *fakeStore
	raster    *fakeRasterizer
	extractor *fakeExtractor
	queue     *fakeEnqueuer
	purger    *fakePurger
	orch      *Orchestrator
}

func newFixture(pages int) *fixture {
	st := newFakeStore()
	f := &fixture{
		store:     st,
		raster:    &fakeRasterizer{pages: pages},
		extractor: &fakeExtractor{},
		queue:     &fakeEnqueuer{},
		purger:    &fakePurger{store: st},
	}
	f.orch = NewOrchestrator(st, f.raster, f.extractor, f.queue, f.purger, fakeResolver{}, logger.NewTestLogger())
	return f
}

func (f *fixture) enqueue(t *testing.T) *models.Job {
	t.Helper()
	job, err := f.orch.Enqueue(context.Background(), "orders.pdf", []byte("%PDF"), "application/pdf", "")
	require.NoError(t, err)
	return job
}

func TestRunCompletesJob(t *testing.T) {
	f := newFixture(2)
	job := f.enqueue(t)
	assert.Equal(t, models.JobQueued, job.Status)
	assert.Equal(t, []string{job.ID}, f.queue.jobs)

	require.NoError(t, f.orch.Run(context.Background(), job.ID))

	final, err := f.store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, final.Status)
	assert.Equal(t, 2, final.TotalPages)
	assert.Equal(t, 2, final.ProcessedPages)
	assert.Empty(t, final.Error)
	assert.Equal(t, 2, f.store.itemCount())
}

func TestRunSurvivesPageFailure(t *testing.T) {
	f := newFixture(3)
	f.extractor.failPage = 2
	job := f.enqueue(t)

	require.NoError(t, f.orch.Run(context.Background(), job.ID))

	final, _ := f.store.GetJob(context.Background(), job.ID)
	assert.Equal(t, models.JobCompleted, final.Status)
	assert.Equal(t, 3, final.ProcessedPages)
	// Only the two successful pages produced items.
	assert.Equal(t, 2, f.store.itemCount())
}

func TestRunFailsJobOnRasterizationError(t *testing.T) {
	f := newFixture(0)
	f.raster.err = &models.RasterizationError{Filename: "orders.pdf", Err: errors.New("corrupt file")}
	job := f.enqueue(t)

	require.NoError(t, f.orch.Run(context.Background(), job.ID))

	final, _ := f.store.GetJob(context.Background(), job.ID)
	assert.Equal(t, models.JobError, final.Status)
	assert.Contains(t, final.Error, "corrupt file")
	assert.Zero(t, f.store.itemCount())
}

func TestRunReusesStoredPageImages(t *testing.T) {
	f := newFixture(2)
	job := f.enqueue(t)

	require.NoError(t, f.orch.Run(context.Background(), job.ID))
	assert.Equal(t, 1, f.raster.calls)

	// Second run finds the stored page images and skips rasterization.
	require.NoError(t, f.orch.Run(context.Background(), job.ID))
	assert.Equal(t, 1, f.raster.calls)
}

func TestRunDropsResultsForDeletedJob(t *testing.T) {
	f := newFixture(1)
	job := f.enqueue(t)

	// The job disappears while extraction is in flight.
	f.extractor.hook = func(req extract.PageRequest) {
		f.store.DeleteJob(context.Background(), job.ID)
	}

	require.NoError(t, f.orch.Run(context.Background(), job.ID))
	assert.Zero(t, f.store.itemCount())
}

func TestRunDropsResultsFromSupersededAttempt(t *testing.T) {
	f := newFixture(1)
	job := f.enqueue(t)

	// A retry lands mid-extraction and bumps the attempt counter.
	f.extractor.hook = func(req extract.PageRequest) {
		current, _ := f.store.GetJob(context.Background(), job.ID)
		if current.Attempt == job.Attempt {
			current.Attempt++
			f.store.SaveJob(context.Background(), current)
		}
	}

	require.NoError(t, f.orch.Run(context.Background(), job.ID))
	assert.Zero(t, f.store.itemCount())
}

func TestRunVanishedJobIsNoOp(t *testing.T) {
	f := newFixture(1)
	require.NoError(t, f.orch.Run(context.Background(), "never-existed"))
	assert.Zero(t, f.raster.calls)
}

func TestRetryResetsAndReenqueues(t *testing.T) {
	f := newFixture(2)
	job := f.enqueue(t)
	require.NoError(t, f.orch.Run(context.Background(), job.ID))
	require.Equal(t, 2, f.store.itemCount())

	retried, err := f.orch.Retry(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.JobQueued, retried.Status)
	assert.Equal(t, 0, retried.ProcessedPages)
	assert.Equal(t, job.Attempt+1, retried.Attempt)
	assert.Equal(t, []string{job.ID}, f.purger.purgedJobs)
	assert.Zero(t, f.store.itemCount())
	assert.Equal(t, []string{job.ID, job.ID}, f.queue.jobs)

	// The rerun reuses stored page images.
	require.NoError(t, f.orch.Run(context.Background(), job.ID))
	assert.Equal(t, 1, f.raster.calls)
	final, _ := f.store.GetJob(context.Background(), job.ID)
	assert.Equal(t, models.JobCompleted, final.Status)
}

func TestRetryUnknownJob(t *testing.T) {
	f := newFixture(1)
	_, err := f.orch.Retry(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(1)
	job := f.enqueue(t)
	require.NoError(t, f.orch.Run(context.Background(), job.ID))

	require.NoError(t, f.orch.Delete(context.Background(), job.ID))

	assert.Equal(t, []string{job.ID}, f.purger.purgedJobs)
	deleted, _ := f.store.GetJob(context.Background(), job.ID)
	assert.Nil(t, deleted)
}

func TestReprocessPageReplacesItems(t *testing.T) {
	f := newFixture(2)
	job := f.enqueue(t)
	require.NoError(t, f.orch.Run(context.Background(), job.ID))
	require.Equal(t, 2, f.store.itemCount())

	items, err := f.orch.ReprocessPage(context.Background(), job.ID, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Page)
	assert.Equal(t, 2, f.store.itemCount())

	// Job status untouched, only the progress message changes.
	final, _ := f.store.GetJob(context.Background(), job.ID)
	assert.Equal(t, models.JobCompleted, final.Status)
	assert.Contains(t, final.Progress, "reprocessed")
}

func TestReprocessPageMissingImage(t *testing.T) {
	f := newFixture(1)
	job := f.enqueue(t)
	require.NoError(t, f.orch.Run(context.Background(), job.ID))

	_, err := f.orch.ReprocessPage(context.Background(), job.ID, 7)
	var pageErr *models.PageNotFoundError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, 7, pageErr.Page)
}

func TestProgressIsMonotonic(t *testing.T) {
	f := newFixture(5)
	job := f.enqueue(t)

	require.NoError(t, f.orch.Run(context.Background(), job.ID))

	final, _ := f.store.GetJob(context.Background(), job.ID)
	assert.Equal(t, 5, final.ProcessedPages)
	assert.Equal(t, 5, final.TotalPages)
	assert.Len(t, f.extractor.requests, 5)
}
