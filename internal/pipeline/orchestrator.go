package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/pickscan/pickscan/internal/extract"
	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/internal/rasterize"
	"github.com/pickscan/pickscan/pkg/logger"
)

// Store is the slice of the persistence gateway the orchestrator drives.
// Every state mutation goes through it immediately; in-memory and durable
// state never diverge for longer than one mutation.
type Store interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	DeleteJob(ctx context.Context, id string) error
	SaveItems(ctx context.Context, items []*models.Item) error
	SavePageImage(ctx context.Context, jobID string, pageIndex int, data []byte, contentType string) error
	GetPageImage(ctx context.Context, jobID string, pageIndex int) ([]byte, string, error)
	PageIndexes(ctx context.Context, jobID string) ([]int, error)
	SaveSource(ctx context.Context, jobID string, data []byte, contentType string) error
	GetSource(ctx context.Context, jobID string) ([]byte, string, error)
}

// Rasterizer converts one source document into ordered page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, filename string, data []byte, contentType string) ([]rasterize.Page, error)
}

// Extractor runs one page through the vision model. Concurrency is bounded
// inside the extractor, not here.
type Extractor interface {
	ExtractPage(ctx context.Context, req extract.PageRequest) ([]*models.Item, error)
}

// Enqueuer hands a job id to the worker transport.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobID string) error
}

// Purger owns item removal with handle release; satisfied by
// reconcile.Service.
type Purger interface {
	PurgeJob(ctx context.Context, jobID string) error
	PurgePage(ctx context.Context, jobID string, page int) (int, error)
}

// TemplateResolver turns a template id into an extraction schema and
// instruction. Fixed-schema jobs never consult it.
type TemplateResolver interface {
	Resolve(ctx context.Context, templateID string) (*genai.Schema, string, error)
}

// Orchestrator owns the job state machine:
//
//	queued → converting → processing → completed
//
// with error reachable from any non-terminal state, and completed/error
// resettable to queued via retry. One Run call drives one job end to end.
type Orchestrator struct {
	store     Store
	raster    Rasterizer
	extractor Extractor
	queue     Enqueuer
	purger    Purger
	templates TemplateResolver
	logger    logger.Logger

	// progressMu serializes the read-modify-write of job progress counters
	// across concurrent page completions.
	progressMu sync.Mutex
}

func NewOrchestrator(
	st Store,
	raster Rasterizer,
	extractor Extractor,
	queue Enqueuer,
	purger Purger,
	templates TemplateResolver,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:     st,
		raster:    raster,
		extractor: extractor,
		queue:     queue,
		purger:    purger,
		templates: templates,
		logger:    log,
	}
}

// Enqueue creates one job for an uploaded document, persists the source
// bytes for crash-safe reprocessing, and hands the job to the worker.
// Returns without waiting for processing to start.
func (o *Orchestrator) Enqueue(ctx context.Context, filename string, data []byte, contentType, templateID string) (*models.Job, error) {
	job := models.NewJob(uuid.New().String(), filename, contentType, templateID)

	if err := o.store.SaveSource(ctx, job.ID, data, contentType); err != nil {
		return nil, err
	}
	if err := o.store.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	if err := o.queue.EnqueueJob(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	o.logger.Info("Job enqueued",
		logger.String("jobId", job.ID),
		logger.String("filename", filename),
	)
	return job, nil
}

// Run drives one job through the full pipeline. Conversion-phase failures
// terminalize the job as error; per-page extraction failures are swallowed
// at the page boundary and only logged. Run itself returns an error only
// for persistence problems that leave the job record unusable.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		// Deleted between enqueue and pickup.
		o.logger.Warn("Job vanished before processing", logger.String("jobId", jobID))
		return nil
	}
	attempt := job.Attempt

	job.Status = models.JobConverting
	job.Progress = "converting"
	job.Error = ""
	if err := o.store.SaveJob(ctx, job); err != nil {
		return err
	}

	pageIndexes, err := o.preparePages(ctx, job)
	if err != nil {
		o.failJob(ctx, job, err)
		return nil
	}

	job.Status = models.JobProcessing
	job.TotalPages = len(pageIndexes)
	job.ProcessedPages = 0
	job.Progress = fmt.Sprintf("processing 0/%d", job.TotalPages)
	if err := o.store.SaveJob(ctx, job); err != nil {
		return err
	}

	schema, instruction, err := o.resolveTemplate(ctx, job.TemplateID)
	if err != nil {
		o.failJob(ctx, job, err)
		return nil
	}

	// Fan out every page; the extractor's admission gate bounds actual
	// concurrency globally. Each settlement — success or failure —
	// advances the counter by exactly one.
	var wg sync.WaitGroup
	for _, pageIndex := range pageIndexes {
		wg.Add(1)
		go func(pageIndex int) {
			defer wg.Done()
			o.processPage(ctx, job, attempt, pageIndex, schema, instruction)
		}(pageIndex)
	}
	wg.Wait()

	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	cur, err := o.store.GetJob(ctx, jobID)
	if err != nil || cur == nil || cur.Attempt != attempt {
		return err
	}
	cur.Status = models.JobCompleted
	cur.ProcessedPages = cur.TotalPages
	cur.Progress = "completed"
	if err := o.store.SaveJob(ctx, cur); err != nil {
		return err
	}

	o.logger.Info("Job completed",
		logger.String("jobId", jobID),
		logger.Int("pages", cur.TotalPages),
	)
	return nil
}

// preparePages returns the page index list for the job. When page images
// already exist for this job id (retry after reload, worker restart
// mid-job) they are reused unchanged and rasterization is skipped;
// otherwise the stored source is rasterized and every page persisted.
func (o *Orchestrator) preparePages(ctx context.Context, job *models.Job) ([]int, error) {
	existing, err := o.store.PageIndexes(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		o.logger.Info("Reusing stored page images",
			logger.String("jobId", job.ID),
			logger.Int("pages", len(existing)),
		)
		return existing, nil
	}

	data, contentType, err := o.store.GetSource(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	pages, err := o.raster.Rasterize(ctx, job.Filename, data, contentType)
	if err != nil {
		return nil, err
	}

	indexes := make([]int, len(pages))
	for i, page := range pages {
		if err := o.store.SavePageImage(ctx, job.ID, i, page.Data, page.ContentType); err != nil {
			return nil, err
		}
		indexes[i] = i
	}
	return indexes, nil
}

// processPage extracts one page and settles its completion. Extraction
// failure is page-local: logged, never propagated, progress still advances.
// Results are dropped when the job was deleted or retried while the call
// was in flight.
func (o *Orchestrator) processPage(ctx context.Context, job *models.Job, attempt, pageIndex int, schema *genai.Schema, instruction string) {
	page := pageIndex + 1

	items, err := o.extractPage(ctx, job, page, pageIndex, schema, instruction)
	if err != nil {
		o.logger.Error("Page extraction failed",
			logger.String("jobId", job.ID),
			logger.Int("page", page),
			logger.Error(err),
		)
	}

	o.progressMu.Lock()
	defer o.progressMu.Unlock()

	cur, gerr := o.store.GetJob(ctx, job.ID)
	if gerr != nil || cur == nil || cur.Attempt != attempt {
		o.logger.Warn("Dropping late page result",
			logger.String("jobId", job.ID),
			logger.Int("page", page),
		)
		return
	}

	if len(items) > 0 {
		if serr := o.store.SaveItems(ctx, items); serr != nil {
			o.logger.Error("Failed to persist extracted items",
				logger.String("jobId", job.ID),
				logger.Int("page", page),
				logger.Error(serr),
			)
		}
	}

	cur.ProcessedPages++
	cur.Progress = fmt.Sprintf("processing %d/%d", cur.ProcessedPages, cur.TotalPages)
	if serr := o.store.SaveJob(ctx, cur); serr != nil {
		o.logger.Error("Failed to persist progress",
			logger.String("jobId", job.ID),
			logger.Error(serr),
		)
	}
}

func (o *Orchestrator) extractPage(ctx context.Context, job *models.Job, page, pageIndex int, schema *genai.Schema, instruction string) ([]*models.Item, error) {
	image, contentType, err := o.store.GetPageImage(ctx, job.ID, pageIndex)
	if err != nil {
		return nil, err
	}
	return o.extractor.ExtractPage(ctx, extract.PageRequest{
		JobID:       job.ID,
		Page:        page,
		SourceFile:  job.Filename,
		Image:       image,
		ContentType: contentType,
		TemplateID:  job.TemplateID,
		Schema:      schema,
		Instruction: instruction,
	})
}

// Retry purges the job's items, resets it to queued and re-runs the full
// pipeline. Stored page images survive, so the resume path reuses them
// instead of re-rasterizing. The attempt bump invalidates any in-flight
// page results from the previous run.
func (o *Orchestrator) Retry(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}

	if err := o.purger.PurgeJob(ctx, jobID); err != nil {
		return nil, err
	}

	job.Status = models.JobQueued
	job.ProcessedPages = 0
	job.Progress = "queued"
	job.Error = ""
	job.Attempt++
	if err := o.store.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	if err := o.queue.EnqueueJob(ctx, jobID); err != nil {
		return nil, fmt.Errorf("failed to enqueue retry: %w", err)
	}

	o.logger.Info("Job retried",
		logger.String("jobId", jobID),
		logger.Int("attempt", job.Attempt),
	)
	return job, nil
}

// Delete removes the job with cascading deletion of its items, page images
// and source document. In-flight page results are dropped by the existence
// check in processPage rather than cancelled.
func (o *Orchestrator) Delete(ctx context.Context, jobID string) error {
	if err := o.purger.PurgeJob(ctx, jobID); err != nil {
		return err
	}
	if err := o.store.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	o.logger.Info("Job deleted", logger.String("jobId", jobID))
	return nil
}

// ReprocessPage re-runs extraction for a single page, independent of job
// status. Items for that page are purged, the stored image is reused
// (PageNotFoundError when absent), fresh items are appended, and only the
// progress message changes on the job.
func (o *Orchestrator) ReprocessPage(ctx context.Context, jobID string, page int) ([]*models.Item, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}

	pageIndex := page - 1
	image, contentType, err := o.store.GetPageImage(ctx, jobID, pageIndex)
	if err != nil {
		return nil, err
	}

	if _, err := o.purger.PurgePage(ctx, jobID, page); err != nil {
		return nil, err
	}

	schema, instruction, err := o.resolveTemplate(ctx, job.TemplateID)
	if err != nil {
		return nil, err
	}

	items, err := o.extractor.ExtractPage(ctx, extract.PageRequest{
		JobID:       jobID,
		Page:        page,
		SourceFile:  job.Filename,
		Image:       image,
		ContentType: contentType,
		TemplateID:  job.TemplateID,
		Schema:      schema,
		Instruction: instruction,
	})
	if err != nil {
		return nil, err
	}
	if err := o.store.SaveItems(ctx, items); err != nil {
		return nil, err
	}

	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	cur, err := o.store.GetJob(ctx, jobID)
	if err != nil || cur == nil {
		return items, err
	}
	cur.Progress = fmt.Sprintf("page %d reprocessed", page)
	if err := o.store.SaveJob(ctx, cur); err != nil {
		return items, err
	}
	return items, nil
}

func (o *Orchestrator) resolveTemplate(ctx context.Context, templateID string) (*genai.Schema, string, error) {
	if templateID == "" {
		return nil, "", nil
	}
	if o.templates == nil {
		return nil, "", fmt.Errorf("job references template %s but no resolver is configured", templateID)
	}
	return o.templates.Resolve(ctx, templateID)
}

// failJob terminalizes the job. Pages already completed are not rolled back.
func (o *Orchestrator) failJob(ctx context.Context, job *models.Job, cause error) {
	o.logger.Error("Job failed",
		logger.String("jobId", job.ID),
		logger.Error(cause),
	)
	job.Status = models.JobError
	job.Error = cause.Error()
	job.Progress = "error"
	if err := o.store.SaveJob(ctx, job); err != nil {
		o.logger.Error("Failed to persist job failure",
			logger.String("jobId", job.ID),
			logger.Error(err),
		)
	}
}
