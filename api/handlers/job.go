package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/internal/validate"
	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/store"
)

// JobService drives the job lifecycle; satisfied by the pipeline
// orchestrator.
type JobService interface {
	Enqueue(ctx context.Context, filename string, data []byte, contentType, templateID string) (*models.Job, error)
	Retry(ctx context.Context, jobID string) (*models.Job, error)
	Delete(ctx context.Context, jobID string) error
	ReprocessPage(ctx context.Context, jobID string, page int) ([]*models.Item, error)
}

type JobHandler struct {
	orchestrator JobService
	gateway      *store.Gateway
	validator    *validate.UploadValidator
	logger       logger.Logger
}

// JobResponse is the wire form of one job.
type JobResponse struct {
	ID             string `json:"id"`
	Filename       string `json:"filename"`
	Status         string `json:"status"`
	TotalPages     int    `json:"totalPages"`
	ProcessedPages int    `json:"processedPages"`
	Progress       string `json:"progress"`
	Error          string `json:"error,omitempty"`
	TemplateID     string `json:"templateId,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

func NewJobHandler(orchestrator JobService, gateway *store.Gateway, validator *validate.UploadValidator, log logger.Logger) *JobHandler {
	return &JobHandler{
		orchestrator: orchestrator,
		gateway:      gateway,
		validator:    validator,
		logger:       log,
	}
}

// Upload accepts one document and enqueues a digitization job for it.
// An optional templateId form field selects dynamic-schema extraction.
func (h *JobHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, h.logger, "Invalid file upload", err)
		return
	}
	defer file.Close()

	job, result, err := h.enqueueUpload(c, header, c.PostForm("templateId"))
	if err != nil {
		handleError(c, h.logger, "Failed to enqueue job", err)
		return
	}
	if result != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"validation": result})
		return
	}

	c.JSON(http.StatusAccepted, jobResponse(job))
}

// UploadBatch accepts multiple documents; each becomes its own job. Files
// failing validation are reported per file without blocking the rest.
func (h *JobHandler) UploadBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, h.logger, "Invalid form data", err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		badRequest(c, h.logger, "No files provided", nil)
		return
	}
	templateID := c.PostForm("templateId")

	results, err := h.validator.ValidateFiles(files)
	if err != nil {
		handleError(c, h.logger, "Failed to validate files", err)
		return
	}

	jobs := make([]JobResponse, 0, len(files))
	rejected := make([]*validate.Result, 0)
	for i, result := range results {
		if !result.IsValid {
			rejected = append(rejected, result)
			continue
		}
		job, err := h.enqueueValidated(c.Request.Context(), files[i], result.MimeType, templateID)
		if err != nil {
			handleError(c, h.logger, fmt.Sprintf("Failed to enqueue %s", files[i].Filename), err)
			return
		}
		jobs = append(jobs, jobResponse(job))
	}

	c.JSON(http.StatusAccepted, gin.H{
		"jobs":     jobs,
		"rejected": rejected,
	})
}

// enqueueUpload validates one upload and enqueues it. A non-nil Result
// means validation rejected the file.
func (h *JobHandler) enqueueUpload(c *gin.Context, header *multipart.FileHeader, templateID string) (*models.Job, *validate.Result, error) {
	result, err := h.validator.ValidateFile(header)
	if err != nil {
		return nil, nil, err
	}
	if !result.IsValid {
		return nil, result, nil
	}

	job, err := h.enqueueValidated(c.Request.Context(), header, result.MimeType, templateID)
	if err != nil {
		return nil, nil, err
	}
	return job, nil, nil
}

// enqueueValidated reads an already-validated upload and hands it to the
// pipeline.
func (h *JobHandler) enqueueValidated(ctx context.Context, header *multipart.FileHeader, mimeType, templateID string) (*models.Job, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return h.orchestrator.Enqueue(ctx, header.Filename, data, mimeType, templateID)
}

func (h *JobHandler) List(c *gin.Context) {
	jobs, err := h.gateway.ListJobs(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, "Failed to list jobs", err)
		return
	}
	responses := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = jobResponse(job)
	}
	c.JSON(http.StatusOK, gin.H{"jobs": responses})
}

func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.gateway.GetJob(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		handleError(c, h.logger, "Failed to get job", err)
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Job not found"})
		return
	}
	c.JSON(http.StatusOK, jobResponse(job))
}

func (h *JobHandler) Delete(c *gin.Context) {
	jobID := c.Param("jobId")
	if err := h.orchestrator.Delete(c.Request.Context(), jobID); err != nil {
		handleError(c, h.logger, "Failed to delete job", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted", "jobId": jobID})
}

// Retry resets a finished or failed job and re-runs the pipeline. Stored
// page images are reused, so the document is not rasterized again.
func (h *JobHandler) Retry(c *gin.Context) {
	job, err := h.orchestrator.Retry(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		handleError(c, h.logger, "Failed to retry job", err)
		return
	}
	c.JSON(http.StatusAccepted, jobResponse(job))
}

// ReprocessPage re-extracts one page in place and returns the fresh items.
func (h *JobHandler) ReprocessPage(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		badRequest(c, h.logger, "Invalid page number", err)
		return
	}

	items, err := h.orchestrator.ReprocessPage(c.Request.Context(), c.Param("jobId"), page)
	if err != nil {
		handleError(c, h.logger, "Failed to reprocess page", err)
		return
	}
	h.gateway.AttachHandles(c.Request.Context(), items)
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func jobResponse(job *models.Job) JobResponse {
	return JobResponse{
		ID:             job.ID,
		Filename:       job.Filename,
		Status:         string(job.Status),
		TotalPages:     job.TotalPages,
		ProcessedPages: job.ProcessedPages,
		Progress:       job.Progress,
		Error:          job.Error,
		TemplateID:     job.TemplateID,
		CreatedAt:      job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
