package models

import (
	"time"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobConverting JobStatus = "converting"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// Terminal reports whether the status accepts no further pipeline transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// Job is the processing unit for one uploaded source document.
type Job struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	MimeType       string    `json:"mimeType"`
	Status         JobStatus `json:"status"`
	TotalPages     int       `json:"totalPages"`
	ProcessedPages int       `json:"processedPages"`
	Progress       string    `json:"progress"`
	Error          string    `json:"error,omitempty"`
	TemplateID     string    `json:"templateId,omitempty"`
	// Attempt increments on every retry; in-flight page results carrying a
	// stale attempt are dropped instead of being written back.
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewJob creates a job in its initial state.
func NewJob(id, filename, mimeType, templateID string) *Job {
	return &Job{
		ID:         id,
		Filename:   filename,
		MimeType:   mimeType,
		Status:     JobQueued,
		Progress:   "queued",
		TemplateID: templateID,
		CreatedAt:  time.Now(),
	}
}
