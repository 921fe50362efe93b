package models

import (
	"fmt"
)

// RasterizationError: the source document could not be decoded into pages.
// Always job-fatal; no partial page list is produced.
type RasterizationError struct {
	Filename string
	Err      error
}

func (e *RasterizationError) Error() string {
	return fmt.Sprintf("rasterization failed for %s: %v", e.Filename, e.Err)
}

func (e *RasterizationError) Unwrap() error { return e.Err }

// ExtractionError: one page's extraction call failed. Page-local during
// fan-out; job-fatal only when it occurs in the conversion phase.
type ExtractionError struct {
	Page int // 1-based
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for page %d: %v", e.Page, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PageNotFoundError: a requested page image is absent from storage.
// Surfaces as a user-visible message and never alters job status.
type PageNotFoundError struct {
	JobID string
	Page  int // 1-based
}

func (e *PageNotFoundError) Error() string {
	return fmt.Sprintf("no stored image for job %s page %d", e.JobID, e.Page)
}

// TemplateValidationError: a malformed or incompatible imported template,
// rejected before any storage write.
type TemplateValidationError struct {
	Reason string
	Err    error
}

func (e *TemplateValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid template: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid template: %s", e.Reason)
}

func (e *TemplateValidationError) Unwrap() error { return e.Err }

// PersistenceError: the storage layer is unavailable. Restore paths degrade
// to an empty working set instead of failing startup.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
