package validate

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/pickscan/pickscan/pkg/logger"
)

// UploadValidator rejects uploads before any bytes reach storage: size cap,
// extension and sniffed-MIME allow-list, and a page-count ceiling for PDFs.
type UploadValidator struct {
	logger       logger.Logger
	maxFileSize  int64
	maxPageCount int
	allowedTypes map[string][]string // extension -> acceptable MIME types
}

// ValidationError describes one rejection reason.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Result reports the outcome for one file.
type Result struct {
	IsValid  bool              `json:"isValid"`
	Filename string            `json:"filename"`
	Size     int64             `json:"size"`
	MimeType string            `json:"mimeType"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

func NewUploadValidator(log logger.Logger, maxFileSize int64, maxPageCount int) *UploadValidator {
	return &UploadValidator{
		logger:       log,
		maxFileSize:  maxFileSize,
		maxPageCount: maxPageCount,
		allowedTypes: map[string][]string{
			".pdf":  {"application/pdf"},
			".jpg":  {"image/jpeg"},
			".jpeg": {"image/jpeg"},
			".png":  {"image/png"},
			".webp": {"image/webp"},
		},
	}
}

// ValidateFile checks one multipart upload. A non-nil Result with
// IsValid == false carries every rejection reason found, not just the first.
func (v *UploadValidator) ValidateFile(file *multipart.FileHeader) (*Result, error) {
	result := &Result{
		IsValid:  true,
		Filename: file.Filename,
		Size:     file.Size,
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))

	if file.Size > v.maxFileSize {
		result.addError(ValidationError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("file size %d exceeds limit of %d bytes", file.Size, v.maxFileSize),
			Field:   "size",
		})
	}

	allowedMimes, ok := v.allowedTypes[ext]
	if !ok {
		result.addError(ValidationError{
			Code:    "INVALID_FILE_TYPE",
			Message: fmt.Sprintf("file type %q is not allowed", ext),
			Field:   "extension",
		})
		return result, nil
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	mimeType, err := detectMimeType(f)
	if err != nil {
		return nil, fmt.Errorf("failed to detect mime type: %w", err)
	}
	result.MimeType = mimeType

	if !mimeAllowed(allowedMimes, mimeType) {
		result.addError(ValidationError{
			Code:    "INVALID_MIME_TYPE",
			Message: fmt.Sprintf("content type %s does not match extension %s", mimeType, ext),
			Field:   "mimeType",
		})
	}

	if ext == ".pdf" && result.IsValid {
		if verr := v.validatePDF(f, file.Size); verr != nil {
			result.addError(*verr)
		}
	}

	if !result.IsValid {
		v.logger.Warn("Upload rejected",
			logger.String("filename", file.Filename),
			logger.Int("errors", len(result.Errors)),
		)
	}
	return result, nil
}

// ValidateFiles checks a batch concurrently; every file gets a result even
// when others fail validation.
func (v *UploadValidator) ValidateFiles(files []*multipart.FileHeader) ([]*Result, error) {
	results := make([]*Result, len(files))
	var g errgroup.Group
	for i, file := range files {
		g.Go(func() error {
			result, err := v.ValidateFile(file)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Result) addError(e ValidationError) {
	r.IsValid = false
	r.Errors = append(r.Errors, e)
}

// detectMimeType sniffs the leading bytes and rewinds.
func detectMimeType(f multipart.File) (string, error) {
	buffer := make([]byte, 512)
	n, err := f.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	mimeType := http.DetectContentType(buffer[:n])
	// DetectContentType appends a charset suffix for text-like content.
	if base, _, found := strings.Cut(mimeType, ";"); found {
		mimeType = base
	}
	return mimeType, nil
}

func mimeAllowed(allowed []string, mimeType string) bool {
	for _, m := range allowed {
		if m == mimeType {
			return true
		}
	}
	return false
}

// validatePDF enforces the page-count ceiling and rejects files the parser
// cannot open at all.
func (v *UploadValidator) validatePDF(f multipart.File, size int64) *ValidationError {
	defer f.Seek(0, io.SeekStart)

	reader, err := pdf.NewReader(f, size)
	if err != nil {
		return &ValidationError{
			Code:    "INVALID_PDF",
			Message: "file could not be parsed as a PDF",
			Field:   "content",
		}
	}
	if pages := reader.NumPage(); pages > v.maxPageCount {
		return &ValidationError{
			Code:    "TOO_MANY_PAGES",
			Message: fmt.Sprintf("PDF has %d pages, limit is %d", pages, v.maxPageCount),
			Field:   "pages",
		}
	}
	return nil
}
