package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"google.golang.org/genai"

	"github.com/pickscan/pickscan/config"
	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/pkg/logger"
)

// PageRequest is one page-image extraction call.
type PageRequest struct {
	JobID       string
	Page        int // 1-based
	SourceFile  string
	Image       []byte
	ContentType string

	// TemplateID, Schema and Instruction select dynamic mode. When all are
	// zero the built-in picking-list schema applies.
	TemplateID  string
	Schema      *genai.Schema
	Instruction string
}

// Client wraps the vision extraction call behind a global FIFO admission
// gate. The ceiling is shared across all jobs and pages; calls beyond it
// queue in arrival order and are released as in-flight calls complete.
type Client struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
	maxRetries      int
	timeout         time.Duration
	gate            *semaphore.Weighted
	logger          logger.Logger
}

func NewClient(ctx context.Context, cfg *config.GeminiConfig, maxConcurrent int, log logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the extraction client")
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	return &Client{
		client:          gc,
		model:           cfg.Model,
		maxOutputTokens: int32(cfg.MaxOutputTokens),
		maxRetries:      cfg.MaxRetries,
		timeout:         cfg.Timeout,
		gate:            semaphore.NewWeighted(int64(maxConcurrent)),
		logger:          log,
	}, nil
}

// ExtractPage runs one page through the model and maps the response into
// internal items. Any failure (transport, malformed response, schema
// violation) returns an ExtractionError carrying the page number; the
// caller decides whether that fails the page or the job.
func (c *Client) ExtractPage(ctx context.Context, req PageRequest) ([]*models.Item, error) {
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return nil, &models.ExtractionError{Page: req.Page, Err: err}
	}
	defer c.gate.Release(1)

	schema := req.Schema
	instruction := req.Instruction
	if schema == nil {
		schema = FixedSchema()
	}
	if instruction == "" {
		instruction = FixedInstruction
	}

	text, err := c.generate(ctx, req.Image, req.ContentType, schema, instruction)
	if err != nil {
		return nil, &models.ExtractionError{Page: req.Page, Err: err}
	}

	payload := stripResponse(text)
	if payload == "" {
		return nil, &models.ExtractionError{
			Page: req.Page,
			Err:  fmt.Errorf("no JSON payload in model response"),
		}
	}

	if req.TemplateID != "" {
		var rows []map[string]any
		if err := json.Unmarshal([]byte(payload), &rows); err != nil {
			return nil, &models.ExtractionError{Page: req.Page, Err: fmt.Errorf("malformed response: %w", err)}
		}
		items := make([]*models.Item, 0, len(rows))
		for _, row := range rows {
			items = append(items, mapTemplateRow(row, req.JobID, req.TemplateID, req.SourceFile, req.Page))
		}
		return items, nil
	}

	var rows []fixedRow
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return nil, &models.ExtractionError{Page: req.Page, Err: fmt.Errorf("malformed response: %w", err)}
	}
	items := make([]*models.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapFixedRow(row, req.JobID, req.SourceFile, req.Page))
	}

	c.logger.Info("Extracted page",
		logger.String("jobId", req.JobID),
		logger.Int("page", req.Page),
		logger.Int("rows", len(items)),
	)
	return items, nil
}

// generate performs the model call with deterministic output settings and
// retry with capped exponential backoff.
func (c *Client) generate(ctx context.Context, image []byte, contentType string, schema *genai.Schema, instruction string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				genai.NewPartFromBytes(image, contentType),
				genai.NewPartFromText(instruction),
			},
		},
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0)),
		MaxOutputTokens:  c.maxOutputTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	const initialBackoff = 1 * time.Second
	const maxBackoff = 10 * time.Second

	var resp *genai.GenerateContentResponse
	var apiErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, apiErr = c.client.Models.GenerateContent(callCtx, c.model, contents, cfg)
		if apiErr == nil {
			break
		}
		if attempt == c.maxRetries {
			break
		}

		backoff := initialBackoff << uint(attempt)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		select {
		case <-callCtx.Done():
			return "", callCtx.Err()
		case <-time.After(backoff):
		}
	}
	if apiErr != nil {
		return "", fmt.Errorf("model call failed after %d retries: %w", c.maxRetries, apiErr)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty model response")
	}
	return text, nil
}
