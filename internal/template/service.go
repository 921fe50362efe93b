package template

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/store"
)

// Service owns template configuration: CRUD plus JSON export/import.
type Service struct {
	gateway  *store.Gateway
	validate *validator.Validate
	logger   logger.Logger
}

func NewService(gateway *store.Gateway, log logger.Logger) *Service {
	return &Service{
		gateway:  gateway,
		validate: validator.New(),
		logger:   log,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Template, error) {
	return s.gateway.GetTemplate(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*models.Template, error) {
	return s.gateway.ListTemplates(ctx)
}

// Save validates and persists a template, assigning an id for new ones and
// bumping the version on updates.
func (s *Service) Save(ctx context.Context, t *models.Template) (*models.Template, error) {
	now := time.Now()
	if t.ID == "" {
		t.ID = uuid.New().String()
		t.Version = 1
		t.CreatedAt = now
	} else {
		existing, err := s.gateway.GetTemplate(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			t.Version = existing.Version + 1
			t.CreatedAt = existing.CreatedAt
		} else if t.Version == 0 {
			t.Version = 1
			t.CreatedAt = now
		}
	}
	t.UpdatedAt = now

	if err := s.validate.Struct(t); err != nil {
		return nil, &models.TemplateValidationError{Reason: "field validation failed", Err: err}
	}
	if err := s.gateway.SaveTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.gateway.DeleteTemplate(ctx, id)
}

// Resolve turns a template id into the extraction schema and instruction
// derived from its field definitions.
func (s *Service) Resolve(ctx context.Context, id string) (*genai.Schema, string, error) {
	t, err := s.gateway.GetTemplate(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if t == nil {
		return nil, "", &models.TemplateValidationError{Reason: "template " + id + " not found"}
	}
	return BuildSchema(t), BuildPrompt(t), nil
}

// Export serializes a template to pretty-printed JSON.
func (s *Service) Export(ctx context.Context, id string) ([]byte, error) {
	t, err := s.gateway.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &models.TemplateValidationError{Reason: "template not found"}
	}
	return json.MarshalIndent(t, "", "  ")
}

// Import parses and validates an exported template. Malformed input is
// rejected before any storage write. On id collision with an existing
// template both the id and the name are mutated so the import never
// silently overwrites.
func (s *Service) Import(ctx context.Context, data []byte) (*models.Template, error) {
	var t models.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &models.TemplateValidationError{Reason: "not valid JSON", Err: err}
	}
	if t.ID == "" || t.Name == "" || len(t.Fields) == 0 {
		return nil, &models.TemplateValidationError{Reason: "id, name and a non-empty fields list are required"}
	}
	if err := s.validate.Struct(&t); err != nil {
		return nil, &models.TemplateValidationError{Reason: "field validation failed", Err: err}
	}

	existing, err := s.gateway.GetTemplate(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		t.ID = uuid.New().String()
		t.Name = t.Name + " (imported)"
		s.logger.Info("Template id collision on import, renamed",
			logger.String("templateId", t.ID),
			logger.String("name", t.Name),
		)
	}

	now := time.Now()
	if t.Version == 0 {
		t.Version = 1
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := s.gateway.SaveTemplate(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
