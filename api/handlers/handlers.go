package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/internal/pipeline"
	"github.com/pickscan/pickscan/internal/reconcile"
	"github.com/pickscan/pickscan/internal/template"
	"github.com/pickscan/pickscan/internal/validate"
	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/store"
)

type Handlers struct {
	Job      *JobHandler
	Item     *ItemHandler
	Template *TemplateHandler
	Export   *ExportHandler
	Image    *ImageHandler
	Health   *HealthHandler
}

func NewHandlers(
	orchestrator *pipeline.Orchestrator,
	gateway *store.Gateway,
	items *reconcile.Service,
	templates *template.Service,
	validator *validate.UploadValidator,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Job:      NewJobHandler(orchestrator, gateway, validator, log),
		Item:     NewItemHandler(items, gateway, log),
		Template: NewTemplateHandler(templates, log),
		Export:   NewExportHandler(gateway, templates, log),
		Image:    NewImageHandler(gateway, log),
		Health:   NewHealthHandler(gateway, log),
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

// handleError logs and writes the uniform error body, translating typed
// domain errors to status codes.
func handleError(c *gin.Context, log logger.Logger, message string, err error) {
	status := http.StatusInternalServerError

	var pageErr *models.PageNotFoundError
	var tmplErr *models.TemplateValidationError
	switch {
	case errors.As(err, &pageErr):
		status = http.StatusNotFound
	case errors.As(err, &tmplErr):
		status = http.StatusBadRequest
	}

	log.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(status, response)
}

func badRequest(c *gin.Context, log logger.Logger, message string, err error) {
	log.Warn(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)
	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(http.StatusBadRequest, response)
}
