package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/internal/template"
	"github.com/pickscan/pickscan/pkg/logger"
)

type TemplateHandler struct {
	service *template.Service
	logger  logger.Logger
}

func NewTemplateHandler(service *template.Service, log logger.Logger) *TemplateHandler {
	return &TemplateHandler{
		service: service,
		logger:  log,
	}
}

func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.service.List(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, "Failed to list templates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (h *TemplateHandler) Get(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		handleError(c, h.logger, "Failed to get template", err)
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Template not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TemplateHandler) Create(c *gin.Context) {
	var t models.Template
	if err := c.ShouldBindJSON(&t); err != nil {
		badRequest(c, h.logger, "Invalid template body", err)
		return
	}
	t.ID = ""

	saved, err := h.service.Save(c.Request.Context(), &t)
	if err != nil {
		handleError(c, h.logger, "Failed to create template", err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *TemplateHandler) Update(c *gin.Context) {
	var t models.Template
	if err := c.ShouldBindJSON(&t); err != nil {
		badRequest(c, h.logger, "Invalid template body", err)
		return
	}
	t.ID = c.Param("templateId")

	saved, err := h.service.Save(c.Request.Context(), &t)
	if err != nil {
		handleError(c, h.logger, "Failed to update template", err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *TemplateHandler) Delete(c *gin.Context) {
	templateID := c.Param("templateId")
	if err := h.service.Delete(c.Request.Context(), templateID); err != nil {
		handleError(c, h.logger, "Failed to delete template", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted", "templateId": templateID})
}

// Columns returns the flat display-column metadata derived from the
// template's field definitions.
func (h *TemplateHandler) Columns(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		handleError(c, h.logger, "Failed to get template", err)
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Template not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": template.Columns(t)})
}

// Export downloads one template as pretty-printed JSON.
func (h *TemplateHandler) Export(c *gin.Context) {
	templateID := c.Param("templateId")
	data, err := h.service.Export(c.Request.Context(), templateID)
	if err != nil {
		handleError(c, h.logger, "Failed to export template", err)
		return
	}

	filename := fmt.Sprintf("template_%s.json", templateID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/json", data)
}

// Import accepts an exported template, either as a raw JSON body or as a
// multipart file field.
func (h *TemplateHandler) Import(c *gin.Context) {
	data, err := h.importPayload(c)
	if err != nil {
		badRequest(c, h.logger, "Invalid import payload", err)
		return
	}

	t, err := h.service.Import(c.Request.Context(), data)
	if err != nil {
		handleError(c, h.logger, "Failed to import template", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TemplateHandler) importPayload(c *gin.Context) ([]byte, error) {
	if file, _, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(c.Request.Body)
}
