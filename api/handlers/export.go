package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pickscan/pickscan/internal/export"
	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/internal/template"
	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	gateway   *store.Gateway
	templates *template.Service
	logger    logger.Logger
}

func NewExportHandler(gateway *store.Gateway, templates *template.Service, log logger.Logger) *ExportHandler {
	return &ExportHandler{
		gateway:   gateway,
		templates: templates,
		logger:    log,
	}
}

// CSV downloads the item working set as CSV, optionally scoped to one job.
// Fixed-schema items use the picking-list layout; a templateId query
// switches to that template's column layout.
func (h *ExportHandler) CSV(c *gin.Context) {
	items, t, err := h.collect(c)
	if err != nil {
		handleError(c, h.logger, "Failed to collect items for export", err)
		return
	}

	var data []byte
	if t != nil {
		data, err = export.TemplateCSV(t, items)
	} else {
		data, err = export.FixedCSV(items)
	}
	if err != nil {
		handleError(c, h.logger, "Failed to build CSV", err)
		return
	}

	filename := export.Filename("picking_list", "csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// XLSX downloads the same layouts as a spreadsheet.
func (h *ExportHandler) XLSX(c *gin.Context) {
	items, t, err := h.collect(c)
	if err != nil {
		handleError(c, h.logger, "Failed to collect items for export", err)
		return
	}

	var data []byte
	if t != nil {
		data, err = export.TemplateXLSX(t, items)
	} else {
		data, err = export.FixedXLSX(items)
	}
	if err != nil {
		handleError(c, h.logger, "Failed to build spreadsheet", err)
		return
	}

	filename := export.Filename("picking_list", "xlsx")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// collect resolves the export scope: items (all or one job) and the
// template when dynamic layout is requested. Template-mode exports drop
// items belonging to other templates.
func (h *ExportHandler) collect(c *gin.Context) ([]*models.Item, *models.Template, error) {
	ctx := c.Request.Context()

	var items []*models.Item
	var err error
	if jobID := c.Query("jobId"); jobID != "" {
		items, err = h.gateway.ListItemsByJob(ctx, jobID)
	} else {
		items, err = h.gateway.ListItems(ctx)
	}
	if err != nil {
		return nil, nil, err
	}

	templateID := c.Query("templateId")
	if templateID == "" {
		fixed := make([]*models.Item, 0, len(items))
		for _, it := range items {
			if it.TemplateID == "" {
				fixed = append(fixed, it)
			}
		}
		return fixed, nil, nil
	}

	t, err := h.templates.Get(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	if t == nil {
		return nil, nil, &models.TemplateValidationError{Reason: "template " + templateID + " not found"}
	}
	scoped := make([]*models.Item, 0, len(items))
	for _, it := range items {
		if it.TemplateID == templateID {
			scoped = append(scoped, it)
		}
	}
	return scoped, t, nil
}
