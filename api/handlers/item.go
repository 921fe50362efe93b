package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/internal/reconcile"
	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/store"
)

type ItemHandler struct {
	service *reconcile.Service
	gateway *store.Gateway
	logger  logger.Logger
}

func NewItemHandler(service *reconcile.Service, gateway *store.Gateway, log logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: service,
		gateway: gateway,
		logger:  log,
	}
}

// List returns the item working set, optionally filtered to one job, with
// live image handles attached for every item whose page image is stored.
func (h *ItemHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var items []*models.Item
	var err error
	if jobID := c.Query("jobId"); jobID != "" {
		items, err = h.gateway.ListItemsByJob(ctx, jobID)
	} else {
		items, err = h.gateway.ListItems(ctx)
	}
	if err != nil {
		handleError(c, h.logger, "Failed to list items", err)
		return
	}

	h.gateway.AttachHandles(ctx, items)
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Update applies a field patch to one item; derived totals are recomputed
// server-side before the updated item is returned.
func (h *ItemHandler) Update(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, h.logger, "Invalid patch body", err)
		return
	}

	item, err := h.service.Update(c.Request.Context(), c.Param("itemId"), patch)
	if err != nil {
		handleError(c, h.logger, "Failed to update item", err)
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Item not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ItemHandler) Delete(c *gin.Context) {
	itemID := c.Param("itemId")
	if err := h.service.Delete(c.Request.Context(), []string{itemID}); err != nil {
		handleError(c, h.logger, "Failed to delete item", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted", "itemId": itemID})
}

// DeleteBatch removes items by explicit id list.
func (h *ItemHandler) DeleteBatch(c *gin.Context) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, h.logger, "Invalid request body", err)
		return
	}
	if len(body.IDs) == 0 {
		badRequest(c, h.logger, "No item ids provided", nil)
		return
	}

	if err := h.service.Delete(c.Request.Context(), body.IDs); err != nil {
		handleError(c, h.logger, "Failed to delete items", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Items deleted", "count": len(body.IDs)})
}

// Clear wipes every collection: jobs, items, templates, page images and
// source documents.
func (h *ItemHandler) Clear(c *gin.Context) {
	if err := h.gateway.Clear(c.Request.Context()); err != nil {
		handleError(c, h.logger, "Failed to clear storage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All data cleared"})
}
