package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/store"
)

type ImageHandler struct {
	gateway *store.Gateway
	logger  logger.Logger
}

func NewImageHandler(gateway *store.Gateway, log logger.Logger) *ImageHandler {
	return &ImageHandler{
		gateway: gateway,
		logger:  log,
	}
}

// Serve streams the page image behind a live handle. Handles are
// process-local and expire with the item that owns them, so a stale handle
// is a 404, never an error.
func (h *ImageHandler) Serve(c *gin.Context) {
	handle := c.Param("handle")

	jobID, pageIndex, ok := h.gateway.Handles().Resolve(handle)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Unknown image handle"})
		return
	}

	data, contentType, err := h.gateway.GetPageImage(c.Request.Context(), jobID, pageIndex)
	if err != nil {
		handleError(c, h.logger, "Failed to load page image", err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}
