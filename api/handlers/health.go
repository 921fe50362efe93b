package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/store"
)

type HealthHandler struct {
	gateway *store.Gateway
	logger  logger.Logger
}

func NewHealthHandler(gateway *store.Gateway, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		gateway: gateway,
		logger:  log,
	}
}

// Check probes both storage layers.
func (h *HealthHandler) Check(c *gin.Context) {
	if err := h.gateway.Ping(c.Request.Context()); err != nil {
		h.logger.Error("Health check failed", logger.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
