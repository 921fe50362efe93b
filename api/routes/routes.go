package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/pickscan/pickscan/api/handlers"
	"github.com/pickscan/pickscan/api/middleware"
)

// SetupRoutes wires every endpoint under /api/v1.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	v1 := r.Group("/api/v1")

	v1.GET("/health", h.Health.Check)

	jobs := v1.Group("/jobs")
	{
		jobs.POST("/upload", h.Job.Upload)
		jobs.POST("/batch", h.Job.UploadBatch)
		jobs.GET("", h.Job.List)
		jobs.GET("/:jobId", h.Job.Get)
		jobs.DELETE("/:jobId", h.Job.Delete)
		jobs.POST("/:jobId/retry", h.Job.Retry)
		jobs.POST("/:jobId/pages/:page/reprocess", h.Job.ReprocessPage)
	}

	items := v1.Group("/items")
	{
		items.GET("", h.Item.List)
		items.PATCH("/:itemId", h.Item.Update)
		items.DELETE("/:itemId", h.Item.Delete)
		items.POST("/delete", h.Item.DeleteBatch)
	}

	templates := v1.Group("/templates")
	{
		templates.GET("", h.Template.List)
		templates.POST("", h.Template.Create)
		templates.GET("/:templateId", h.Template.Get)
		templates.PUT("/:templateId", h.Template.Update)
		templates.DELETE("/:templateId", h.Template.Delete)
		templates.GET("/:templateId/columns", h.Template.Columns)
		templates.GET("/:templateId/export", h.Template.Export)
		templates.POST("/import", h.Template.Import)
	}

	exports := v1.Group("/export")
	{
		exports.GET("/csv", h.Export.CSV)
		exports.GET("/xlsx", h.Export.XLSX)
	}

	v1.GET("/images/:handle", h.Image.Serve)

	v1.DELETE("/data", h.Item.Clear)
}
