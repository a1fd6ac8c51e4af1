// Package router provides study assistant routing.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/studykit/studyrag/internal/assistant/handler"
)

// Register registers the assistant routes on the gin engine.
func Register(engine *gin.Engine, h *handler.AssistantHandler) {
	engine.GET("/healthz", h.Healthz)

	engine.POST("/upload", h.Upload)
	engine.POST("/ask", h.Ask)
	engine.GET("/jobs/:id", h.Job)
	engine.GET("/stats", h.Stats)
}
