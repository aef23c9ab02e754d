// Package handler contains HTTP request handlers.
// In Gin, a handler is any function with signature func(*gin.Context).
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	materialCount int
}

// NewHealthHandler creates a new HealthHandler reporting how many materials
// each report covers.
func NewHealthHandler(materialCount int) *HealthHandler {
	return &HealthHandler{materialCount: materialCount}
}

// Healthz responds with service status. It never calls an LLM provider.
// Route: GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "crm-service",
		"materials": h.materialCount,
	})
}
