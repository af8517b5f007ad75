package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketmatch/marketmatch/internal/service"
)

// AdminHandler handles pipeline lifecycle endpoints.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Status handles GET /api/v1/rag/status.
func (h *AdminHandler) Status(c *gin.Context) {
	status, err := h.admin.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read status: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Reset handles POST /api/v1/rag/reset.
func (h *AdminHandler) Reset(c *gin.Context) {
	h.admin.Reset(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"reset": true,
	})
}

type setBackendRequest struct {
	Backend string `json:"backend" binding:"required"`
}

// SetBackend handles PUT /api/v1/rag/backend.
func (h *AdminHandler) SetBackend(c *gin.Context) {
	var req setBackendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	if err := h.admin.SetBackend(c.Request.Context(), req.Backend); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"backend": req.Backend,
	})
}

// Reindex handles POST /api/v1/rag/reindex.
func (h *AdminHandler) Reindex(c *gin.Context) {
	n, err := h.admin.Reindex(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Reindex failed: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reindexed": n,
	})
}
