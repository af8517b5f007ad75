package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/marketmatch/marketmatch/internal/service"
)

// QueryHandler handles question answering endpoints.
type QueryHandler struct {
	rag *service.RAGService
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(rag *service.RAGService) *QueryHandler {
	return &QueryHandler{rag: rag}
}

type queryRequest struct {
	Question string `json:"question"`
}

// Ask handles POST /api/v1/query. The pipeline always produces a
// well-formed answer, so this endpoint only fails on malformed input.
func (h *QueryHandler) Ask(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	result := h.rag.Query(c.Request.Context(), req.Question)
	c.JSON(http.StatusOK, result)
}

// History handles GET /api/v1/queries.
func (h *QueryHandler) History(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	queries, err := h.rag.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list queries: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"queries": queries,
		"total":   len(queries),
	})
}
