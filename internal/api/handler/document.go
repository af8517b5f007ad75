package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/marketmatch/marketmatch/internal/service"
	"gorm.io/gorm"
)

// maxUploadBytes caps accepted document uploads at 10 MB.
const maxUploadBytes = 10 << 20

// DocumentHandler handles document ingestion and listing endpoints.
type DocumentHandler struct {
	ingest *service.IngestService
	docs   service.DocumentStore
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(ingest *service.IngestService, docs service.DocumentStore) *DocumentHandler {
	return &DocumentHandler{
		ingest: ingest,
		docs:   docs,
	}
}

type ingestTextRequest struct {
	Title   string `json:"title"`
	Content string `json:"content" binding:"required"`
}

// Upload handles POST /api/v1/documents. A multipart "file" field
// ingests an uploaded document; a JSON body with "content" ingests
// raw text.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err == nil {
		if fileHeader.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "File too large",
			})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Failed to open uploaded file: " + err.Error(),
			})
			return
		}
		defer file.Close()

		content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Failed to read uploaded file: " + err.Error(),
			})
			return
		}
		if len(content) > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "File too large",
			})
			return
		}

		contentType := fileHeader.Header.Get("Content-Type")
		result, err := h.ingest.IngestDocument(c.Request.Context(),
			fileHeader.Filename, c.PostForm("title"), contentType, content)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Ingestion failed: " + err.Error(),
			})
			return
		}
		c.JSON(http.StatusCreated, result)
		return
	}

	var req ingestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Provide a multipart 'file' or a JSON body with 'content'",
		})
		return
	}

	result, err := h.ingest.IngestText(c.Request.Context(), req.Title, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Ingestion failed: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, result)
}

// List handles GET /api/v1/documents.
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docs.ListDocuments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list documents: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     len(docs),
	})
}

// Get handles GET /api/v1/documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.docs.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Document not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get document: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Delete handles DELETE /api/v1/documents/:id.
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.ingest.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Document not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete document: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deleted": c.Param("id"),
	})
}
