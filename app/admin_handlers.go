package app

import (
	"errors"
	"net/http"

	"agreeme/app/models"
	"agreeme/corpus"

	"github.com/gin-gonic/gin"
)

const maxLawDocumentBytes = 50 << 20

// UploadLaw adds a legal document to the search corpus and triggers its ingestion.
func (h *Handlers) UploadLaw(c *gin.Context) {
	ctx := c.Request.Context()
	file, err := formFile(c, "file", maxLawDocumentBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Chưa chọn file luật để upload"})
		return
	}
	key, err := h.svc.Corpus.Upload(ctx, file.Name, file.ContentType, file.Data)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Đã upload văn bản luật & kích hoạt AI học.", "s3_key": key})
	case errors.Is(err, corpus.ErrNoFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Chưa chọn file luật để upload"})
	default:
		Logger(ctx).Error("law upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
	}
}

// News returns the legal news feed.
func (h *Handlers) News(c *gin.Context) {
	if h.svc.News == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": []any{}})
		return
	}
	items := h.svc.News.Items(c.Request.Context())
	if items == nil {
		items = []models.NewsItem{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": items})
}
