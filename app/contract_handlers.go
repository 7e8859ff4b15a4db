package app

import (
	"errors"
	"net/http"

	"agreeme/app/models"
	"agreeme/auth"
	"agreeme/contracts"

	"github.com/gin-gonic/gin"
)

// UploadContract stores and analyzes a contract from the multipart field "file".
func (h *Handlers) UploadContract(c *gin.Context) {
	ctx := c.Request.Context()
	in := contracts.UploadInput{UserID: auth.UserID(ctx)}

	file, err := formFile(c, "file", h.maxUploadBytes)
	switch {
	case err == nil:
		in.FileName, in.ContentType, in.Data = file.Name, file.ContentType, file.Data
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		Logger(ctx).Warn("read upload failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	resp, err := h.svc.Contracts.Upload(ctx, in)
	if err != nil {
		var inferenceErr *contracts.InferenceError
		switch {
		case errors.Is(err, contracts.ErrNoFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		case errors.Is(err, contracts.ErrUnauthenticated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		case errors.Is(err, contracts.ErrFileTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		case errors.Is(err, contracts.ErrQuotaExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Bạn đã dùng hết lượt phân tích miễn phí trong tuần."})
		case errors.As(err, &inferenceErr):
			Logger(ctx).Error("ai analysis failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "AI analysis failed", "details": inferenceErr.Details})
		default:
			Logger(ctx).Error("upload failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ChatContract answers a question about an analyzed contract.
func (h *Handlers) ChatContract(c *gin.Context) {
	var req models.ChatRequest
	_ = c.ShouldBindJSON(&req)

	answer, err := h.svc.Contracts.Chat(c.Request.Context(), contracts.ChatInput{SessionID: req.SessionID, Message: req.Message})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"answer": answer})
	case errors.Is(err, contracts.ErrChatInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId và message là bắt buộc"})
	case errors.Is(err, contracts.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	default:
		Logger(c.Request.Context()).Error("chat failed", "session_id", req.SessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat failed"})
	}
}

// GenerateContract fills a template and returns the stored document.
func (h *Handlers) GenerateContract(c *gin.Context) {
	ctx := c.Request.Context()
	var req models.GenerateRequest
	_ = c.ShouldBindJSON(&req)

	gen, err := h.svc.Contracts.Generate(ctx, contracts.GenerateInput{
		UserID:       auth.UserID(ctx),
		TemplateID:   req.TemplateID,
		ContractInfo: req.ContractInfo,
	})
	if err != nil {
		var inferenceErr *contracts.InferenceError
		switch {
		case errors.Is(err, contracts.ErrGenerateInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu template_id hoặc contract_info"})
		case errors.Is(err, contracts.ErrUnauthenticated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		case errors.As(err, &inferenceErr):
			Logger(ctx).Error("generate function failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Lỗi sinh hợp đồng từ AI", "details": inferenceErr.Details})
		case errors.Is(err, contracts.ErrEmptyContract):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "AI không trả về nội dung hợp đồng"})
		default:
			Logger(ctx).Error("generate failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gen})
}

// Dashboard lists the user's documents and drafts.
func (h *Handlers) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	dash, err := h.svc.Contracts.Dashboard(ctx, auth.UserID(ctx))
	if errors.Is(err, contracts.ErrUnauthenticated) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if err != nil {
		Logger(ctx).Error("dashboard failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"inspections": dash.Inspections,
		"drafts":      dash.Drafts,
	})
}

// SaveDrafts replaces the user's draft list.
func (h *Handlers) SaveDrafts(c *gin.Context) {
	ctx := c.Request.Context()
	var req models.SaveDraftsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.svc.Contracts.SaveDrafts(ctx, auth.UserID(ctx), req.Templates); err != nil {
		Logger(ctx).Error("save drafts failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save drafts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteContract removes one of the user's sessions.
func (h *Handlers) DeleteContract(c *gin.Context) {
	ctx := c.Request.Context()
	err := h.svc.Contracts.Delete(ctx, c.Param("id"), auth.UserID(ctx))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Đã xóa hợp đồng thành công"})
	case errors.Is(err, contracts.ErrSessionIDRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu Session ID"})
	case errors.Is(err, contracts.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	default:
		Logger(ctx).Error("delete failed", "session_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể xóa hợp đồng"})
	}
}

// Assist drafts editor content from a prompt.
func (h *Handlers) Assist(c *gin.Context) {
	var req models.AssistRequest
	_ = c.ShouldBindJSON(&req)

	answer, err := h.svc.Contracts.Assist(c.Request.Context(), req.Prompt)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"answer": answer})
	case errors.Is(err, contracts.ErrPromptRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu nội dung prompt"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate text"})
	}
}
