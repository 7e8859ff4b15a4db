package app

import (
	"errors"
	"net/http"

	"agreeme/accounts"
	"agreeme/app/models"
	"agreeme/auth"

	"github.com/gin-gonic/gin"
)

const maxAvatarBytes = 5 << 20

// Health is a public health check endpoint.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Root answers the bare service URL.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "AI Contract Backend is running!"})
}

// accountError answers with both "error" and "message"; the account pages read "message".
func accountError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg, "message": msg})
}

// Register creates a password account.
func (h *Handlers) Register(c *gin.Context) {
	var req models.RegisterRequest
	_ = c.ShouldBindJSON(&req)

	resp, err := h.svc.Accounts.Register(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, resp)
	case errors.Is(err, accounts.ErrEmailTaken):
		accountError(c, http.StatusBadRequest, "Email đã tồn tại")
	case errors.Is(err, accounts.ErrMissingCredentials):
		accountError(c, http.StatusBadRequest, "Vui lòng nhập email và mật khẩu")
	case errors.Is(err, accounts.ErrLocalAuthDisabled):
		accountError(c, http.StatusNotImplemented, "Đăng ký bằng mật khẩu chưa được bật")
	default:
		Logger(c.Request.Context()).Error("register failed", "error", err)
		accountError(c, http.StatusInternalServerError, "Lỗi server")
	}
}

// Login exchanges email and password for a token.
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	_ = c.ShouldBindJSON(&req)

	resp, err := h.svc.Accounts.Login(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, accounts.ErrInvalidCredentials), errors.Is(err, accounts.ErrMissingCredentials):
		accountError(c, http.StatusBadRequest, "Sai email hoặc mật khẩu")
	case errors.Is(err, accounts.ErrLocalAuthDisabled):
		accountError(c, http.StatusNotImplemented, "Đăng nhập bằng mật khẩu chưa được bật")
	default:
		Logger(c.Request.Context()).Error("login failed", "error", err)
		accountError(c, http.StatusInternalServerError, "Lỗi server")
	}
}

// Profile returns the authenticated user.
func (h *Handlers) Profile(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.svc.Accounts.Profile(ctx, auth.UserID(ctx))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, user)
	case errors.Is(err, accounts.ErrUserNotFound):
		accountError(c, http.StatusNotFound, "User not found")
	default:
		Logger(ctx).Error("profile failed", "error", err)
		accountError(c, http.StatusInternalServerError, "Lỗi server")
	}
}

// UpdateProfile changes the editable profile fields.
func (h *Handlers) UpdateProfile(c *gin.Context) {
	ctx := c.Request.Context()
	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		accountError(c, http.StatusBadRequest, "invalid request")
		return
	}
	user, err := h.svc.Accounts.UpdateProfile(ctx, auth.UserID(ctx), update)
	if err != nil {
		Logger(ctx).Error("profile update failed", "error", err)
		accountError(c, http.StatusInternalServerError, "Update failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// UploadAvatar stores the multipart field "avatar" as the profile image.
func (h *Handlers) UploadAvatar(c *gin.Context) {
	ctx := c.Request.Context()
	file, err := formFile(c, "avatar", maxAvatarBytes)
	if err != nil {
		accountError(c, http.StatusBadRequest, "Chưa chọn file ảnh")
		return
	}
	if len(file.Data) > maxAvatarBytes {
		accountError(c, http.StatusBadRequest, "File too large")
		return
	}
	url, err := h.svc.Accounts.UploadAvatar(ctx, auth.UserID(ctx), file.Name, file.ContentType, file.Data)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "avatarUrl": url})
	case errors.Is(err, accounts.ErrNoImage):
		accountError(c, http.StatusBadRequest, "Chưa chọn file ảnh")
	default:
		Logger(ctx).Error("avatar upload failed", "error", err)
		accountError(c, http.StatusInternalServerError, "Lỗi upload ảnh")
	}
}

// Usage returns the plan and this week's analysis allowance.
func (h *Handlers) Usage(c *gin.Context) {
	ctx := c.Request.Context()
	usage, err := h.svc.Accounts.Usage(ctx, auth.UserID(ctx))
	if err != nil {
		Logger(ctx).Error("usage lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, usage)
}
