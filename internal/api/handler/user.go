package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/nashr-app/nashr/internal/api/auth"
	"github.com/nashr-app/nashr/internal/api/models"
	"github.com/nashr-app/nashr/internal/engine"
)

// ProfileRequest is the body of PUT /api/user/profile.
type ProfileRequest struct {
	Name  string `json:"name" binding:"required,max=100"`
	Phone string `json:"phone" binding:"omitempty,ir_mobile"`
}

// PasswordRequest is the body of PUT /api/user/password.
type PasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required,max=72"`
	NewPassword     string `json:"newPassword" binding:"required,password,nefield=CurrentPassword"`
}

// Stats returns the dashboard numbers of the user.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.engine.UserStats(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// PurchasedFiles returns the files the user holds a license for.
func (h *Handler) PurchasedFiles(c *gin.Context) {
	purchases, err := h.engine.ListPurchasedFiles(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"files":   models.ToPurchasedFiles(purchases, h.config.Viewer.PreviewPages),
	})
}

// Profile returns the profile of the user.
func (h *Handler) Profile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "user": models.ToUser(currentUser(c))})
}

// UpdateProfile changes the name and phone of the user.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	user, err := h.engine.UpdateProfile(c.Request.Context(), currentUser(c), engine.ProfileInput{
		Name:  req.Name,
		Phone: NormalizeMobile(req.Phone),
	}, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := auth.StartSession(c, user); err != nil {
		log.Warn("failed to refresh session", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": models.ToUser(user)})
}

// ChangePassword replaces the password of the user.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	if err := h.engine.ChangePassword(c.Request.Context(), currentUser(c), req.CurrentPassword, req.NewPassword, requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "رمز عبور با موفقیت تغییر کرد"})
}

// SecurityLogs returns a page of the user's security log.
func (h *Handler) SecurityLogs(c *gin.Context) {
	page, pageSize, ok := pagination(c)
	if !ok {
		return
	}

	logs, total, err := h.engine.SecurityLogs(c.Request.Context(), currentUser(c).ID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"logs":     models.ToSecurityLogs(logs),
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}
