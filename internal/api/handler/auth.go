package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/nashr-app/nashr/internal/api/auth"
	"github.com/nashr-app/nashr/internal/api/models"
	"github.com/nashr-app/nashr/internal/engine"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Phone    string `json:"phone" binding:"omitempty,ir_mobile"`
	Password string `json:"password" binding:"required,password"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,max=72"`
}

// Register creates an account and signs it in.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	user, err := h.engine.Register(c.Request.Context(), engine.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    NormalizeMobile(req.Phone),
		Password: req.Password,
	}, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := auth.StartSession(c, user); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "user": models.ToUser(user)})
}

// Login signs a user in with email and password.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	user, err := h.engine.Authenticate(c.Request.Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := auth.StartSession(c, user); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": models.ToUser(user)})
}

// Me returns the signed-in user.
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "user": models.ToUser(currentUser(c))})
}

// Logout ends the session.
func (h *Handler) Logout(c *gin.Context) {
	h.engine.Logout(c.Request.Context(), currentUser(c), requestMeta(c))
	if err := auth.EndSession(c); err != nil {
		log.Warn("failed to clear session", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgLoggedOut})
}
