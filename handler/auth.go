package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/licito/backend/config"
	"github.com/licito/backend/middleware"
	"github.com/licito/backend/model"
	"github.com/licito/backend/policy"
	"github.com/licito/backend/service"
)

type AuthHandler struct {
	users  *service.UserService
	config *config.AuthConfig
}

func NewAuthHandler(users *service.UserService, cfg *config.AuthConfig) *AuthHandler {
	return &AuthHandler{users: users, config: cfg}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Login verifies credentials and opens a session cookie
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email e senha são obrigatórios"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, expiresAt, err := middleware.GenerateToken(user, h.config)
	if err != nil {
		respondError(c, err)
		return
	}

	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.CookieName, token, maxAge, "/", "", h.config.CookieSecure, true)

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		User:      user,
	})
}

// GetCurrentUser returns the session user and the actions it may perform
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":        user,
		"role_label":  user.Role.Label(),
		"permissions": policy.Permissions(user.Role),
	})
}

// Logout clears the session cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.CookieName, "", -1, "/", "", h.config.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Sessão encerrada"})
}
