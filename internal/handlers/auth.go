package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/service"
	"messenger-service/internal/telemetry"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	users   *service.UserService
	emitter *telemetry.AuditEmitter
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(users *service.UserService, emitter *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{users: users, emitter: emitter}
}

// Register creates an account and returns a token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	userID := int64(user.ID)
	h.emitter.Emit(c.Request.Context(), "auth.register", "user registered", requestIDFromContext(c), &userID)
	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	userID := int64(user.ID)
	h.emitter.Emit(c.Request.Context(), "auth.login", "user logged in", requestIDFromContext(c), &userID)
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}
