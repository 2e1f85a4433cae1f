package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/middleware"
	"messenger-service/internal/service"
	"messenger-service/internal/telemetry"
)

const maxAvatarBytes = 5 << 20

// UserHandler serves profiles, search, presence and the block list.
type UserHandler struct {
	users   *service.UserService
	emitter *telemetry.AuditEmitter
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users *service.UserService, emitter *telemetry.AuditEmitter) *UserHandler {
	return &UserHandler{users: users, emitter: emitter}
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Get returns a user's public profile.
func (h *UserHandler) Get(c *gin.Context) {
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	user, err := h.users.GetUser(c.Request.Context(), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetByUsername returns a user's public profile by exact username.
func (h *UserHandler) GetByUsername(c *gin.Context) {
	user, err := h.users.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Search finds users by partial username.
func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.users.SearchUsers(c.Request.Context(), middleware.UserIDFromContext(c), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Status returns a user's presence.
func (h *UserHandler) Status(c *gin.Context) {
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	status, err := h.users.Status(c.Request.Context(), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// UploadAvatar accepts a multipart image and updates the profile.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	if fileHeader.Size > maxAvatarBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar is too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read avatar"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes+1))
	if err != nil || len(data) > maxAvatarBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read avatar"})
		return
	}

	userID := middleware.UserIDFromContext(c)
	url, err := h.users.UploadAvatar(c.Request.Context(), userID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(c, err)
		return
	}

	h.emitter.Emit(c.Request.Context(), "user.avatar", "avatar updated", requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"avatar_url": url})
}

// UpdateMe renames the caller's account.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.UpdateUsername(c.Request.Context(), middleware.UserIDFromContext(c), req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ChangePassword swaps the caller's password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), middleware.UserIDFromContext(c), req.OldPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	h.emitter.Emit(c.Request.Context(), "user.password", "password changed", requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Contacts lists the caller's active direct chat partners.
func (h *UserHandler) Contacts(c *gin.Context) {
	users, err := h.users.Contacts(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Relationship reports the block state between the caller and a user.
func (h *UserHandler) Relationship(c *gin.Context) {
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	status, err := h.users.Relationship(c.Request.Context(), middleware.UserIDFromContext(c), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relationship": status})
}

// Block adds a user to the caller's block list.
func (h *UserHandler) Block(c *gin.Context) {
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if err := h.users.Block(c.Request.Context(), middleware.UserIDFromContext(c), targetID); err != nil {
		respondError(c, err)
		return
	}
	h.emitter.Emit(c.Request.Context(), "user.block", "user blocked", requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "blocked"})
}

// Unblock removes a user from the caller's block list.
func (h *UserHandler) Unblock(c *gin.Context) {
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if err := h.users.Unblock(c.Request.Context(), middleware.UserIDFromContext(c), targetID); err != nil {
		respondError(c, err)
		return
	}
	h.emitter.Emit(c.Request.Context(), "user.unblock", "user unblocked", requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "unblocked"})
}

// Blocked lists the caller's blocked users.
func (h *UserHandler) Blocked(c *gin.Context) {
	users, err := h.users.BlockedUsers(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
