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

// ChatHandler serves chat lifecycle and membership endpoints.
type ChatHandler struct {
	chats   *service.ChatService
	emitter *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats *service.ChatService, emitter *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{chats: chats, emitter: emitter}
}

// List returns the caller's chats, optionally paged with ?page_size and
// ?offset. Without page_size the full list is returned.
func (h *ChatHandler) List(c *gin.Context) {
	limit := queryInt(c, "page_size")
	offset := queryInt(c, "offset")
	views, err := h.chats.GetUserChats(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": views})
}

// Search filters the caller's chats by name.
func (h *ChatHandler) Search(c *gin.Context) {
	views, err := h.chats.SearchChats(c.Request.Context(), middleware.UserIDFromContext(c), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": views})
}

// Get returns one chat personalized for the caller.
func (h *ChatHandler) Get(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}
	view, err := h.chats.GetChat(c.Request.Context(), chatID, middleware.UserIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": view})
}

// CreateDirect starts a pending direct chat.
func (h *ChatHandler) CreateDirect(c *gin.Context) {
	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.chats.CreateDirectChat(c.Request.Context(), middleware.UserIDFromContext(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.emitter.Emit(c.Request.Context(), "chat.create_direct", "direct chat created", requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusCreated, gin.H{"chat": view})
}

// CreateGroup creates a group chat.
func (h *ChatHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Members []int  `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.chats.CreateGroupChat(c.Request.Context(), middleware.UserIDFromContext(c), req.Name, req.Members)
	if err != nil {
		respondError(c, err)
		return
	}
	h.emitter.Emit(c.Request.Context(), "chat.create_group", "group chat created", requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusCreated, gin.H{"chat": view})
}

// Respond accepts or rejects a pending direct chat.
func (h *ChatHandler) Respond(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}
	var req struct {
		Accept *bool `json:"accept" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.chats.RespondToInvite(c.Request.Context(), chatID, middleware.UserIDFromContext(c), *req.Accept)
	if err != nil {
		respondError(c, err)
		return
	}
	h.emitter.Emit(c.Request.Context(), "chat.respond", "chat invite answered", requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"chat": view})
}

// Update renames a group chat or changes its avatar.
func (h *ChatHandler) Update(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}
	var req struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.chats.UpdateChat(c.Request.Context(), chatID, middleware.UserIDFromContext(c), req.Name, req.AvatarURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": view})
}

// UploadAvatar accepts a multipart image and sets it as the group avatar.
func (h *ChatHandler) UploadAvatar(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}
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

	view, err := h.chats.UploadAvatar(c.Request.Context(), chatID, middleware.UserIDFromContext(c), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": view})
}

// Delete removes the chat for everyone.
func (h *ChatHandler) Delete(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}
	if err := h.chats.DeleteChat(c.Request.Context(), chatID, middleware.UserIDFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	h.emitter.Emit(c.Request.Context(), "chat.delete", "chat deleted", requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// AddParticipant adds a member to a group chat.
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}
	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chats.AddParticipant(c.Request.Context(), chatID, middleware.UserIDFromContext(c), req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

// RemoveParticipant removes a member from a group chat; members may remove
// themselves to leave.
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.chats.RemoveParticipant(c.Request.Context(), chatID, middleware.UserIDFromContext(c), targetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// Leave removes the caller from the chat.
func (h *ChatHandler) Leave(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}
	if err := h.chats.LeaveChat(c.Request.Context(), chatID, middleware.UserIDFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// Mute toggles the caller's mute flag for the chat.
func (h *ChatHandler) Mute(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}
	muted, err := h.chats.ToggleMute(c.Request.Context(), chatID, middleware.UserIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_muted": muted})
}

// MarkRead advances the caller's read cursor.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}
	var req struct {
		MessageID int `json:"message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chats.MarkRead(c.Request.Context(), chatID, middleware.UserIDFromContext(c), req.MessageID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

func pathInt(c *gin.Context, name string) (int, bool) {
	value, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return value, true
}

// queryInt parses an optional non-negative query parameter, treating
// anything unparseable as absent.
func queryInt(c *gin.Context, name string) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
