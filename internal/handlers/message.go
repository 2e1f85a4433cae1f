package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/middleware"
	"messenger-service/internal/models"
	"messenger-service/internal/service"
)

// MessageHandler serves the message timeline endpoints.
type MessageHandler struct {
	messages *service.MessageService
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// List pages through the chat history. The cursor is the id of the oldest
// message the client already has; omit it for the newest page.
func (h *MessageHandler) List(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}

	var beforeID *int
	if raw := c.Query("before_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before_id cursor"})
			return
		}
		beforeID = &id
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	views, err := h.messages.GetMessages(c.Request.Context(), chatID, middleware.UserIDFromContext(c), beforeID, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

// Send stores a message with optional base64-encoded image attachments.
func (h *MessageHandler) Send(c *gin.Context) {
	chatID, ok := pathInt(c, "chat_id")
	if !ok {
		return
	}
	var req struct {
		Content     string `json:"content"`
		Attachments []struct {
			FileName string `json:"file_name"`
			FileType string `json:"file_type"`
			Data     string `json:"data"`
		} `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uploads := make([]models.AttachmentUpload, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment encoding"})
			return
		}
		uploads = append(uploads, models.AttachmentUpload{
			FileName: a.FileName,
			FileType: a.FileType,
			FileData: data,
		})
	}

	view, err := h.messages.SendMessage(c.Request.Context(), chatID, middleware.UserIDFromContext(c), req.Content, uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// Edit rewrites the caller's own message.
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := pathInt(c, "message_id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.messages.EditMessage(c.Request.Context(), messageID, middleware.UserIDFromContext(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": view})
}

// Delete tombstones a message.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := pathInt(c, "message_id")
	if !ok {
		return
	}
	if err := h.messages.DeleteMessage(c.Request.Context(), messageID, middleware.UserIDFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// React toggles the caller's reaction on a message.
func (h *MessageHandler) React(c *gin.Context) {
	messageID, ok := pathInt(c, "message_id")
	if !ok {
		return
	}
	var req struct {
		Reaction string `json:"reaction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.messages.ToggleReaction(c.Request.Context(), messageID, middleware.UserIDFromContext(c), req.Reaction); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Unreact removes the caller's reaction from a message.
func (h *MessageHandler) Unreact(c *gin.Context) {
	messageID, ok := pathInt(c, "message_id")
	if !ok {
		return
	}
	if err := h.messages.RemoveReaction(c.Request.Context(), messageID, middleware.UserIDFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
