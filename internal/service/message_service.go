package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"messenger-service/internal/apperr"
	"messenger-service/internal/chatrules"
	"messenger-service/internal/logging"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/storage"
)

const defaultPageSize = 50

// MessageService orchestrates the message timeline: sending, history,
// edits, deletion and reactions.
type MessageService struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	blockRepo   repositories.BlockRepository
	files       storage.FileStore
	notifier    Notifier
	views       *viewBuilder
}

// NewMessageService constructs a MessageService.
func NewMessageService(
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	blockRepo repositories.BlockRepository,
	files storage.FileStore,
	notifier Notifier,
) *MessageService {
	return &MessageService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		blockRepo:   blockRepo,
		files:       files,
		notifier:    notifier,
		views: &viewBuilder{
			chatRepo:    chatRepo,
			messageRepo: messageRepo,
			userRepo:    userRepo,
			blockRepo:   blockRepo,
		},
	}
}

// SendMessage stores a message with optional image attachments and fans it
// out. The sender's own read cursor advances to the new message so their
// other devices do not count it as unread.
func (s *MessageService) SendMessage(ctx context.Context, chatID int, senderID int, content string, uploads []models.AttachmentUpload) (models.MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(uploads) == 0 {
		return models.MessageView{}, apperr.Validation("message is empty")
	}

	chat, err := s.chatRepo.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return models.MessageView{}, apperr.NotFound("chat not found")
		}
		return models.MessageView{}, apperr.Storage("load chat", err)
	}
	participants, err := s.chatRepo.Participants(ctx, chatID)
	if err != nil {
		return models.MessageView{}, apperr.Storage("load participants", err)
	}
	if !isParticipant(participants, senderID) {
		return models.MessageView{}, apperr.Authorization("not a participant of this chat")
	}
	if chat.Status != models.ChatStatusActive {
		return models.MessageView{}, apperr.Conflict("chat is not active")
	}
	if !chat.IsGroup {
		for _, p := range participants {
			if p.UserID == senderID {
				continue
			}
			blocked, err := s.blockRepo.IsBlockedEither(ctx, senderID, p.UserID)
			if err != nil {
				return models.MessageView{}, apperr.Storage("check block", err)
			}
			if blocked {
				return models.MessageView{}, apperr.Authorization("cannot message this user")
			}
		}
	}

	attachments, err := s.storeUploads(uploads)
	if err != nil {
		return models.MessageView{}, err
	}

	msg := models.Message{ChatID: chatID, SenderID: senderID}
	if content != "" {
		msg.Content = &content
	}
	msg, attachments, err = s.messageRepo.CreateMessage(ctx, msg, attachments)
	if err != nil {
		return models.MessageView{}, apperr.Storage("create message", err)
	}

	if err := s.chatRepo.AdvanceLastRead(ctx, chatID, senderID, msg.ID, msg.SentAt); err != nil {
		logging.Component("service").WithError(err).Warn("failed to advance sender read cursor")
	}

	msgViews, err := s.views.messageViews(ctx, []models.Message{msg}, participants)
	if err != nil || len(msgViews) != 1 {
		return models.MessageView{}, apperr.Storage("build message view", err)
	}
	view := msgViews[0]

	notifications, err := s.views.notificationsFor(ctx, chat, participants, view)
	if err != nil {
		return models.MessageView{}, apperr.Storage("build notifications", err)
	}
	s.notifier.NewMessage(chatID, view, notifications)
	return view, nil
}

func (s *MessageService) storeUploads(uploads []models.AttachmentUpload) ([]models.FileAttachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	attachments := make([]models.FileAttachment, 0, len(uploads))
	for _, upload := range uploads {
		if !storage.IsAllowedImageType(upload.FileType) {
			return nil, apperr.Validation("unsupported attachment type: " + upload.FileType)
		}
		url, err := s.files.Save("attachments", upload.FileName, upload.FileType, upload.FileData)
		if err != nil {
			return nil, apperr.Storage("store attachment", err)
		}
		attachments = append(attachments, models.FileAttachment{
			FileName: upload.FileName,
			FileURL:  url,
			FileType: upload.FileType,
		})
	}
	return attachments, nil
}

// GetMessages pages through the chat history, oldest first within the
// page. The cursor is the id of the oldest message the client already
// has; its sent time is resolved server-side so ties page correctly.
func (s *MessageService) GetMessages(ctx context.Context, chatID int, userID int, beforeMessageID *int, pageSize int) ([]models.MessageView, error) {
	chat, err := s.chatRepo.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return nil, apperr.NotFound("chat not found")
		}
		return nil, apperr.Storage("load chat", err)
	}
	participants, err := s.chatRepo.Participants(ctx, chatID)
	if err != nil {
		return nil, apperr.Storage("load participants", err)
	}
	if !isParticipant(participants, userID) {
		return nil, apperr.Authorization("not a participant of this chat")
	}

	if pageSize <= 0 || pageSize > 200 {
		pageSize = defaultPageSize
	}

	var beforeSentAt *time.Time
	var beforeID *int
	if beforeMessageID != nil {
		cursor, err := s.messageRepo.GetMessage(ctx, *beforeMessageID)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				return nil, apperr.NotFound("cursor message not found")
			}
			return nil, apperr.Storage("load cursor message", err)
		}
		if cursor.ChatID != chatID {
			return nil, apperr.Validation("cursor message does not belong to this chat")
		}
		beforeSentAt = &cursor.SentAt
		beforeID = &cursor.ID
	}

	blocked, err := s.blockRepo.BlockedIDs(ctx, userID)
	if err != nil {
		return nil, apperr.Storage("load blocked users", err)
	}
	exclude := chatrules.BlockedSendersFor(chat.IsGroup, blocked)

	messages, err := s.messageRepo.ListMessages(ctx, chatID, beforeSentAt, beforeID, pageSize, exclude)
	if err != nil {
		return nil, apperr.Storage("list messages", err)
	}
	views, err := s.views.messageViews(ctx, messages, participants)
	if err != nil {
		return nil, apperr.Storage("build message views", err)
	}
	return views, nil
}

// EditMessage lets the sender rewrite their own message.
func (s *MessageService) EditMessage(ctx context.Context, messageID int, userID int, content string) (models.MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.MessageView{}, apperr.Validation("message is empty")
	}

	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return models.MessageView{}, err
	}
	if msg.SenderID != userID {
		return models.MessageView{}, apperr.Authorization("only the sender can edit a message")
	}
	if msg.IsDeleted {
		return models.MessageView{}, apperr.Conflict("message was deleted")
	}
	if msg.IsSystem {
		return models.MessageView{}, apperr.Validation("system messages cannot be edited")
	}

	now := time.Now().UTC()
	if err := s.messageRepo.EditMessage(ctx, messageID, content, now); err != nil {
		return models.MessageView{}, apperr.Storage("edit message", err)
	}
	msg.Content = &content
	msg.EditedAt = &now
	msg.IsEdited = true

	participants, err := s.chatRepo.Participants(ctx, msg.ChatID)
	if err != nil {
		return models.MessageView{}, apperr.Storage("load participants", err)
	}
	views, err := s.views.messageViews(ctx, []models.Message{msg}, participants)
	if err != nil || len(views) != 1 {
		return models.MessageView{}, apperr.Storage("build message view", err)
	}
	s.notifier.MessageEdited(msg.ChatID, views[0])
	return views[0], nil
}

// DeleteMessage tombstones a message. The sender may always delete their
// own; group admins may remove anyone's.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID int, userID int) error {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		return nil
	}

	if msg.SenderID != userID {
		chat, err := s.chatRepo.GetChat(ctx, msg.ChatID)
		if err != nil {
			return apperr.Storage("load chat", err)
		}
		p, err := s.chatRepo.GetParticipant(ctx, msg.ChatID, userID)
		if err != nil || !chat.IsGroup || !p.IsAdmin {
			return apperr.Authorization("cannot delete this message")
		}
	}

	if err := s.messageRepo.SoftDeleteMessage(ctx, messageID); err != nil {
		return apperr.Storage("delete message", err)
	}
	s.notifier.MessageDeleted(msg.ChatID, messageID)
	return nil
}

// ToggleReaction applies the one-reaction-per-user rule: reacting with the
// same emoji removes it, a different emoji replaces the old one.
func (s *MessageService) ToggleReaction(ctx context.Context, messageID int, userID int, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return apperr.Validation("reaction is empty")
	}

	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		return apperr.Conflict("message was deleted")
	}
	if _, err := s.chatRepo.GetParticipant(ctx, msg.ChatID, userID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return apperr.Authorization("not a participant of this chat")
		}
		return apperr.Storage("load participant", err)
	}

	existing, err := s.messageRepo.GetReaction(ctx, messageID, userID)
	switch {
	case err == nil && existing.Reaction == emoji:
		if err := s.messageRepo.RemoveReaction(ctx, messageID, userID); err != nil {
			return apperr.Storage("remove reaction", err)
		}
		s.notifier.ReactionRemoved(msg.ChatID, messageID, userID)
		return nil
	case err == nil || errors.Is(err, repositories.ErrReactionNotFound):
		replacing := err == nil
		reaction, err := s.messageRepo.SetReaction(ctx, messageID, userID, emoji)
		if err != nil {
			return apperr.Storage("set reaction", err)
		}
		if user, err := s.userRepo.GetByID(ctx, userID); err == nil {
			reaction.Username = user.Username
		}
		if replacing {
			s.notifier.ReactionUpdated(msg.ChatID, reaction)
		} else {
			s.notifier.ReactionAdded(msg.ChatID, reaction)
		}
		return nil
	default:
		return apperr.Storage("load reaction", err)
	}
}

// RemoveReaction takes the caller's reaction off the message.
func (s *MessageService) RemoveReaction(ctx context.Context, messageID int, userID int) error {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if _, err := s.messageRepo.GetReaction(ctx, messageID, userID); err != nil {
		if errors.Is(err, repositories.ErrReactionNotFound) {
			return apperr.NotFound("reaction not found")
		}
		return apperr.Storage("load reaction", err)
	}
	if err := s.messageRepo.RemoveReaction(ctx, messageID, userID); err != nil {
		return apperr.Storage("remove reaction", err)
	}
	s.notifier.ReactionRemoved(msg.ChatID, messageID, userID)
	return nil
}

func (s *MessageService) loadMessage(ctx context.Context, messageID int) (models.Message, error) {
	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, apperr.NotFound("message not found")
		}
		return models.Message{}, apperr.Storage("load message", err)
	}
	return msg, nil
}
