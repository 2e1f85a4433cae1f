package service

import (
	"context"
	"errors"

	"messenger-service/internal/chatrules"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// viewBuilder assembles the per-viewer DTOs the dispatcher sends out. It is
// shared by the chat and message services.
type viewBuilder struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	blockRepo   repositories.BlockRepository
}

// chatViewFor builds viewerID's personalized view of the chat.
func (b *viewBuilder) chatViewFor(ctx context.Context, chat models.Chat, participants []models.ParticipantInfo, viewerID int) (models.ChatView, error) {
	blocked, err := b.blockRepo.BlockedIDs(ctx, viewerID)
	if err != nil {
		return models.ChatView{}, err
	}
	exclude := chatrules.BlockedSendersFor(chat.IsGroup, blocked)

	var lastView *models.MessageView
	last, err := b.messageRepo.LastMessage(ctx, chat.ID, exclude)
	switch {
	case err == nil:
		views, err := b.messageViews(ctx, []models.Message{last}, participants)
		if err != nil {
			return models.ChatView{}, err
		}
		if len(views) == 1 {
			lastView = &views[0]
		}
	case errors.Is(err, repositories.ErrMessageNotFound):
		// empty chat
	default:
		return models.ChatView{}, err
	}

	unread, err := b.chatRepo.UnreadCount(ctx, chat.ID, viewerID, exclude)
	if err != nil {
		return models.ChatView{}, err
	}

	return models.BuildChatView(chat, participants, viewerID, lastView, unread), nil
}

// chatViewsForAll builds the view of chat for every participant, keyed by
// user id.
func (b *viewBuilder) chatViewsForAll(ctx context.Context, chat models.Chat, participants []models.ParticipantInfo) (map[int]models.ChatView, error) {
	views := make(map[int]models.ChatView, len(participants))
	for _, p := range participants {
		view, err := b.chatViewFor(ctx, chat, participants, p.UserID)
		if err != nil {
			return nil, err
		}
		views[p.UserID] = view
	}
	return views, nil
}

// messageViews resolves sender names, attachments and reactions for a batch
// of messages. participants supplies the usernames; senders no longer in
// the chat are looked up individually.
func (b *viewBuilder) messageViews(ctx context.Context, messages []models.Message, participants []models.ParticipantInfo) ([]models.MessageView, error) {
	if len(messages) == 0 {
		return []models.MessageView{}, nil
	}

	names := make(map[int]string, len(participants))
	for _, p := range participants {
		names[p.UserID] = p.Username
	}

	ids := make([]int, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}

	attachments, err := b.messageRepo.Attachments(ctx, ids)
	if err != nil {
		return nil, err
	}
	attachmentsByMsg := make(map[int][]models.FileAttachment)
	for _, a := range attachments {
		attachmentsByMsg[a.MessageID] = append(attachmentsByMsg[a.MessageID], a)
	}

	reactions, err := b.messageRepo.Reactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	reactionsByMsg := make(map[int][]models.MessageReaction)
	for _, r := range reactions {
		reactionsByMsg[r.MessageID] = append(reactionsByMsg[r.MessageID], r)
	}

	views := make([]models.MessageView, 0, len(messages))
	for _, m := range messages {
		name, ok := names[m.SenderID]
		if !ok {
			user, err := b.userRepo.GetByID(ctx, m.SenderID)
			if err == nil {
				name = user.Username
			}
			names[m.SenderID] = name
		}
		view := models.MessageView{
			ID:             m.ID,
			ChatID:         m.ChatID,
			SenderID:       m.SenderID,
			SenderUsername: name,
			Content:        m.Content,
			SentAt:         m.SentAt,
			EditedAt:       m.EditedAt,
			IsEdited:       m.IsEdited,
			IsDeleted:      m.IsDeleted,
			IsSystem:       m.IsSystem,
			Attachments:    attachmentsByMsg[m.ID],
			Reactions:      reactionsByMsg[m.ID],
		}
		if view.Attachments == nil {
			view.Attachments = []models.FileAttachment{}
		}
		if view.Reactions == nil {
			view.Reactions = []models.MessageReaction{}
		}
		views = append(views, view)
	}
	return views, nil
}

// notificationsFor builds each recipient's badge payload for a new message.
// Recipients who blocked the sender in a group chat are skipped entirely.
func (b *viewBuilder) notificationsFor(ctx context.Context, chat models.Chat, participants []models.ParticipantInfo, msg models.MessageView) (map[int]models.NewMessageNotification, error) {
	chatName := chat.Name
	chatAvatar := chat.AvatarURL

	out := make(map[int]models.NewMessageNotification, len(participants))
	for _, p := range participants {
		blocked, err := b.blockRepo.BlockedIDs(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		exclude := chatrules.BlockedSendersFor(chat.IsGroup, blocked)
		if chat.IsGroup && containsInt(exclude, msg.SenderID) && p.UserID != msg.SenderID {
			continue
		}

		unreadInChat, err := b.chatRepo.UnreadCount(ctx, chat.ID, p.UserID, exclude)
		if err != nil {
			return nil, err
		}
		totalUnread, err := b.chatRepo.TotalUnread(ctx, p.UserID, blocked)
		if err != nil {
			return nil, err
		}

		name := chatName
		avatar := chatAvatar
		if !chat.IsGroup {
			for _, other := range participants {
				if other.UserID != p.UserID {
					name = other.Username
					avatar = other.AvatarURL
					break
				}
			}
		}

		out[p.UserID] = models.NewMessageNotification{
			ChatID:         chat.ID,
			MessageID:      msg.ID,
			ChatName:       name,
			ChatAvatarURL:  avatar,
			SenderUsername: msg.SenderUsername,
			Preview:        preview(msg),
			SentAt:         msg.SentAt,
			UnreadInChat:   unreadInChat,
			TotalUnread:    totalUnread,
		}
	}
	return out, nil
}

func preview(msg models.MessageView) string {
	if msg.Content != nil && *msg.Content != "" {
		const max = 120
		if len(*msg.Content) > max {
			return (*msg.Content)[:max]
		}
		return *msg.Content
	}
	if len(msg.Attachments) > 0 {
		return "[attachment]"
	}
	return ""
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
