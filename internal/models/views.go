package models

import "time"

const (
	DefaultGroupAvatar = "/images/default/group.png"
	DefaultUserAvatar  = "/images/default/user.png"
)

// ParticipantView is the public shape of a chat member.
type ParticipantView struct {
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	IsOnline  bool      `json:"is_online"`
	JoinedAt  time.Time `json:"joined_at"`
}

// MessageView is a message with its sender name, attachments and reactions
// resolved.
type MessageView struct {
	ID             int               `json:"id"`
	ChatID         int               `json:"chat_id"`
	SenderID       int               `json:"sender_id"`
	SenderUsername string            `json:"sender_username"`
	Content        *string           `json:"content,omitempty"`
	SentAt         time.Time         `json:"sent_at"`
	EditedAt       *time.Time        `json:"edited_at,omitempty"`
	IsEdited       bool              `json:"is_edited"`
	IsDeleted      bool              `json:"is_deleted"`
	IsSystem       bool              `json:"is_system"`
	Attachments    []FileAttachment  `json:"attachments"`
	Reactions      []MessageReaction `json:"reactions"`
}

// ChatView is a chat personalized for one viewer: direct chats borrow the
// other side's name and avatar, the unread count is the viewer's own, and
// IsMuted reflects the viewer's participant row. Never reuse one viewer's
// ChatView for another.
type ChatView struct {
	ID              int               `json:"id"`
	Name            string            `json:"name"`
	AvatarURL       string            `json:"avatar_url"`
	IsGroup         bool              `json:"is_group"`
	Status          ChatStatus        `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	CreatedByUserID int               `json:"created_by_user_id"`
	Participants    []ParticipantView `json:"participants"`
	LastMessage     *MessageView      `json:"last_message,omitempty"`
	UnreadCount     int               `json:"unread_count"`
	IsMuted         bool              `json:"is_muted"`
}

// NewMessageNotification accompanies ReceiveNewMessage so clients can update
// badges without refetching the chat list.
type NewMessageNotification struct {
	ChatID         int       `json:"chat_id"`
	MessageID      int       `json:"message_id"`
	ChatName       string    `json:"chat_name"`
	ChatAvatarURL  string    `json:"chat_avatar_url,omitempty"`
	SenderUsername string    `json:"sender_username"`
	Preview        string    `json:"preview"`
	SentAt         time.Time `json:"sent_at"`
	UnreadInChat   int       `json:"unread_in_chat"`
	TotalUnread    int       `json:"total_unread"`
}

// TypingStatus is relayed, never persisted.
type TypingStatus struct {
	ChatID   int  `json:"chat_id"`
	UserID   int  `json:"user_id"`
	IsTyping bool `json:"is_typing"`
}

// MuteUpdate notifies a chat group that one member toggled their mute flag.
type MuteUpdate struct {
	ChatID  int  `json:"chat_id"`
	UserID  int  `json:"user_id"`
	IsMuted bool `json:"is_muted"`
}

// BuildChatView assembles the personalized view of chat for viewerID.
// lastMessage and unread are computed by the caller because they depend on
// the viewer's blocked list in group chats.
func BuildChatView(chat Chat, participants []ParticipantInfo, viewerID int, lastMessage *MessageView, unread int) ChatView {
	view := ChatView{
		ID:          chat.ID,
		Name:        chat.Name,
		AvatarURL:   chat.AvatarURL,
		IsGroup:     chat.IsGroup,
		Status:      chat.Status,
		CreatedAt:   chat.CreatedAt,
		LastMessage: lastMessage,
		UnreadCount: unread,
	}

	for _, p := range participants {
		if p.UserID == viewerID {
			view.IsMuted = p.IsMuted
		}
		if p.IsAdmin && view.CreatedByUserID == 0 {
			view.CreatedByUserID = p.UserID
		}
		view.Participants = append(view.Participants, ParticipantView{
			UserID:    p.UserID,
			Username:  p.Username,
			AvatarURL: p.AvatarURL,
			IsAdmin:   p.IsAdmin,
			IsOnline:  p.IsOnline,
			JoinedAt:  p.JoinedAt,
		})
	}

	if !chat.IsGroup {
		for _, p := range participants {
			if p.UserID != viewerID {
				view.Name = p.Username
				view.AvatarURL = p.AvatarURL
				break
			}
		}
		if view.AvatarURL == "" {
			view.AvatarURL = DefaultUserAvatar
		}
	} else if view.AvatarURL == "" {
		view.AvatarURL = DefaultGroupAvatar
	}

	return view
}
