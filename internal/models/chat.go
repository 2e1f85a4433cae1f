package models

import "time"

// ChatStatus is the invitation lifecycle of a direct chat. Group chats are
// always active.
type ChatStatus string

const (
	ChatStatusPending  ChatStatus = "pending"
	ChatStatusActive   ChatStatus = "active"
	ChatStatusRejected ChatStatus = "rejected"
)

// Chat is either a direct chat (exactly two participants, Status meaningful)
// or a group chat (admin-governed membership).
type Chat struct {
	ID        int        `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	AvatarURL string     `db:"avatar_url" json:"avatar_url,omitempty"`
	IsGroup   bool       `db:"is_group" json:"is_group"`
	Status    ChatStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// ChatParticipant joins a user to a chat. The (chat, user) pair is the
// primary key.
type ChatParticipant struct {
	ChatID            int        `db:"chat_id" json:"chat_id"`
	UserID            int        `db:"user_id" json:"user_id"`
	IsAdmin           bool       `db:"is_admin" json:"is_admin"`
	IsMuted           bool       `db:"is_muted" json:"is_muted"`
	JoinedAt          time.Time  `db:"joined_at" json:"joined_at"`
	LastReadAt        *time.Time `db:"last_read_at" json:"last_read_at,omitempty"`
	LastReadMessageID *int       `db:"last_read_message_id" json:"last_read_message_id,omitempty"`
}

// ParticipantInfo is a participant row joined with its user's public fields.
type ParticipantInfo struct {
	ChatParticipant
	Username  string `db:"username" json:"username"`
	AvatarURL string `db:"user_avatar_url" json:"avatar_url,omitempty"`
	IsOnline  bool   `db:"is_online" json:"is_online"`
}
