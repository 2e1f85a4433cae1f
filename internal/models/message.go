package models

import "time"

// Message belongs to one chat. Content may be nil for attachment-only
// messages. Deleted messages keep their row (soft delete).
type Message struct {
	ID        int        `db:"id" json:"id"`
	ChatID    int        `db:"chat_id" json:"chat_id"`
	SenderID  int        `db:"sender_id" json:"sender_id"`
	Content   *string    `db:"content" json:"content,omitempty"`
	SentAt    time.Time  `db:"sent_at" json:"sent_at"`
	EditedAt  *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	IsEdited  bool       `db:"is_edited" json:"is_edited"`
	IsDeleted bool       `db:"is_deleted" json:"is_deleted"`
	IsSystem  bool       `db:"is_system" json:"is_system"`
}

// FileAttachment references a blob held by the file store.
type FileAttachment struct {
	ID        int    `db:"id" json:"id"`
	MessageID int    `db:"message_id" json:"message_id"`
	FileName  string `db:"file_name" json:"file_name"`
	FileURL   string `db:"file_url" json:"file_url"`
	FileType  string `db:"file_type" json:"file_type"`
}

// MessageReaction is the single reaction a user holds on a message.
type MessageReaction struct {
	ID        int    `db:"id" json:"id"`
	MessageID int    `db:"message_id" json:"message_id"`
	UserID    int    `db:"user_id" json:"user_id"`
	Username  string `db:"username" json:"username"`
	Reaction  string `db:"reaction" json:"reaction"`
}

// AttachmentUpload is a decoded inbound attachment ready for the file
// store.
type AttachmentUpload struct {
	FileName string
	FileType string
	FileData []byte
}
