package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrReactionNotFound = errors.New("reaction not found")
)

// MessageRepository abstracts message, attachment and reaction persistence.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message, attachments []models.FileAttachment) (models.Message, []models.FileAttachment, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListMessages(ctx context.Context, chatID int, beforeSentAt *time.Time, beforeID *int, limit int, excludeSenders []int) ([]models.Message, error)
	LastMessage(ctx context.Context, chatID int, excludeSenders []int) (models.Message, error)
	EditMessage(ctx context.Context, messageID int, content string, editedAt time.Time) error
	SoftDeleteMessage(ctx context.Context, messageID int) error

	Attachments(ctx context.Context, messageIDs []int) ([]models.FileAttachment, error)
	Reactions(ctx context.Context, messageIDs []int) ([]models.MessageReaction, error)
	GetReaction(ctx context.Context, messageID int, userID int) (models.MessageReaction, error)
	SetReaction(ctx context.Context, messageID int, userID int, reaction string) (models.MessageReaction, error)
	RemoveReaction(ctx context.Context, messageID int, userID int) error
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage inserts the message and its attachments in one transaction.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message, attachments []models.FileAttachment) (models.Message, []models.FileAttachment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, nil, err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, content, is_system)
         VALUES ($1, $2, $3, $4)
         RETURNING id, sent_at`,
		msg.ChatID, msg.SenderID, msg.Content, msg.IsSystem).
		Scan(&msg.ID, &msg.SentAt)
	if err != nil {
		return models.Message{}, nil, err
	}

	for i := range attachments {
		attachments[i].MessageID = msg.ID
		err = tx.QueryRowxContext(ctx,
			`INSERT INTO file_attachments (message_id, file_name, file_url, file_type)
             VALUES ($1, $2, $3, $4) RETURNING id`,
			msg.ID, attachments[i].FileName, attachments[i].FileURL, attachments[i].FileType).
			Scan(&attachments[i].ID)
		if err != nil {
			return models.Message{}, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, nil, err
	}
	return msg, attachments, nil
}

// GetMessage fetches a message by id.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT * FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessages returns up to limit messages before the (beforeSentAt,
// beforeID) cursor, oldest first. A nil cursor starts from the newest
// message. Senders in excludeSenders are filtered out.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int, beforeSentAt *time.Time, beforeID *int, limit int, excludeSenders []int) ([]models.Message, error) {
	msgs := []models.Message{}
	query := `SELECT * FROM messages
        WHERE chat_id = $1
          AND NOT (sender_id = ANY($2))
          AND ($3::timestamptz IS NULL
               OR sent_at < $3
               OR (sent_at = $3 AND id < $4))
        ORDER BY sent_at DESC, id DESC
        LIMIT $5`
	var cursorID any
	if beforeID != nil {
		cursorID = *beforeID
	}
	err := r.db.SelectContext(ctx, &msgs, query, chatID, pq.Array(toInt64(excludeSenders)), beforeSentAt, cursorID, limit)
	if err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// LastMessage returns the newest non-deleted message in the chat, skipping
// excludeSenders.
func (r *MessageRepo) LastMessage(ctx context.Context, chatID int, excludeSenders []int) (models.Message, error) {
	var msg models.Message
	query := `SELECT * FROM messages
        WHERE chat_id = $1
          AND is_deleted = FALSE
          AND NOT (sender_id = ANY($2))
        ORDER BY sent_at DESC, id DESC
        LIMIT 1`
	err := r.db.GetContext(ctx, &msg, query, chatID, pq.Array(toInt64(excludeSenders)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// EditMessage replaces the content and marks the message edited.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID int, content string, editedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET content=$1, edited_at=$2, is_edited=TRUE WHERE id=$3`,
		content, editedAt, messageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// SoftDeleteMessage tombstones the message; the row stays for read cursors.
func (r *MessageRepo) SoftDeleteMessage(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted=TRUE, content=NULL WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Attachments fetches attachments for a batch of messages.
func (r *MessageRepo) Attachments(ctx context.Context, messageIDs []int) ([]models.FileAttachment, error) {
	out := []models.FileAttachment{}
	if len(messageIDs) == 0 {
		return out, nil
	}
	err := r.db.SelectContext(ctx, &out,
		`SELECT * FROM file_attachments WHERE message_id = ANY($1) ORDER BY id`,
		pq.Array(toInt64(messageIDs)))
	return out, err
}

// Reactions fetches reactions for a batch of messages, joined with the
// reacting user's name.
func (r *MessageRepo) Reactions(ctx context.Context, messageIDs []int) ([]models.MessageReaction, error) {
	out := []models.MessageReaction{}
	if len(messageIDs) == 0 {
		return out, nil
	}
	query := `SELECT mr.id, mr.message_id, mr.user_id, mr.reaction, u.username
        FROM message_reactions mr
        JOIN users u ON u.id = mr.user_id
        WHERE mr.message_id = ANY($1)
        ORDER BY mr.id`
	err := r.db.SelectContext(ctx, &out, query, pq.Array(toInt64(messageIDs)))
	return out, err
}

// GetReaction fetches the user's reaction on a message.
func (r *MessageRepo) GetReaction(ctx context.Context, messageID int, userID int) (models.MessageReaction, error) {
	var reaction models.MessageReaction
	query := `SELECT mr.id, mr.message_id, mr.user_id, mr.reaction, u.username
        FROM message_reactions mr
        JOIN users u ON u.id = mr.user_id
        WHERE mr.message_id=$1 AND mr.user_id=$2`
	err := r.db.GetContext(ctx, &reaction, query, messageID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MessageReaction{}, ErrReactionNotFound
	}
	return reaction, err
}

// SetReaction inserts or replaces the user's reaction on a message.
func (r *MessageRepo) SetReaction(ctx context.Context, messageID int, userID int, reaction string) (models.MessageReaction, error) {
	var out models.MessageReaction
	query := `INSERT INTO message_reactions (message_id, user_id, reaction)
        VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id) DO UPDATE SET reaction = EXCLUDED.reaction
        RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, messageID, userID, reaction).Scan(&out.ID); err != nil {
		return models.MessageReaction{}, err
	}
	out.MessageID = messageID
	out.UserID = userID
	out.Reaction = reaction
	return out, nil
}

// RemoveReaction deletes the user's reaction on a message.
func (r *MessageRepo) RemoveReaction(ctx context.Context, messageID int, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReactionNotFound
	}
	return nil
}
