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
	ErrChatNotFound        = errors.New("chat not found")
	ErrParticipantNotFound = errors.New("participant not found")
)

// ChatRepository abstracts chat and participant persistence.
type ChatRepository interface {
	CreateChat(ctx context.Context, chat models.Chat, participants []models.ChatParticipant) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	FindDirectChat(ctx context.Context, userA int, userB int) (models.Chat, error)
	ListChats(ctx context.Context, userID int, limit int, offset int) ([]models.Chat, error)
	UpdateChat(ctx context.Context, chatID int, name string, avatarURL string) error
	UpdateStatus(ctx context.Context, chatID int, status models.ChatStatus) error
	DeleteChat(ctx context.Context, chatID int) error

	Participants(ctx context.Context, chatID int) ([]models.ParticipantInfo, error)
	ParticipantIDs(ctx context.Context, chatID int) ([]int, error)
	GetParticipant(ctx context.Context, chatID int, userID int) (models.ChatParticipant, error)
	AddParticipant(ctx context.Context, participant models.ChatParticipant) error
	RemoveParticipant(ctx context.Context, chatID int, userID int) error
	SetAdmin(ctx context.Context, chatID int, userID int, isAdmin bool) error
	SetMuted(ctx context.Context, chatID int, userID int, isMuted bool) error
	MarkRead(ctx context.Context, chatID int, userID int, messageID int, at time.Time) error
	AdvanceLastRead(ctx context.Context, chatID int, userID int, messageID int, at time.Time) error

	UnreadCount(ctx context.Context, chatID int, userID int, excludeSenders []int) (int, error)
	TotalUnread(ctx context.Context, userID int, excludeSenders []int) (int, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateChat inserts the chat and its initial participants in one transaction.
func (r *ChatRepo) CreateChat(ctx context.Context, chat models.Chat, participants []models.ChatParticipant) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO chats (name, avatar_url, is_group, status) VALUES ($1, $2, $3, $4)
         RETURNING id, created_at`,
		chat.Name, chat.AvatarURL, chat.IsGroup, chat.Status).
		Scan(&chat.ID, &chat.CreatedAt)
	if err != nil {
		return models.Chat{}, err
	}

	for _, p := range participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_participants (chat_id, user_id, is_admin) VALUES ($1, $2, $3)`,
			chat.ID, p.UserID, p.IsAdmin); err != nil {
			return models.Chat{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT * FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// FindDirectChat returns the direct chat between two users regardless of its
// status, or ErrChatNotFound.
func (r *ChatRepo) FindDirectChat(ctx context.Context, userA int, userB int) (models.Chat, error) {
	var chat models.Chat
	query := `SELECT c.* FROM chats c
        JOIN chat_participants pa ON pa.chat_id = c.id AND pa.user_id = $1
        JOIN chat_participants pb ON pb.chat_id = c.id AND pb.user_id = $2
        WHERE c.is_group = FALSE
        LIMIT 1`
	err := r.db.GetContext(ctx, &chat, query, userA, userB)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChats returns the chats the user participates in, newest first. A
// non-positive limit returns everything.
func (r *ChatRepo) ListChats(ctx context.Context, userID int, limit int, offset int) ([]models.Chat, error) {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	chats := []models.Chat{}
	query := `SELECT c.* FROM chats c
        JOIN chat_participants p ON p.chat_id = c.id
        WHERE p.user_id = $1
        ORDER BY c.created_at DESC
        LIMIT NULLIF($2, 0) OFFSET $3`
	err := r.db.SelectContext(ctx, &chats, query, userID, limit, offset)
	return chats, err
}

// UpdateChat updates the chat name and avatar.
func (r *ChatRepo) UpdateChat(ctx context.Context, chatID int, name string, avatarURL string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chats SET name=$1, avatar_url=$2 WHERE id=$3`, name, avatarURL, chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// UpdateStatus moves the chat to a new lifecycle status.
func (r *ChatRepo) UpdateStatus(ctx context.Context, chatID int, status models.ChatStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET status=$1 WHERE id=$2`, status, chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// DeleteChat removes the chat; participants, messages, attachments and
// reactions go with it via cascades.
func (r *ChatRepo) DeleteChat(ctx context.Context, chatID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Participants lists chat members joined with their user profile.
func (r *ChatRepo) Participants(ctx context.Context, chatID int) ([]models.ParticipantInfo, error) {
	out := []models.ParticipantInfo{}
	query := `SELECT p.chat_id, p.user_id, p.is_admin, p.is_muted, p.joined_at,
            p.last_read_at, p.last_read_message_id,
            u.username, u.avatar_url AS user_avatar_url, u.is_online
        FROM chat_participants p
        JOIN users u ON u.id = p.user_id
        WHERE p.chat_id = $1
        ORDER BY p.joined_at, p.user_id`
	err := r.db.SelectContext(ctx, &out, query, chatID)
	return out, err
}

// ParticipantIDs lists member user ids for fanout targeting.
func (r *ChatRepo) ParticipantIDs(ctx context.Context, chatID int) ([]int, error) {
	var ids pq.Int64Array
	err := r.db.GetContext(ctx, &ids,
		`SELECT COALESCE(ARRAY_AGG(user_id), '{}') FROM chat_participants WHERE chat_id=$1`, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out, nil
}

// GetParticipant fetches one membership row.
func (r *ChatRepo) GetParticipant(ctx context.Context, chatID int, userID int) (models.ChatParticipant, error) {
	var p models.ChatParticipant
	err := r.db.GetContext(ctx, &p,
		`SELECT * FROM chat_participants WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatParticipant{}, ErrParticipantNotFound
	}
	return p, err
}

// AddParticipant inserts a membership row. Adding an existing member is a
// no-op.
func (r *ChatRepo) AddParticipant(ctx context.Context, participant models.ChatParticipant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_participants (chat_id, user_id, is_admin)
         VALUES ($1, $2, $3)
         ON CONFLICT (chat_id, user_id) DO NOTHING`,
		participant.ChatID, participant.UserID, participant.IsAdmin)
	return err
}

// RemoveParticipant drops the membership row.
func (r *ChatRepo) RemoveParticipant(ctx context.Context, chatID int, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_participants WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// SetAdmin toggles the admin flag on a membership.
func (r *ChatRepo) SetAdmin(ctx context.Context, chatID int, userID int, isAdmin bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_participants SET is_admin=$1 WHERE chat_id=$2 AND user_id=$3`,
		isAdmin, chatID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// SetMuted toggles the viewer-local mute flag.
func (r *ChatRepo) SetMuted(ctx context.Context, chatID int, userID int, isMuted bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_participants SET is_muted=$1 WHERE chat_id=$2 AND user_id=$3`,
		isMuted, chatID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// MarkRead records the read cursor unconditionally.
func (r *ChatRepo) MarkRead(ctx context.Context, chatID int, userID int, messageID int, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_participants SET last_read_message_id=$1, last_read_at=$2
         WHERE chat_id=$3 AND user_id=$4`,
		messageID, at, chatID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// AdvanceLastRead moves the read cursor forward only; stale marks from other
// devices never rewind it.
func (r *ChatRepo) AdvanceLastRead(ctx context.Context, chatID int, userID int, messageID int, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_participants SET last_read_message_id=$1, last_read_at=$2
         WHERE chat_id=$3 AND user_id=$4
           AND (last_read_message_id IS NULL OR last_read_message_id < $1)`,
		messageID, at, chatID, userID)
	return err
}

// UnreadCount counts messages the member has not read yet. Messages sent
// before the member joined, their own messages, deleted messages, and
// messages from excludeSenders do not count.
func (r *ChatRepo) UnreadCount(ctx context.Context, chatID int, userID int, excludeSenders []int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM messages m
        JOIN chat_participants p ON p.chat_id = m.chat_id AND p.user_id = $2
        WHERE m.chat_id = $1
          AND m.sent_at > p.joined_at
          AND m.sender_id != $2
          AND m.is_deleted = FALSE
          AND (p.last_read_message_id IS NULL OR m.id > p.last_read_message_id)
          AND NOT (m.sender_id = ANY($3))`
	err := r.db.GetContext(ctx, &count, query, chatID, userID, pq.Array(toInt64(excludeSenders)))
	return count, err
}

// TotalUnread sums unread counts across every chat the user belongs to.
// Blocked senders are skipped in group chats only; a direct chat with a
// blocked user keeps its real count.
func (r *ChatRepo) TotalUnread(ctx context.Context, userID int, excludeSenders []int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM messages m
        JOIN chats c ON c.id = m.chat_id
        JOIN chat_participants p ON p.chat_id = m.chat_id AND p.user_id = $1
        WHERE m.sent_at > p.joined_at
          AND m.sender_id != $1
          AND m.is_deleted = FALSE
          AND (p.last_read_message_id IS NULL OR m.id > p.last_read_message_id)
          AND NOT (c.is_group AND m.sender_id = ANY($2))`
	err := r.db.GetContext(ctx, &count, query, userID, pq.Array(toInt64(excludeSenders)))
	return count, err
}

func toInt64(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
