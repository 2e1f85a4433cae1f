package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, chat models.Chat, participants []models.ChatParticipant) (models.Chat, error) {
	args := m.Called(ctx, chat, participants)
	var out models.Chat
	if val := args.Get(0); val != nil {
		out = val.(models.Chat)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var out models.Chat
	if val := args.Get(0); val != nil {
		out = val.(models.Chat)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) FindDirectChat(ctx context.Context, userA int, userB int) (models.Chat, error) {
	args := m.Called(ctx, userA, userB)
	var out models.Chat
	if val := args.Get(0); val != nil {
		out = val.(models.Chat)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, userID int, limit int, offset int) ([]models.Chat, error) {
	args := m.Called(ctx, userID, limit, offset)
	var out []models.Chat
	if val := args.Get(0); val != nil {
		out = val.([]models.Chat)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) UpdateChat(ctx context.Context, chatID int, name string, avatarURL string) error {
	args := m.Called(ctx, chatID, name, avatarURL)
	return args.Error(0)
}

func (m *ChatRepositoryMock) UpdateStatus(ctx context.Context, chatID int, status models.ChatStatus) error {
	args := m.Called(ctx, chatID, status)
	return args.Error(0)
}

func (m *ChatRepositoryMock) DeleteChat(ctx context.Context, chatID int) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) Participants(ctx context.Context, chatID int) ([]models.ParticipantInfo, error) {
	args := m.Called(ctx, chatID)
	var out []models.ParticipantInfo
	if val := args.Get(0); val != nil {
		out = val.([]models.ParticipantInfo)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) ParticipantIDs(ctx context.Context, chatID int) ([]int, error) {
	args := m.Called(ctx, chatID)
	var out []int
	if val := args.Get(0); val != nil {
		out = val.([]int)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) GetParticipant(ctx context.Context, chatID int, userID int) (models.ChatParticipant, error) {
	args := m.Called(ctx, chatID, userID)
	var out models.ChatParticipant
	if val := args.Get(0); val != nil {
		out = val.(models.ChatParticipant)
	}
	return out, args.Error(1)
}

func (m *ChatRepositoryMock) AddParticipant(ctx context.Context, participant models.ChatParticipant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}

func (m *ChatRepositoryMock) RemoveParticipant(ctx context.Context, chatID int, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) SetAdmin(ctx context.Context, chatID int, userID int, isAdmin bool) error {
	args := m.Called(ctx, chatID, userID, isAdmin)
	return args.Error(0)
}

func (m *ChatRepositoryMock) SetMuted(ctx context.Context, chatID int, userID int, isMuted bool) error {
	args := m.Called(ctx, chatID, userID, isMuted)
	return args.Error(0)
}

func (m *ChatRepositoryMock) MarkRead(ctx context.Context, chatID int, userID int, messageID int, at time.Time) error {
	args := m.Called(ctx, chatID, userID, messageID, at)
	return args.Error(0)
}

func (m *ChatRepositoryMock) AdvanceLastRead(ctx context.Context, chatID int, userID int, messageID int, at time.Time) error {
	args := m.Called(ctx, chatID, userID, messageID, at)
	return args.Error(0)
}

func (m *ChatRepositoryMock) UnreadCount(ctx context.Context, chatID int, userID int, excludeSenders []int) (int, error) {
	args := m.Called(ctx, chatID, userID, excludeSenders)
	return args.Int(0), args.Error(1)
}

func (m *ChatRepositoryMock) TotalUnread(ctx context.Context, userID int, excludeSenders []int) (int, error) {
	args := m.Called(ctx, userID, excludeSenders)
	return args.Int(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message, attachments []models.FileAttachment) (models.Message, []models.FileAttachment, error) {
	args := m.Called(ctx, msg, attachments)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	var atts []models.FileAttachment
	if val := args.Get(1); val != nil {
		atts = val.([]models.FileAttachment)
	}
	return out, atts, args.Error(2)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID int, beforeSentAt *time.Time, beforeID *int, limit int, excludeSenders []int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, beforeSentAt, beforeID, limit, excludeSenders)
	var out []models.Message
	if val := args.Get(0); val != nil {
		out = val.([]models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) LastMessage(ctx context.Context, chatID int, excludeSenders []int) (models.Message, error) {
	args := m.Called(ctx, chatID, excludeSenders)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, messageID int, content string, editedAt time.Time) error {
	args := m.Called(ctx, messageID, content, editedAt)
	return args.Error(0)
}

func (m *MessageRepositoryMock) SoftDeleteMessage(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Attachments(ctx context.Context, messageIDs []int) ([]models.FileAttachment, error) {
	args := m.Called(ctx, messageIDs)
	var out []models.FileAttachment
	if val := args.Get(0); val != nil {
		out = val.([]models.FileAttachment)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) Reactions(ctx context.Context, messageIDs []int) ([]models.MessageReaction, error) {
	args := m.Called(ctx, messageIDs)
	var out []models.MessageReaction
	if val := args.Get(0); val != nil {
		out = val.([]models.MessageReaction)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetReaction(ctx context.Context, messageID int, userID int) (models.MessageReaction, error) {
	args := m.Called(ctx, messageID, userID)
	var out models.MessageReaction
	if val := args.Get(0); val != nil {
		out = val.(models.MessageReaction)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) SetReaction(ctx context.Context, messageID int, userID int, reaction string) (models.MessageReaction, error) {
	args := m.Called(ctx, messageID, userID, reaction)
	var out models.MessageReaction
	if val := args.Get(0); val != nil {
		out = val.(models.MessageReaction)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) RemoveReaction(ctx context.Context, messageID int, userID int) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Create(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, id int) (models.User, error) {
	args := m.Called(ctx, id)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) Search(ctx context.Context, query string, excludeID int, limit int) ([]models.User, error) {
	args := m.Called(ctx, query, excludeID, limit)
	var out []models.User
	if val := args.Get(0); val != nil {
		out = val.([]models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) UpdateUsername(ctx context.Context, id int, username string) error {
	args := m.Called(ctx, id, username)
	return args.Error(0)
}

func (m *UserRepositoryMock) UpdateAvatar(ctx context.Context, id int, avatarURL string) error {
	args := m.Called(ctx, id, avatarURL)
	return args.Error(0)
}

func (m *UserRepositoryMock) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *UserRepositoryMock) SetOnline(ctx context.Context, id int, online bool, at time.Time) error {
	args := m.Called(ctx, id, online, at)
	return args.Error(0)
}

type BlockRepositoryMock struct {
	mock.Mock
}

func (m *BlockRepositoryMock) Block(ctx context.Context, blockerID int, blockedID int) error {
	args := m.Called(ctx, blockerID, blockedID)
	return args.Error(0)
}

func (m *BlockRepositoryMock) Unblock(ctx context.Context, blockerID int, blockedID int) error {
	args := m.Called(ctx, blockerID, blockedID)
	return args.Error(0)
}

func (m *BlockRepositoryMock) IsBlocked(ctx context.Context, blockerID int, blockedID int) (bool, error) {
	args := m.Called(ctx, blockerID, blockedID)
	return args.Bool(0), args.Error(1)
}

func (m *BlockRepositoryMock) IsBlockedEither(ctx context.Context, userA int, userB int) (bool, error) {
	args := m.Called(ctx, userA, userB)
	return args.Bool(0), args.Error(1)
}

func (m *BlockRepositoryMock) BlockedIDs(ctx context.Context, blockerID int) ([]int, error) {
	args := m.Called(ctx, blockerID)
	var out []int
	if val := args.Get(0); val != nil {
		out = val.([]int)
	}
	return out, args.Error(1)
}
