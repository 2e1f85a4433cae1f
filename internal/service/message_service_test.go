package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/apperr"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// fakeFileStore accepts every upload and remembers what it saved.
type fakeFileStore struct {
	saved []string
}

func (f *fakeFileStore) Save(subdir string, originalName string, mimeType string, data []byte) (string, error) {
	f.saved = append(f.saved, originalName)
	return "/files/" + subdir + "/" + originalName, nil
}

func (f *fakeFileStore) Remove(fileURL string) error { return nil }

type messageServiceMocks struct {
	chatRepo    *mocks.ChatRepositoryMock
	messageRepo *mocks.MessageRepositoryMock
	userRepo    *mocks.UserRepositoryMock
	blockRepo   *mocks.BlockRepositoryMock
	files       *fakeFileStore
	notifier    *recordingNotifier
}

func newMessageService() (*MessageService, *messageServiceMocks) {
	m := &messageServiceMocks{
		chatRepo:    new(mocks.ChatRepositoryMock),
		messageRepo: new(mocks.MessageRepositoryMock),
		userRepo:    new(mocks.UserRepositoryMock),
		blockRepo:   new(mocks.BlockRepositoryMock),
		files:       &fakeFileStore{},
		notifier:    &recordingNotifier{},
	}
	svc := NewMessageService(m.chatRepo, m.messageRepo, m.userRepo, m.blockRepo, m.files, m.notifier)
	return svc, m
}

func strptr(s string) *string { return &s }

func TestSendMessageHappyPath(t *testing.T) {
	svc, m := newMessageService()
	now := time.Now().UTC()
	chat := models.Chat{ID: 10, Name: "team", IsGroup: true, Status: models.ChatStatusActive}
	participants := []models.ParticipantInfo{
		participantInfo(10, 1, "alice", true, now),
		participantInfo(10, 2, "bob", false, now),
	}

	m.chatRepo.On("GetChat", mock.Anything, 10).Return(chat, nil)
	m.chatRepo.On("Participants", mock.Anything, 10).Return(participants, nil)
	m.messageRepo.On("CreateMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(models.Message{ID: 7, ChatID: 10, SenderID: 1, Content: strptr("hello"), SentAt: now}, nil, nil)
	m.chatRepo.On("AdvanceLastRead", mock.Anything, 10, 1, 7, now).Return(nil).Once()
	m.messageRepo.On("Attachments", mock.Anything, []int{7}).Return([]models.FileAttachment{}, nil)
	m.messageRepo.On("Reactions", mock.Anything, []int{7}).Return([]models.MessageReaction{}, nil)
	m.blockRepo.On("BlockedIDs", mock.Anything, mock.Anything).Return([]int{}, nil)
	m.chatRepo.On("UnreadCount", mock.Anything, 10, mock.Anything, mock.Anything).Return(1, nil)
	m.chatRepo.On("TotalUnread", mock.Anything, mock.Anything, mock.Anything).Return(3, nil)

	view, err := svc.SendMessage(context.Background(), 10, 1, "  hello  ", nil)
	require.NoError(t, err)

	assert.Equal(t, 7, view.ID)
	assert.Equal(t, "alice", view.SenderUsername)
	require.NotNil(t, view.Content)
	assert.Equal(t, "hello", *view.Content, "content is trimmed")

	m.chatRepo.AssertCalled(t, "AdvanceLastRead", mock.Anything, 10, 1, 7, now)
	require.Len(t, m.notifier.newMessages, 1)
	require.Len(t, m.notifier.notifications, 1)
	assert.Contains(t, m.notifier.notifications[0], 2)
	assert.Equal(t, "hello", m.notifier.notifications[0][2].Preview)
	assert.Equal(t, 3, m.notifier.notifications[0][2].TotalUnread)
}

func TestSendMessageEmpty(t *testing.T) {
	svc, _ := newMessageService()

	_, err := svc.SendMessage(context.Background(), 10, 1, "   ", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSendMessageInactiveChat(t *testing.T) {
	svc, m := newMessageService()
	now := time.Now()

	m.chatRepo.On("GetChat", mock.Anything, 10).
		Return(models.Chat{ID: 10, Status: models.ChatStatusPending}, nil)
	m.chatRepo.On("Participants", mock.Anything, 10).Return([]models.ParticipantInfo{
		participantInfo(10, 1, "alice", true, now),
		participantInfo(10, 2, "bob", false, now),
	}, nil)

	_, err := svc.SendMessage(context.Background(), 10, 1, "hi", nil)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	m.messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageBlockedDirect(t *testing.T) {
	svc, m := newMessageService()
	now := time.Now()

	m.chatRepo.On("GetChat", mock.Anything, 10).
		Return(models.Chat{ID: 10, Status: models.ChatStatusActive}, nil)
	m.chatRepo.On("Participants", mock.Anything, 10).Return([]models.ParticipantInfo{
		participantInfo(10, 1, "alice", true, now),
		participantInfo(10, 2, "bob", false, now),
	}, nil)
	m.blockRepo.On("IsBlockedEither", mock.Anything, 1, 2).Return(true, nil)

	_, err := svc.SendMessage(context.Background(), 10, 1, "hi", nil)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestSendMessageRejectsUnknownAttachmentType(t *testing.T) {
	svc, m := newMessageService()
	now := time.Now()

	m.chatRepo.On("GetChat", mock.Anything, 10).
		Return(models.Chat{ID: 10, IsGroup: true, Status: models.ChatStatusActive}, nil)
	m.chatRepo.On("Participants", mock.Anything, 10).Return([]models.ParticipantInfo{
		participantInfo(10, 1, "alice", true, now),
	}, nil)

	uploads := []models.AttachmentUpload{{FileName: "x.exe", FileType: "application/octet-stream", FileData: []byte{1}}}
	_, err := svc.SendMessage(context.Background(), 10, 1, "", uploads)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, m.files.saved)
}

func TestGetMessagesRequiresMembership(t *testing.T) {
	svc, m := newMessageService()
	now := time.Now()

	m.chatRepo.On("GetChat", mock.Anything, 10).
		Return(models.Chat{ID: 10, IsGroup: true, Status: models.ChatStatusActive}, nil)
	m.chatRepo.On("Participants", mock.Anything, 10).Return([]models.ParticipantInfo{
		participantInfo(10, 1, "alice", true, now),
	}, nil)

	_, err := svc.GetMessages(context.Background(), 10, 99, nil, 0)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestGetMessagesClampsPageSize(t *testing.T) {
	svc, m := newMessageService()
	now := time.Now()

	m.chatRepo.On("GetChat", mock.Anything, 10).
		Return(models.Chat{ID: 10, IsGroup: true, Status: models.ChatStatusActive}, nil)
	m.chatRepo.On("Participants", mock.Anything, 10).Return([]models.ParticipantInfo{
		participantInfo(10, 1, "alice", true, now),
	}, nil)
	m.blockRepo.On("BlockedIDs", mock.Anything, 1).Return([]int{}, nil)
	m.messageRepo.On("ListMessages", mock.Anything, 10, (*time.Time)(nil), (*int)(nil), defaultPageSize, mock.Anything).
		Return([]models.Message{}, nil).Once()

	views, err := svc.GetMessages(context.Background(), 10, 1, nil, 100000)
	require.NoError(t, err)
	assert.Empty(t, views)
	m.messageRepo.AssertExpectations(t)
}

func TestGetMessagesResolvesCursorServerSide(t *testing.T) {
	svc, m := newMessageService()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	participants := []models.ParticipantInfo{participantInfo(10, 1, "alice", true, base)}

	m.chatRepo.On("GetChat", mock.Anything, 10).
		Return(models.Chat{ID: 10, IsGroup: true, Status: models.ChatStatusActive}, nil)
	m.chatRepo.On("Participants", mock.Anything, 10).Return(participants, nil)
	m.blockRepo.On("BlockedIDs", mock.Anything, 1).Return([]int{}, nil)

	m1 := models.Message{ID: 1, ChatID: 10, SenderID: 1, Content: strptr("one"), SentAt: base}
	m2 := models.Message{ID: 2, ChatID: 10, SenderID: 1, Content: strptr("two"), SentAt: base.Add(time.Minute)}
	m3 := models.Message{ID: 3, ChatID: 10, SenderID: 1, Content: strptr("three"), SentAt: base.Add(2 * time.Minute)}

	m.messageRepo.On("GetMessage", mock.Anything, 3).Return(m3, nil)
	m.messageRepo.On("GetMessage", mock.Anything, 1).Return(m1, nil)
	m.messageRepo.On("ListMessages", mock.Anything, 10, &m3.SentAt, &m3.ID, defaultPageSize, mock.Anything).
		Return([]models.Message{m1, m2}, nil).Once()
	m.messageRepo.On("ListMessages", mock.Anything, 10, &m1.SentAt, &m1.ID, defaultPageSize, mock.Anything).
		Return([]models.Message{}, nil).Once()
	m.messageRepo.On("Attachments", mock.Anything, []int{1, 2}).Return([]models.FileAttachment{}, nil)
	m.messageRepo.On("Reactions", mock.Anything, []int{1, 2}).Return([]models.MessageReaction{}, nil)

	cursor := 3
	views, err := svc.GetMessages(context.Background(), 10, 1, &cursor, 0)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, 1, views[0].ID)
	assert.Equal(t, 2, views[1].ID)

	cursor = 1
	views, err = svc.GetMessages(context.Background(), 10, 1, &cursor, 0)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestGetMessagesRejectsForeignCursor(t *testing.T) {
	svc, m := newMessageService()
	now := time.Now()

	m.chatRepo.On("GetChat", mock.Anything, 10).
		Return(models.Chat{ID: 10, IsGroup: true, Status: models.ChatStatusActive}, nil)
	m.chatRepo.On("Participants", mock.Anything, 10).Return([]models.ParticipantInfo{
		participantInfo(10, 1, "alice", true, now),
	}, nil)
	m.messageRepo.On("GetMessage", mock.Anything, 5).
		Return(models.Message{ID: 5, ChatID: 11, SentAt: now}, nil)

	cursor := 5
	_, err := svc.GetMessages(context.Background(), 10, 1, &cursor, 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	m.messageRepo.AssertNotCalled(t, "ListMessages",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEditMessageOnlySender(t *testing.T) {
	svc, m := newMessageService()

	m.messageRepo.On("GetMessage", mock.Anything, 7).
		Return(models.Message{ID: 7, ChatID: 10, SenderID: 1, Content: strptr("hi")}, nil)

	_, err := svc.EditMessage(context.Background(), 7, 2, "changed")
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	m.messageRepo.AssertNotCalled(t, "EditMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEditMessageHappyPath(t *testing.T) {
	svc, m := newMessageService()
	now := time.Now()

	m.messageRepo.On("GetMessage", mock.Anything, 7).
		Return(models.Message{ID: 7, ChatID: 10, SenderID: 1, Content: strptr("hi"), SentAt: now}, nil)
	m.messageRepo.On("EditMessage", mock.Anything, 7, "changed", mock.Anything).Return(nil).Once()
	m.chatRepo.On("Participants", mock.Anything, 10).Return([]models.ParticipantInfo{
		participantInfo(10, 1, "alice", true, now),
	}, nil)
	m.messageRepo.On("Attachments", mock.Anything, []int{7}).Return([]models.FileAttachment{}, nil)
	m.messageRepo.On("Reactions", mock.Anything, []int{7}).Return([]models.MessageReaction{}, nil)

	view, err := svc.EditMessage(context.Background(), 7, 1, "changed")
	require.NoError(t, err)
	assert.True(t, view.IsEdited)
	require.NotNil(t, view.Content)
	assert.Equal(t, "changed", *view.Content)
	require.Len(t, m.notifier.edited, 1)
}

func TestDeleteMessageGroupAdminMayDelete(t *testing.T) {
	svc, m := newMessageService()

	m.messageRepo.On("GetMessage", mock.Anything, 7).
		Return(models.Message{ID: 7, ChatID: 10, SenderID: 2}, nil)
	m.chatRepo.On("GetChat", mock.Anything, 10).
		Return(models.Chat{ID: 10, IsGroup: true, Status: models.ChatStatusActive}, nil)
	m.chatRepo.On("GetParticipant", mock.Anything, 10, 1).
		Return(models.ChatParticipant{ChatID: 10, UserID: 1, IsAdmin: true}, nil)
	m.messageRepo.On("SoftDeleteMessage", mock.Anything, 7).Return(nil).Once()

	require.NoError(t, svc.DeleteMessage(context.Background(), 7, 1))
	assert.Equal(t, []int{7}, m.notifier.msgDeleted)
}

func TestDeleteMessagePlainMemberDenied(t *testing.T) {
	svc, m := newMessageService()

	m.messageRepo.On("GetMessage", mock.Anything, 7).
		Return(models.Message{ID: 7, ChatID: 10, SenderID: 2}, nil)
	m.chatRepo.On("GetChat", mock.Anything, 10).
		Return(models.Chat{ID: 10, IsGroup: true, Status: models.ChatStatusActive}, nil)
	m.chatRepo.On("GetParticipant", mock.Anything, 10, 3).
		Return(models.ChatParticipant{ChatID: 10, UserID: 3}, nil)

	err := svc.DeleteMessage(context.Background(), 7, 3)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	m.messageRepo.AssertNotCalled(t, "SoftDeleteMessage", mock.Anything, mock.Anything)
}

func TestDeleteMessageIdempotent(t *testing.T) {
	svc, m := newMessageService()

	m.messageRepo.On("GetMessage", mock.Anything, 7).
		Return(models.Message{ID: 7, ChatID: 10, SenderID: 1, IsDeleted: true}, nil)

	require.NoError(t, svc.DeleteMessage(context.Background(), 7, 1))
	m.messageRepo.AssertNotCalled(t, "SoftDeleteMessage", mock.Anything, mock.Anything)
	assert.Empty(t, m.notifier.msgDeleted)
}

func TestToggleReactionSameEmojiRemoves(t *testing.T) {
	svc, m := newMessageService()

	m.messageRepo.On("GetMessage", mock.Anything, 7).
		Return(models.Message{ID: 7, ChatID: 10, SenderID: 2}, nil)
	m.chatRepo.On("GetParticipant", mock.Anything, 10, 1).
		Return(models.ChatParticipant{ChatID: 10, UserID: 1}, nil)
	m.messageRepo.On("GetReaction", mock.Anything, 7, 1).
		Return(models.MessageReaction{MessageID: 7, UserID: 1, Reaction: "👍"}, nil)
	m.messageRepo.On("RemoveReaction", mock.Anything, 7, 1).Return(nil).Once()

	require.NoError(t, svc.ToggleReaction(context.Background(), 7, 1, "👍"))
	assert.Equal(t, []int{7}, m.notifier.reactionDel)
	m.messageRepo.AssertNotCalled(t, "SetReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestToggleReactionDifferentEmojiReplaces(t *testing.T) {
	svc, m := newMessageService()

	m.messageRepo.On("GetMessage", mock.Anything, 7).
		Return(models.Message{ID: 7, ChatID: 10, SenderID: 2}, nil)
	m.chatRepo.On("GetParticipant", mock.Anything, 10, 1).
		Return(models.ChatParticipant{ChatID: 10, UserID: 1}, nil)
	m.messageRepo.On("GetReaction", mock.Anything, 7, 1).
		Return(models.MessageReaction{MessageID: 7, UserID: 1, Reaction: "👍"}, nil)
	m.messageRepo.On("SetReaction", mock.Anything, 7, 1, "❤️").
		Return(models.MessageReaction{MessageID: 7, UserID: 1, Reaction: "❤️"}, nil).Once()
	m.userRepo.On("GetByID", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil)

	require.NoError(t, svc.ToggleReaction(context.Background(), 7, 1, "❤️"))
	assert.Empty(t, m.notifier.reactionAdd)
	require.Len(t, m.notifier.reactionUpd, 1)
	assert.Equal(t, "❤️", m.notifier.reactionUpd[0].Reaction)
	assert.Equal(t, "alice", m.notifier.reactionUpd[0].Username)
	m.messageRepo.AssertNotCalled(t, "RemoveReaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestToggleReactionFirstTime(t *testing.T) {
	svc, m := newMessageService()

	m.messageRepo.On("GetMessage", mock.Anything, 7).
		Return(models.Message{ID: 7, ChatID: 10, SenderID: 2}, nil)
	m.chatRepo.On("GetParticipant", mock.Anything, 10, 1).
		Return(models.ChatParticipant{ChatID: 10, UserID: 1}, nil)
	m.messageRepo.On("GetReaction", mock.Anything, 7, 1).
		Return(models.MessageReaction{}, repositories.ErrReactionNotFound)
	m.messageRepo.On("SetReaction", mock.Anything, 7, 1, "👍").
		Return(models.MessageReaction{MessageID: 7, UserID: 1, Reaction: "👍"}, nil).Once()
	m.userRepo.On("GetByID", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil)

	require.NoError(t, svc.ToggleReaction(context.Background(), 7, 1, "👍"))
	require.Len(t, m.notifier.reactionAdd, 1)
}

func TestRemoveReactionHappyPath(t *testing.T) {
	svc, m := newMessageService()

	m.messageRepo.On("GetMessage", mock.Anything, 7).
		Return(models.Message{ID: 7, ChatID: 10, SenderID: 2}, nil)
	m.messageRepo.On("GetReaction", mock.Anything, 7, 1).
		Return(models.MessageReaction{MessageID: 7, UserID: 1, Reaction: "👍"}, nil)
	m.messageRepo.On("RemoveReaction", mock.Anything, 7, 1).Return(nil).Once()

	require.NoError(t, svc.RemoveReaction(context.Background(), 7, 1))
	assert.Equal(t, []int{7}, m.notifier.reactionDel)
}

func TestRemoveReactionNotFound(t *testing.T) {
	svc, m := newMessageService()

	m.messageRepo.On("GetMessage", mock.Anything, 7).
		Return(models.Message{ID: 7, ChatID: 10, SenderID: 2}, nil)
	m.messageRepo.On("GetReaction", mock.Anything, 7, 1).
		Return(models.MessageReaction{}, repositories.ErrReactionNotFound)

	err := svc.RemoveReaction(context.Background(), 7, 1)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	m.messageRepo.AssertNotCalled(t, "RemoveReaction", mock.Anything, mock.Anything, mock.Anything)
}
