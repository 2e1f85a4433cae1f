package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/service"
)

// noopNotifier drops every event; handler tests assert on HTTP behavior.
type noopNotifier struct{}

func (noopNotifier) ChatCreated(int, map[int]models.ChatView)                       {}
func (noopNotifier) ChatUpdated(map[int]models.ChatView)                            {}
func (noopNotifier) ChatJoined(int, int, models.ChatView, map[int]models.ChatView)  {}
func (noopNotifier) ChatLeft(int, int, map[int]models.ChatView)                     {}
func (noopNotifier) ChatDeleted(int, []int)                                         {}
func (noopNotifier) ChatStatusUpdated(map[int]models.ChatView)                      {}
func (noopNotifier) ChatMuteStatusUpdated(int, models.MuteUpdate)                   {}
func (noopNotifier) NewMessage(int, models.MessageView, map[int]models.NewMessageNotification) {}
func (noopNotifier) MessageEdited(int, models.MessageView)                          {}
func (noopNotifier) MessageDeleted(int, int)                                        {}
func (noopNotifier) ReactionAdded(int, models.MessageReaction)                      {}
func (noopNotifier) ReactionUpdated(int, models.MessageReaction)                    {}
func (noopNotifier) ReactionRemoved(int, int, int)                                  {}
func (noopNotifier) UserStatusUpdated(models.UserStatus)                            {}

type stubFileStore struct{}

func (stubFileStore) Save(subdir, name, _ string, _ []byte) (string, error) {
	return "/files/" + subdir + "/" + name, nil
}
func (stubFileStore) Remove(string) error { return nil }

type chatHandlerDeps struct {
	chatRepo    *mocks.ChatRepositoryMock
	messageRepo *mocks.MessageRepositoryMock
	userRepo    *mocks.UserRepositoryMock
	blockRepo   *mocks.BlockRepositoryMock
}

func setupChatRouter() (*gin.Engine, *chatHandlerDeps) {
	deps := &chatHandlerDeps{
		chatRepo:    new(mocks.ChatRepositoryMock),
		messageRepo: new(mocks.MessageRepositoryMock),
		userRepo:    new(mocks.UserRepositoryMock),
		blockRepo:   new(mocks.BlockRepositoryMock),
	}
	chats := service.NewChatService(deps.chatRepo, deps.messageRepo, deps.userRepo, deps.blockRepo, stubFileStore{}, noopNotifier{})
	handler := NewChatHandler(chats, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/chats", handler.List)
	r.POST("/chats/direct", handler.CreateDirect)
	r.GET("/chats/:chat_id", handler.Get)
	r.POST("/chats/:chat_id/respond", handler.Respond)
	r.POST("/chats/:chat_id/mute", handler.Mute)
	return r, deps
}

func TestListChatsSuccess(t *testing.T) {
	router, deps := setupChatRouter()
	now := time.Now()

	deps.chatRepo.On("ListChats", mock.Anything, 1, 0, 0).Return([]models.Chat{
		{ID: 3, IsGroup: true, Name: "team", Status: models.ChatStatusActive, CreatedAt: now},
	}, nil).Once()
	deps.chatRepo.On("Participants", mock.Anything, 3).Return([]models.ParticipantInfo{
		{ChatParticipant: models.ChatParticipant{ChatID: 3, UserID: 1, IsAdmin: true, JoinedAt: now}, Username: "alice"},
	}, nil)
	deps.blockRepo.On("BlockedIDs", mock.Anything, 1).Return([]int{}, nil)
	deps.messageRepo.On("LastMessage", mock.Anything, 3, mock.Anything).
		Return(models.Message{}, repositories.ErrMessageNotFound)
	deps.chatRepo.On("UnreadCount", mock.Anything, 3, 1, mock.Anything).Return(0, nil)

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.ChatView `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, "team", resp.Chats[0].Name)
	deps.chatRepo.AssertExpectations(t)
}

func TestListChatsRepoError(t *testing.T) {
	router, deps := setupChatRouter()

	deps.chatRepo.On("ListChats", mock.Anything, 1, 0, 0).
		Return(([]models.Chat)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "internal error", resp["error"], "storage details must not leak")
}

func TestCreateDirectChatWithSelfRejected(t *testing.T) {
	router, _ := setupChatRouter()

	body := bytes.NewBufferString(`{"user_id":1}`)
	req := httptest.NewRequest(http.MethodPost, "/chats/direct", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDirectChatMissingBody(t *testing.T) {
	router, _ := setupChatRouter()

	req := httptest.NewRequest(http.MethodPost, "/chats/direct", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChatNotFound(t *testing.T) {
	router, deps := setupChatRouter()

	deps.chatRepo.On("GetChat", mock.Anything, 42).
		Return(models.Chat{}, repositories.ErrChatNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetChatBadID(t *testing.T) {
	router, _ := setupChatRouter()

	req := httptest.NewRequest(http.MethodGet, "/chats/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRespondRequiresAcceptField(t *testing.T) {
	router, _ := setupChatRouter()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/respond", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMuteNonParticipantForbidden(t *testing.T) {
	router, deps := setupChatRouter()

	deps.chatRepo.On("GetParticipant", mock.Anything, 5, 1).
		Return(models.ChatParticipant{}, repositories.ErrParticipantNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/mute", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
