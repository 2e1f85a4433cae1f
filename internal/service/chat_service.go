package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"messenger-service/internal/apperr"
	"messenger-service/internal/chatrules"
	"messenger-service/internal/logging"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/storage"
)

// ChatService orchestrates chat lifecycle and membership: it loads state,
// applies the chatrules decisions, persists the outcome, and fans the
// result out to everyone it concerns.
type ChatService struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	blockRepo   repositories.BlockRepository
	files       storage.FileStore
	notifier    Notifier
	views       *viewBuilder
}

// NewChatService constructs a ChatService.
func NewChatService(
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	blockRepo repositories.BlockRepository,
	files storage.FileStore,
	notifier Notifier,
) *ChatService {
	return &ChatService{
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

// CreateDirectChat starts a pending direct chat from initiatorID to
// recipientID. If an active chat between the two already exists it is
// returned as-is.
func (s *ChatService) CreateDirectChat(ctx context.Context, initiatorID int, recipientID int) (models.ChatView, error) {
	if initiatorID == recipientID {
		return models.ChatView{}, apperr.Validation("cannot start a chat with yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.ChatView{}, apperr.NotFound("user not found")
		}
		return models.ChatView{}, apperr.Storage("load recipient", err)
	}

	blocked, err := s.blockRepo.IsBlockedEither(ctx, initiatorID, recipientID)
	if err != nil {
		return models.ChatView{}, apperr.Storage("check block", err)
	}
	if blocked {
		return models.ChatView{}, apperr.Authorization("cannot start a chat with this user")
	}

	existing, err := s.chatRepo.FindDirectChat(ctx, initiatorID, recipientID)
	switch {
	case err == nil:
		if existing.Status == models.ChatStatusActive {
			return s.viewFor(ctx, existing, initiatorID)
		}
		return models.ChatView{}, chatrules.CheckCreateDirect(&existing)
	case errors.Is(err, repositories.ErrChatNotFound):
		// no prior chat, proceed
	default:
		return models.ChatView{}, apperr.Storage("find direct chat", err)
	}

	chat := models.Chat{IsGroup: false, Status: models.ChatStatusPending}
	chat, err = s.chatRepo.CreateChat(ctx, chat, []models.ChatParticipant{
		{UserID: initiatorID, IsAdmin: true},
		{UserID: recipientID},
	})
	if err != nil {
		return models.ChatView{}, apperr.Storage("create chat", err)
	}

	return s.announceCreated(ctx, chat, initiatorID)
}

// CreateGroupChat creates an active group chat with the creator as admin.
func (s *ChatService) CreateGroupChat(ctx context.Context, creatorID int, name string, memberIDs []int) (models.ChatView, error) {
	if name == "" {
		return models.ChatView{}, apperr.Validation("group name is required")
	}

	participants := []models.ChatParticipant{{UserID: creatorID, IsAdmin: true}}
	seen := map[int]bool{creatorID: true}
	for _, id := range memberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.userRepo.GetByID(ctx, id); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return models.ChatView{}, apperr.NotFound(fmt.Sprintf("user %d not found", id))
			}
			return models.ChatView{}, apperr.Storage("load member", err)
		}
		participants = append(participants, models.ChatParticipant{UserID: id})
	}

	chat := models.Chat{Name: name, IsGroup: true, Status: models.ChatStatusActive}
	chat, err := s.chatRepo.CreateChat(ctx, chat, participants)
	if err != nil {
		return models.ChatView{}, apperr.Storage("create chat", err)
	}

	s.trySystemMessage(ctx, chat, creatorID, "created the group")

	return s.announceCreated(ctx, chat, creatorID)
}

func (s *ChatService) announceCreated(ctx context.Context, chat models.Chat, viewerID int) (models.ChatView, error) {
	participants, err := s.chatRepo.Participants(ctx, chat.ID)
	if err != nil {
		return models.ChatView{}, apperr.Storage("load participants", err)
	}
	views, err := s.views.chatViewsForAll(ctx, chat, participants)
	if err != nil {
		return models.ChatView{}, apperr.Storage("build views", err)
	}
	s.notifier.ChatCreated(chat.ID, views)
	return views[viewerID], nil
}

// RespondToInvite accepts or rejects a pending direct chat. Rejecting also
// blocks the initiator so they cannot immediately retry.
func (s *ChatService) RespondToInvite(ctx context.Context, chatID int, userID int, accept bool) (models.ChatView, error) {
	chat, participants, err := s.loadChat(ctx, chatID)
	if err != nil {
		return models.ChatView{}, err
	}
	if err := chatrules.CheckRespondToInvite(chat, participants, userID); err != nil {
		return models.ChatView{}, err
	}

	target := models.ChatStatusActive
	if !accept {
		target = models.ChatStatusRejected
	}
	if err := chatrules.CheckTransition(chat.Status, target); err != nil {
		return models.ChatView{}, err
	}
	if err := s.chatRepo.UpdateStatus(ctx, chatID, target); err != nil {
		return models.ChatView{}, apperr.Storage("update status", err)
	}
	chat.Status = target

	if !accept {
		initiatorID := 0
		for _, p := range participants {
			if p.IsAdmin {
				initiatorID = p.UserID
			}
		}
		if initiatorID != 0 {
			if err := s.blockRepo.Block(ctx, userID, initiatorID); err != nil {
				return models.ChatView{}, apperr.Storage("block initiator", err)
			}
		}
	}

	views, err := s.views.chatViewsForAll(ctx, chat, participants)
	if err != nil {
		return models.ChatView{}, apperr.Storage("build views", err)
	}
	s.notifier.ChatStatusUpdated(views)
	return views[userID], nil
}

// GetUserChats returns a page of the viewer's chat list, personalized.
// A non-positive limit returns everything.
func (s *ChatService) GetUserChats(ctx context.Context, userID int, limit int, offset int) ([]models.ChatView, error) {
	chats, err := s.chatRepo.ListChats(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperr.Storage("list chats", err)
	}

	out := make([]models.ChatView, 0, len(chats))
	for _, chat := range chats {
		view, err := s.viewFor(ctx, chat, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// SearchChats filters the viewer's chats by name. Direct chats match on
// the other participant's username, the same name the viewer sees.
func (s *ChatService) SearchChats(ctx context.Context, userID int, query string) ([]models.ChatView, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.ChatView{}, nil
	}

	views, err := s.GetUserChats(ctx, userID, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]models.ChatView, 0, len(views))
	for _, view := range views {
		if strings.Contains(strings.ToLower(view.Name), query) {
			out = append(out, view)
		}
	}
	return out, nil
}

// GetChat returns the viewer's view of one chat.
func (s *ChatService) GetChat(ctx context.Context, chatID int, userID int) (models.ChatView, error) {
	chat, participants, err := s.loadChat(ctx, chatID)
	if err != nil {
		return models.ChatView{}, err
	}
	if !isParticipant(participants, userID) {
		return models.ChatView{}, apperr.Authorization("not a participant of this chat")
	}
	view, err := s.views.chatViewFor(ctx, chat, participants, userID)
	if err != nil {
		return models.ChatView{}, apperr.Storage("build view", err)
	}
	return view, nil
}

// UpdateChat renames a group chat or replaces its avatar.
func (s *ChatService) UpdateChat(ctx context.Context, chatID int, actorID int, name string, avatarURL string) (models.ChatView, error) {
	chat, participants, err := s.loadChat(ctx, chatID)
	if err != nil {
		return models.ChatView{}, err
	}
	actor, ok := findParticipant(participants, actorID)
	if !ok {
		return models.ChatView{}, apperr.Authorization("not a participant of this chat")
	}
	if err := chatrules.CheckEditChat(chat, actor.ChatParticipant); err != nil {
		return models.ChatView{}, err
	}
	if name == "" {
		name = chat.Name
	}
	if avatarURL == "" {
		avatarURL = chat.AvatarURL
	}
	renamed := name != chat.Name
	avatarChanged := avatarURL != chat.AvatarURL
	if err := s.chatRepo.UpdateChat(ctx, chatID, name, avatarURL); err != nil {
		return models.ChatView{}, apperr.Storage("update chat", err)
	}
	chat.Name = name
	chat.AvatarURL = avatarURL

	if renamed {
		s.trySystemMessage(ctx, chat, actorID, fmt.Sprintf("%s renamed the chat to %s", actor.Username, name))
	} else if avatarChanged {
		s.trySystemMessage(ctx, chat, actorID, fmt.Sprintf("%s updated the chat avatar", actor.Username))
	}

	views, err := s.views.chatViewsForAll(ctx, chat, participants)
	if err != nil {
		return models.ChatView{}, apperr.Storage("build views", err)
	}
	s.notifier.ChatUpdated(views)
	return views[actorID], nil
}

// DeleteChat removes the chat for everyone.
func (s *ChatService) DeleteChat(ctx context.Context, chatID int, actorID int) error {
	chat, participants, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	actor, ok := findParticipant(participants, actorID)
	if !ok {
		return apperr.Authorization("not a participant of this chat")
	}
	if err := chatrules.CheckDeleteChat(chat, actor.ChatParticipant); err != nil {
		return err
	}

	userIDs := make([]int, 0, len(participants))
	for _, p := range participants {
		userIDs = append(userIDs, p.UserID)
	}

	if err := s.chatRepo.DeleteChat(ctx, chatID); err != nil {
		return apperr.Storage("delete chat", err)
	}
	s.notifier.ChatDeleted(chatID, userIDs)
	return nil
}

// AddParticipant adds newUserID to a group chat.
func (s *ChatService) AddParticipant(ctx context.Context, chatID int, actorID int, newUserID int) error {
	chat, participants, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	actor, ok := findParticipant(participants, actorID)
	if !ok {
		return apperr.Authorization("not a participant of this chat")
	}
	if err := chatrules.CheckAddParticipant(chat, actor.ChatParticipant); err != nil {
		return err
	}
	if isParticipant(participants, newUserID) {
		return apperr.Conflict("user is already a participant")
	}

	newUser, err := s.userRepo.GetByID(ctx, newUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Storage("load user", err)
	}

	if err := s.chatRepo.AddParticipant(ctx, models.ChatParticipant{ChatID: chatID, UserID: newUserID}); err != nil {
		return apperr.Storage("add participant", err)
	}

	s.trySystemMessage(ctx, chat, newUserID, fmt.Sprintf("%s joined the chat", newUser.Username))

	participants, err = s.chatRepo.Participants(ctx, chatID)
	if err != nil {
		return apperr.Storage("load participants", err)
	}
	views, err := s.views.chatViewsForAll(ctx, chat, participants)
	if err != nil {
		return apperr.Storage("build views", err)
	}
	joinedView := views[newUserID]
	delete(views, newUserID)
	s.notifier.ChatJoined(chatID, newUserID, joinedView, views)
	return nil
}

// RemoveParticipant kicks targetID out of a group chat. Members may kick
// themselves unless they are the sole admin of a group that still has
// other members; that departure must go through LeaveChat so a successor
// is promoted.
func (s *ChatService) RemoveParticipant(ctx context.Context, chatID int, actorID int, targetID int) error {
	chat, participants, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	actor, ok := findParticipant(participants, actorID)
	if !ok {
		return apperr.Authorization("not a participant of this chat")
	}
	target, ok := findParticipant(participants, targetID)
	if !ok {
		return apperr.NotFound("participant not found")
	}
	if err := chatrules.CheckRemoveParticipant(chat, participants, actor.ChatParticipant, target.ChatParticipant); err != nil {
		return err
	}

	return s.completeDeparture(ctx, chat, actorID, target)
}

// LeaveChat removes the caller from a group chat. If the leaver is the
// last admin and other members remain, the longest-standing remaining
// member is promoted first; the last participant leaving deletes the chat.
func (s *ChatService) LeaveChat(ctx context.Context, chatID int, userID int) error {
	chat, participants, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.IsGroup {
		return apperr.Validation("cannot leave a direct chat")
	}
	leaver, ok := findParticipant(participants, userID)
	if !ok {
		return apperr.Authorization("not a participant of this chat")
	}

	if chatrules.NeedsPromotion(participants, userID) {
		if promoteeID, found := chatrules.PromotionTarget(participants, userID); found {
			if err := s.chatRepo.SetAdmin(ctx, chatID, promoteeID, true); err != nil {
				return apperr.Storage("promote admin", err)
			}
			for _, p := range participants {
				if p.UserID == promoteeID {
					s.trySystemMessage(ctx, chat, promoteeID, fmt.Sprintf("%s is now an admin", p.Username))
					break
				}
			}
		}
	}

	return s.completeDeparture(ctx, chat, userID, leaver)
}

// completeDeparture deletes the target's participant row, announces the
// departure, and either fans out the new roster or deletes a now-empty
// chat.
func (s *ChatService) completeDeparture(ctx context.Context, chat models.Chat, actorID int, target models.ParticipantInfo) error {
	if err := s.chatRepo.RemoveParticipant(ctx, chat.ID, target.UserID); err != nil {
		return apperr.Storage("remove participant", err)
	}

	text := fmt.Sprintf("%s left the chat", target.Username)
	if actorID != target.UserID {
		text = fmt.Sprintf("%s was removed from the chat", target.Username)
	}
	s.trySystemMessage(ctx, chat, actorID, text)

	remaining, err := s.chatRepo.Participants(ctx, chat.ID)
	if err != nil {
		return apperr.Storage("load participants", err)
	}
	if len(remaining) == 0 {
		if err := s.chatRepo.DeleteChat(ctx, chat.ID); err != nil {
			return apperr.Storage("delete empty chat", err)
		}
		s.notifier.ChatLeft(chat.ID, target.UserID, nil)
		return nil
	}

	views, err := s.views.chatViewsForAll(ctx, chat, remaining)
	if err != nil {
		return apperr.Storage("build views", err)
	}
	s.notifier.ChatLeft(chat.ID, target.UserID, views)
	return nil
}

// ToggleMute flips the viewer-local mute flag and syncs their devices.
func (s *ChatService) ToggleMute(ctx context.Context, chatID int, userID int) (bool, error) {
	p, err := s.chatRepo.GetParticipant(ctx, chatID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return false, apperr.Authorization("not a participant of this chat")
		}
		return false, apperr.Storage("load participant", err)
	}

	muted := !p.IsMuted
	if err := s.chatRepo.SetMuted(ctx, chatID, userID, muted); err != nil {
		return false, apperr.Storage("set muted", err)
	}

	s.notifier.ChatMuteStatusUpdated(userID, models.MuteUpdate{ChatID: chatID, UserID: userID, IsMuted: muted})
	return muted, nil
}

// MarkRead advances the viewer's read cursor to messageID.
func (s *ChatService) MarkRead(ctx context.Context, chatID int, userID int, messageID int) error {
	if _, err := s.chatRepo.GetParticipant(ctx, chatID, userID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return apperr.Authorization("not a participant of this chat")
		}
		return apperr.Storage("load participant", err)
	}
	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return apperr.NotFound("message not found")
		}
		return apperr.Storage("load message", err)
	}
	if msg.ChatID != chatID {
		return apperr.Validation("message does not belong to this chat")
	}
	if err := s.chatRepo.AdvanceLastRead(ctx, chatID, userID, messageID, msg.SentAt); err != nil {
		return apperr.Storage("advance read cursor", err)
	}
	return nil
}

// UploadAvatar stores a new group chat image and announces the change.
func (s *ChatService) UploadAvatar(ctx context.Context, chatID int, actorID int, fileName, mimeType string, data []byte) (models.ChatView, error) {
	if !storage.IsAllowedImageType(mimeType) {
		return models.ChatView{}, apperr.Validation("unsupported image type: " + mimeType)
	}
	url, err := s.files.Save("chat-avatars", fileName, mimeType, data)
	if err != nil {
		return models.ChatView{}, apperr.Storage("store avatar", err)
	}
	return s.UpdateChat(ctx, chatID, actorID, "", url)
}

// trySystemMessage posts a system line; failures are logged, never
// propagated, because the triggering mutation already committed.
func (s *ChatService) trySystemMessage(ctx context.Context, chat models.Chat, actorID int, text string) {
	if err := s.postSystemMessage(ctx, chat, actorID, text); err != nil {
		logging.Component("service").WithError(err).Warn("failed to post system message")
	}
}

// postSystemMessage records a system line in the chat timeline and pushes
// it to connected members.
func (s *ChatService) postSystemMessage(ctx context.Context, chat models.Chat, actorID int, text string) error {
	msg := models.Message{ChatID: chat.ID, SenderID: actorID, Content: &text, IsSystem: true}
	msg, _, err := s.messageRepo.CreateMessage(ctx, msg, nil)
	if err != nil {
		return err
	}
	participants, err := s.chatRepo.Participants(ctx, chat.ID)
	if err != nil {
		return err
	}
	views, err := s.views.messageViews(ctx, []models.Message{msg}, participants)
	if err != nil || len(views) != 1 {
		return err
	}
	s.notifier.NewMessage(chat.ID, views[0], nil)
	return nil
}

func (s *ChatService) viewFor(ctx context.Context, chat models.Chat, viewerID int) (models.ChatView, error) {
	participants, err := s.chatRepo.Participants(ctx, chat.ID)
	if err != nil {
		return models.ChatView{}, apperr.Storage("load participants", err)
	}
	view, err := s.views.chatViewFor(ctx, chat, participants, viewerID)
	if err != nil {
		return models.ChatView{}, apperr.Storage("build view", err)
	}
	return view, nil
}

func (s *ChatService) loadChat(ctx context.Context, chatID int) (models.Chat, []models.ParticipantInfo, error) {
	chat, err := s.chatRepo.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return models.Chat{}, nil, apperr.NotFound("chat not found")
		}
		return models.Chat{}, nil, apperr.Storage("load chat", err)
	}
	participants, err := s.chatRepo.Participants(ctx, chatID)
	if err != nil {
		return models.Chat{}, nil, apperr.Storage("load participants", err)
	}
	return chat, participants, nil
}

func isParticipant(participants []models.ParticipantInfo, userID int) bool {
	_, ok := findParticipant(participants, userID)
	return ok
}

func findParticipant(participants []models.ParticipantInfo, userID int) (models.ParticipantInfo, bool) {
	for _, p := range participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return models.ParticipantInfo{}, false
}
