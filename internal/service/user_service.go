package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"messenger-service/internal/apperr"
	"messenger-service/internal/middleware"
	"messenger-service/internal/models"
	"messenger-service/internal/presence"
	"messenger-service/internal/repositories"
	"messenger-service/internal/storage"
)

// UserService handles accounts, sessions, profiles and the block list.
type UserService struct {
	userRepo  repositories.UserRepository
	blockRepo repositories.BlockRepository
	chatRepo  repositories.ChatRepository
	jwt       *middleware.JWTManager
	files     storage.FileStore
	presence  *presence.Store
	notifier  Notifier
	views     *viewBuilder
}

// NewUserService constructs a UserService.
func NewUserService(
	userRepo repositories.UserRepository,
	blockRepo repositories.BlockRepository,
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	jwt *middleware.JWTManager,
	files storage.FileStore,
	presenceStore *presence.Store,
	notifier Notifier,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		blockRepo: blockRepo,
		chatRepo:  chatRepo,
		jwt:       jwt,
		files:     files,
		presence:  presenceStore,
		notifier:  notifier,
		views: &viewBuilder{
			chatRepo:    chatRepo,
			messageRepo: messageRepo,
			userRepo:    userRepo,
			blockRepo:   blockRepo,
		},
	}
}

// Register creates an account and returns the user with a fresh token.
func (s *UserService) Register(ctx context.Context, username, email, password string) (models.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" {
		return models.User{}, "", apperr.Validation("username and email are required")
	}
	if len(password) < 8 {
		return models.User{}, "", apperr.Validation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, "", apperr.Internal("hash password", err)
	}

	user, err := s.userRepo.Create(ctx, models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, repositories.ErrUserExists) {
			return models.User{}, "", apperr.Conflict("username or email already taken")
		}
		return models.User{}, "", apperr.Storage("create user", err)
	}

	token, err := s.jwt.Generate(user.ID)
	if err != nil {
		return models.User{}, "", apperr.Internal("issue token", err)
	}
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
func (s *UserService) Login(ctx context.Context, username, password string) (models.User, string, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.User{}, "", apperr.Authorization("invalid credentials")
		}
		return models.User{}, "", apperr.Storage("load user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return models.User{}, "", apperr.Authorization("invalid credentials")
	}

	token, err := s.jwt.Generate(user.ID)
	if err != nil {
		return models.User{}, "", apperr.Internal("issue token", err)
	}
	return user, token, nil
}

// GetUser returns a user's public profile.
func (s *UserService) GetUser(ctx context.Context, userID int) (models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.User{}, apperr.NotFound("user not found")
		}
		return models.User{}, apperr.Storage("load user", err)
	}
	return user, nil
}

// GetUserByUsername returns a user's public profile by exact username.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.User{}, apperr.NotFound("user not found")
		}
		return models.User{}, apperr.Storage("load user", err)
	}
	return user, nil
}

// SearchUsers finds users by partial username, excluding the caller.
func (s *UserService) SearchUsers(ctx context.Context, callerID int, query string) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.User{}, nil
	}
	users, err := s.userRepo.Search(ctx, query, callerID, 20)
	if err != nil {
		return nil, apperr.Storage("search users", err)
	}
	return users, nil
}

// Status returns the user's presence, preferring the shared store when one
// is configured.
func (s *UserService) Status(ctx context.Context, userID int) (models.UserStatus, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return models.UserStatus{}, err
	}
	status := models.UserStatus{UserID: user.ID, IsOnline: user.IsOnline, LastSeen: user.LastSeen}
	if s.presence != nil {
		if online, err := s.presence.IsOnline(ctx, userID); err == nil {
			status.IsOnline = online
		}
	}
	return status, nil
}

// UploadAvatar stores the image and updates the profile.
func (s *UserService) UploadAvatar(ctx context.Context, userID int, fileName, mimeType string, data []byte) (string, error) {
	if !storage.IsAllowedImageType(mimeType) {
		return "", apperr.Validation("unsupported image type: " + mimeType)
	}
	url, err := s.files.Save("avatars", fileName, mimeType, data)
	if err != nil {
		return "", apperr.Storage("store avatar", err)
	}
	if err := s.userRepo.UpdateAvatar(ctx, userID, url); err != nil {
		return "", apperr.Storage("update avatar", err)
	}
	return url, nil
}

// UpdateUsername renames the account.
func (s *UserService) UpdateUsername(ctx context.Context, userID int, username string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, apperr.Validation("username is required")
	}
	if err := s.userRepo.UpdateUsername(ctx, userID, username); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserExists):
			return models.User{}, apperr.Conflict("username already taken")
		case errors.Is(err, repositories.ErrUserNotFound):
			return models.User{}, apperr.NotFound("user not found")
		}
		return models.User{}, apperr.Storage("update username", err)
	}
	return s.GetUser(ctx, userID)
}

// ChangePassword swaps the password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID int, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return apperr.Authorization("current password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return apperr.Storage("update password", err)
	}
	return nil
}

// Contacts returns the people the caller shares an active direct chat
// with, excluding anyone blocked in either direction.
func (s *UserService) Contacts(ctx context.Context, callerID int) ([]models.User, error) {
	chats, err := s.chatRepo.ListChats(ctx, callerID, 0, 0)
	if err != nil {
		return nil, apperr.Storage("load chats", err)
	}

	out := make([]models.User, 0, len(chats))
	seen := map[int]bool{}
	for _, chat := range chats {
		if chat.IsGroup || chat.Status != models.ChatStatusActive {
			continue
		}
		participants, err := s.chatRepo.Participants(ctx, chat.ID)
		if err != nil {
			return nil, apperr.Storage("load participants", err)
		}
		for _, p := range participants {
			if p.UserID == callerID || seen[p.UserID] {
				continue
			}
			seen[p.UserID] = true
			blocked, err := s.blockRepo.IsBlockedEither(ctx, callerID, p.UserID)
			if err != nil {
				return nil, apperr.Storage("check block", err)
			}
			if blocked {
				continue
			}
			user, err := s.userRepo.GetByID(ctx, p.UserID)
			if err != nil {
				if errors.Is(err, repositories.ErrUserNotFound) {
					continue
				}
				return nil, apperr.Storage("load user", err)
			}
			out = append(out, user)
		}
	}
	return out, nil
}

// Relationship reports the block state between the caller and targetID:
// "blocked" when the caller blocks them, "blocked_by" when it is the
// other way around, "none" otherwise.
func (s *UserService) Relationship(ctx context.Context, callerID int, targetID int) (string, error) {
	if _, err := s.GetUser(ctx, targetID); err != nil {
		return "", err
	}
	blocked, err := s.blockRepo.IsBlocked(ctx, callerID, targetID)
	if err != nil {
		return "", apperr.Storage("check block", err)
	}
	if blocked {
		return "blocked", nil
	}
	blockedBy, err := s.blockRepo.IsBlocked(ctx, targetID, callerID)
	if err != nil {
		return "", apperr.Storage("check block", err)
	}
	if blockedBy {
		return "blocked_by", nil
	}
	return "none", nil
}

// Block adds targetID to the caller's block list.
func (s *UserService) Block(ctx context.Context, callerID int, targetID int) error {
	if callerID == targetID {
		return apperr.Validation("cannot block yourself")
	}
	if _, err := s.GetUser(ctx, targetID); err != nil {
		return err
	}
	if err := s.blockRepo.Block(ctx, callerID, targetID); err != nil {
		if errors.Is(err, repositories.ErrAlreadyBlocked) {
			return apperr.Conflict("user is already blocked")
		}
		return apperr.Storage("block user", err)
	}
	return nil
}

// Unblock removes targetID from the caller's block list. If the pair has a
// rejected direct chat, unblocking reopens it as active.
func (s *UserService) Unblock(ctx context.Context, callerID int, targetID int) error {
	if err := s.blockRepo.Unblock(ctx, callerID, targetID); err != nil {
		return apperr.Storage("unblock user", err)
	}

	chat, err := s.chatRepo.FindDirectChat(ctx, callerID, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			return nil
		}
		return apperr.Storage("find direct chat", err)
	}
	if chat.Status != models.ChatStatusRejected {
		return nil
	}

	if err := s.chatRepo.UpdateStatus(ctx, chat.ID, models.ChatStatusActive); err != nil {
		return apperr.Storage("reactivate chat", err)
	}
	chat.Status = models.ChatStatusActive

	participants, err := s.chatRepo.Participants(ctx, chat.ID)
	if err != nil {
		return apperr.Storage("load participants", err)
	}
	views, err := s.views.chatViewsForAll(ctx, chat, participants)
	if err != nil {
		return apperr.Storage("build views", err)
	}
	s.notifier.ChatStatusUpdated(views)
	return nil
}

// BlockedUsers returns the caller's block list as profiles.
func (s *UserService) BlockedUsers(ctx context.Context, callerID int) ([]models.User, error) {
	ids, err := s.blockRepo.BlockedIDs(ctx, callerID)
	if err != nil {
		return nil, apperr.Storage("load blocked users", err)
	}
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				continue
			}
			return nil, apperr.Storage("load user", err)
		}
		out = append(out, user)
	}
	return out, nil
}
