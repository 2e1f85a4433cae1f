package service

import "messenger-service/internal/models"

// Notifier is the realtime surface the services push outcomes through; the
// fanout dispatcher implements it.
type Notifier interface {
	ChatCreated(chatID int, views map[int]models.ChatView)
	ChatUpdated(views map[int]models.ChatView)
	ChatJoined(chatID int, joinedUserID int, joinedView models.ChatView, others map[int]models.ChatView)
	ChatLeft(chatID int, leftUserID int, remaining map[int]models.ChatView)
	ChatDeleted(chatID int, userIDs []int)
	ChatStatusUpdated(views map[int]models.ChatView)
	ChatMuteStatusUpdated(userID int, update models.MuteUpdate)
	NewMessage(chatID int, view models.MessageView, notifications map[int]models.NewMessageNotification)
	MessageEdited(chatID int, view models.MessageView)
	MessageDeleted(chatID int, messageID int)
	ReactionAdded(chatID int, reaction models.MessageReaction)
	ReactionUpdated(chatID int, reaction models.MessageReaction)
	ReactionRemoved(chatID int, messageID int, userID int)
	UserStatusUpdated(status models.UserStatus)
}
