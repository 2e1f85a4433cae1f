package service

import (
	"time"

	"messenger-service/internal/models"
)

// recordingNotifier captures everything the services push out, in order.
type recordingNotifier struct {
	created       []map[int]models.ChatView
	updated       []map[int]models.ChatView
	joined        []int
	left          []int
	deleted       []int
	statusUpdated []map[int]models.ChatView
	muteUpdated   []models.MuteUpdate
	newMessages   []models.MessageView
	notifications []map[int]models.NewMessageNotification
	edited        []models.MessageView
	msgDeleted    []int
	reactionAdd   []models.MessageReaction
	reactionUpd   []models.MessageReaction
	reactionDel   []int
	userStatus    []models.UserStatus
}

func (n *recordingNotifier) ChatCreated(chatID int, views map[int]models.ChatView) {
	n.created = append(n.created, views)
}

func (n *recordingNotifier) ChatUpdated(views map[int]models.ChatView) {
	n.updated = append(n.updated, views)
}

func (n *recordingNotifier) ChatJoined(chatID int, joinedUserID int, joinedView models.ChatView, others map[int]models.ChatView) {
	n.joined = append(n.joined, joinedUserID)
	n.updated = append(n.updated, others)
}

func (n *recordingNotifier) ChatLeft(chatID int, leftUserID int, remaining map[int]models.ChatView) {
	n.left = append(n.left, leftUserID)
	if remaining != nil {
		n.updated = append(n.updated, remaining)
	}
}

func (n *recordingNotifier) ChatDeleted(chatID int, userIDs []int) {
	n.deleted = append(n.deleted, chatID)
}

func (n *recordingNotifier) ChatStatusUpdated(views map[int]models.ChatView) {
	n.statusUpdated = append(n.statusUpdated, views)
}

func (n *recordingNotifier) ChatMuteStatusUpdated(userID int, update models.MuteUpdate) {
	n.muteUpdated = append(n.muteUpdated, update)
}

func (n *recordingNotifier) NewMessage(chatID int, view models.MessageView, notifications map[int]models.NewMessageNotification) {
	n.newMessages = append(n.newMessages, view)
	n.notifications = append(n.notifications, notifications)
}

func (n *recordingNotifier) MessageEdited(chatID int, view models.MessageView) {
	n.edited = append(n.edited, view)
}

func (n *recordingNotifier) MessageDeleted(chatID int, messageID int) {
	n.msgDeleted = append(n.msgDeleted, messageID)
}

func (n *recordingNotifier) ReactionAdded(chatID int, reaction models.MessageReaction) {
	n.reactionAdd = append(n.reactionAdd, reaction)
}

func (n *recordingNotifier) ReactionUpdated(chatID int, reaction models.MessageReaction) {
	n.reactionUpd = append(n.reactionUpd, reaction)
}

func (n *recordingNotifier) ReactionRemoved(chatID int, messageID int, userID int) {
	n.reactionDel = append(n.reactionDel, messageID)
}

func (n *recordingNotifier) UserStatusUpdated(status models.UserStatus) {
	n.userStatus = append(n.userStatus, status)
}

func participantInfo(chatID, userID int, username string, isAdmin bool, joined time.Time) models.ParticipantInfo {
	return models.ParticipantInfo{
		ChatParticipant: models.ChatParticipant{
			ChatID:   chatID,
			UserID:   userID,
			IsAdmin:  isAdmin,
			JoinedAt: joined,
		},
		Username: username,
	}
}
