// Package fanout turns domain-level outcomes into realtime frames. The
// dispatcher decides who hears about an event and with which personalized
// payload; the hub decides how the bytes reach each socket.
package fanout

import (
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/ws"
)

// Event names pushed to clients.
const (
	EventChatCreated           = "ChatCreated"
	EventChatUpdated           = "ChatUpdated"
	EventChatJoined            = "ChatJoined"
	EventChatLeft              = "ChatLeft"
	EventChatDeleted           = "ChatDeleted"
	EventChatStatusUpdated     = "ChatStatusUpdated"
	EventChatMuteStatusUpdated = "ChatMuteStatusUpdated"
	EventReceiveMessage        = "ReceiveMessage"
	EventReceiveNewMessage     = "ReceiveNewMessage"
	EventNewMessageNotify      = "NewMessageNotification"
	EventMessageEdited         = "MessageEdited"
	EventMessageDeleted        = "MessageDeleted"
	EventReactionAdded         = "MessageReactionAdded"
	EventReactionUpdated       = "MessageReactionUpdated"
	EventReactionRemoved       = "MessageReactionRemoved"
	EventUserStatusUpdated     = "UserStatusUpdated"
	EventUserTyping            = "UserTyping"
)

// Sender is the hub surface the dispatcher needs.
type Sender interface {
	Send(connID string, frame ws.Frame)
	BroadcastGroup(key string, frame ws.Frame, except ...string)
	BroadcastAll(frame ws.Frame)
	JoinGroup(key string, connID string)
	LeaveGroup(key string, connID string)
}

// ConnSource resolves a user to their live connection ids.
type ConnSource interface {
	Connections(userID int) []string
}

// Dispatcher fans events out to the users they concern. Payloads are
// personalized per recipient where the view depends on the viewer.
type Dispatcher struct {
	hub   Sender
	conns ConnSource
}

// New constructs a Dispatcher.
func New(hub Sender, conns ConnSource) *Dispatcher {
	return &Dispatcher{hub: hub, conns: conns}
}

// sendToUser delivers a frame to every live connection of one user.
func (d *Dispatcher) sendToUser(userID int, frame ws.Frame) {
	for _, connID := range d.conns.Connections(userID) {
		d.hub.Send(connID, frame)
	}
}

// joinUser subscribes every live connection of the user to the chat group.
func (d *Dispatcher) joinUser(chatID int, userID int) {
	key := ws.GroupKey(chatID)
	for _, connID := range d.conns.Connections(userID) {
		d.hub.JoinGroup(key, connID)
	}
}

// leaveUser unsubscribes every live connection of the user from the chat
// group.
func (d *Dispatcher) leaveUser(chatID int, userID int) {
	key := ws.GroupKey(chatID)
	for _, connID := range d.conns.Connections(userID) {
		d.hub.LeaveGroup(key, connID)
	}
}

// ChatCreated tells each participant about the new chat with their own view
// and subscribes their connections to it.
func (d *Dispatcher) ChatCreated(chatID int, views map[int]models.ChatView) {
	observability.IncFanoutEvent(EventChatCreated)
	for userID, view := range views {
		d.joinUser(chatID, userID)
		d.sendToUser(userID, ws.Frame{Event: EventChatCreated, Payload: view})
	}
}

// ChatUpdated pushes each participant their refreshed view of the chat.
func (d *Dispatcher) ChatUpdated(views map[int]models.ChatView) {
	observability.IncFanoutEvent(EventChatUpdated)
	for userID, view := range views {
		d.sendToUser(userID, ws.Frame{Event: EventChatUpdated, Payload: view})
	}
}

// ChatJoined tells the added user about their new chat and subscribes them;
// the other members get ChatUpdated views.
func (d *Dispatcher) ChatJoined(chatID int, joinedUserID int, joinedView models.ChatView, others map[int]models.ChatView) {
	observability.IncFanoutEvent(EventChatJoined)
	d.joinUser(chatID, joinedUserID)
	d.sendToUser(joinedUserID, ws.Frame{Event: EventChatJoined, Payload: joinedView})
	d.ChatUpdated(others)
}

// ChatLeft unsubscribes the removed user and tells them; remaining members
// get ChatUpdated views.
func (d *Dispatcher) ChatLeft(chatID int, leftUserID int, remaining map[int]models.ChatView) {
	observability.IncFanoutEvent(EventChatLeft)
	d.sendToUser(leftUserID, ws.Frame{Event: EventChatLeft, Payload: map[string]int{"chat_id": chatID}})
	d.leaveUser(chatID, leftUserID)
	d.ChatUpdated(remaining)
}

// ChatDeleted tells every former participant and tears the group down.
func (d *Dispatcher) ChatDeleted(chatID int, userIDs []int) {
	observability.IncFanoutEvent(EventChatDeleted)
	frame := ws.Frame{Event: EventChatDeleted, Payload: map[string]int{"chat_id": chatID}}
	for _, userID := range userIDs {
		d.sendToUser(userID, frame)
		d.leaveUser(chatID, userID)
	}
}

// ChatStatusUpdated pushes each participant their view after a lifecycle
// transition.
func (d *Dispatcher) ChatStatusUpdated(views map[int]models.ChatView) {
	observability.IncFanoutEvent(EventChatStatusUpdated)
	for userID, view := range views {
		d.sendToUser(userID, ws.Frame{Event: EventChatStatusUpdated, Payload: view})
	}
}

// ChatMuteStatusUpdated syncs a mute toggle across the user's own devices.
func (d *Dispatcher) ChatMuteStatusUpdated(userID int, update models.MuteUpdate) {
	observability.IncFanoutEvent(EventChatMuteStatusUpdated)
	d.sendToUser(userID, ws.Frame{Event: EventChatMuteStatusUpdated, Payload: update})
}

// NewMessage broadcasts the message to the chat group, then sends each
// participant their personalized badge notification. The sender's devices
// are included so they stay in sync. System lines go out as ReceiveMessage;
// they carry no badge notifications.
func (d *Dispatcher) NewMessage(chatID int, view models.MessageView, notifications map[int]models.NewMessageNotification) {
	event := EventReceiveNewMessage
	if view.IsSystem {
		event = EventReceiveMessage
	}
	observability.IncFanoutEvent(event)
	d.hub.BroadcastGroup(ws.GroupKey(chatID), ws.Frame{Event: event, Payload: view})
	for userID, notification := range notifications {
		d.sendToUser(userID, ws.Frame{Event: EventNewMessageNotify, Payload: notification})
	}
}

// MessageEdited broadcasts the edited message to the chat group.
func (d *Dispatcher) MessageEdited(chatID int, view models.MessageView) {
	observability.IncFanoutEvent(EventMessageEdited)
	d.hub.BroadcastGroup(ws.GroupKey(chatID), ws.Frame{Event: EventMessageEdited, Payload: view})
}

// MessageDeleted broadcasts the tombstone to the chat group.
func (d *Dispatcher) MessageDeleted(chatID int, messageID int) {
	observability.IncFanoutEvent(EventMessageDeleted)
	d.hub.BroadcastGroup(ws.GroupKey(chatID), ws.Frame{
		Event:   EventMessageDeleted,
		Payload: map[string]int{"chat_id": chatID, "message_id": messageID},
	})
}

// ReactionAdded broadcasts a new or replaced reaction to the chat group.
func (d *Dispatcher) ReactionAdded(chatID int, reaction models.MessageReaction) {
	observability.IncFanoutEvent(EventReactionAdded)
	d.hub.BroadcastGroup(ws.GroupKey(chatID), ws.Frame{Event: EventReactionAdded, Payload: reaction})
}

// ReactionUpdated broadcasts a reaction whose emoji changed.
func (d *Dispatcher) ReactionUpdated(chatID int, reaction models.MessageReaction) {
	observability.IncFanoutEvent(EventReactionUpdated)
	d.hub.BroadcastGroup(ws.GroupKey(chatID), ws.Frame{Event: EventReactionUpdated, Payload: reaction})
}

// ReactionRemoved broadcasts a reaction removal to the chat group.
func (d *Dispatcher) ReactionRemoved(chatID int, messageID int, userID int) {
	observability.IncFanoutEvent(EventReactionRemoved)
	d.hub.BroadcastGroup(ws.GroupKey(chatID), ws.Frame{
		Event:   EventReactionRemoved,
		Payload: map[string]int{"chat_id": chatID, "message_id": messageID, "user_id": userID},
	})
}

// UserStatusUpdated announces a presence edge to everyone connected.
func (d *Dispatcher) UserStatusUpdated(status models.UserStatus) {
	observability.IncFanoutEvent(EventUserStatusUpdated)
	d.hub.BroadcastAll(ws.Frame{Event: EventUserStatusUpdated, Payload: status})
}

// TypingStatus relays a typing indicator to the chat group, skipping the
// connection that produced it.
func (d *Dispatcher) TypingStatus(status models.TypingStatus, exceptConnID string) {
	observability.IncFanoutEvent(EventUserTyping)
	d.hub.BroadcastGroup(ws.GroupKey(status.ChatID), ws.Frame{Event: EventUserTyping, Payload: status}, exceptConnID)
}
