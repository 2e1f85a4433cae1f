package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messenger-service/internal/logging"
	"messenger-service/internal/middleware"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/registry"
	"messenger-service/internal/repositories"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
)

// StatusNotifier is told when a user's presence edge fires so the change can
// be fanned out; the dispatcher implements it.
type StatusNotifier interface {
	UserStatusUpdated(status models.UserStatus)
	TypingStatus(status models.TypingStatus, exceptConnID string)
}

// PresenceStore mirrors presence into shared storage so sibling instances
// see it.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID int) error
	SetOffline(ctx context.Context, userID int) error
	Refresh(ctx context.Context, userID int) error
}

// Handler serves the single realtime endpoint. One connection carries every
// chat the user belongs to.
type Handler struct {
	hub      *Hub
	registry *registry.Registry
	presence PresenceStore
	notifier StatusNotifier
	chatRepo repositories.ChatRepository
	userRepo repositories.UserRepository
}

// NewHandler constructs a Handler and hooks it up to the hub's drop
// callback so forced disconnects settle presence the same way a normal
// close does.
func NewHandler(hub *Hub, reg *registry.Registry, presence PresenceStore, notifier StatusNotifier, chatRepo repositories.ChatRepository, userRepo repositories.UserRepository) *Handler {
	h := &Handler{
		hub:      hub,
		registry: reg,
		presence: presence,
		notifier: notifier,
		chatRepo: chatRepo,
		userRepo: userRepo,
	}
	hub.SetOnDrop(func(info ConnInfo, _ error) {
		h.connectionGone(info.UserID, info.ConnID)
	})
	return h
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is what clients are allowed to send over the socket.
type clientFrame struct {
	Event   string `json:"event"`
	Payload struct {
		ChatID int `json:"chat_id"`
	} `json:"payload"`
}

// Handle upgrades the request and runs the read loop until the client goes
// away.
func (h *Handler) Handle(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	chats, err := h.chatRepo.ListChats(ctx, userID, 0, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	h.hub.Register(conn, info)
	for _, chat := range chats {
		h.hub.JoinGroup(GroupKey(chat.ID), info.ConnID)
	}

	if h.registry.Add(userID, info.ConnID) {
		h.setPresence(userID, true)
	}
	observability.SetOnlineUsers(h.registry.OnlineCount())
	observability.IncWSEvent("chat", "ws_connect")
	h.publishLifecycle(ctx, info, "ws_connect", "")

	go h.readLoop(conn, info)
}

func (h *Handler) readLoop(conn *websocket.Conn, info ConnInfo) {
	log := logging.Component("ws").WithField("conn_id", info.ConnID)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if h.presence != nil {
			_ = h.presence.Refresh(context.Background(), info.UserID)
		}
		return nil
	})

	pingDone := make(chan struct{})
	go h.pingLoop(conn, pingDone)

	var closeReason string
	defer func() {
		close(pingDone)
		h.hub.Unregister(info.ConnID)
		h.connectionGone(info.UserID, info.ConnID)
		observability.IncWSEvent("chat", "ws_disconnect")
		h.publishLifecycle(context.Background(), info, "ws_disconnect", closeReason)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("chat", "ws_error")
				h.publishLifecycle(context.Background(), info, "ws_error", closeReason)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.WithError(err).Debug("ignoring malformed client frame")
			continue
		}
		h.handleClientFrame(info, frame)
	}
}

func (h *Handler) handleClientFrame(info ConnInfo, frame clientFrame) {
	switch frame.Event {
	case "Typing", "StopTyping":
		key := GroupKey(frame.Payload.ChatID)
		if !h.hub.inGroup(key, info.ConnID) {
			return
		}
		if h.notifier != nil {
			h.notifier.TypingStatus(models.TypingStatus{
				ChatID:   frame.Payload.ChatID,
				UserID:   info.UserID,
				IsTyping: frame.Event == "Typing",
			}, info.ConnID)
		}
	}
}

func (h *Handler) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// connectionGone settles shared state after a connection is no longer
// usable, whichever side noticed first. Removing the last connection for a
// user flips them offline everywhere.
func (h *Handler) connectionGone(userID int, connID string) {
	if h.registry.Remove(userID, connID) {
		h.setPresence(userID, false)
	}
	observability.SetOnlineUsers(h.registry.OnlineCount())
}

// setPresence flips the durable flag and announces the edge.
func (h *Handler) setPresence(userID int, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if err := h.userRepo.SetOnline(ctx, userID, online, now); err != nil {
		logging.Component("ws").WithError(err).Warn("failed to persist presence")
	}
	if h.presence != nil {
		var err error
		if online {
			err = h.presence.SetOnline(ctx, userID)
		} else {
			err = h.presence.SetOffline(ctx, userID)
		}
		if err != nil {
			logging.Component("ws").WithError(err).Warn("failed to update presence store")
		}
	}
	if h.notifier != nil {
		status := models.UserStatus{UserID: userID, IsOnline: online}
		if !online {
			status.LastSeen = &now
		}
		h.notifier.UserStatusUpdated(status)
	}
}

func (h *Handler) publishLifecycle(ctx context.Context, info ConnInfo, event string, reason string) {
	envelope := observability.NewWSEnvelope(observability.WSLifecycleEvent{
		Event:      event,
		ConnID:     info.ConnID,
		DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
		Reason:     reason,
		UserID:     info.UserID,
		DeviceID:   info.DeviceID,
		IP:         info.IP,
	})
	_ = observability.PublishEvent(ctx, observability.WSLifecycleKey, envelope,
		observability.BuildHeaders(info.RequestID, info.TraceID))
}
