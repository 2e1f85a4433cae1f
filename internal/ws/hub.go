package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messenger-service/internal/logging"
	"messenger-service/internal/observability"
)

// Frame is the envelope for every message pushed to a client.
type Frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// wsConn is the subset of *websocket.Conn the hub needs; tests substitute
// their own implementation.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// GroupKey names the broadcast group for one chat.
func GroupKey(chatID int) string {
	return fmt.Sprintf("chat:%d", chatID)
}

type client struct {
	info ConnInfo
	conn wsConn

	mu     sync.Mutex // guards send against close/enqueue races
	send   chan []byte
	closed bool
}

type enqueueResult int

const (
	enqueueOK enqueueResult = iota
	enqueueFull
	enqueueClosed
)

// stop closes the send channel exactly once; writePump drains what is left
// and closes the socket. stop and enqueue share the client mutex, so a
// dispatch racing a disconnect can never hit the closed channel.
func (c *client) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *client) enqueue(payload []byte) enqueueResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return enqueueClosed
	}
	select {
	case c.send <- payload:
		return enqueueOK
	default:
		return enqueueFull
	}
}

// Hub owns every live websocket connection and the group membership used
// for chat broadcasts. All writes to a socket go through that connection's
// writer goroutine, so frames queued for one connection keep their order.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*client
	groups  map[string]map[string]struct{} // group key -> set of connIDs
	joined  map[string]map[string]struct{} // connID -> set of group keys
	bufSize int

	onDrop func(info ConnInfo, err error)
}

// NewHub creates an empty hub whose per-connection send queues hold bufSize
// frames.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		conns:   make(map[string]*client),
		groups:  make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
		bufSize: bufSize,
	}
}

// Register adds a connection and starts its writer goroutine.
func (h *Hub) Register(conn wsConn, info ConnInfo) {
	c := &client{
		info: info,
		conn: conn,
		send: make(chan []byte, h.bufSize),
	}

	h.mu.Lock()
	h.conns[info.ConnID] = c
	h.joined[info.ConnID] = make(map[string]struct{})
	h.mu.Unlock()

	go h.writePump(c)
	observability.IncWSActive()
}

// Unregister removes the connection from every group and stops its writer.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, connID)
	for key := range h.joined[connID] {
		h.leaveLocked(key, connID)
	}
	delete(h.joined, connID)
	h.mu.Unlock()

	c.stop()
	observability.DecWSActive()
}

// JoinGroup subscribes a connection to a group. Unknown connections are
// ignored.
func (h *Hub) JoinGroup(key string, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; !ok {
		return
	}
	if _, ok := h.groups[key]; !ok {
		h.groups[key] = make(map[string]struct{})
	}
	h.groups[key][connID] = struct{}{}
	h.joined[connID][key] = struct{}{}
}

// LeaveGroup unsubscribes a connection from a group.
func (h *Hub) LeaveGroup(key string, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(key, connID)
	if set, ok := h.joined[connID]; ok {
		delete(set, key)
	}
}

func (h *Hub) leaveLocked(key string, connID string) {
	if set, ok := h.groups[key]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.groups, key)
		}
	}
}

// Send queues a frame for one connection. It never blocks: a connection
// whose queue is full is considered stalled and gets dropped.
func (h *Hub) Send(connID string, frame Frame) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.enqueue(c, marshalFrame(frame))
}

// BroadcastGroup queues a frame for every connection in the group, skipping
// connIDs listed in except.
func (h *Hub) BroadcastGroup(key string, frame Frame, except ...string) {
	payload := marshalFrame(frame)

	h.mu.RLock()
	targets := make([]*client, 0, len(h.groups[key]))
	for connID := range h.groups[key] {
		if contains(except, connID) {
			continue
		}
		if c, ok := h.conns[connID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, payload)
	}
}

// BroadcastAll queues a frame for every live connection.
func (h *Hub) BroadcastAll(frame Frame) {
	payload := marshalFrame(frame)

	h.mu.RLock()
	targets := make([]*client, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, payload)
	}
}

func (h *Hub) inGroup(key string, connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[key][connID]
	return ok
}

// GroupSize returns the number of connections in a group.
func (h *Hub) GroupSize(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[key])
}

// SetOnDrop installs a callback invoked when a connection is dropped for a
// write failure or a full queue.
func (h *Hub) SetOnDrop(fn func(info ConnInfo, err error)) {
	h.onDrop = fn
}

func (h *Hub) enqueue(c *client, payload []byte) {
	switch c.enqueue(payload) {
	case enqueueFull:
		// queue full: the reader is not keeping up
		observability.IncFanoutDropped()
		h.drop(c, errSlowConsumer)
	case enqueueClosed:
		// lost the race against a disconnect; delivery is best effort
	}
}

func (h *Hub) writePump(c *client) {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(c, err)
			for range c.send { // drain
			}
			break
		}
	}
	c.conn.Close()
}

func (h *Hub) drop(c *client, err error) {
	logging.Component("ws").WithFields(c.info.LogFields()).
		WithError(err).Warn("dropping websocket connection")

	h.Unregister(c.info.ConnID)
	h.publishWSError(c.info, err)
	if h.onDrop != nil {
		h.onDrop(c.info, err)
	}
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	envelope := observability.NewWSEnvelope(observability.WSLifecycleEvent{
		Event:      "ws_error",
		ConnID:     info.ConnID,
		DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
		Reason:     err.Error(),
		UserID:     info.UserID,
		DeviceID:   info.DeviceID,
		IP:         info.IP,
	})
	_ = observability.PublishEvent(context.Background(), observability.WSLifecycleKey, envelope,
		observability.BuildHeaders(info.RequestID, info.TraceID))
	observability.IncWSEvent("chat", "ws_error")
}

var errSlowConsumer = fmt.Errorf("send queue full")

func marshalFrame(frame Frame) []byte {
	payload, _ := json.Marshal(frame)
	return payload
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
