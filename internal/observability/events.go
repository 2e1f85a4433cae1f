package observability

import "time"

// WSLifecycleKey is the routing key for websocket lifecycle events on the
// topic exchange.
const WSLifecycleKey = "ws_events.messenger"

// EventEnvelope wraps every event published to the exchange so consumers
// can route on type without decoding the payload.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Service   string      `json:"service"`
	EmittedAt time.Time   `json:"emitted_at"`
	Payload   interface{} `json:"payload"`
}

// WSLifecycleEvent describes one websocket connection transition:
// connect, disconnect or a forced drop.
type WSLifecycleEvent struct {
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
	UserID     int    `json:"user_id"`
	DeviceID   string `json:"device_id,omitempty"`
	IP         string `json:"ip,omitempty"`
}

// NewWSEnvelope wraps a lifecycle event for publication.
func NewWSEnvelope(event WSLifecycleEvent) EventEnvelope {
	return EventEnvelope{
		EventType: "ws_events",
		EventName: event.Event,
		Service:   "messenger-service",
		EmittedAt: time.Now().UTC(),
		Payload:   event,
	}
}

// BuildHeaders carries request correlation ids into the broker message so
// consumers can stitch events back to the originating request.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
