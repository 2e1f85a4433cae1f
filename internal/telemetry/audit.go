package telemetry

import (
	"context"
	"time"

	"messenger-service/internal/logging"
)

// Publisher sends audit events to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter records security-relevant actions (account changes, chat
// lifecycle, block list edits) on the audit exchange. A nil emitter or a
// nil publisher silently discards events so handlers never have to guard.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

// AuditEnvelope is the versioned wire format of one audit record.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *int64       `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

// AuditPayload names the action taken, e.g. "auth.register" or
// "chat.delete", with a human-readable line next to it.
type AuditPayload struct {
	Action string `json:"action"`
	Text   string `json:"text"`
}

// NewAuditEmitter constructs an AuditEmitter.
func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit publishes one audit record. Failures are logged and dropped; audit
// must never fail a user request.
func (e *AuditEmitter) Emit(ctx context.Context, action, text, requestID string, userID *int64) {
	if e == nil || e.publisher == nil {
		return
	}

	log := logging.Component("audit").WithFields(map[string]interface{}{
		"action":     action,
		"request_id": requestID,
	})
	log.Debug(text)

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload: AuditPayload{
			Action: action,
			Text:   text,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.WithError(err).Warn("audit publish failed")
	}
}
