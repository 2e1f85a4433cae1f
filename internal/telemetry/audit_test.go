package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.messenger", "messenger-service", "test")

	var captured AuditEnvelope
	publisher.On("Publish", mock.Anything, "audit.messenger", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		if ok {
			captured = envelope
		}
		return ok
	})).Return(nil).Once()

	userID := int64(42)
	emitter.Emit(context.Background(), "auth.register", "user registered", "req-1", &userID)

	publisher.AssertExpectations(t)
	assert.Equal(t, 1, captured.SchemaVersion)
	assert.Equal(t, "audit_log", captured.EventType)
	assert.Equal(t, "messenger-service", captured.Service)
	assert.Equal(t, "test", captured.Environment)
	assert.Equal(t, "req-1", captured.RequestID)
	require.NotNil(t, captured.UserID)
	assert.Equal(t, int64(42), *captured.UserID)
	assert.Equal(t, "auth.register", captured.Payload.Action)
	assert.Equal(t, "user registered", captured.Payload.Text)
}

func TestAuditEmitterSwallowsPublishErrors(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "audit.messenger", "messenger-service", "test")

	publisher.On("Publish", mock.Anything, "audit.messenger", mock.Anything).
		Return(errors.New("broker down")).Once()

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "chat.delete", "chat deleted", "req-2", nil)
	})
	publisher.AssertExpectations(t)
}

func TestAuditEmitterNilSafe(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "auth.login", "ignored", "", nil)
	})
}
