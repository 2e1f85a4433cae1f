package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo identifies one websocket connection for the lifetime of its
// socket. A user with several devices has several ConnInfos.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// LogFields returns the fields every log line about this connection
// carries.
func (i ConnInfo) LogFields() map[string]any {
	return map[string]any{
		"conn_id": i.ConnID,
		"user_id": i.UserID,
	}
}

func newConnID() string {
	return uuid.NewString()
}
