package ws

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records every frame written to it.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return assert.AnError
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, raw := range c.frames {
		var f Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		out = append(out, f.Event)
	}
	return out
}

func (c *fakeConn) waitFrames(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		got := len(c.frames)
		c.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames", n)
}

func register(hub *Hub, connID string, userID int) *fakeConn {
	conn := &fakeConn{}
	hub.Register(conn, ConnInfo{ConnID: connID, UserID: userID, ConnectedAt: time.Now()})
	return conn
}

func TestSendReachesOnlyTargetConnection(t *testing.T) {
	hub := NewHub(8)
	a := register(hub, "a", 1)
	b := register(hub, "b", 2)

	hub.Send("a", Frame{Event: "ReceiveMessage"})
	a.waitFrames(t, 1)

	assert.Equal(t, []string{"ReceiveMessage"}, a.events(t))
	assert.Empty(t, b.events(t))
}

func TestBroadcastGroupSkipsNonMembersAndExceptions(t *testing.T) {
	hub := NewHub(8)
	a := register(hub, "a", 1)
	b := register(hub, "b", 2)
	c := register(hub, "c", 3)

	key := GroupKey(42)
	hub.JoinGroup(key, "a")
	hub.JoinGroup(key, "b")
	hub.JoinGroup(key, "c")
	hub.LeaveGroup(key, "c")

	hub.BroadcastGroup(key, Frame{Event: "ReceiveNewMessage"}, "a")
	b.waitFrames(t, 1)

	assert.Empty(t, a.events(t), "sender connection was excluded")
	assert.Equal(t, []string{"ReceiveNewMessage"}, b.events(t))
	assert.Empty(t, c.events(t), "left the group before the broadcast")
}

func TestFramesKeepOrderPerConnection(t *testing.T) {
	hub := NewHub(64)
	conn := register(hub, "a", 1)
	hub.JoinGroup(GroupKey(1), "a")

	for i := 0; i < 20; i++ {
		hub.BroadcastGroup(GroupKey(1), Frame{Event: "ReceiveNewMessage", Payload: i})
	}
	conn.waitFrames(t, 20)

	for i, raw := range conn.frames {
		var f struct {
			Payload int `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &f))
		assert.Equal(t, i, f.Payload)
	}
}

func TestUnregisterRemovesGroupMembership(t *testing.T) {
	hub := NewHub(8)
	register(hub, "a", 1)
	key := GroupKey(7)
	hub.JoinGroup(key, "a")
	require.Equal(t, 1, hub.GroupSize(key))

	hub.Unregister("a")
	assert.Equal(t, 0, hub.GroupSize(key))

	// sending after unregister is a no-op
	hub.Send("a", Frame{Event: "ReceiveMessage"})
}

func TestEnqueueAfterStopIsDiscarded(t *testing.T) {
	hub := NewHub(8)
	register(hub, "a", 1)

	hub.mu.RLock()
	c := hub.conns["a"]
	hub.mu.RUnlock()

	hub.Unregister("a")
	assert.Equal(t, enqueueClosed, c.enqueue([]byte("{}")), "stale dispatch target must swallow the frame")
}

func TestConcurrentDisconnectAndBroadcast(t *testing.T) {
	hub := NewHub(4)
	key := GroupKey(9)
	for _, id := range []string{"a", "b", "c", "d"} {
		register(hub, id, 1)
		hub.JoinGroup(key, id)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			hub.BroadcastGroup(key, Frame{Event: "ReceiveNewMessage", Payload: i})
		}
	}()
	go func() {
		defer wg.Done()
		for _, id := range []string{"a", "b", "c", "d"} {
			hub.Unregister(id)
		}
	}()
	wg.Wait()

	for _, id := range []string{"a", "b", "c", "d"} {
		hub.Send(id, Frame{Event: "ReceiveMessage"})
	}
}

func TestWriteFailureDropsConnection(t *testing.T) {
	hub := NewHub(8)
	dropped := make(chan ConnInfo, 1)
	hub.SetOnDrop(func(info ConnInfo, err error) { dropped <- info })

	conn := &fakeConn{fail: true}
	hub.Register(conn, ConnInfo{ConnID: "a", UserID: 1, ConnectedAt: time.Now()})
	hub.Send("a", Frame{Event: "ReceiveMessage"})

	select {
	case info := <-dropped:
		assert.Equal(t, "a", info.ConnID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the connection to be dropped")
	}
}
