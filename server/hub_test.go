package main

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lyralabs/lyra/server/protocol"
)

// fakeConn records frames written to one session. It also counts writers
// inside each write call so tests can detect two goroutines writing to the
// same connection at once, which the real *websocket.Conn forbids.
type fakeConn struct {
	mu      sync.Mutex
	frames  []protocol.Outbound
	pings   int
	failAll bool
	closed  bool

	writers    atomic.Int32
	concurrent atomic.Bool
}

func (c *fakeConn) enterWrite() {
	if c.writers.Add(1) > 1 {
		c.concurrent.Store(true)
	}
	// Hold the write open long enough for an overlapping writer to show up.
	time.Sleep(100 * time.Microsecond)
}

func (c *fakeConn) WriteJSON(v any) error {
	c.enterWrite()
	defer c.writers.Add(-1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, v.(protocol.Outbound))
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.enterWrite()
	defer c.writers.Add(-1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return errors.New("broken pipe")
	}
	c.pings++
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *fakeConn) received() []protocol.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Outbound, len(c.frames))
	copy(out, c.frames)
	return out
}

func frame(msg string) protocol.Outbound {
	return protocol.Outbound{Type: protocol.TypeCommandResult, Data: msg}
}

func TestPushToAllDeliversToEverySession(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conns := []*fakeConn{{}, {}, {}}
	for i, c := range conns {
		require.True(t, hub.Register(string(rune('a'+i)), c))
	}

	hub.PushToAll(frame("ping"))

	for i, c := range conns {
		assert.Eventually(t, func() bool { return len(c.received()) == 1 },
			time.Second, 5*time.Millisecond, "session %d", i)
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	hub := NewHub(zap.NewNop())
	healthy1, broken, healthy2 := &fakeConn{}, &fakeConn{failAll: true}, &fakeConn{}
	require.True(t, hub.Register("s1", healthy1))
	require.True(t, hub.Register("s2", broken))
	require.True(t, hub.Register("s3", healthy2))

	hub.PushToAll(frame("update"))

	// Sessions 1 and 3 still receive the payload.
	assert.Eventually(t, func() bool { return len(healthy1.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(healthy2.received()) == 1 }, time.Second, 5*time.Millisecond)

	// The broken session is removed from the broadcast set.
	assert.Eventually(t, func() bool { return hub.SessionCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestPushToTargetsSingleSession(t *testing.T) {
	hub := NewHub(zap.NewNop())
	target, other := &fakeConn{}, &fakeConn{}
	require.True(t, hub.Register("target", target))
	require.True(t, hub.Register("other", other))

	hub.PushTo("target", frame("private"))

	assert.Eventually(t, func() bool { return len(target.received()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, other.received())
}

func TestPerSessionOrdering(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := &fakeConn{}
	require.True(t, hub.Register("s1", conn))

	for i := 0; i < 10; i++ {
		hub.PushTo("s1", frame(string(rune('0'+i))))
	}

	assert.Eventually(t, func() bool { return len(conn.received()) == 10 }, time.Second, 5*time.Millisecond)
	got := conn.received()
	for i, env := range got {
		assert.Equal(t, string(rune('0'+i)), env.Data, "frame %d out of order", i)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := &fakeConn{}
	require.True(t, hub.Register("s1", conn))

	hub.Unregister("s1")
	hub.Unregister("s1")
	hub.Unregister("never-existed")

	assert.Equal(t, 0, hub.SessionCount())
	assert.True(t, conn.closed)

	// Pushing to a session that disconnected concurrently is a no-op.
	hub.PushTo("s1", frame("late"))
	assert.Empty(t, conn.received())
}

func TestRegisterIsIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := &fakeConn{}
	require.True(t, hub.Register("s1", conn))
	require.True(t, hub.Register("s1", conn))
	assert.Equal(t, 1, hub.SessionCount())
}

func TestPingsAndPayloadsShareOneWriter(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.pingEvery = time.Millisecond
	conn := &fakeConn{}
	require.True(t, hub.Register("s1", conn))

	// Flood broadcasts from several goroutines while pings fire rapidly.
	// All of it must funnel through the session's single writer.
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				hub.PushToAll(frame("flood"))
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool { return conn.pingCount() > 0 },
		time.Second, time.Millisecond, "pings must still be sent")
	assert.False(t, conn.concurrent.Load(),
		"two goroutines wrote to the connection at once")
}

func TestFailedPingDisconnectsSession(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.pingEvery = time.Millisecond
	conn := &fakeConn{failAll: true}
	require.True(t, hub.Register("s1", conn))

	assert.Eventually(t, func() bool { return hub.SessionCount() == 0 },
		time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return conn.isClosed() },
		time.Second, time.Millisecond)
}

func TestDuplicateRegisterClosesReplacement(t *testing.T) {
	hub := NewHub(zap.NewNop())
	original, replacement := &fakeConn{}, &fakeConn{}
	require.True(t, hub.Register("s1", original))
	require.True(t, hub.Register("s1", replacement))

	assert.Equal(t, 1, hub.SessionCount())
	assert.True(t, replacement.isClosed(), "the dropped conn must not leak")
	assert.False(t, original.isClosed())

	// The original session still receives payloads.
	hub.PushTo("s1", frame("still here"))
	assert.Eventually(t, func() bool { return len(original.received()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Empty(t, replacement.received())
}

func TestShutdownClosesAllSessions(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conns := []*fakeConn{{}, {}}
	require.True(t, hub.Register("s1", conns[0]))
	require.True(t, hub.Register("s2", conns[1]))

	hub.Shutdown()

	assert.Equal(t, 0, hub.SessionCount())
	for _, c := range conns {
		assert.True(t, c.closed)
	}
}
