package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lyralabs/lyra/server/observability"
	"github.com/lyralabs/lyra/server/protocol"
)

const (
	maxSessions      = 100
	sessionSendQueue = 32
	writeTimeout     = 5 * time.Second
	pingInterval     = 30 * time.Second
)

// payloadConn is the write side of one client connection. *websocket.Conn
// satisfies it; tests substitute fakes.
type payloadConn interface {
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// session is one connected client. Outbound frames go through a buffered
// queue drained by a single writer goroutine, so each session receives its
// payloads in the order they were pushed.
type session struct {
	id          string
	conn        payloadConn
	send        chan protocol.Outbound
	connectedAt time.Time
	closeOnce   sync.Once
	done        chan struct{}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Hub manages the set of connected sessions and pushes payloads to all of
// them or to a single originator. A failing session is dropped without
// affecting delivery to the rest.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	log      *zap.Logger
	// ping cadence for dead-client detection; overridable in tests.
	pingEvery time.Duration
}

// NewHub creates an empty session hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		sessions:  make(map[string]*session),
		log:       log.Named("hub"),
		pingEvery: pingInterval,
	}
}

// Register adds a session for the given connection and starts its writer.
// Returns false when the session cap is reached.
func (h *Hub) Register(id string, conn payloadConn) bool {
	h.mu.Lock()
	if len(h.sessions) >= maxSessions {
		h.mu.Unlock()
		h.log.Warn("session rejected: cap reached", zap.Int("max", maxSessions))
		conn.Close()
		return false
	}
	if existing, exists := h.sessions[id]; exists {
		h.mu.Unlock()
		// The id already has a live session; don't leak the replacement.
		if conn != existing.conn {
			conn.Close()
		}
		return true
	}
	s := &session{
		id:          id,
		conn:        conn,
		send:        make(chan protocol.Outbound, sessionSendQueue),
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}
	h.sessions[id] = s
	total := len(h.sessions)
	h.mu.Unlock()

	observability.ConnectedSessions.Set(float64(total))
	h.log.Info("session connected", zap.String("session", id), zap.Int("total", total))

	go h.writePump(s)
	return true
}

// Unregister removes a session and closes its connection. Idempotent.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	total := len(h.sessions)
	h.mu.Unlock()

	if !ok {
		return
	}
	s.close()
	observability.ConnectedSessions.Set(float64(total))
	h.log.Info("session disconnected", zap.String("session", id), zap.Int("total", total))
}

// PushToAll queues a payload for every connected session. A session whose
// queue is full is disconnected; the remaining sessions still receive the
// payload.
func (h *Hub) PushToAll(env protocol.Outbound) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		h.push(s, env)
	}
}

// PushTo queues a payload for one session. Pushing to an unknown (already
// disconnected) session is a no-op.
func (h *Hub) PushTo(id string, env protocol.Outbound) {
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.push(s, env)
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown closes every session connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*session)
	h.mu.Unlock()

	h.log.Info("shutting down hub", zap.Int("sessions", len(sessions)))
	for _, s := range sessions {
		s.close()
	}
	observability.ConnectedSessions.Set(0)
}

func (h *Hub) push(s *session, env protocol.Outbound) {
	select {
	case s.send <- env:
	case <-s.done:
	default:
		// Queue full: the client is not draining. Drop it rather than let
		// one slow session stall the broadcast path.
		observability.BroadcastFailures.Inc()
		h.log.Warn("session send queue full, disconnecting", zap.String("session", s.id))
		go h.Unregister(s.id)
	}
}

// writePump drains one session's queue and sends the periodic pings for
// dead-client detection. It is the only goroutine that ever writes to the
// connection: gorilla/websocket permits a single concurrent writer, so every
// outbound frame, pings included, must funnel through here. FIFO per
// session, so a client sees its own command results in issue order.
func (h *Hub) writePump(s *session) {
	pings := time.NewTicker(h.pingEvery)
	defer pings.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-pings.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				h.log.Warn("session ping failed",
					zap.String("session", s.id),
					zap.Error(err))
				h.Unregister(s.id)
				return
			}
		case env := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(env); err != nil {
				observability.BroadcastFailures.Inc()
				h.log.Warn("session write failed",
					zap.String("session", s.id),
					zap.Error(err))
				h.Unregister(s.id)
				return
			}
		}
	}
}
