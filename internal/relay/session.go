package relay

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound queue per session. A full queue makes the session refuse
	// delivery for that send; the transport owns real backpressure.
	sendBufferSize = 256
)

// State tracks a session through its lifecycle. Transitions are one-way:
// Connecting -> Authenticating -> Active -> Closed, with Authenticating
// able to jump straight to Closed on a failed handshake.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PresenceTracker mirrors online state into an external cache. Both calls
// are best-effort; failures are logged and never affect the session.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// Hub owns the long-lived relay collaborators and runs one Session per
// accepted socket.
type Hub struct {
	registry *Registry
	router   *Router
	verifier *TokenVerifier
	presence PresenceTracker
	logger   *slog.Logger
}

func NewHub(registry *Registry, router *Router, verifier *TokenVerifier, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry: registry,
		router:   router,
		verifier: verifier,
		logger:   logger,
	}
}

// SetPresence attaches an optional presence tracker.
func (h *Hub) SetPresence(p PresenceTracker) {
	h.presence = p
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// ServeConn runs the full lifecycle of one connection: authenticate,
// register, pump frames until the socket closes. It blocks until the
// session is done and always leaves the socket closed.
func (h *Hub) ServeConn(conn *websocket.Conn, token string) {
	s := &Session{
		hub:    h,
		conn:   conn,
		groups: make(map[string]struct{}),
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: h.logger,
	}
	s.state.Store(int32(StateConnecting))
	s.run(token)
}

// Session owns one socket. Inbound frames are handled strictly one at a
// time, so a sender's messages are persisted and fanned out in the order
// they arrived. Sessions of different users run concurrently.
type Session struct {
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger

	userID   string
	userName string
	role     models.Role

	// Cache of groups joined over this socket. Never consulted for routing
	// decisions; the store is re-queried because REST mutations can change
	// membership while the socket stays open.
	mu     sync.Mutex
	groups map[string]struct{}

	send      chan []byte
	done      chan struct{}
	state     atomic.Int32
	closeOnce sync.Once
}

func (s *Session) run(token string) {
	s.state.Store(int32(StateAuthenticating))

	user, aerr := s.hub.verifier.Verify(context.Background(), token)
	if aerr != nil {
		s.logger.Info("websocket handshake rejected", "reason", aerr.Message)
		s.reject(aerr.Message)
		return
	}
	s.userID = user.ID
	s.userName = user.Name
	s.role = user.Role

	// Registration supersedes any previous connection of this identity.
	s.hub.registry.Register(s.userID, s)
	s.state.Store(int32(StateActive))

	if s.hub.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := s.hub.presence.SetOnline(ctx, s.userID); err != nil {
			s.logger.Error("failed to set user online", "userId", s.userID, "error", err)
		}
		cancel()
	}
	s.logger.Info("websocket client connected", "userId", s.userID, "name", s.userName)

	go s.writePump()
	s.readPump()
}

// reject sends a single structured error frame and closes the socket with a
// policy-violation code. Used only for authentication failures; there are
// no retries at this layer.
func (s *Session) reject(message string) {
	deadline := time.Now().Add(writeWait)
	s.conn.SetWriteDeadline(deadline)
	_ = s.conn.WriteMessage(websocket.TextMessage, errorPayload(message))
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), deadline)
	s.conn.Close()
	s.state.Store(int32(StateClosed))
}

func (s *Session) readPump() {
	defer s.shutdown()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Debug("websocket read failed", "userId", s.userID, "error", err)
			}
			return
		}
		// One frame at a time: per-sender ordering is a contract here, not
		// an accident of scheduling.
		s.handleFrame(data)
	}
}

func (s *Session) handleFrame(data []byte) {
	frame, perr := ParseInbound(data)
	if perr != nil {
		// Malformed frames are reported, never fatal.
		s.sendError(perr.Message)
		return
	}

	if derr := s.hub.router.Dispatch(context.Background(), s, frame); derr != nil {
		if derr.Err != nil {
			s.logger.Error("frame dispatch failed",
				"userId", s.userID, "kind", derr.Kind.String(), "error", derr.Err)
		}
		s.sendError(derr.Message)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.shutdown()
	}()

	for {
		select {
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				// Unrecoverable write failure closes the session.
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			return
		}
	}
}

// shutdown is idempotent: the read pump, the write pump and a takeover can
// all race into it. Unregistration is by handle match, so a close arriving
// after a fast reconnect cannot evict the newer session.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		s.conn.Close()

		if s.userID == "" {
			return
		}
		s.hub.registry.Unregister(s.userID, s)
		if s.hub.presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := s.hub.presence.SetOffline(ctx, s.userID); err != nil {
				s.logger.Error("failed to set user offline", "userId", s.userID, "error", err)
			}
			cancel()
		}
		s.logger.Info("websocket client disconnected", "userId", s.userID)
	})
}

// Deliver implements Handle. It refuses payloads once the session is no
// longer active or when the outbound queue is full.
func (s *Session) Deliver(payload []byte) bool {
	if State(s.state.Load()) != StateActive {
		return false
	}
	select {
	case s.send <- payload:
		return true
	case <-s.done:
		return false
	default:
		// Slow consumer. Drop this delivery rather than block the router.
		s.logger.Warn("outbound queue full, dropping delivery", "userId", s.userID)
		return false
	}
}

// Takeover implements Handle: a newer connection authenticated for the same
// identity, close this one quietly with a normal-closure code.
func (s *Session) Takeover() {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session takeover"),
		time.Now().Add(writeWait))
	s.shutdown()
}

func (s *Session) UserID() string { return s.userID }

func (s *Session) UserName() string { return s.userName }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) JoinedGroup(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupID] = struct{}{}
}

func (s *Session) LeftGroup(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, groupID)
}

// Groups returns a snapshot of the socket-local membership cache.
func (s *Session) Groups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.groups))
	for id := range s.groups {
		out = append(out, id)
	}
	return out
}

func (s *Session) sendError(message string) {
	s.Deliver(errorPayload(message))
}
