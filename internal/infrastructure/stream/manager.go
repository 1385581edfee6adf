package stream

import (
	"context"
	"sync"
	"time"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

type Config struct {
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// Manager owns the single persistent event-stream connection for an
// authenticated session. Events are handed to the handler in delivery
// order; transport errors never propagate to callers.
type Manager struct {
	transport domain.StreamTransport
	cfg       Config
	handler   domain.EventHandler
	log       logger.Logger

	mu      sync.Mutex
	session *session

	stateMu   sync.RWMutex
	connected bool

	onConnected    func()
	onDisconnected func()
}

func NewManager(transport domain.StreamTransport, cfg Config, handler domain.EventHandler, log logger.Logger) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}
	return &Manager{
		transport: transport,
		cfg:       cfg,
		handler:   handler,
		log:       log,
	}
}

func (m *Manager) OnConnected(fn func()) {
	m.onConnected = fn
}

func (m *Manager) OnDisconnected(fn func()) {
	m.onDisconnected = fn
}

// Connect tears down any prior connection and establishes a new one for
// token. An empty token is a no-op: the caller is not authenticated yet.
func (m *Manager) Connect(token string) error {
	m.Disconnect()

	if token == "" {
		m.log.Debug("No session token, skipping stream connection")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()

	go m.run(ctx, sess, token)
	return nil
}

// Disconnect synchronously detaches the event handler, closes the
// transport and clears internal handles. Events arriving after
// Disconnect returns are dropped, not partially handled.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.mu.Unlock()

	if sess == nil {
		return
	}

	sess.stop()
	<-sess.done
	m.setConnected(false)
}

func (m *Manager) Connected() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.connected
}

func (m *Manager) run(ctx context.Context, sess *session, token string) {
	defer close(sess.done)

	attempts := 0
	for {
		conn, err := m.transport.Open(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			attempts++
			m.log.Warn("Stream connection attempt failed",
				"attempt", attempts, "max_attempts", m.cfg.MaxReconnectAttempts, "error", err)

			if attempts >= m.cfg.MaxReconnectAttempts {
				m.log.Error("Reconnect attempts exhausted, staying disconnected",
					"attempts", attempts)
				m.setConnected(false)
				return
			}

			if !m.wait(ctx) {
				return
			}
			continue
		}

		attempts = 0
		sess.setConn(conn)
		m.setConnected(true)
		m.log.Info("Stream connected")

		m.readLoop(ctx, sess, conn)

		m.setConnected(false)
		if ctx.Err() != nil {
			return
		}
		if !m.wait(ctx) {
			return
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, sess *session, conn domain.StreamConn) {
	defer conn.Close()

	for {
		event, err := conn.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.log.Warn("Stream connection lost", "error", err)
			}
			return
		}
		sess.deliver(m.handler, *event)
	}
}

func (m *Manager) wait(ctx context.Context) bool {
	select {
	case <-time.After(m.cfg.ReconnectDelay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) setConnected(connected bool) {
	m.stateMu.Lock()
	changed := m.connected != connected
	m.connected = connected
	m.stateMu.Unlock()

	if !changed {
		return
	}
	if connected && m.onConnected != nil {
		m.onConnected()
	}
	if !connected && m.onDisconnected != nil {
		m.onDisconnected()
	}
}

// session scopes one Connect call. Its stopped flag is checked under the
// same mutex that guards handler delivery, so stop() returning means no
// further events will be handed out.
type session struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
	conn    domain.StreamConn
}

func (s *session) setConn(conn domain.StreamConn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *session) deliver(handler domain.EventHandler, event domain.RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || handler == nil {
		return
	}
	handler(event)
}

func (s *session) stop() {
	s.mu.Lock()
	s.stopped = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		conn.Close()
	}
}
