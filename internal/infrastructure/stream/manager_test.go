package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	events chan domain.RawEvent
	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan domain.RawEvent, 16)}
}

func (c *fakeConn) Next(ctx context.Context) (*domain.RawEvent, error) {
	select {
	case event, ok := <-c.events:
		if !ok {
			return nil, errors.New("connection reset")
		}
		return &event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeTransport struct {
	mu      sync.Mutex
	openErr error
	opens   int
	conns   []*fakeConn
}

func (t *fakeTransport) Open(_ context.Context, _ string) (domain.StreamConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opens++
	if t.openErr != nil {
		return nil, t.openErr
	}
	conn := newFakeConn()
	t.conns = append(t.conns, conn)
	return conn, nil
}

func (t *fakeTransport) Opens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens
}

func (t *fakeTransport) Conn(i int) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= len(t.conns) {
		return nil
	}
	return t.conns[i]
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.RawEvent
}

func (r *eventRecorder) handle(event domain.RawEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, event := range r.events {
		names[i] = event.Event
	}
	return names
}

func newTestManager(transport domain.StreamTransport, handler domain.EventHandler) *Manager {
	return NewManager(transport, Config{
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectAttempts: 5,
	}, handler, logger.NewNop())
}

func TestConnectWithoutTokenIsNoop(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport, nil)

	require.NoError(t, m.Connect(""))
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 0, transport.Opens())
	assert.False(t, m.Connected())
}

func TestConnectEstablishesConnection(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport, nil)
	defer m.Disconnect()

	require.NoError(t, m.Connect("token"))

	require.Eventually(t, m.Connected, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, transport.Opens())
}

func TestReconnectAttemptBound(t *testing.T) {
	transport := &fakeTransport{openErr: errors.New("handshake refused")}
	m := newTestManager(transport, nil)
	defer m.Disconnect()

	require.NoError(t, m.Connect("token"))

	require.Eventually(t, func() bool {
		return transport.Opens() == 5
	}, 2*time.Second, 5*time.Millisecond)

	// No sixth attempt after the bound is hit.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 5, transport.Opens())
	assert.False(t, m.Connected())
}

func TestEventsDeliveredInOrder(t *testing.T) {
	transport := &fakeTransport{}
	recorder := &eventRecorder{}
	m := newTestManager(transport, recorder.handle)
	defer m.Disconnect()

	require.NoError(t, m.Connect("token"))
	require.Eventually(t, m.Connected, time.Second, 5*time.Millisecond)

	conn := transport.Conn(0)
	conn.events <- domain.RawEvent{Event: "first"}
	conn.events <- domain.RawEvent{Event: "second"}
	conn.events <- domain.RawEvent{Event: "third"}

	require.Eventually(t, func() bool {
		return len(recorder.Names()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first", "second", "third"}, recorder.Names())
}

func TestDisconnectDropsLateEvents(t *testing.T) {
	transport := &fakeTransport{}
	recorder := &eventRecorder{}
	m := newTestManager(transport, recorder.handle)

	require.NoError(t, m.Connect("token"))
	require.Eventually(t, m.Connected, time.Second, 5*time.Millisecond)

	m.Disconnect()
	assert.False(t, m.Connected())

	// Events queued after teardown must be ignored, not partially handled.
	conn := transport.Conn(0)
	conn.events <- domain.RawEvent{Event: "late"}
	time.Sleep(30 * time.Millisecond)

	assert.Empty(t, recorder.Names())
	assert.True(t, conn.Closed())
}

func TestTokenRotationReplacesConnection(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport, nil)
	defer m.Disconnect()

	require.NoError(t, m.Connect("token-a"))
	require.Eventually(t, m.Connected, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Connect("token-b"))
	require.Eventually(t, m.Connected, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, transport.Opens())
	assert.True(t, transport.Conn(0).Closed(), "prior connection must be closed before the new one")
}

func TestReconnectAfterConnectionDrop(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport, nil)
	defer m.Disconnect()

	require.NoError(t, m.Connect("token"))
	require.Eventually(t, m.Connected, time.Second, 5*time.Millisecond)

	// Simulate a network drop: Next starts failing on a closed channel.
	close(transport.Conn(0).events)

	require.Eventually(t, func() bool {
		return transport.Opens() == 2 && m.Connected()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport, nil)

	require.NoError(t, m.Connect("token"))
	require.Eventually(t, m.Connected, time.Second, 5*time.Millisecond)

	m.Disconnect()
	m.Disconnect()
	assert.False(t, m.Connected())
}
