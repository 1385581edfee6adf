package services

import (
	"errors"
	"sync"
	"testing"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"

	"github.com/stretchr/testify/assert"
)

type fakePlayback struct {
	mu      sync.Mutex
	stopped bool
}

func (p *fakePlayback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

func (p *fakePlayback) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

type fakePlayer struct {
	mu        sync.Mutex
	err       error
	playbacks []*fakePlayback
	calls     []string
}

func (p *fakePlayer) Play(key string) (domain.Playback, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, key)
	if p.err != nil {
		return nil, p.err
	}
	playback := &fakePlayback{}
	p.playbacks = append(p.playbacks, playback)
	return playback, nil
}

func (p *fakePlayer) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func TestStartReplacesActiveEntry(t *testing.T) {
	player := &fakePlayer{}
	m := NewAlertManager(player, logger.NewNop())

	m.Start("abc123")
	m.Start("abc123")

	assert.Equal(t, 1, m.ActiveCount())
	assert.True(t, player.playbacks[0].Stopped(), "first playback must be released before the second starts")
	assert.False(t, player.playbacks[1].Stopped())
}

func TestStopReleasesEntry(t *testing.T) {
	player := &fakePlayer{}
	m := NewAlertManager(player, logger.NewNop())

	m.Start("abc123")
	m.Stop("abc123")

	assert.False(t, m.Active("abc123"))
	assert.False(t, m.Pending("abc123"))
	assert.True(t, player.playbacks[0].Stopped())
}

func TestBlockedPlaybackQueuesSilently(t *testing.T) {
	player := &fakePlayer{err: domain.ErrPlaybackBlocked}
	m := NewAlertManager(player, logger.NewNop())

	m.Start("abc123")

	assert.False(t, m.Active("abc123"))
	assert.True(t, m.Pending("abc123"))
}

func TestStopCancelsPendingAlert(t *testing.T) {
	player := &fakePlayer{err: domain.ErrPlaybackBlocked}
	m := NewAlertManager(player, logger.NewNop())

	m.Start("abc123")
	m.Stop("abc123")

	assert.False(t, m.Pending("abc123"))

	// A later gesture must not resurrect the suppressed alert.
	player.setErr(nil)
	assert.NoError(t, m.FlushPending())
	assert.False(t, m.Active("abc123"))
}

func TestNonGatingFailureIsNotQueued(t *testing.T) {
	player := &fakePlayer{err: errors.New("unsupported codec")}
	m := NewAlertManager(player, logger.NewNop())

	m.Start("abc123")

	assert.False(t, m.Active("abc123"))
	assert.False(t, m.Pending("abc123"))
}

func TestFlushPendingStartsQueuedAlerts(t *testing.T) {
	player := &fakePlayer{err: domain.ErrPlaybackBlocked}
	m := NewAlertManager(player, logger.NewNop())

	m.Start("abc123")
	assert.True(t, m.Pending("abc123"))

	// Simulated user click: gating lifts.
	player.setErr(nil)
	assert.NoError(t, m.FlushPending())

	assert.True(t, m.Active("abc123"))
	assert.False(t, m.Pending("abc123"))
}

func TestFlushPendingSurfacesGatingError(t *testing.T) {
	player := &fakePlayer{err: domain.ErrPlaybackBlocked}
	m := NewAlertManager(player, logger.NewNop())

	m.Start("abc123")

	err := m.FlushPending()
	assert.ErrorIs(t, err, domain.ErrPlaybackBlocked)
	assert.False(t, m.Pending("abc123"))
}

func TestFlushPendingIsIdempotent(t *testing.T) {
	player := &fakePlayer{}
	m := NewAlertManager(player, logger.NewNop())

	m.Start("abc123")
	assert.NoError(t, m.FlushPending())
	assert.NoError(t, m.FlushPending())
	assert.Equal(t, 1, m.ActiveCount())
}

func TestStartAfterGestureDoesNotQueue(t *testing.T) {
	player := &fakePlayer{}
	m := NewAlertManager(player, logger.NewNop())
	assert.NoError(t, m.FlushPending())

	player.setErr(domain.ErrPlaybackBlocked)
	m.Start("abc123")

	assert.False(t, m.Active("abc123"))
	assert.False(t, m.Pending("abc123"))
}

func TestStopAllReleasesEverything(t *testing.T) {
	player := &fakePlayer{}
	m := NewAlertManager(player, logger.NewNop())

	m.Start("abc123")
	m.Start("def456")
	player.setErr(domain.ErrPlaybackBlocked)
	m.Start("ghi789")

	m.StopAll()

	assert.Equal(t, 0, m.ActiveCount())
	assert.False(t, m.Pending("ghi789"))
	for _, playback := range player.playbacks {
		assert.True(t, playback.Stopped())
	}
}
