package services

import (
	"errors"
	"fmt"
	"sync"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

// AlertManager owns looping alert playback keyed by order id. At most
// one active playback exists per key; keys whose playback is gated by
// the platform wait in the pending set until a user gesture arrives.
type AlertManager struct {
	player domain.AlertPlayer
	log    logger.Logger

	mu         sync.Mutex
	entries    map[string]domain.Playback
	pending    map[string]struct{}
	interacted bool
}

func NewAlertManager(player domain.AlertPlayer, log logger.Logger) *AlertManager {
	return &AlertManager{
		player:  player,
		log:     log,
		entries: make(map[string]domain.Playback),
		pending: make(map[string]struct{}),
	}
}

// Start begins looping playback for key. A rapid double-fire restarts
// the loop rather than layering two playbacks.
func (m *AlertManager) Start(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startLocked(key, m.interacted)
}

// Stop halts playback for key and cancels a not-yet-started pending
// alert for it.
func (m *AlertManager) Stop(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(key)
}

// FlushPending retries every gated key. Called on the first observed
// user-interaction signal; from then on gating counts as a real error.
func (m *AlertManager) FlushPending() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.interacted = true

	var errs []error
	for key := range m.pending {
		delete(m.pending, key)
		if err := m.startLocked(key, true); err != nil {
			errs = append(errs, fmt.Errorf("alert %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// StopAll releases every playback and clears the pending set. Called on
// disconnect and teardown so no alert outlives its session.
func (m *AlertManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, playback := range m.entries {
		playback.Stop()
		delete(m.entries, key)
	}
	m.pending = make(map[string]struct{})
}

func (m *AlertManager) Active(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, active := m.entries[key]
	return active
}

func (m *AlertManager) Pending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, pending := m.pending[key]
	return pending
}

func (m *AlertManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *AlertManager) startLocked(key string, gatingIsError bool) error {
	if playback, exists := m.entries[key]; exists {
		playback.Stop()
		delete(m.entries, key)
	}

	playback, err := m.player.Play(key)
	if err == nil {
		m.entries[key] = playback
		delete(m.pending, key)
		return nil
	}

	if errors.Is(err, domain.ErrPlaybackBlocked) {
		if gatingIsError {
			m.log.Error("Alert playback blocked despite user gesture", "key", key, "error", err)
			return err
		}
		m.pending[key] = struct{}{}
		m.log.Debug("Alert playback gated, queued for user gesture", "key", key)
		return nil
	}

	// Non-gating failure: log and abandon the key, never queue it.
	m.log.Error("Alert playback failed", "key", key, "error", err)
	delete(m.pending, key)
	return nil
}

func (m *AlertManager) stopLocked(key string) {
	if playback, exists := m.entries[key]; exists {
		playback.Stop()
		delete(m.entries, key)
	}
	delete(m.pending, key)
}
