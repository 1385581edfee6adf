package services

import (
	"sync"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

const defaultStoreCapacity = 200

// NotificationStore is the session-scoped, most-recent-first collection
// of notifications the UI layer reads from. Nothing here is persisted.
type NotificationStore struct {
	log logger.Logger

	mu       sync.RWMutex
	items    []domain.Notification
	unread   int
	capacity int
}

func NewNotificationStore(log logger.Logger) *NotificationStore {
	return &NotificationStore{
		log:      log,
		capacity: defaultStoreCapacity,
	}
}

// Add prepends the notification and bumps the unread counter. Oldest
// entries fall off beyond the session cap.
func (s *NotificationStore) Add(n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append([]domain.Notification{n}, s.items...)
	if !n.Read {
		s.unread++
	}

	if len(s.items) > s.capacity {
		dropped := s.items[s.capacity:]
		s.items = s.items[:s.capacity]
		for _, d := range dropped {
			if !d.Read {
				s.unread--
			}
		}
	}
}

// MarkRead is idempotent: re-marking a read notification never drives
// the unread counter below zero.
func (s *NotificationStore) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if !s.items[i].Read {
			s.items[i].Read = true
			s.unread--
		}
		return true
	}
	return false
}

func (s *NotificationStore) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = 0
}

// Clear empties the collection and resets the unread counter. It does
// not touch connection or alert state.
func (s *NotificationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.unread = 0
}

func (s *NotificationStore) List() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Notification, len(s.items))
	copy(items, s.items)
	return items
}

func (s *NotificationStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}
