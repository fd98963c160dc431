package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	SetProfileKey(key, value string) error
	GetAllProfileKeys() (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager provides cached access to the session stored in SQLite.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *Session
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

// CreateSession stores the name and optional email, stamping the creation
// time. Creating again overwrites both fields and the timestamp.
func (m *Manager) CreateSession(name, email string) (Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return Session{}, ErrNameRequired
	}

	now := m.clock.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, kv := range [][2]string{
		{KeyName, name},
		{KeyEmail, email},
		{KeyCreatedAt, now.Format(time.RFC3339Nano)},
	} {
		if err := m.store.SetProfileKey(kv[0], kv[1]); err != nil {
			m.cached = nil
			return Session{}, fmt.Errorf("setting session key %q: %w", kv[0], err)
		}
	}
	m.cached = nil

	slog.Info("session created", "name", name, "has_email", email != "")
	return Session{Name: name, Email: email, CreatedAt: &now}, nil
}

// GetSession returns the stored session, or a zero Session before onboarding.
func (m *Manager) GetSession() (Session, error) {
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		s := copySession(m.cached)
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return copySession(m.cached), nil
	}

	keys, err := m.store.GetAllProfileKeys()
	if err != nil {
		return Session{}, fmt.Errorf("loading session keys: %w", err)
	}

	s := fromKeys(keys)
	m.cached = &s
	m.cachedAt = m.clock.Now()
	return copySession(&s), nil
}

// SetField updates a single session key and invalidates the cache.
func (m *Manager) SetField(key, value string) error {
	switch key {
	case KeyName:
		value = strings.TrimSpace(value)
		if value == "" {
			return ErrNameRequired
		}
	case KeyEmail:
		value = strings.TrimSpace(value)
	default:
		return fmt.Errorf("unknown session key %q", key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetProfileKey(key, value); err != nil {
		return fmt.Errorf("setting session key %q: %w", key, err)
	}
	m.cached = nil
	return nil
}

func copySession(s *Session) Session {
	out := *s
	if s.CreatedAt != nil {
		t := *s.CreatedAt
		out.CreatedAt = &t
	}
	return out
}
