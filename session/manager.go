// Package session persists the authenticated citizen on the device.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/log"
	"go.pilab.hu/citizenportal/storage"
)

// Storage keys of a persisted session. Both are written and removed together.
const (
	KeyUser          = "user"
	KeyAuthenticated = "isAuthenticated"

	authenticatedMarker = "true"
)

// Manager reads and writes the session through a storage.Store.
type Manager struct {
	store  storage.Store
	ttl    time.Duration
	logger log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL expires the session after d. Zero keeps it until Clear.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

// WithLogger sets the Manager's logger.
func WithLogger(l log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager over store.
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{store: store, logger: log.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Establish persists a session for profile, replacing any existing one.
func (m *Manager) Establish(ctx context.Context, profile domain.Profile) (*domain.Session, error) {
	if profile.UserID.IsZero() {
		return nil, errors.New("session: profile has no user id")
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("session: encode profile: %w", err)
	}

	err = m.store.SetMany(ctx, map[string]string{
		KeyUser:          string(raw),
		KeyAuthenticated: authenticatedMarker,
	}, m.ttl)
	if err != nil {
		return nil, fmt.Errorf("session: persist: %w", err)
	}

	m.logger.Debug(ctx, "session established", log.Fields{"user_id": profile.UserID.String()})

	return &domain.Session{UserID: profile.UserID, Authenticated: true, Profile: profile}, nil
}

// Current returns the persisted session. A store holding only one of the
// two keys, or an unreadable profile, yields ErrNoSession.
func (m *Manager) Current(ctx context.Context) (*domain.Session, error) {
	values, err := m.store.GetMany(ctx, KeyUser, KeyAuthenticated)
	if err != nil {
		return nil, fmt.Errorf("session: read: %w", err)
	}

	rawUser, hasUser := values[KeyUser]
	marker, hasMarker := values[KeyAuthenticated]
	if !hasUser || !hasMarker || marker != authenticatedMarker {
		return nil, perrors.ErrNoSession
	}

	var profile domain.Profile
	if err := json.Unmarshal([]byte(rawUser), &profile); err != nil {
		m.logger.Warn(ctx, "discarding unreadable session profile", log.Fields{"error": err.Error()})
		return nil, perrors.ErrNoSession
	}

	sess := &domain.Session{UserID: profile.UserID, Authenticated: true, Profile: profile}
	if !sess.Valid() {
		return nil, perrors.ErrNoSession
	}
	return sess, nil
}

// UserID returns the id of the logged-in citizen.
func (m *Manager) UserID(ctx context.Context) (string, error) {
	sess, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	return sess.UserID.String(), nil
}

// Clear removes both session keys in one operation.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.DeleteMany(ctx, KeyUser, KeyAuthenticated); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	m.logger.Debug(ctx, "session cleared")
	return nil
}
