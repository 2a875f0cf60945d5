package session

import (
	"context"
	"errors"

	"apptrack-engine/internal/domain"
)

// ErrLoggedOut is returned by state mutations that require a live session.
var ErrLoggedOut = errors.New("no active session")

// Profile returns the current personal info. Zero value while logged out.
func (m *Manager) Profile() domain.PersonalInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// SetProfile overwrites the profile wholesale and persists the snapshot.
func (m *Manager) SetProfile(ctx context.Context, p domain.PersonalInfo) error {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return ErrLoggedOut
	}
	m.profile = p
	m.mu.Unlock()

	return m.SaveSnapshot(ctx)
}

// SaveSnapshot writes the full profile + application list for the live
// identity. Suppressed entirely while logged out; the persisted copy is a
// snapshot, not a source of truth while the session is live.
func (m *Manager) SaveSnapshot(ctx context.Context) error {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return nil
	}
	identity := m.sess.Identity
	profile := m.profile
	m.mu.Unlock()

	return m.store.Save(ctx, identity, domain.Snapshot{
		PersonalInfo: profile,
		Applications: m.list.All(),
	})
}
