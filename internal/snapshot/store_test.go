package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apptrack-engine/internal/domain"
	"apptrack-engine/internal/kvstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := kvstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, kvstore.Migrate(db.Pool))
	return NewStore(db)
}

func TestLoadAbsentSeedsDefault(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Load(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane", snap.PersonalInfo.Name)
	assert.Equal(t, "jane@example.com", snap.PersonalInfo.Email)
	assert.Empty(t, snap.Applications)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := domain.Snapshot{
		PersonalInfo: domain.PersonalInfo{
			Name: "Jane Smith", Email: "jane@example.com",
			Phone: "555-0100", Location: "Austin, TX", Title: "Engineer",
		},
		Applications: []domain.ApplicationRecord{
			{ID: "a1", Company: "Acme", Position: "Engineer", Status: domain.StatusApplied, Location: "Remote", AppliedDate: "2024-01-05"},
			{ID: "a2", Company: "Globex", Position: "SRE", Status: domain.StatusInterview, Location: "NYC", AppliedDate: "2024-01-08", Notes: "phone screen done"},
		},
	}

	require.NoError(t, s.Save(ctx, "jane@example.com", want))

	got, err := s.Load(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadCorruptDiscardsAndReseeds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, kvstore.Set(ctx, s.DB.Pool, "userData_jane@example.com", "{not json"))

	snap, err := s.Load(ctx, "jane@example.com")
	require.NoError(t, err, "corruption must never propagate")
	assert.Equal(t, "jane", snap.PersonalInfo.Name)

	// corrupt entry is gone
	_, ok, err := kvstore.Get(ctx, s.DB.Pool, "userData_jane@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotsAreNamespacedByIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "a@x.com", domain.Snapshot{
		PersonalInfo: domain.PersonalInfo{Name: "A"},
	}))

	other, err := s.Load(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "b", other.PersonalInfo.Name)
}

func TestFirstLoginMarker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	date, first, err := s.FirstLogin(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.True(t, first)
	assert.NotEmpty(t, date)

	again, first, err := s.FirstLogin(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.False(t, first)
	assert.Equal(t, date, again)
}

func TestCurrentUserKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetCurrentUser(ctx, "jane@example.com"))
	id, ok, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "jane@example.com", id)

	require.NoError(t, s.ClearCurrentUser(ctx))
	_, ok, err = s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
