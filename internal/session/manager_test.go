package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apptrack-engine/internal/applist"
	"apptrack-engine/internal/authprovider"
	"apptrack-engine/internal/domain"
	"apptrack-engine/internal/events"
	"apptrack-engine/internal/kvstore"
	"apptrack-engine/internal/snapshot"
)

type fakeProvider struct {
	mu       sync.Mutex
	events   chan authprovider.Event
	cur      *authprovider.Session
	userErr  error
	signOuts int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: make(chan authprovider.Event, 8)}
}

func (f *fakeProvider) CurrentSession() *authprovider.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

func (f *fakeProvider) GetUser(ctx context.Context, token string) (*authprovider.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return &authprovider.User{Email: "a@x.com"}, nil
}

func (f *fakeProvider) SignOut(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	return nil
}

func (f *fakeProvider) signOutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOuts
}

func (f *fakeProvider) Events() <-chan authprovider.Event { return f.events }

type memTokens struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemTokens() *memTokens { return &memTokens{m: map[string]string{}} }

func (s *memTokens) Get(identity string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.m[identity]
	if !ok {
		return "", assert.AnError
	}
	return tok, nil
}

func (s *memTokens) Set(identity, tok string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[identity] = tok
	return nil
}

func (s *memTokens) Delete(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, identity)
	return nil
}

func newTestManager(t *testing.T, p Provider) (*Manager, *memTokens, *snapshot.Store) {
	t.Helper()
	db, err := kvstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, kvstore.Migrate(db.Pool))

	store := snapshot.NewStore(db)
	tokens := newMemTokens()
	m := NewManager(p, store, tokens, applist.New(), events.NewHub())
	return m, tokens, store
}

func TestLoginEstablishesSessionAndPersists(t *testing.T) {
	p := newFakeProvider()
	m, tokens, store := newTestManager(t, p)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, "a@x.com", "tok1"))

	sess, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "a@x.com", sess.Identity)
	assert.Equal(t, "tok1", m.Token())

	id, ok, err := store.CurrentUser(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a@x.com", id)

	tok, err := tokens.Get("a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "tok1", tok)

	// profile seeded from identity
	assert.Equal(t, "a", m.Profile().Name)
}

func TestLoginSameIdentityIsIdempotent(t *testing.T) {
	p := newFakeProvider()
	m, _, _ := newTestManager(t, p)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, "a@x.com", "tok1"))
	require.NoError(t, m.Login(ctx, "a@x.com", "tok2"))

	// the original token survives a duplicate login
	assert.Equal(t, "tok1", m.Token())
}

func TestLoginDifferentIdentityWhileActive(t *testing.T) {
	p := newFakeProvider()
	m, _, _ := newTestManager(t, p)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, "a@x.com", "tok1"))
	assert.ErrorIs(t, m.Login(ctx, "b@x.com", "tok2"), ErrActiveSession)
}

func TestLogoutClearsStateBeforeProviderCall(t *testing.T) {
	p := newFakeProvider()
	m, tokens, store := newTestManager(t, p)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, "a@x.com", "tok1"))
	m.List().Add(domain.ApplicationRecord{Company: "Acme", Position: "Engineer", Status: domain.StatusApplied})

	require.NoError(t, m.Logout(ctx))

	_, ok := m.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, m.List().Len())
	assert.Equal(t, domain.PersonalInfo{}, m.Profile())

	_, ok, err := store.CurrentUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = tokens.Get("a@x.com")
	assert.Error(t, err)

	require.Eventually(t, func() bool { return p.signOutCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestLogoutTwiceIsIdempotent(t *testing.T) {
	p := newFakeProvider()
	m, _, _ := newTestManager(t, p)
	ctx := context.Background()

	require.NoError(t, m.Login(ctx, "a@x.com", "tok1"))
	require.NoError(t, m.Logout(ctx))
	require.NoError(t, m.Logout(ctx))

	require.Eventually(t, func() bool { return p.signOutCount() == 1 },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, p.signOutCount(), "second logout must not sign out again")
}

func TestSaveSuppressedWhileLoggedOut(t *testing.T) {
	p := newFakeProvider()
	m, _, store := newTestManager(t, p)
	ctx := context.Background()

	require.NoError(t, m.SaveSnapshot(ctx))

	snap, err := store.Load(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Empty(t, snap.Applications)
}

func TestSignedInEventSuppressedWhileActive(t *testing.T) {
	p := newFakeProvider()
	m, _, _ := newTestManager(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx)
		close(done)
	}()

	require.NoError(t, m.Login(context.Background(), "a@x.com", "tok1"))

	// redundant signed_in, e.g. initial session check racing a redirect
	p.events <- authprovider.Event{
		Type: authprovider.SignedIn,
		Session: &authprovider.Session{
			AccessToken: "tok-other",
			User:        authprovider.User{Email: "a@x.com"},
		},
	}

	// token never changes; the duplicate is suppressed
	require.Never(t, func() bool { return m.Token() != "tok1" },
		200*time.Millisecond, 20*time.Millisecond)

	cancel()
	<-done
}

func TestSignedOutEventEndsSession(t *testing.T) {
	p := newFakeProvider()
	m, _, _ := newTestManager(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	require.NoError(t, m.Login(context.Background(), "a@x.com", "tok1"))

	p.events <- authprovider.Event{Type: authprovider.SignedOut}

	require.Eventually(t, func() bool {
		_, ok := m.Current()
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestTokenRefreshPropagates(t *testing.T) {
	p := newFakeProvider()
	m, tokens, _ := newTestManager(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	require.NoError(t, m.Login(context.Background(), "a@x.com", "tok1"))

	p.events <- authprovider.Event{
		Type: authprovider.TokenRefreshed,
		Session: &authprovider.Session{
			AccessToken: "tok2",
			User:        authprovider.User{Email: "a@x.com"},
		},
	}

	require.Eventually(t, func() bool { return m.Token() == "tok2" },
		time.Second, 10*time.Millisecond)

	tok, err := tokens.Get("a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "tok2", tok)
}

func TestRestoreFromPersistedSession(t *testing.T) {
	p := newFakeProvider()
	m, tokens, store := newTestManager(t, p)
	ctx := context.Background()

	require.NoError(t, store.SetCurrentUser(ctx, "a@x.com"))
	require.NoError(t, tokens.Set("a@x.com", "tok1"))

	require.NoError(t, m.Restore(ctx))

	sess, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "a@x.com", sess.Identity)
	assert.Equal(t, "tok1", sess.Token)
}

func TestRestoreClearsRejectedToken(t *testing.T) {
	p := newFakeProvider()
	p.userErr = &authprovider.Error{Status: 401, Message: "invalid token"}
	m, tokens, store := newTestManager(t, p)
	ctx := context.Background()

	require.NoError(t, store.SetCurrentUser(ctx, "a@x.com"))
	require.NoError(t, tokens.Set("a@x.com", "stale"))

	require.NoError(t, m.Restore(ctx))

	_, ok := m.Current()
	assert.False(t, ok)

	_, ok, err := store.CurrentUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestorePrefersProviderSession(t *testing.T) {
	p := newFakeProvider()
	p.cur = &authprovider.Session{
		AccessToken: "oauth-tok",
		User:        authprovider.User{Email: "a@x.com"},
	}
	m, _, _ := newTestManager(t, p)

	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, "oauth-tok", m.Token())
}

// slowTokens blocks the first Set until released, keeping the login handler
// in flight.
type slowTokens struct {
	*memTokens
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowTokens) Set(identity, tok string) error {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.memTokens.Set(identity, tok)
}

func TestEventWhileHandlerBusyIsDropped(t *testing.T) {
	p := newFakeProvider()
	tokens := &slowTokens{
		memTokens: newMemTokens(),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}

	db, err := kvstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, kvstore.Migrate(db.Pool))

	m := NewManager(p, snapshot.NewStore(db), tokens, applist.New(), events.NewHub())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	// signed_in whose handler blocks inside the token store
	p.events <- authprovider.Event{
		Type: authprovider.SignedIn,
		Session: &authprovider.Session{
			AccessToken: "tok1",
			User:        authprovider.User{Email: "a@x.com"},
		},
	}
	select {
	case <-tokens.entered:
	case <-time.After(time.Second):
		t.Fatal("login never reached the token store")
	}

	// a signed_out arriving now must be dropped, not queued behind the
	// in-flight handler
	p.events <- authprovider.Event{Type: authprovider.SignedOut}
	close(tokens.release)

	require.Eventually(t, func() bool { return m.Token() == "tok1" },
		time.Second, 10*time.Millisecond)

	// the dropped signed_out never tears the session down
	require.Never(t, func() bool {
		_, ok := m.Current()
		return !ok
	}, 300*time.Millisecond, 20*time.Millisecond)
}
