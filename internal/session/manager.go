package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"apptrack-engine/internal/applist"
	"apptrack-engine/internal/authprovider"
	"apptrack-engine/internal/domain"
	"apptrack-engine/internal/events"
	"apptrack-engine/internal/secrets"
	"apptrack-engine/internal/snapshot"
)

// ErrActiveSession is returned when a login is attempted for a different
// identity while a session is live.
var ErrActiveSession = errors.New("another session is active")

// Session is the live pairing of identity and bearer token. At most one per
// running engine.
type Session struct {
	Identity string `json:"identity"`
	Token    string `json:"-"`
}

// Provider is the slice of the identity provider the manager consumes.
type Provider interface {
	CurrentSession() *authprovider.Session
	GetUser(ctx context.Context, token string) (*authprovider.User, error)
	SignOut(ctx context.Context, token string) error
	Events() <-chan authprovider.Event
}

// TokenStore persists the bearer token outside the manager (OS keyring in
// production).
type TokenStore interface {
	Get(identity string) (string, error)
	Set(identity, token string) error
	Delete(identity string) error
}

// KeyringTokens is the production TokenStore.
type KeyringTokens struct{}

func (KeyringTokens) Get(identity string) (string, error) { return secrets.GetToken(identity) }
func (KeyringTokens) Set(identity, tok string) error      { return secrets.SetToken(identity, tok) }
func (KeyringTokens) Delete(identity string) error        { return secrets.DeleteToken(identity) }

// Manager owns the session lifecycle: it establishes identity, restores it
// across restarts, consumes the provider's auth event stream and tears the
// session down again. It is the single owner of the profile and application
// list state.
type Manager struct {
	provider Provider
	store    *snapshot.Store
	tokens   TokenStore
	list     *applist.List
	hub      *events.Hub

	mu      sync.Mutex
	sess    *Session
	profile domain.PersonalInfo

	// in-flight auth event guard; a second event while held is dropped,
	// not queued.
	handling atomic.Bool
}

func NewManager(p Provider, store *snapshot.Store, tokens TokenStore, list *applist.List, hub *events.Hub) *Manager {
	if tokens == nil {
		tokens = KeyringTokens{}
	}
	return &Manager{provider: p, store: store, tokens: tokens, list: list, hub: hub}
}

// Current returns a copy of the live session, if any.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return Session{}, false
	}
	return *m.sess, true
}

// Token returns the live bearer token, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return ""
	}
	return m.sess.Token
}

func (m *Manager) List() *applist.List { return m.list }

// Login establishes the session, persists identity and token, and loads the
// snapshot for the identity. Calling it again with the same identity while
// logged in is a no-op.
func (m *Manager) Login(ctx context.Context, identity, token string) error {
	m.mu.Lock()
	if m.sess != nil {
		same := m.sess.Identity == identity
		m.mu.Unlock()
		if same {
			return nil
		}
		return ErrActiveSession
	}
	m.sess = &Session{Identity: identity, Token: token}
	m.mu.Unlock()

	if err := m.store.SetCurrentUser(ctx, identity); err != nil {
		log.Printf("level=warn msg=\"persist current user failed\" err=%v", err)
	}
	if err := m.tokens.Set(identity, token); err != nil {
		log.Printf("level=warn msg=\"persist token failed\" err=%v", err)
	}

	snap, err := m.store.Load(ctx, identity)
	if err != nil {
		return err
	}
	m.list.Reset(snap.Applications)
	m.mu.Lock()
	m.profile = snap.PersonalInfo
	m.mu.Unlock()

	_, first, err := m.store.FirstLogin(ctx, identity)
	if err != nil {
		log.Printf("level=warn msg=\"first-login marker failed\" err=%v", err)
	}

	m.hub.Emit("", events.TypeSessionStarted, map[string]any{
		"identity":   identity,
		"firstLogin": first,
	})
	log.Printf("level=info msg=\"session started\" identity=%s", identity)
	return nil
}

// Logout tears the session down. Calling it while logged out is a no-op, so
// a redundant signed_out event cannot double-clear. Local state is cleared
// before the provider call; a failed provider invalidation is logged only
// and never rolled back.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return nil
	}
	identity, token := m.sess.Identity, m.sess.Token
	m.sess = nil
	m.profile = domain.PersonalInfo{}
	m.mu.Unlock()

	m.list.Reset(nil)

	if err := m.store.ClearCurrentUser(ctx); err != nil {
		log.Printf("level=warn msg=\"clear current user failed\" err=%v", err)
	}
	if err := m.tokens.Delete(identity); err != nil {
		log.Printf("level=warn msg=\"delete token failed\" err=%v", err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.provider.SignOut(ctx, token); err != nil {
			log.Printf("level=warn msg=\"provider sign-out failed\" identity=%s err=%v", identity, err)
		}
	}()

	m.hub.Emit("", events.TypeSessionEnded, map[string]any{"identity": identity})
	log.Printf("level=info msg=\"session ended\" identity=%s", identity)
	return nil
}

// Restore re-establishes a session at startup: a live provider session (e.g.
// after an OAuth redirect) wins; otherwise the persisted identity and token
// are validated against the provider. Invalid cached credentials are cleared
// rather than surfaced.
func (m *Manager) Restore(ctx context.Context) error {
	if _, ok := m.Current(); ok {
		return nil
	}

	if ps := m.provider.CurrentSession(); ps != nil && ps.User.Email != "" {
		return m.Login(ctx, ps.User.Email, ps.AccessToken)
	}

	identity, ok, err := m.store.CurrentUser(ctx)
	if err != nil || !ok {
		return err
	}
	token, err := m.tokens.Get(identity)
	if err != nil {
		_ = m.store.ClearCurrentUser(ctx)
		return nil
	}

	if _, err := m.provider.GetUser(ctx, token); err != nil {
		var perr *authprovider.Error
		if errors.As(err, &perr) {
			log.Printf("level=info msg=\"cached token rejected, clearing\" identity=%s", identity)
			_ = m.store.ClearCurrentUser(ctx)
			_ = m.tokens.Delete(identity)
			return nil
		}
		// provider unreachable: keep the cached session rather than
		// locking the user out of their local data
		log.Printf("level=warn msg=\"token validation unavailable\" err=%v", err)
	}
	return m.Login(ctx, identity, token)
}

// Run consumes the provider event stream until ctx is done. At most one
// event is processed at a time; events arriving while one is in flight are
// dropped, not queued.
func (m *Manager) Run(ctx context.Context) error {
	evs := m.provider.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-evs:
			if !ok {
				return nil
			}
			if !m.handling.CompareAndSwap(false, true) {
				log.Printf("level=info msg=\"auth event dropped, handler busy\" type=%s", ev.Type)
				continue
			}
			go func(ev authprovider.Event) {
				defer m.handling.Store(false)
				m.handleEvent(ev)
			}(ev)
		}
	}
}

func (m *Manager) handleEvent(ev authprovider.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch ev.Type {
	case authprovider.SignedIn:
		if ev.Session == nil || ev.Session.User.Email == "" {
			return
		}
		// a redundant signed_in (initial session check racing a redirect
		// callback) must not restart the session
		if _, ok := m.Current(); ok {
			return
		}
		if err := m.Login(ctx, ev.Session.User.Email, ev.Session.AccessToken); err != nil {
			log.Printf("level=warn msg=\"event login failed\" err=%v", err)
		}

	case authprovider.SignedOut:
		if _, ok := m.Current(); !ok {
			return
		}
		if err := m.Logout(ctx); err != nil {
			log.Printf("level=warn msg=\"event logout failed\" err=%v", err)
		}

	case authprovider.TokenRefreshed:
		if ev.Session == nil {
			return
		}
		m.adoptToken(ev.Session.User.Email, ev.Session.AccessToken)
	}
}

// adoptToken propagates a rotated bearer token into the live session and the
// token store, so a refreshed session never keeps serving the stale token.
func (m *Manager) adoptToken(identity, token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	if m.sess == nil || (identity != "" && m.sess.Identity != identity) {
		m.mu.Unlock()
		return
	}
	m.sess.Token = token
	identity = m.sess.Identity
	m.mu.Unlock()

	if err := m.tokens.Set(identity, token); err != nil {
		log.Printf("level=warn msg=\"persist refreshed token failed\" err=%v", err)
	}
	m.hub.Emit("", events.TypeTokenRefreshed, map[string]any{"identity": identity})
}
