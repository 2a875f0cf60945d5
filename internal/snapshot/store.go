package snapshot

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"apptrack-engine/internal/domain"
	"apptrack-engine/internal/kvstore"
)

// Keys in the kv store. Values are strings; absence is a valid state.
const (
	KeyCurrentUser = "currentUser"

	userDataPrefix   = "userData_"
	firstLoginPrefix = "firstLogin_"
)

// Store is the durable per-identity snapshot cache. It is the only
// reader/writer of the userData_* and firstLogin_* keys.
type Store struct {
	DB *kvstore.DB
}

func NewStore(db *kvstore.DB) *Store {
	return &Store{DB: db}
}

// Load reads the snapshot for identity. A missing key yields a default
// snapshot seeded from the identity. A malformed value is discarded (the key
// is removed) and the same default returned; corruption never propagates as
// an error to the caller.
func (s *Store) Load(ctx context.Context, identity string) (domain.Snapshot, error) {
	key := userDataPrefix + identity

	raw, ok, err := kvstore.Get(ctx, s.DB.Pool, key)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if !ok {
		return domain.DefaultSnapshot(identity), nil
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		log.Printf("level=warn msg=\"discarding corrupt snapshot\" identity=%s err=%v", identity, err)
		_ = kvstore.Delete(ctx, s.DB.Pool, key)
		return domain.DefaultSnapshot(identity), nil
	}
	return snap, nil
}

// Save overwrites the snapshot for identity with a full serialization.
// Callers suppress saves while no session is active.
func (s *Store) Save(ctx context.Context, identity string, snap domain.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return kvstore.Set(ctx, s.DB.Pool, userDataPrefix+identity, string(b))
}

// FirstLogin returns the stored first-login date marker for identity,
// recording today's date on first call. Used only to vary welcome copy.
func (s *Store) FirstLogin(ctx context.Context, identity string) (date string, first bool, err error) {
	key := firstLoginPrefix + identity

	date, ok, err := kvstore.Get(ctx, s.DB.Pool, key)
	if err != nil {
		return "", false, err
	}
	if ok {
		return date, false, nil
	}

	date = time.Now().UTC().Format("2006-01-02")
	if err := kvstore.Set(ctx, s.DB.Pool, key, date); err != nil {
		return "", false, err
	}
	return date, true, nil
}

// CurrentUser reads the persisted identity, if any.
func (s *Store) CurrentUser(ctx context.Context) (string, bool, error) {
	return kvstore.Get(ctx, s.DB.Pool, KeyCurrentUser)
}

// SetCurrentUser persists the identity under the fixed key.
func (s *Store) SetCurrentUser(ctx context.Context, identity string) error {
	return kvstore.Set(ctx, s.DB.Pool, KeyCurrentUser, identity)
}

// ClearCurrentUser removes the persisted identity.
func (s *Store) ClearCurrentUser(ctx context.Context) error {
	return kvstore.Delete(ctx, s.DB.Pool, KeyCurrentUser)
}
