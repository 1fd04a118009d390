package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"companion-engine/backend/internal/session"
)

// DefaultSnapshotTTL bounds how long a disconnected session can still be
// resumed.
const DefaultSnapshotTTL = 30 * time.Minute

// SessionStore persists session snapshots in the KV layer so a client
// reconnect can resume continuity state.
type SessionStore struct {
	kv  KV
	ttl time.Duration
}

func NewSessionStore(kv KV, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SessionStore{kv: kv, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "session:snapshot:" + sessionID
}

func (s *SessionStore) Save(ctx context.Context, snap session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	return s.kv.Set(ctx, sessionKey(snap.SessionID), string(data), s.ttl)
}

// Load returns the stored snapshot, or (nil, nil) when none exists.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*session.Snapshot, error) {
	raw, err := s.kv.Get(ctx, sessionKey(sessionID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal session snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.kv.Del(ctx, sessionKey(sessionID))
}
