package session

import (
	"time"

	"companion-engine/backend/internal/timectx"
)

// Snapshot is a serializable copy of a session's continuity state, used
// to survive a websocket reconnect within the snapshot TTL.
type Snapshot struct {
	SessionID   string         `json:"session_id"`
	CharacterID uint           `json:"character_id"`
	CreatedAt   time.Time      `json:"created_at"`
	Hairstyle   string         `json:"hairstyle"`
	Outfit      string         `json:"outfit,omitempty"`
	Location    string         `json:"location,omitempty"`
	Bucket      timectx.Bucket `json:"bucket,omitempty"`
	RefMediaID  string         `json:"ref_media_id,omitempty"`
	RefKind     string         `json:"ref_kind,omitempty"`
}

// Snapshot captures the current continuity state. The busy flag is
// deliberately not part of a snapshot.
func (s *Context) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		SessionID:   s.SessionID,
		CharacterID: s.CharacterID,
		CreatedAt:   s.CreatedAt,
		Hairstyle:   s.hairstyle,
		Outfit:      s.outfit,
		Location:    s.location,
		Bucket:      s.bucket,
	}
	if s.reference != nil {
		snap.RefMediaID = s.reference.MediaID
		snap.RefKind = s.reference.Kind
	}
	return snap
}

// Restore rebuilds a session context from a snapshot and registers it.
func (m *Manager) Restore(snap Snapshot) *Context {
	sc := &Context{
		SessionID:   snap.SessionID,
		CharacterID: snap.CharacterID,
		CreatedAt:   snap.CreatedAt,
		hairstyle:   snap.Hairstyle,
		outfit:      snap.Outfit,
		location:    snap.Location,
		bucket:      snap.Bucket,
	}
	if snap.RefMediaID != "" {
		sc.reference = &ArtifactRef{MediaID: snap.RefMediaID, Kind: snap.RefKind}
	}
	m.mu.Lock()
	m.sessions[snap.SessionID] = sc
	m.mu.Unlock()
	return sc
}
