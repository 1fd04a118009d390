// Package session holds the ephemeral per-chat continuity state: chosen
// hairstyle, current outfit, location, time-of-day bucket and the visual
// reference chain. Nothing here is ever persisted; closing the chat
// discards it.
package session

import (
	"math/rand"
	"sync"
	"time"

	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/timectx"
)

// ArtifactRef points at the most recently generated artifact used for
// visual chaining.
type ArtifactRef struct {
	MediaID string
	Kind    string
}

// Context is the continuity state of one open chat session.
type Context struct {
	SessionID   string
	CharacterID uint
	CreatedAt   time.Time

	mu        sync.Mutex
	hairstyle string
	outfit    string // empty until first generation needs one
	location  string
	bucket    timectx.Bucket
	reference *ArtifactRef
	busy      bool
}

// Hairstyle returns the variant selected at session start.
func (s *Context) Hairstyle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hairstyle
}

// Outfit returns the current outfit description, empty if none has been
// generated yet this session.
func (s *Context) Outfit() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outfit
}

// Location returns the current micro-location.
func (s *Context) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// NeedsOutfitRefresh reports whether the outfit must be regenerated for a
// scene at the given location and time bucket: yes when no outfit exists
// yet, the micro-location changed, or the time of day crossed into a
// different bucket. A change within the same bucket reuses the stored
// outfit verbatim.
func (s *Context) NeedsOutfitRefresh(location string, bucket timectx.Bucket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outfit == "" {
		return true
	}
	if location != s.location {
		return true
	}
	return bucket != s.bucket
}

// CommitScene stores the scene inputs and outfit after a generation
// decision.
func (s *Context) CommitScene(location string, bucket timectx.Bucket, outfit string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = location
	s.bucket = bucket
	s.outfit = outfit
}

// Reference returns the current chaining pointer, nil when the next
// generation must fall back to the avatar.
func (s *Context) Reference() *ArtifactRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reference == nil {
		return nil
	}
	ref := *s.reference
	return &ref
}

// AdvanceReference moves the chain pointer to a newly generated artifact.
// Called only on generation success so a failed attempt never breaks the
// chain.
func (s *Context) AdvanceReference(mediaID, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reference = &ArtifactRef{MediaID: mediaID, Kind: kind}
}

// ClearReference drops the pointer, forcing the next generation back to
// the avatar. Used when the referenced artifact was deleted.
func (s *Context) ClearReference() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reference = nil
}

// TryAcquire marks the session busy for one user action. Returns false
// when another action is already in flight.
func (s *Context) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

// Release clears the busy flag after an action ran to completion.
func (s *Context) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

// Manager is the in-memory registry of open sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Context
	rng      *rand.Rand
}

// NewManager creates a registry. The rng drives hairstyle selection and
// is injectable for deterministic tests.
func NewManager(rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Manager{
		sessions: make(map[string]*Context),
		rng:      rng,
	}
}

// Open initializes a fresh session context for a character: a random
// hairstyle variant, no outfit, cleared reference pointer. An existing
// context for the same session id is replaced.
func (m *Manager) Open(sessionID string, c *models.Character) *Context {
	variants := c.HairstyleVariants()
	hairstyle := ""

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(variants) > 0 {
		hairstyle = variants[m.rng.Intn(len(variants))]
	}

	sc := &Context{
		SessionID:   sessionID,
		CharacterID: c.ID,
		CreatedAt:   time.Now(),
		hairstyle:   hairstyle,
	}
	m.sessions[sessionID] = sc
	return sc
}

// Get returns an open session context.
func (m *Manager) Get(sessionID string) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.sessions[sessionID]
	return sc, ok
}

// Close discards a session context.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
