// Package events carries transient UI notifications between the engine
// and the streaming layer. Events are fire-and-forget: a slow or absent
// subscriber never blocks the publishing turn.
package events

import (
	"sync"
	"time"
)

// Type identifies an event variant.
type Type string

const (
	TypeIntimacyShift  Type = "intimacy_shift"
	TypePowerRelease   Type = "power_release"
	TypeMediaStatus    Type = "media_status"
	TypeFallbackStaged Type = "fallback_staged"
)

// Event is a transient notification. Payload is a JSON-serializable value
// specific to the type.
type Event struct {
	Type        Type      `json:"type"`
	CharacterID uint      `json:"character_id"`
	SessionID   string    `json:"session_id,omitempty"`
	Payload     any       `json:"payload"`
	At          time.Time `json:"at"`
}

// IntimacyShift reports an applied score delta.
type IntimacyShift struct {
	Delta     float64 `json:"delta"`
	Reason    string  `json:"reason"`
	Displayed float64 `json:"displayed"`
	Tier      string  `json:"tier"`
}

// PowerRelease reports a power directive firing.
type PowerRelease struct {
	Level           string `json:"level"`
	AbilityName     string `json:"ability_name"`
	CanonicalEffect string `json:"canonical_effect"`
	NarratedEffect  string `json:"narrated_effect"`
}

// MediaStatus reports a media slot transition (pending, done, errored).
type MediaStatus struct {
	MediaID string `json:"media_id"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
}

// FallbackStaged reports that a generation fallback is waiting for an
// explicit user decision.
type FallbackStaged struct {
	MediaID string `json:"media_id"`
	Backend string `json:"backend"`
	Prompt  string `json:"prompt"`
	Reason  string `json:"reason"`
}

// Bus is a small in-process publish/subscribe fanout.
type Bus struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a buffered channel receiving future events. The
// channel is never closed; callers drop it when done.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers an event to every subscriber, dropping it for
// subscribers whose buffer is full.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
