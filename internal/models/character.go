package models

import (
	"strings"
	"time"
)

// Intimacy display bounds. The stored score may drift past these; only the
// displayed value is clamped.
const (
	IntimacyDisplayMin = -100.0
	IntimacyDisplayMax = 100.0

	// DefaultIntimacyScore is the new-acquaintance starting score.
	DefaultIntimacyScore = 10.0
)

// Character is a persisted companion character and its relationship state.
type Character struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Name      string    `json:"name" gorm:"not null"`
	Race      string    `json:"race" gorm:"default:human"`
	Timezone  string    `json:"timezone" gorm:"default:UTC"` // IANA name
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Avatar artifact and the prompt that produced it.
	AvatarMediaID string `json:"avatar_media_id"`
	AvatarPrompt  string `json:"avatar_prompt"`

	// Structured profile. Identity facts and appearance are stable visual
	// inputs; personality and context feed the narrative prompt only.
	IdentityFacts string `json:"identity_facts" gorm:"type:text"`
	Appearance    string `json:"appearance" gorm:"type:text"`
	Hairstyles    string `json:"hairstyles" gorm:"type:text"` // comma-separated variants
	Personality   string `json:"personality" gorm:"type:text"`
	Context       string `json:"context" gorm:"type:text"`
	VoiceType     string `json:"voice_type"`

	// Relationship state. IntimacyScore is the raw running score and may
	// exceed the display range.
	IntimacyScore float64 `json:"intimacy_score" gorm:"default:10"`

	// Power release bookkeeping. LastPowerTrigger is recorded for prompt
	// construction only; no hard cooldown is enforced here.
	CurrentPowerLevel *string    `json:"current_power_level,omitempty"`
	LastPowerTrigger  *time.Time `json:"last_power_trigger,omitempty"`
}

// HairstyleVariants splits the stored hairstyle list into individual variants.
func (c *Character) HairstyleVariants() []string {
	if c.Hairstyles == "" {
		return nil
	}
	parts := strings.Split(c.Hairstyles, ",")
	variants := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			variants = append(variants, trimmed)
		}
	}
	return variants
}

// DisplayedIntimacy clamps the raw score to the visible range.
func (c *Character) DisplayedIntimacy() float64 {
	return ClampIntimacy(c.IntimacyScore)
}

// ClampIntimacy bounds a raw intimacy score to the display range.
func ClampIntimacy(score float64) float64 {
	if score < IntimacyDisplayMin {
		return IntimacyDisplayMin
	}
	if score > IntimacyDisplayMax {
		return IntimacyDisplayMax
	}
	return score
}

// CreateCharacterRequest is the payload for character creation.
type CreateCharacterRequest struct {
	Name          string `json:"name" binding:"required"`
	Race          string `json:"race"`
	Timezone      string `json:"timezone"`
	IdentityFacts string `json:"identity_facts"`
	Appearance    string `json:"appearance" binding:"required"`
	Hairstyles    string `json:"hairstyles"`
	Personality   string `json:"personality" binding:"required"`
	Context       string `json:"context"`
	VoiceType     string `json:"voice_type"`
	AvatarPrompt  string `json:"avatar_prompt"`
}
