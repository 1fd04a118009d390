package directive

import (
	"time"

	"companion-engine/backend/internal/models"
)

// PowerEvent is raised when a narrative turn carries a power-release
// directive. CanonicalEffect comes from the character's power system
// record; NarratedEffect is whatever the model wrote in the tag.
type PowerEvent struct {
	CharacterID     uint
	Level           models.PowerLevel
	AbilityName     string
	CanonicalEffect string
	NarratedEffect  string
	TriggeredAt     time.Time
}

// ApplyPowerTrigger resolves the canonical tier description for the
// character's race and records the trigger on the character. The recorded
// timestamp exists so prompt construction can discourage over-frequent
// releases; no minimum interval is enforced here.
func ApplyPowerTrigger(c *models.Character, p Power, now time.Time) PowerEvent {
	system := models.LookupPowerSystem(c.Race)

	level := string(p.Level)
	c.CurrentPowerLevel = &level
	c.LastPowerTrigger = &now

	return PowerEvent{
		CharacterID:     c.ID,
		Level:           p.Level,
		AbilityName:     system.AbilityName,
		CanonicalEffect: system.TierDescription(p.Level),
		NarratedEffect:  p.Effect,
		TriggeredAt:     now,
	}
}
