package directive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-engine/backend/internal/models"
)

func TestApplyPowerTrigger(t *testing.T) {
	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	c := &models.Character{ID: 3, Race: "vampire"}

	ev := ApplyPowerTrigger(c, Power{Level: models.PowerMid, Effect: "shadows thicken"}, now)

	assert.Equal(t, uint(3), ev.CharacterID)
	assert.Equal(t, models.PowerMid, ev.Level)
	assert.Equal(t, "Crimson Veil", ev.AbilityName)
	assert.Equal(t, "shadows thicken", ev.NarratedEffect)
	assert.NotEmpty(t, ev.CanonicalEffect)

	require.NotNil(t, c.CurrentPowerLevel)
	assert.Equal(t, "MID", *c.CurrentPowerLevel)
	require.NotNil(t, c.LastPowerTrigger)
	assert.Equal(t, now, *c.LastPowerTrigger)
}

func TestApplyPowerTriggerUnknownRaceFallsBack(t *testing.T) {
	c := &models.Character{ID: 1, Race: "merfolk"}

	ev := ApplyPowerTrigger(c, Power{Level: models.PowerMax, Effect: "the tide rises"}, time.Now())

	assert.Equal(t, "Limit Break", ev.AbilityName)
	assert.NotEmpty(t, ev.CanonicalEffect)
}
