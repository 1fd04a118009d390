package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/timectx"
)

func promptFor(t *testing.T, c *models.Character, now time.Time) string {
	t.Helper()
	tctx, err := timectx.Resolve(now, c.Timezone)
	require.NoError(t, err)
	return BuildSystemPrompt(c, tctx, now)
}

func TestBuildSystemPromptCarriesPersonaAndTier(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)
	c := &models.Character{
		Name:          "Mira",
		Race:          "elf",
		Timezone:      "UTC",
		Personality:   "playful and sharp-tongued",
		IntimacyScore: 45.0,
	}

	prompt := promptFor(t, c, now)

	assert.Contains(t, prompt, "You are Mira.")
	assert.Contains(t, prompt, "playful and sharp-tongued")
	assert.Contains(t, prompt, "Close/Trusting")
	assert.Contains(t, prompt, "45.0")
	assert.Contains(t, prompt, "Sylvan Resonance")
}

func TestBuildSystemPromptClampsDriftedScore(t *testing.T) {
	c := &models.Character{Name: "Mira", Timezone: "UTC", IntimacyScore: 131.4}

	prompt := promptFor(t, c, time.Now())

	assert.Contains(t, prompt, "100.0")
	assert.Contains(t, prompt, "Deeply Bonded")
	assert.NotContains(t, prompt, "131.4")
}

func TestBuildSystemPromptLocalTime(t *testing.T) {
	// Monday 06:00 UTC is Monday 15:00 in Tokyo.
	now := time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)
	c := &models.Character{Name: "Mira", Timezone: "Asia/Tokyo"}

	prompt := promptFor(t, c, now)

	assert.Contains(t, prompt, "Monday 15:00")
	assert.Contains(t, prompt, string(timectx.LabelAfternoon))
}

func TestBuildSystemPromptRecentPowerDiscouraged(t *testing.T) {
	now := time.Now()
	recent := now.Add(-10 * time.Minute)
	c := &models.Character{Name: "Mira", Timezone: "UTC", LastPowerTrigger: &recent}

	prompt := promptFor(t, c, now)
	assert.Contains(t, prompt, "released your power very recently")

	old := now.Add(-3 * time.Hour)
	c.LastPowerTrigger = &old
	prompt = promptFor(t, c, now)
	assert.NotContains(t, prompt, "released your power very recently")
}

func TestBuildSystemPromptTeachesEveryTagKind(t *testing.T) {
	prompt := promptFor(t, &models.Character{Name: "Mira", Timezone: "UTC"}, time.Now())

	for _, tag := range []string{"[IMAGE:selfie|", "[IMAGE:viewer|", "[VIDEO:", "[VOICE:", "[POWER:"} {
		assert.True(t, strings.Contains(prompt, tag), "grammar must teach %s", tag)
	}
}
