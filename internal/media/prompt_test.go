package media

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"companion-engine/backend/internal/directive"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/timectx"
)

func TestBuildImagePromptSingleSourcePerConcern(t *testing.T) {
	prompt := BuildImagePrompt(PromptInputs{
		Appearance:    "tall, green eyes",
		IdentityFacts: "a violinist",
		Hairstyle:     "high ponytail",
		Outfit:        "white sundress",
		Location:      "cafe window table",
		TimeLabel:     timectx.LabelAfternoon,
		Direction:     "soft smile, chin resting on hand",
		Perspective:   directive.PerspectiveSelfie,
	})

	assert.Contains(t, prompt, "selfie photo taken at arm's length")
	assert.Contains(t, prompt, "subject: tall, green eyes")
	assert.Contains(t, prompt, "hairstyle: high ponytail")
	assert.Contains(t, prompt, "outfit: white sundress")
	assert.Contains(t, prompt, "setting: cafe window table")
	assert.Contains(t, prompt, "time of day: afternoon")
	assert.Contains(t, prompt, "moment: soft smile, chin resting on hand")
}

func TestBuildImagePromptViewerPerspective(t *testing.T) {
	prompt := BuildImagePrompt(PromptInputs{
		Appearance:  "tall, green eyes",
		Perspective: directive.PerspectiveViewer,
	})

	assert.Contains(t, prompt, "viewer's point of view")
	assert.NotContains(t, prompt, "selfie")
}

func TestBuildImagePromptSkipsEmptyInputs(t *testing.T) {
	prompt := BuildImagePrompt(PromptInputs{Appearance: "tall"})

	assert.NotContains(t, prompt, "outfit:")
	assert.NotContains(t, prompt, "hairstyle:")
	assert.NotContains(t, prompt, "time of day:")
}

func TestBuildImagePromptDeterministic(t *testing.T) {
	in := PromptInputs{Appearance: "tall", Outfit: "sundress", Location: "park"}
	assert.Equal(t, BuildImagePrompt(in), BuildImagePrompt(in))
}

func TestBuildAvatarPrompt(t *testing.T) {
	c := &models.Character{
		Appearance:    "tall, green eyes",
		IdentityFacts: "a violinist",
		Hairstyles:    "long loose waves, high ponytail",
	}

	prompt := BuildAvatarPrompt(c)

	assert.Contains(t, prompt, "portrait of: tall, green eyes")
	assert.Contains(t, prompt, "hairstyle: long loose waves")
	assert.Contains(t, prompt, "neutral background")
}

func TestBuildAvatarPromptEmptySheet(t *testing.T) {
	assert.Empty(t, BuildAvatarPrompt(&models.Character{}))
}

func TestBuildVideoPromptAppendsMotion(t *testing.T) {
	in := PromptInputs{Appearance: "tall"}

	assert.Contains(t, BuildVideoPrompt(in, "slow wave"), "motion: slow wave")
	assert.Equal(t, BuildImagePrompt(in), BuildVideoPrompt(in, "  "))
}

func TestSafetyLevels(t *testing.T) {
	assert.True(t, SafetyStandard.Valid())
	assert.True(t, SafetyFlexible.Valid())
	assert.True(t, SafetyUnrestricted.Valid())
	assert.False(t, SafetyLevel("maximum").Valid())

	// Unknown levels quietly resolve to the standard threshold set.
	assert.Equal(t, SafetyStandard.Settings(), SafetyLevel("maximum").Settings())

	// Dangerous content never drops below block_only_high, even
	// unrestricted.
	for _, s := range SafetyUnrestricted.Settings() {
		if s.Category == "dangerous_content" {
			assert.NotEqual(t, "block_none", s.Threshold)
		}
	}
}
