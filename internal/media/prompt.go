package media

import (
	"strings"

	"companion-engine/backend/internal/directive"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/timectx"
)

// PromptInputs are the fixed facts a generation prompt is built from.
// Each visual concern has exactly one source: appearance and identity
// facts from the character sheet, hairstyle and outfit from the session,
// location and time from continuity state, and the transient direction
// from the director.
type PromptInputs struct {
	Appearance    string
	IdentityFacts string
	Hairstyle     string
	Outfit        string
	Location      string
	TimeLabel     timectx.Label
	Direction     string
	Perspective   directive.Perspective
}

// BuildImagePrompt assembles the final generation prompt. Pure function;
// same inputs always produce the same prompt text.
func BuildImagePrompt(in PromptInputs) string {
	var parts []string

	switch in.Perspective {
	case directive.PerspectiveSelfie:
		parts = append(parts, "selfie photo taken at arm's length, looking into the camera")
	case directive.PerspectiveViewer:
		parts = append(parts, "photo taken from the viewer's point of view")
	}

	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			parts = append(parts, label+": "+v)
		}
	}

	add("subject", in.Appearance)
	add("identity", in.IdentityFacts)
	add("hairstyle", in.Hairstyle)
	add("outfit", in.Outfit)
	add("setting", in.Location)
	if in.TimeLabel != "" {
		parts = append(parts, "time of day: "+string(in.TimeLabel))
	}
	add("moment", in.Direction)

	parts = append(parts, "photorealistic, natural lighting, consistent with the reference image")

	return strings.Join(parts, ". ")
}

// BuildAvatarPrompt assembles the founding portrait prompt from the
// character sheet alone. Session state does not exist yet at avatar time.
func BuildAvatarPrompt(c *models.Character) string {
	var parts []string
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("portrait of", c.Appearance)
	add("identity", c.IdentityFacts)
	if variants := c.HairstyleVariants(); len(variants) > 0 {
		parts = append(parts, "hairstyle: "+variants[0])
	}
	if len(parts) == 0 {
		return ""
	}
	parts = append(parts, "photorealistic portrait, neutral background, natural lighting")
	return strings.Join(parts, ". ")
}

// BuildVideoPrompt assembles a video prompt from the same facts plus the
// motion intent.
func BuildVideoPrompt(in PromptInputs, motion string) string {
	base := BuildImagePrompt(in)
	if m := strings.TrimSpace(motion); m != "" {
		return base + ". motion: " + m
	}
	return base
}
