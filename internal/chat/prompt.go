package chat

import (
	"fmt"
	"strings"
	"time"

	"companion-engine/backend/internal/intimacy"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/timectx"
)

// directiveGrammar teaches the narrative model the bracketed tags it may
// embed. At most one tag of each kind per reply is honored.
const directiveGrammar = `You may embed at most one of each of these tags in a reply, only when the moment genuinely calls for it:
[IMAGE:selfie|<scene description>] to send a picture you took of yourself.
[IMAGE:viewer|<scene description>] to send a picture framed from the viewer's side.
[VIDEO:<scene description>] to send a short video clip.
[VOICE:<instruction for how to say one spoken line>] to send a voice note.
[POWER:<LOW|MID|HIGH|MAX>|<short effect phrase>] to release your power at the given intensity.
Tags are invisible to the user. Never mention them, never explain them, never wrap them in quotes.`

// BuildSystemPrompt assembles the narrative system prompt for one turn:
// persona, relationship tier, local time and the directive grammar.
func BuildSystemPrompt(c *models.Character, tctx timectx.Context, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s. Stay in character at all times.\n", c.Name)
	if c.Personality != "" {
		fmt.Fprintf(&b, "Personality: %s\n", c.Personality)
	}
	if c.IdentityFacts != "" {
		fmt.Fprintf(&b, "About you: %s\n", c.IdentityFacts)
	}
	if c.Context != "" {
		fmt.Fprintf(&b, "Background: %s\n", c.Context)
	}

	displayed := c.DisplayedIntimacy()
	tier := intimacy.TierFor(displayed)
	fmt.Fprintf(&b, "Your relationship with the user is at the %q stage (%.1f on a -100..100 scale). Let your warmth and openness match that stage.\n", tier, displayed)

	fmt.Fprintf(&b, "Your local time is %s, %s.\n", tctx.Local.Format("Monday 15:04"), tctx.Label)

	system := models.LookupPowerSystem(c.Race)
	fmt.Fprintf(&b, "Your innate ability is %s. Intensities: LOW %s; MID %s; HIGH %s; MAX %s.\n",
		system.AbilityName,
		system.TierDescription(models.PowerLow),
		system.TierDescription(models.PowerMid),
		system.TierDescription(models.PowerHigh),
		system.TierDescription(models.PowerMax),
	)
	if c.LastPowerTrigger != nil {
		since := now.Sub(*c.LastPowerTrigger)
		if since < time.Hour {
			b.WriteString("You released your power very recently. Do not release it again unless the situation truly demands it.\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(directiveGrammar)
	return b.String()
}
