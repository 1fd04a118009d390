package models

import "strings"

// PowerLevel is a power release severity tier.
type PowerLevel string

const (
	PowerLow  PowerLevel = "LOW"
	PowerMid  PowerLevel = "MID"
	PowerHigh PowerLevel = "HIGH"
	PowerMax  PowerLevel = "MAX"
)

// ParsePowerLevel maps a directive token to a level. The boolean is false
// for unknown tokens.
func ParsePowerLevel(token string) (PowerLevel, bool) {
	switch PowerLevel(strings.ToUpper(strings.TrimSpace(token))) {
	case PowerLow:
		return PowerLow, true
	case PowerMid:
		return PowerMid, true
	case PowerHigh:
		return PowerHigh, true
	case PowerMax:
		return PowerMax, true
	}
	return "", false
}

// PowerSystem is the static per-race description of a supernatural
// ability's severity tiers. Read-only reference data.
type PowerSystem struct {
	Race        string
	AbilityName string
	Tiers       map[PowerLevel]string
}

// TierDescription returns the canonical effect description for a level.
func (p *PowerSystem) TierDescription(level PowerLevel) string {
	return p.Tiers[level]
}

// powerSystems holds the built-in reference records, keyed by lowercase
// race name.
var powerSystems = map[string]*PowerSystem{
	"human": {
		Race:        "human",
		AbilityName: "Limit Break",
		Tiers: map[PowerLevel]string{
			PowerLow:  "a faint surge of adrenaline sharpens their senses",
			PowerMid:  "muscles coil with unnatural strength, the air grows tense",
			PowerHigh: "a visible shockwave ripples outward as restraint falls away",
			PowerMax:  "every limiter breaks at once, the surroundings tremble",
		},
	},
	"vampire": {
		Race:        "vampire",
		AbilityName: "Crimson Veil",
		Tiers: map[PowerLevel]string{
			PowerLow:  "their eyes flare a dim red, shadows lean toward them",
			PowerMid:  "a crimson mist coils around them, lights gutter",
			PowerHigh: "bat-like wings of shadow unfurl, the temperature plunges",
			PowerMax:  "the veil tears open, night floods the scene entirely",
		},
	},
	"elf": {
		Race:        "elf",
		AbilityName: "Sylvan Resonance",
		Tiers: map[PowerLevel]string{
			PowerLow:  "leaves stir without wind, a green glow traces their skin",
			PowerMid:  "roots and vines answer their call, bending to shield them",
			PowerHigh: "the air fills with drifting motes of living light",
			PowerMax:  "the land itself wakes, ancient and overwhelming",
		},
	},
	"dragon": {
		Race:        "dragon",
		AbilityName: "Draconic Awakening",
		Tiers: map[PowerLevel]string{
			PowerLow:  "scales shimmer briefly along their forearms",
			PowerMid:  "smoke curls from their breath, eyes slit like a reptile's",
			PowerHigh: "half-formed wings and a mantle of heat surround them",
			PowerMax:  "the full draconic form erupts, vast and incandescent",
		},
	},
}

// LookupPowerSystem resolves the power system for a race, falling back to
// the human record for unknown races so a tier description is always
// available.
func LookupPowerSystem(race string) *PowerSystem {
	if ps, ok := powerSystems[strings.ToLower(strings.TrimSpace(race))]; ok {
		return ps
	}
	return powerSystems["human"]
}
