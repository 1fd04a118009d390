package intimacy

import (
	"fmt"

	"companion-engine/backend/internal/models"
)

// Tier is the discrete relationship label derived from the displayed
// score.
type Tier string

const (
	TierHostile  Tier = "Hostile/Distant"
	TierCold     Tier = "Cold/Wary"
	TierNeutral  Tier = "Neutral/Formal"
	TierFriendly Tier = "Friendly/Warm"
	TierClose    Tier = "Close/Trusting"
	TierIntimate Tier = "Intimate/Devoted"
	TierBonded   Tier = "Deeply Bonded"
)

// TierFor maps a displayed (already clamped) score to its tier. The
// bands are total and non-overlapping over [-100, 100]; the historical
// boundaries at -50, 0, 20, 40, 60 and 80 are kept exactly as tuned.
func TierFor(displayed float64) Tier {
	switch {
	case displayed <= -50:
		return TierHostile
	case displayed < 0:
		return TierCold
	case displayed <= 20:
		return TierNeutral
	case displayed <= 40:
		return TierFriendly
	case displayed <= 60:
		return TierClose
	case displayed <= 80:
		return TierIntimate
	default:
		return TierBonded
	}
}

// FormatDisplay renders the user-visible score string, e.g.
// "12.3 (Neutral/Formal)".
func FormatDisplay(rawScore float64) string {
	displayed := models.ClampIntimacy(rawScore)
	return fmt.Sprintf("%.1f (%s)", displayed, TierFor(displayed))
}
