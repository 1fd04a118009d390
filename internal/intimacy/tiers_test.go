package intimacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Tier
	}{
		{-100, TierHostile},
		{-52.7, TierHostile},
		{-50, TierHostile},
		{-49.9, TierCold},
		{-0.1, TierCold},
		{0, TierNeutral},
		{12.3, TierNeutral},
		{20, TierNeutral},
		{20.1, TierFriendly},
		{40, TierFriendly},
		{40.1, TierClose},
		{60, TierClose},
		{60.1, TierIntimate},
		{80, TierIntimate},
		{80.1, TierBonded},
		{100, TierBonded},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.score), "score %.1f", tt.score)
	}
}

func TestFormatDisplayClampsRawScore(t *testing.T) {
	assert.Equal(t, "100.0 (Deeply Bonded)", FormatDisplay(131.4))
	assert.Equal(t, "-100.0 (Hostile/Distant)", FormatDisplay(-250))
	assert.Equal(t, "12.3 (Neutral/Formal)", FormatDisplay(12.3))
}
