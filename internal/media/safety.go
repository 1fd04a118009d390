package media

import (
	"companion-engine/backend/internal/genai"
)

// SafetyLevel names a bundle of content-category thresholds. The caller
// picks a level per request; there is no global setting.
type SafetyLevel string

const (
	SafetyStandard     SafetyLevel = "standard"
	SafetyFlexible     SafetyLevel = "flexible"
	SafetyUnrestricted SafetyLevel = "unrestricted"
)

// Content categories the backends threshold on.
const (
	categoryHarassment = "harassment"
	categoryHate       = "hate_speech"
	categorySexual     = "sexually_explicit"
	categoryDangerous  = "dangerous_content"
	categoryViolence   = "violence"
)

// safetyConfigs maps each named level to its fixed threshold set.
var safetyConfigs = map[SafetyLevel][]genai.SafetySetting{
	SafetyStandard: {
		{Category: categoryHarassment, Threshold: "block_medium_and_above"},
		{Category: categoryHate, Threshold: "block_medium_and_above"},
		{Category: categorySexual, Threshold: "block_medium_and_above"},
		{Category: categoryDangerous, Threshold: "block_medium_and_above"},
		{Category: categoryViolence, Threshold: "block_medium_and_above"},
	},
	SafetyFlexible: {
		{Category: categoryHarassment, Threshold: "block_only_high"},
		{Category: categoryHate, Threshold: "block_only_high"},
		{Category: categorySexual, Threshold: "block_only_high"},
		{Category: categoryDangerous, Threshold: "block_medium_and_above"},
		{Category: categoryViolence, Threshold: "block_only_high"},
	},
	SafetyUnrestricted: {
		{Category: categoryHarassment, Threshold: "block_none"},
		{Category: categoryHate, Threshold: "block_none"},
		{Category: categorySexual, Threshold: "block_none"},
		{Category: categoryDangerous, Threshold: "block_only_high"},
		{Category: categoryViolence, Threshold: "block_none"},
	},
}

// Settings resolves a level into its threshold set. Unknown levels get
// the standard set.
func (l SafetyLevel) Settings() []genai.SafetySetting {
	if settings, ok := safetyConfigs[l]; ok {
		return settings
	}
	return safetyConfigs[SafetyStandard]
}

// Valid reports whether l names a known level.
func (l SafetyLevel) Valid() bool {
	_, ok := safetyConfigs[l]
	return ok
}
