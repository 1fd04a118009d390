package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-engine/backend/internal/models"
)

func TestExtractSingleImage(t *testing.T) {
	text := "Sure, here you go! [IMAGE:selfie|me winking at the camera] Hope you like it."
	ds := Extract(text)

	require.Len(t, ds, 1)
	img, ok := ds[0].(Image)
	require.True(t, ok)
	assert.Equal(t, PerspectiveSelfie, img.Perspective)
	assert.Equal(t, "me winking at the camera", img.Description)
}

func TestExtractFirstOfEachKind(t *testing.T) {
	text := "[IMAGE:selfie|first pic] some narration [IMAGE:viewer|second pic] " +
		"[VOICE:whisper the line softly] [VIDEO:a slow wave goodbye]"
	ds := Extract(text)

	require.Len(t, ds, 3)
	img := ds[0].(Image)
	assert.Equal(t, "first pic", img.Description)
	_, isVoice := ds[1].(Voice)
	assert.True(t, isVoice)
	_, isVideo := ds[2].(Video)
	assert.True(t, isVideo)
}

func TestExtractPower(t *testing.T) {
	ds := Extract("I can't hold back. [POWER:HIGH|the room shakes around us]")

	require.Len(t, ds, 1)
	p, ok := ds[0].(Power)
	require.True(t, ok)
	assert.Equal(t, models.PowerHigh, p.Level)
	assert.Equal(t, "the room shakes around us", p.Effect)
}

func TestExtractMalformedTagsIgnored(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"unknown head", "[PICTURE:selfie|me smiling]"},
		{"missing colon", "[IMAGE selfie me smiling]"},
		{"missing perspective separator", "[IMAGE:me smiling]"},
		{"unknown perspective", "[IMAGE:closeup|me smiling]"},
		{"empty description", "[IMAGE:selfie|   ]"},
		{"empty video", "[VIDEO:]"},
		{"bad power level", "[POWER:ULTRA|everything burns]"},
		{"power missing effect", "[POWER:MAX|]"},
		{"unmatched bracket", "[IMAGE:selfie|me smiling"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Extract(tt.text))
		})
	}
}

func TestStripRemovesWellFormedTags(t *testing.T) {
	text := "Of course! [IMAGE:selfie|me at the beach] Just for you."
	assert.Equal(t, "Of course! Just for you.", Strip(text))
}

func TestStripKeepsMalformedTagsLiteral(t *testing.T) {
	text := "I scored [8:30] on the test [IMAGE:selfie|proof] today."
	assert.Equal(t, "I scored [8:30] on the test today.", Strip(text))
}

func TestStripRemovesDuplicateKinds(t *testing.T) {
	text := "[IMAGE:selfie|one] and [IMAGE:viewer|two] done"
	assert.Equal(t, "and done", Strip(text))
}

func TestStrayBracketBeforeTag(t *testing.T) {
	text := "I grin [ and strike a pose [IMAGE:selfie|winking at you]"

	ds := Extract(text)
	require.Len(t, ds, 1)
	img, ok := ds[0].(Image)
	require.True(t, ok)
	assert.Equal(t, "winking at you", img.Description)

	assert.Equal(t, "I grin [ and strike a pose", Strip(text))
}

func TestStripKeepsModelWrittenSpacing(t *testing.T) {
	text := "Ready?  Set...  go! [VIDEO:sprinting off] See you there."
	assert.Equal(t, "Ready?  Set...  go! See you there.", Strip(text))
}

func TestStripPlainTextUntouched(t *testing.T) {
	text := "No directives here, just talk."
	assert.Equal(t, text, Strip(text))
}
