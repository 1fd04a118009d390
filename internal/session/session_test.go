package session

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/timectx"
)

func testCharacter() *models.Character {
	return &models.Character{
		ID:         1,
		Name:       "Mira",
		Hairstyles: "long loose waves, high ponytail, messy bun",
	}
}

func TestOpenSelectsHairstyleVariant(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(1)))
	sc := m.Open("s1", testCharacter())

	assert.Contains(t, []string{"long loose waves", "high ponytail", "messy bun"}, sc.Hairstyle())
	assert.Empty(t, sc.Outfit())
	assert.Nil(t, sc.Reference())
}

func TestOpenWithoutHairstyles(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(1)))
	sc := m.Open("s1", &models.Character{ID: 1, Name: "Mira"})

	assert.Empty(t, sc.Hairstyle())
}

func TestHairstyleStableForSessionLifetime(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(7)))
	sc := m.Open("s1", testCharacter())

	first := sc.Hairstyle()
	sc.CommitScene("cafe", timectx.BucketAfternoon, "sundress")
	sc.AdvanceReference("m-1", "image")

	assert.Equal(t, first, sc.Hairstyle())
}

func TestNeedsOutfitRefresh(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(1)))
	sc := m.Open("s1", testCharacter())

	// No outfit yet: always refresh.
	assert.True(t, sc.NeedsOutfitRefresh("cafe", timectx.BucketAfternoon))

	sc.CommitScene("cafe", timectx.BucketAfternoon, "white sundress and sandals")

	// Same scene: reuse.
	assert.False(t, sc.NeedsOutfitRefresh("cafe", timectx.BucketAfternoon))
	// Location change: refresh.
	assert.True(t, sc.NeedsOutfitRefresh("park", timectx.BucketAfternoon))
	// Bucket change: refresh.
	assert.True(t, sc.NeedsOutfitRefresh("cafe", timectx.BucketEvening))
}

func TestReferenceChain(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(1)))
	sc := m.Open("s1", testCharacter())

	require.Nil(t, sc.Reference())

	sc.AdvanceReference("m-1", "image")
	ref := sc.Reference()
	require.NotNil(t, ref)
	assert.Equal(t, "m-1", ref.MediaID)
	assert.Equal(t, "image", ref.Kind)

	sc.AdvanceReference("m-2", "video")
	assert.Equal(t, "m-2", sc.Reference().MediaID)

	sc.ClearReference()
	assert.Nil(t, sc.Reference())
}

func TestTryAcquireRejectsConcurrentAction(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(1)))
	sc := m.Open("s1", testCharacter())

	require.True(t, sc.TryAcquire())
	assert.False(t, sc.TryAcquire())

	sc.Release()
	assert.True(t, sc.TryAcquire())
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(3)))
	sc := m.Open("s1", testCharacter())
	sc.CommitScene("rooftop bar", timectx.BucketEvening, "black dress and heels")
	sc.AdvanceReference("m-9", "image")

	snap := sc.Snapshot()
	m.Close("s1")
	_, ok := m.Get("s1")
	require.False(t, ok)

	restored := m.Restore(snap)

	assert.Equal(t, sc.SessionID, restored.SessionID)
	assert.Equal(t, sc.CharacterID, restored.CharacterID)
	assert.Equal(t, sc.Hairstyle(), restored.Hairstyle())
	assert.Equal(t, "black dress and heels", restored.Outfit())
	assert.Equal(t, "rooftop bar", restored.Location())
	assert.False(t, restored.NeedsOutfitRefresh("rooftop bar", timectx.BucketEvening))

	ref := restored.Reference()
	require.NotNil(t, ref)
	assert.Equal(t, "m-9", ref.MediaID)

	// Busy state never survives a snapshot.
	assert.True(t, restored.TryAcquire())
}

type stubStylist struct {
	outfit string
	err    error
	calls  int
}

func (s *stubStylist) DescribeOutfit(ctx context.Context, c *models.Character, location string, bucket timectx.Bucket) (string, error) {
	s.calls++
	return s.outfit, s.err
}

func TestEnsureOutfitReusesVerbatim(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(1)))
	sc := m.Open("s1", testCharacter())
	stylist := &stubStylist{outfit: "linen shirt, dark jeans and loafers"}

	first, err := sc.EnsureOutfit(context.Background(), stylist, testCharacter(), "cafe", timectx.BucketAfternoon)
	require.NoError(t, err)
	assert.Equal(t, "linen shirt, dark jeans and loafers", first)
	assert.Equal(t, 1, stylist.calls)

	second, err := sc.EnsureOutfit(context.Background(), stylist, testCharacter(), "cafe", timectx.BucketAfternoon)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, stylist.calls, "unchanged scene must not call the stylist")
}

func TestEnsureOutfitRefreshesOnLocationChange(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(1)))
	sc := m.Open("s1", testCharacter())
	stylist := &stubStylist{outfit: "an outfit"}

	_, err := sc.EnsureOutfit(context.Background(), stylist, testCharacter(), "cafe", timectx.BucketAfternoon)
	require.NoError(t, err)
	_, err = sc.EnsureOutfit(context.Background(), stylist, testCharacter(), "park", timectx.BucketAfternoon)
	require.NoError(t, err)

	assert.Equal(t, 2, stylist.calls)
}

func TestEnsureOutfitKeepsPreviousOnStylistFailure(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(1)))
	sc := m.Open("s1", testCharacter())
	sc.CommitScene("cafe", timectx.BucketAfternoon, "white sundress")

	stylist := &stubStylist{err: errors.New("model unavailable")}
	outfit, err := sc.EnsureOutfit(context.Background(), stylist, testCharacter(), "park", timectx.BucketAfternoon)

	assert.Error(t, err)
	assert.Equal(t, "white sundress", outfit)
}

func TestEnsureOutfitFallbackWhenNothingStored(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(1)))
	sc := m.Open("s1", testCharacter())

	stylist := &stubStylist{err: errors.New("model unavailable")}
	outfit, err := sc.EnsureOutfit(context.Background(), stylist, testCharacter(), "cafe", timectx.BucketMorning)

	assert.Error(t, err)
	assert.NotEmpty(t, outfit)
}
