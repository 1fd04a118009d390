package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-engine/backend/internal/session"
	"companion-engine/backend/internal/timectx"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	store := NewSessionStore(NewMemoryKV(), time.Minute)
	ctx := context.Background()

	snap := session.Snapshot{
		SessionID:   "s1",
		CharacterID: 4,
		CreatedAt:   time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC),
		Hairstyle:   "high ponytail",
		Outfit:      "black dress and heels",
		Location:    "rooftop bar",
		Bucket:      timectx.BucketEvening,
		RefMediaID:  "m-9",
		RefKind:     "image",
	}
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snap, *loaded)
}

func TestSessionStoreLoadAbsent(t *testing.T) {
	store := NewSessionStore(NewMemoryKV(), time.Minute)

	loaded, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSessionStoreDelete(t *testing.T) {
	store := NewSessionStore(NewMemoryKV(), time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session.Snapshot{SessionID: "s1"}))
	require.NoError(t, store.Delete(ctx, "s1"))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSessionStoreSnapshotExpires(t *testing.T) {
	store := NewSessionStore(NewMemoryKV(), 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session.Snapshot{SessionID: "s1"}))
	time.Sleep(20 * time.Millisecond)

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
