package intimacy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-engine/backend/internal/events"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/pkg/logger"
)

type stubJudge struct {
	adj Adjustment
	err error
}

func (s *stubJudge) Judge(ctx context.Context, jc JudgeContext) (Adjustment, error) {
	return s.adj, s.err
}

type memStore struct {
	saved []float64
	err   error
}

func (m *memStore) SaveCharacter(ctx context.Context, c *models.Character) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, c.IntimacyScore)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.DefaultConfig())
}

func TestScoreAppliesDelta(t *testing.T) {
	judge := &stubJudge{adj: Adjustment{Delta: 2.5, Reason: "shared a secret"}}
	store := &memStore{}
	engine := NewEngine(judge, store, nil, testLogger())

	c := &models.Character{ID: 1, Name: "Mira", IntimacyScore: 10}
	delta := engine.Score(context.Background(), c, "hi", "hello")

	assert.Equal(t, 2.5, delta)
	assert.Equal(t, 12.5, c.IntimacyScore)
	require.Len(t, store.saved, 1)
	assert.Equal(t, 12.5, store.saved[0])
}

func TestScoreJudgeFailureLeavesScoreUnchanged(t *testing.T) {
	judge := &stubJudge{err: errors.New("model unavailable")}
	store := &memStore{}
	engine := NewEngine(judge, store, nil, testLogger())

	c := &models.Character{ID: 1, IntimacyScore: 42.0}
	delta := engine.Score(context.Background(), c, "hi", "hello")

	assert.Equal(t, 0.0, delta)
	assert.Equal(t, 42.0, c.IntimacyScore)
	assert.Empty(t, store.saved)
}

func TestScoreZeroDeltaSkipsPersistence(t *testing.T) {
	judge := &stubJudge{adj: Adjustment{Delta: 0, Reason: "small talk"}}
	store := &memStore{}
	engine := NewEngine(judge, store, nil, testLogger())

	c := &models.Character{ID: 1, IntimacyScore: 10}
	delta := engine.Score(context.Background(), c, "hi", "hello")

	assert.Equal(t, 0.0, delta)
	assert.Empty(t, store.saved)
}

func TestScoreKeepsDeltaWhenPersistenceFails(t *testing.T) {
	judge := &stubJudge{adj: Adjustment{Delta: 3, Reason: "kindness"}}
	store := &memStore{err: errors.New("db down")}
	engine := NewEngine(judge, store, nil, testLogger())

	c := &models.Character{ID: 1, IntimacyScore: 10}
	delta := engine.Score(context.Background(), c, "hi", "hello")

	assert.Equal(t, 3.0, delta)
	assert.Equal(t, 13.0, c.IntimacyScore)
}

func TestScoreRawMayExceedDisplayRange(t *testing.T) {
	judge := &stubJudge{adj: Adjustment{Delta: 8, Reason: "devotion"}}
	store := &memStore{}
	engine := NewEngine(judge, store, nil, testLogger())

	c := &models.Character{ID: 1, IntimacyScore: 97}
	engine.Score(context.Background(), c, "hi", "hello")

	assert.Equal(t, 105.0, c.IntimacyScore)
	assert.Equal(t, 100.0, c.DisplayedIntimacy())
}

func TestScoreAppliesLargeJudgmentInFull(t *testing.T) {
	judge := &stubJudge{adj: Adjustment{Delta: -65.0, Reason: "a betrayal"}}
	store := &memStore{}
	engine := NewEngine(judge, store, nil, testLogger())

	c := &models.Character{ID: 1, Name: "Mira", IntimacyScore: 12.3}
	delta := engine.Score(context.Background(), c, "I lied to you", "how could you")

	assert.Equal(t, -65.0, delta)
	assert.InDelta(t, -52.7, c.IntimacyScore, 1e-9)
	assert.Equal(t, "-52.7 (Hostile/Distant)", FormatDisplay(c.IntimacyScore))
	require.Len(t, store.saved, 1)
}

func TestScorePublishesShiftEvent(t *testing.T) {
	judge := &stubJudge{adj: Adjustment{Delta: -4.2, Reason: "an insult"}}
	bus := events.NewBus()
	sub := bus.Subscribe()
	engine := NewEngine(judge, &memStore{}, bus, testLogger())

	c := &models.Character{ID: 7, IntimacyScore: 1}
	engine.Score(context.Background(), c, "you bore me", "that hurts")

	select {
	case e := <-sub:
		assert.Equal(t, events.TypeIntimacyShift, e.Type)
		assert.Equal(t, uint(7), e.CharacterID)
		shift, ok := e.Payload.(events.IntimacyShift)
		require.True(t, ok)
		assert.Equal(t, -4.2, shift.Delta)
		assert.Equal(t, string(TierCold), shift.Tier)
	default:
		t.Fatal("expected an intimacy shift event")
	}
}

func TestNormalizeDelta(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"within band", 3.14, 3.1},
		{"rounds up", 2.56, 2.6},
		{"clamps high", 25.0, 10.0},
		{"clamps low", -99.0, -10.0},
		{"negative rounding", -1.24, -1.2},
		{"zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDelta(tt.in))
		})
	}
}
