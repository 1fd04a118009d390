// Package intimacy maintains the bounded relationship score between the
// user and a character. Scoring is best-effort: a failed judgment never
// blocks the conversation and never changes state.
package intimacy

import (
	"context"
	"math"

	"companion-engine/backend/internal/events"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/pkg/logger"
)

// The band a judge is asked to stay within. The engine applies whatever
// the judge returns; the bound is enforced where the judgment is
// produced, not where it is applied.
const (
	MaxDelta = 10.0
	MinDelta = -10.0

	// notifyThreshold is the smallest |delta| that raises a UI event.
	notifyThreshold = 0.1
)

// Adjustment is the transient judgment produced per exchange. Only its
// effect on the character's score is persisted.
type Adjustment struct {
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// JudgeContext is everything a judge sees about one exchange.
type JudgeContext struct {
	CharacterName string
	Personality   string
	CurrentScore  float64
	UserMessage   string
	AIReply       string
}

// Judge produces a delta judgment for one exchange. Implementations may
// be nondeterministic; tests substitute deterministic stubs.
type Judge interface {
	Judge(ctx context.Context, jc JudgeContext) (Adjustment, error)
}

// CharacterStore persists the character after a score change.
type CharacterStore interface {
	SaveCharacter(ctx context.Context, c *models.Character) error
}

// Engine applies judgments to a character's running score.
type Engine struct {
	judge Judge
	store CharacterStore
	bus   *events.Bus
	log   *logger.Logger
}

// NewEngine wires a judge, a persistence store and an optional event bus.
func NewEngine(judge Judge, store CharacterStore, bus *events.Bus, log *logger.Logger) *Engine {
	return &Engine{judge: judge, store: store, bus: bus, log: log}
}

// Score judges one exchange and applies the delta to the character's raw
// running score. The raw score may exceed the display range; clamping
// happens only at display time. Returns the applied delta.
//
// Failures are logged and swallowed: the score stays unchanged and the
// returned delta is 0.
func (e *Engine) Score(ctx context.Context, c *models.Character, userMessage, aiReply string) float64 {
	adj, err := e.judge.Judge(ctx, JudgeContext{
		CharacterName: c.Name,
		Personality:   c.Personality,
		CurrentScore:  c.DisplayedIntimacy(),
		UserMessage:   userMessage,
		AIReply:       aiReply,
	})
	if err != nil {
		e.log.Warn("intimacy judgment failed, score unchanged",
			"character_id", c.ID,
			"error", err.Error(),
		)
		return 0
	}

	delta := roundDelta(adj.Delta)
	if delta == 0 {
		return 0
	}

	c.IntimacyScore += delta

	if err := e.store.SaveCharacter(ctx, c); err != nil {
		// The in-memory score keeps the delta; persistence catches up on
		// the next successful save.
		e.log.LogError(err, "failed to persist intimacy score", "character_id", c.ID)
	}

	if e.bus != nil && math.Abs(delta) >= notifyThreshold {
		displayed := c.DisplayedIntimacy()
		e.bus.Publish(events.Event{
			Type:        events.TypeIntimacyShift,
			CharacterID: c.ID,
			Payload: events.IntimacyShift{
				Delta:     delta,
				Reason:    adj.Reason,
				Displayed: displayed,
				Tier:      string(TierFor(displayed)),
			},
		})
	}

	return delta
}

// NormalizeDelta clamps a judgment into the requested band and rounds
// it to one decimal place. Judges use it to honor the contract; the
// engine itself applies judgments as returned.
func NormalizeDelta(delta float64) float64 {
	if delta > MaxDelta {
		delta = MaxDelta
	}
	if delta < MinDelta {
		delta = MinDelta
	}
	return roundDelta(delta)
}

func roundDelta(delta float64) float64 {
	return math.Round(delta*10) / 10
}
