package intimacy

import (
	"context"
	"encoding/json"
	"fmt"

	"companion-engine/backend/internal/genai"
	apperrors "companion-engine/backend/pkg/errors"
)

// adjustmentSchema constrains the judgment to the shape the engine
// applies.
var adjustmentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"delta": {"type": "number", "minimum": -10.0, "maximum": 10.0},
		"reason": {"type": "string"}
	},
	"required": ["delta", "reason"]
}`)

const judgeSystem = "You evaluate how one exchange in an ongoing conversation shifts the " +
	"relationship between a character and the user. Judge only this exchange. " +
	"Small talk moves the score little; meaningful moments move it more. " +
	"delta must be between -10.0 and 10.0 with one decimal place."

// ModelJudge asks the generative model service for a structured delta
// judgment.
type ModelJudge struct {
	client      genai.Client
	temperature float32
}

// NewModelJudge builds the production judge.
func NewModelJudge(client genai.Client) *ModelJudge {
	return &ModelJudge{client: client, temperature: 0.3}
}

// Judge implements the Judge interface.
func (j *ModelJudge) Judge(ctx context.Context, jc JudgeContext) (Adjustment, error) {
	prompt := fmt.Sprintf(
		"Character: %s\nPersonality: %s\nCurrent relationship score (-100..100): %.1f\n\nUser said:\n%s\n\nCharacter replied:\n%s",
		jc.CharacterName, jc.Personality, jc.CurrentScore, jc.UserMessage, jc.AIReply,
	)

	raw, err := j.client.Complete(ctx, genai.CompletionRequest{
		System:      judgeSystem,
		Prompt:      prompt,
		Schema:      adjustmentSchema,
		Temperature: j.temperature,
		MaxTokens:   200,
	})
	if err != nil {
		return Adjustment{}, err
	}

	var adj Adjustment
	if err := json.Unmarshal([]byte(raw), &adj); err != nil {
		return Adjustment{}, apperrors.NewMalformedResponseError("intimacy judgment was not valid JSON: " + err.Error())
	}

	// The schema bounds delta, but a model can still overshoot it.
	adj.Delta = NormalizeDelta(adj.Delta)
	return adj, nil
}
