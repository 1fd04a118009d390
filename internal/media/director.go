package media

import (
	"context"
	"encoding/json"
	"fmt"

	"companion-engine/backend/internal/genai"
	"companion-engine/backend/internal/models"
	apperrors "companion-engine/backend/pkg/errors"
)

// Scene is the director's contribution to a generation: where the moment
// takes place and the transient expression/pose/condition line. The
// direction never re-describes hair, ethnicity or outfit - those are
// supplied separately so the final prompt carries exactly one source of
// truth for each.
type Scene struct {
	Location  string `json:"location"`
	Direction string `json:"direction"`
}

// Director turns a narrative intent into a Scene.
type Director interface {
	Direct(ctx context.Context, c *models.Character, intent, currentLocation string) (Scene, error)
}

var sceneSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"location": {"type": "string"},
		"direction": {"type": "string"}
	},
	"required": ["location", "direction"]
}`)

const directorSystem = "You are a scene director for a single photograph. Given a moment from a " +
	"story, name the micro-location (a short phrase like 'cafe window table' " +
	"or 'apartment kitchen') and one sentence of direction covering only " +
	"facial expression, pose and transient condition (wet hair from rain, " +
	"flushed cheeks). Never describe hairstyle, ethnicity, clothing or any " +
	"permanent physical trait."

// ModelDirector is the production Director.
type ModelDirector struct {
	client genai.Client
}

// NewModelDirector builds the production director.
func NewModelDirector(client genai.Client) *ModelDirector {
	return &ModelDirector{client: client}
}

// Direct implements Director.
func (d *ModelDirector) Direct(ctx context.Context, c *models.Character, intent, currentLocation string) (Scene, error) {
	prompt := fmt.Sprintf(
		"Story moment: %s\nCharacter: %s\nTheir current location (may change if the moment demands it): %s",
		intent, c.Name, currentLocation,
	)

	raw, err := d.client.Complete(ctx, genai.CompletionRequest{
		System:      directorSystem,
		Prompt:      prompt,
		Schema:      sceneSchema,
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		return Scene{}, err
	}

	var scene Scene
	if err := json.Unmarshal([]byte(raw), &scene); err != nil {
		return Scene{}, apperrors.NewMalformedResponseError("scene direction was not valid JSON: " + err.Error())
	}
	if scene.Location == "" {
		scene.Location = currentLocation
	}
	return scene, nil
}
