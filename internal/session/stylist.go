package session

import (
	"context"
	"fmt"
	"strings"

	"companion-engine/backend/internal/genai"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/timectx"
)

// Stylist produces an outfit description for a scene. Implementations may
// call out to the model service; tests use fixed stubs.
type Stylist interface {
	DescribeOutfit(ctx context.Context, c *models.Character, location string, bucket timectx.Bucket) (string, error)
}

// EnsureOutfit applies the reuse rule: regenerate through the stylist
// only when the session demands it, otherwise return the stored outfit
// string verbatim. The decision and the stored state move together so
// two consecutive generations in an unchanged scene always share the
// exact outfit text.
func (s *Context) EnsureOutfit(ctx context.Context, stylist Stylist, c *models.Character, location string, bucket timectx.Bucket) (string, error) {
	if !s.NeedsOutfitRefresh(location, bucket) {
		// Location and bucket match the stored scene; only refresh the
		// bookkeeping for completeness.
		s.CommitScene(location, bucket, s.Outfit())
		return s.Outfit(), nil
	}

	outfit, err := stylist.DescribeOutfit(ctx, c, location, bucket)
	if err != nil || strings.TrimSpace(outfit) == "" {
		// Keep the previous outfit when the stylist fails; a stale outfit
		// beats a broken scene.
		if prev := s.Outfit(); prev != "" {
			s.CommitScene(location, bucket, prev)
			return prev, err
		}
		fallback := "simple casual clothes fitting the scene"
		s.CommitScene(location, bucket, fallback)
		return fallback, err
	}

	outfit = strings.TrimSpace(outfit)
	s.CommitScene(location, bucket, outfit)
	return outfit, nil
}

const stylistSystem = "You are a wardrobe stylist. Describe a single complete outfit in one " +
	"short sentence. Mention clothing and footwear only. Do not mention hair, " +
	"face, ethnicity or body shape."

// ModelStylist asks the generative model service for an outfit line.
type ModelStylist struct {
	client genai.Client
}

// NewModelStylist builds the production stylist.
func NewModelStylist(client genai.Client) *ModelStylist {
	return &ModelStylist{client: client}
}

// DescribeOutfit implements Stylist.
func (m *ModelStylist) DescribeOutfit(ctx context.Context, c *models.Character, location string, bucket timectx.Bucket) (string, error) {
	prompt := fmt.Sprintf(
		"Character style notes: %s\nLocation: %s\nTime of day: %s\nDescribe what they are wearing.",
		c.IdentityFacts, location, bucket,
	)
	return m.client.Complete(ctx, genai.CompletionRequest{
		System:      stylistSystem,
		Prompt:      prompt,
		Temperature: 0.8,
		MaxTokens:   80,
	})
}
