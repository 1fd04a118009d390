package chat

import (
	"context"
	"errors"
	"time"

	"companion-engine/backend/internal/media"
	"companion-engine/backend/internal/models"
)

// GenerateAvatar creates the character's founding portrait with the
// prompt-only backend and records it as the avatar. The avatar anchors
// every later reference chain, so characters without one cannot receive
// AI-initiated media.
func (c *Controller) GenerateAvatar(ctx context.Context, characterID uint, level media.SafetyLevel) (*models.Media, error) {
	char, err := c.characters.GetCharacter(characterID)
	if err != nil {
		return nil, err
	}

	prompt := char.AvatarPrompt
	if prompt == "" {
		prompt = media.BuildAvatarPrompt(char)
	}
	if prompt == "" {
		return nil, errors.New("character has no appearance to build an avatar from")
	}
	if !level.Valid() {
		level = c.safetyLevel
	}

	m, err := c.orch.GenerateImage(ctx, media.Request{
		Character:   char,
		Intent:      prompt,
		Safety:      level,
		AspectRatio: "3:4",
		Manual:      true,
		Now:         time.Now(),
	})
	if err != nil {
		return nil, err
	}

	if err := c.characters.SetAvatar(char.ID, m.ID, prompt); err != nil {
		return nil, err
	}
	return m, nil
}
