package chat

import (
	"context"
	"time"

	"companion-engine/backend/internal/media"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/service"
	"companion-engine/backend/internal/session"
)

// withSessionLock runs fn while holding the session's single-action slot.
func (c *Controller) withSessionLock(sessionID string, fn func(sc *session.Context, char *models.Character) error) error {
	sc, ok := c.sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if !sc.TryAcquire() {
		return ErrSessionBusy
	}
	defer sc.Release()

	char, err := c.characters.GetCharacter(sc.CharacterID)
	if err != nil {
		return err
	}
	return fn(sc, char)
}

// RequestImage runs a manual, user-initiated image generation. A manual
// request never advances the session's reference chain.
func (c *Controller) RequestImage(ctx context.Context, sessionID, prompt, refMediaID, aspectRatio string, level media.SafetyLevel) (*models.Media, error) {
	if !level.Valid() {
		level = c.safetyLevel
	}
	var out *models.Media
	err := c.withSessionLock(sessionID, func(sc *session.Context, char *models.Character) error {
		m, err := c.orch.GenerateImage(ctx, media.Request{
			Character:     char,
			Session:       sc,
			Intent:        prompt,
			Safety:        level,
			AspectRatio:   aspectRatio,
			Manual:        true,
			ExplicitRefID: refMediaID,
			Now:           time.Now(),
		})
		if err != nil {
			return err
		}
		out = m
		c.saveMediaMessage(char.ID, sessionID, m)
		return nil
	})
	return out, err
}

// RetryMedia re-runs a failed slot with an optional edited prompt and
// safety level.
func (c *Controller) RetryMedia(ctx context.Context, sessionID, mediaID, editedPrompt string, level media.SafetyLevel) (*models.Media, error) {
	if !level.Valid() {
		level = c.safetyLevel
	}
	var out *models.Media
	err := c.withSessionLock(sessionID, func(sc *session.Context, char *models.Character) error {
		m, err := c.orch.Retry(ctx, media.Request{
			Character: char,
			Session:   sc,
			Safety:    level,
			Now:       time.Now(),
		}, mediaID, editedPrompt, level)
		if err != nil {
			return err
		}
		out = m
		c.snapshot(ctx, sc)
		return nil
	})
	return out, err
}

// ConfirmFallback consumes a staged prompt-only fallback for a failed
// generation. Only an explicit user confirmation reaches here.
func (c *Controller) ConfirmFallback(ctx context.Context, sessionID, mediaID string) (*models.Media, error) {
	var out *models.Media
	err := c.withSessionLock(sessionID, func(sc *session.Context, char *models.Character) error {
		m, err := c.orch.ConfirmFallback(ctx, media.Request{
			Character: char,
			Session:   sc,
			Now:       time.Now(),
		}, mediaID)
		if err != nil {
			return err
		}
		out = m
		c.saveMediaMessage(char.ID, sessionID, m)
		c.snapshot(ctx, sc)
		return nil
	})
	return out, err
}

// CancelFallback declines a staged fallback, leaving the slot errored for
// a later retry.
func (c *Controller) CancelFallback(sessionID, mediaID string) error {
	if _, ok := c.sessions.Get(sessionID); !ok {
		return ErrSessionNotFound
	}
	c.orch.CancelFallback(mediaID)
	return nil
}

// DeleteMedia removes an artifact and, when an open session's reference
// chain points at it, resets the chain to the avatar.
func (c *Controller) DeleteMedia(ctx context.Context, mediaStore *service.MediaService, sessionID, mediaID string) error {
	if err := mediaStore.DeleteMedia(ctx, mediaID); err != nil {
		return err
	}
	if sc, ok := c.sessions.Get(sessionID); ok {
		if ref := sc.Reference(); ref != nil && ref.MediaID == mediaID {
			sc.ClearReference()
			c.snapshot(ctx, sc)
		}
	}
	return nil
}
