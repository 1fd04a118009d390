package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"companion-engine/backend/internal/chat"
	"companion-engine/backend/internal/intimacy"
	"companion-engine/backend/internal/media"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/service"
	"companion-engine/backend/pkg/logger"
)

type CharacterHandler struct {
	service    *service.CharacterService
	controller *chat.Controller
	logger     *logger.Logger
}

func NewCharacterHandler(service *service.CharacterService, controller *chat.Controller, logger *logger.Logger) *CharacterHandler {
	return &CharacterHandler{service: service, controller: controller, logger: logger}
}

func (h *CharacterHandler) CreateCharacter(c *gin.Context) {
	var req models.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	character, err := h.service.CreateCharacter(&req)
	if err != nil {
		h.logger.LogError(err, "failed to create character")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, characterView(character))
}

func (h *CharacterHandler) GetCharacter(c *gin.Context) {
	character, ok := h.loadCharacter(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, characterView(character))
}

func (h *CharacterHandler) ListCharacters(c *gin.Context) {
	characters, err := h.service.ListCharacters()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, len(characters))
	for i := range characters {
		views[i] = characterView(&characters[i])
	}
	c.JSON(http.StatusOK, views)
}

func (h *CharacterHandler) DeleteCharacter(c *gin.Context) {
	character, ok := h.loadCharacter(c)
	if !ok {
		return
	}

	if err := h.service.DeleteCharacter(character.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "character deleted"})
}

// GenerateAvatar creates the character's founding portrait.
func (h *CharacterHandler) GenerateAvatar(c *gin.Context) {
	character, ok := h.loadCharacter(c)
	if !ok {
		return
	}

	var req struct {
		SafetyLevel string `json:"safety_level"`
	}
	_ = c.ShouldBindJSON(&req)

	m, err := h.controller.GenerateAvatar(c.Request.Context(), character.ID, media.SafetyLevel(req.SafetyLevel))
	if err != nil {
		h.logger.LogError(err, "avatar generation failed", "character_id", character.ID)
		c.JSON(generationStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"media_id":  m.ID,
		"mime_type": m.MimeType,
	})
}

// GetIntimacy returns the displayed relationship score and tier.
func (h *CharacterHandler) GetIntimacy(c *gin.Context) {
	character, ok := h.loadCharacter(c)
	if !ok {
		return
	}

	displayed := character.DisplayedIntimacy()
	c.JSON(http.StatusOK, gin.H{
		"score":   displayed,
		"tier":    intimacy.TierFor(displayed),
		"display": intimacy.FormatDisplay(character.IntimacyScore),
	})
}

func (h *CharacterHandler) loadCharacter(c *gin.Context) (*models.Character, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id format"})
		return nil, false
	}

	character, err := h.service.GetCharacter(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrCharacterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return character, true
}

// characterView shapes a character for API responses: raw score hidden,
// displayed score and tier exposed.
func characterView(ch *models.Character) gin.H {
	displayed := ch.DisplayedIntimacy()
	return gin.H{
		"id":              ch.ID,
		"name":            ch.Name,
		"race":            ch.Race,
		"timezone":        ch.Timezone,
		"avatar_media_id": ch.AvatarMediaID,
		"identity_facts":  ch.IdentityFacts,
		"appearance":      ch.Appearance,
		"hairstyles":      ch.Hairstyles,
		"personality":     ch.Personality,
		"context":         ch.Context,
		"voice_type":      ch.VoiceType,
		"intimacy":        displayed,
		"intimacy_tier":   intimacy.TierFor(displayed),
		"created_at":      ch.CreatedAt,
		"updated_at":      ch.UpdatedAt,
	}
}
