package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"companion-engine/backend/internal/models"
)

var ErrCharacterNotFound = errors.New("character not found")

// CharacterService owns character rows and their relationship state.
type CharacterService struct {
	db *gorm.DB
}

func NewCharacterService(db *gorm.DB) *CharacterService {
	return &CharacterService{db: db}
}

func (s *CharacterService) CreateCharacter(req *models.CreateCharacterRequest) (*models.Character, error) {
	if req.Name == "" {
		return nil, errors.New("character name is required")
	}
	if req.Appearance == "" {
		return nil, errors.New("character appearance is required")
	}
	if req.Personality == "" {
		return nil, errors.New("character personality is required")
	}

	race := req.Race
	if race == "" {
		race = "human"
	}
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}

	character := &models.Character{
		Name:          req.Name,
		Race:          race,
		Timezone:      tz,
		IdentityFacts: req.IdentityFacts,
		Appearance:    req.Appearance,
		Hairstyles:    req.Hairstyles,
		Personality:   req.Personality,
		Context:       req.Context,
		VoiceType:     req.VoiceType,
		AvatarPrompt:  req.AvatarPrompt,
		IntimacyScore: models.DefaultIntimacyScore,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := s.db.Create(character).Error; err != nil {
		return nil, fmt.Errorf("failed to create character: %w", err)
	}
	return character, nil
}

func (s *CharacterService) GetCharacter(id uint) (*models.Character, error) {
	var character models.Character
	if err := s.db.First(&character, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}
	return &character, nil
}

func (s *CharacterService) ListCharacters() ([]models.Character, error) {
	var characters []models.Character
	if err := s.db.Order("created_at DESC").Find(&characters).Error; err != nil {
		return nil, err
	}
	return characters, nil
}

// SaveCharacter persists the mutable relationship fields after a scoring
// or power update.
func (s *CharacterService) SaveCharacter(ctx context.Context, c *models.Character) error {
	c.UpdatedAt = time.Now()
	result := s.db.WithContext(ctx).Model(&models.Character{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"intimacy_score":      c.IntimacyScore,
			"current_power_level": c.CurrentPowerLevel,
			"last_power_trigger":  c.LastPowerTrigger,
			"avatar_media_id":     c.AvatarMediaID,
			"updated_at":          c.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save character %d: %w", c.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

// SetAvatar records the avatar artifact id and the prompt that produced it.
func (s *CharacterService) SetAvatar(id uint, mediaID, prompt string) error {
	result := s.db.Model(&models.Character{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"avatar_media_id": mediaID,
			"avatar_prompt":   prompt,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set avatar for character %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

// DeleteCharacter removes a character and everything it owns.
func (s *CharacterService) DeleteCharacter(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("character_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("character_id = ?", id).Delete(&models.Media{}).Error; err != nil {
			return err
		}
		if err := tx.Where("character_id = ?", id).Delete(&models.VoiceNote{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Character{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCharacterNotFound
		}
		return nil
	})
}
