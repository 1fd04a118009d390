package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"companion-engine/backend/internal/models"
	"companion-engine/backend/pkg/cache"
)

var ErrMediaNotFound = errors.New("media not found")

// MediaService owns generated artifacts. It backs the generation
// pipeline's storage surface and the gallery endpoints. Reference
// chaining re-reads the same artifact on every follow-up generation,
// so loaded rows are cached by id.
type MediaService struct {
	db    *gorm.DB
	cache *cache.Cache
}

func NewMediaService(db *gorm.DB) *MediaService {
	return &MediaService{db: db, cache: cache.NewCache()}
}

// GetMedia returns (nil, nil) for an unknown id so callers can
// distinguish "gone" from a storage failure.
func (s *MediaService) GetMedia(ctx context.Context, id string) (*models.Media, error) {
	if cached, ok := s.cache.Get(mediaCacheKey(id)); ok {
		if m, ok := cached.(*models.Media); ok {
			return m, nil
		}
	}

	var m models.Media
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load media %s: %w", id, err)
	}

	s.cache.Set(mediaCacheKey(id), &m)
	return &m, nil
}

// SaveMedia inserts or overwrites an artifact. A retry reuses the
// original id, so upsert semantics are required.
func (s *MediaService) SaveMedia(ctx context.Context, m *models.Media) error {
	m.UpdatedAt = time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = m.UpdatedAt
	}
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("failed to save media %s: %w", m.ID, err)
	}
	s.cache.Delete(mediaCacheKey(m.ID))
	return nil
}

// ListByCharacter returns a character's gallery, newest first. Artifact
// bytes are omitted; clients fetch them per item.
func (s *MediaService) ListByCharacter(ctx context.Context, characterID uint) ([]models.Media, error) {
	var items []models.Media
	err := s.db.WithContext(ctx).
		Select("id", "character_id", "kind", "mime_type", "prompt", "created_at", "updated_at").
		Where("character_id = ?", characterID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list media for character %d: %w", characterID, err)
	}
	return items, nil
}

// DeleteMedia removes an artifact by explicit user action.
func (s *MediaService) DeleteMedia(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Media{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete media %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	s.cache.Delete(mediaCacheKey(id))
	return nil
}

func mediaCacheKey(id string) string {
	return "media:" + id
}
