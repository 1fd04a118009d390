package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/voice"
)

var ErrVoiceNoteNotFound = errors.New("voice note not found")

// VoiceNoteService persists synthesized voice notes.
type VoiceNoteService struct {
	db *gorm.DB
}

func NewVoiceNoteService(db *gorm.DB) *VoiceNoteService {
	return &VoiceNoteService{db: db}
}

// SaveNote stores the assembled note for a character and returns the
// persisted row.
func (s *VoiceNoteService) SaveNote(ctx context.Context, characterID uint, note *voice.Note) (*models.VoiceNote, error) {
	row := &models.VoiceNote{
		ID:          note.ID,
		CharacterID: characterID,
		AudioData:   note.Audio,
		Format:      note.Format,
		Duration:    note.DurationSeconds,
		SampleRate:  note.SampleRate,
		Channels:    note.Channels,
		SpokenText:  note.SpokenText,
		CreatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to save voice note: %w", err)
	}
	return row, nil
}

func (s *VoiceNoteService) GetNote(ctx context.Context, id string) (*models.VoiceNote, error) {
	var note models.VoiceNote
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVoiceNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load voice note %s: %w", id, err)
	}
	return &note, nil
}

// SaveImported stores a note restored from an archive. Notes whose audio
// was not embedded keep a source reference and resolve lazily.
func (s *VoiceNoteService) SaveImported(ctx context.Context, note *models.VoiceNote) error {
	if err := s.db.WithContext(ctx).Save(note).Error; err != nil {
		return fmt.Errorf("failed to save imported voice note %s: %w", note.ID, err)
	}
	return nil
}

// ListByCharacter returns note metadata for a character, newest first.
func (s *VoiceNoteService) ListByCharacter(ctx context.Context, characterID uint) ([]models.VoiceNote, error) {
	var notes []models.VoiceNote
	err := s.db.WithContext(ctx).
		Select("id", "character_id", "format", "duration", "sample_rate", "channels", "spoken_text", "created_at", "source_ref").
		Where("character_id = ?", characterID).
		Order("created_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list voice notes for character %d: %w", characterID, err)
	}
	return notes, nil
}
