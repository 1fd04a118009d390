package service

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"companion-engine/backend/internal/models"
)

// MessageService persists the per-character transcript.
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// SaveMessage appends a message to the transcript. Timestamps never go
// backwards: a message stamped earlier than the newest stored entry is
// bumped to that entry's timestamp.
func (s *MessageService) SaveMessage(msg *models.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Kind == "" {
		msg.Kind = models.MessageKindText
	}

	var latest models.Message
	err := s.db.Where("character_id = ?", msg.CharacterID).
		Order("timestamp DESC").
		First(&latest).Error
	if err == nil && msg.Timestamp.Before(latest.Timestamp) {
		msg.Timestamp = latest.Timestamp
	}

	msg.CreatedAt = time.Now()
	if err := s.db.Create(msg).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// GetHistory returns the full transcript for a character in insertion order.
func (s *MessageService) GetHistory(characterID uint) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.Where("character_id = ?", characterID).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history for character %d: %w", characterID, err)
	}
	return messages, nil
}

// RecentWindow returns the newest limit messages in chronological order,
// the context fed to narrative and judge prompts.
func (s *MessageService) RecentWindow(characterID uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var messages []models.Message
	err := s.db.Where("character_id = ?", characterID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages for character %d: %w", characterID, err)
	}
	// reverse into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetSessionMessages returns the messages exchanged within one session.
func (s *MessageService) GetSessionMessages(characterID uint, sessionID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.Where("character_id = ? AND session_id = ?", characterID, sessionID).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error
	return messages, err
}
