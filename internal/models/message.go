package models

import (
	"time"
)

// Message senders.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Message kinds. Text is the zero value for rows written before the
// discriminator existed.
const (
	MessageKindText  = "text"
	MessageKindVoice = "voice"
	MessageKindImage = "image"
	MessageKindVideo = "video"
)

// Message is one entry in a character's transcript. Timestamps are
// monotonically non-decreasing within a character's history; ordering is
// insertion order. Voice and image messages always carry their payload
// reference by the time they are persisted - a pending message is a UI
// state only and never reaches the database.
type Message struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ExternalID  string    `json:"external_id" gorm:"index"`
	CharacterID uint      `json:"character_id" gorm:"index"`
	SessionID   string    `json:"session_id" gorm:"index"`
	Sender      string    `json:"sender"`
	Content     string    `json:"content"`
	Kind        string    `json:"kind" gorm:"default:text"`
	Timestamp   time.Time `json:"timestamp"`
	CreatedAt   time.Time `json:"created_at"`

	// Kind-specific payload references.
	MediaID       string  `json:"media_id,omitempty" gorm:"index"` // image kind
	VoiceNoteID   string  `json:"voice_note_id,omitempty"`         // voice kind
	AudioDuration float64 `json:"audio_duration,omitempty"`        // seconds, voice kind
}

// VoiceNote is a synthesized spoken line attached to a voice message.
type VoiceNote struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	CharacterID uint      `json:"character_id" gorm:"index"`
	AudioData   []byte    `json:"audio_data"`
	Format      string    `json:"format" gorm:"default:wav"`
	Duration    float64   `json:"duration"` // seconds
	SampleRate  int       `json:"sample_rate" gorm:"default:24000"`
	Channels    int       `json:"channels" gorm:"default:1"`
	SpokenText  string    `json:"spoken_text" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`

	// External pointer used transiently while an archive import resolves
	// the inline bytes.
	SourceRef string `json:"source_ref,omitempty"`
}

// TableName overrides the table name.
func (VoiceNote) TableName() string {
	return "voice_notes"
}
