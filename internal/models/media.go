package models

import (
	"time"
)

// Media kinds.
const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

// Media is a generated artifact owned by a character. The identifier is
// unique within the character; a retry overwrites the same identifier in
// place. Deletion happens only by explicit user action.
type Media struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	CharacterID uint      `json:"character_id" gorm:"index"`
	Kind        string    `json:"kind" gorm:"default:image"`
	Data        []byte    `json:"data"`
	MimeType    string    `json:"mime_type" gorm:"default:image/png"`
	Prompt      string    `json:"prompt" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// External pointer used transiently while an archive import resolves
	// the inline bytes.
	SourceRef string `json:"source_ref,omitempty"`
}

// Resolved reports whether the artifact bytes are available inline.
func (m *Media) Resolved() bool {
	return len(m.Data) > 0
}
