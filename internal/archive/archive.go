// Package archive exports a character and everything it owns to a single
// portable file, and restores it elsewhere. The container is a zip with a
// state.json manifest next to raw binary entries for media and voice
// audio, so a partial archive still restores with lazy references.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"companion-engine/backend/internal/models"
	"companion-engine/backend/pkg/logger"
)

const (
	manifestName  = "state.json"
	mediaPrefix   = "media/"
	voicePrefix   = "voice/"
	FormatVersion = 1
)

// Manifest is the state.json payload: the character, its transcript and
// the metadata of every owned artifact. Binary payloads live in sibling
// zip entries named media/<id> and voice/<id>.
type Manifest struct {
	Version    int                `json:"version"`
	ExportedAt time.Time          `json:"exported_at"`
	Character  models.Character   `json:"character"`
	Messages   []models.Message   `json:"messages"`
	Media      []models.Media     `json:"media"`
	VoiceNotes []models.VoiceNote `json:"voice_notes"`
}

// Archiver moves characters in and out of archive files.
type Archiver struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArchiver(db *gorm.DB, log *logger.Logger) *Archiver {
	return &Archiver{db: db, log: log}
}

// Export writes the character's archive to w.
func (a *Archiver) Export(ctx context.Context, characterID uint, w io.Writer) error {
	var character models.Character
	if err := a.db.WithContext(ctx).First(&character, characterID).Error; err != nil {
		return fmt.Errorf("failed to load character %d: %w", characterID, err)
	}

	var messages []models.Message
	if err := a.db.WithContext(ctx).Where("character_id = ?", characterID).
		Order("timestamp ASC, id ASC").Find(&messages).Error; err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	var mediaItems []models.Media
	if err := a.db.WithContext(ctx).Where("character_id = ?", characterID).
		Find(&mediaItems).Error; err != nil {
		return fmt.Errorf("failed to load media: %w", err)
	}

	var notes []models.VoiceNote
	if err := a.db.WithContext(ctx).Where("character_id = ?", characterID).
		Find(&notes).Error; err != nil {
		return fmt.Errorf("failed to load voice notes: %w", err)
	}

	zw := zip.NewWriter(w)

	manifest := Manifest{
		Version:    FormatVersion,
		ExportedAt: time.Now().UTC(),
		Character:  character,
		Messages:   messages,
	}
	for _, m := range mediaItems {
		if m.Resolved() {
			entry, err := zw.Create(mediaPrefix + m.ID)
			if err != nil {
				return fmt.Errorf("failed to create media entry: %w", err)
			}
			if _, err := entry.Write(m.Data); err != nil {
				return fmt.Errorf("failed to write media entry: %w", err)
			}
		}
		m.Data = nil
		manifest.Media = append(manifest.Media, m)
	}
	for _, n := range notes {
		if len(n.AudioData) > 0 {
			entry, err := zw.Create(voicePrefix + n.ID)
			if err != nil {
				return fmt.Errorf("failed to create voice entry: %w", err)
			}
			if _, err := entry.Write(n.AudioData); err != nil {
				return fmt.Errorf("failed to write voice entry: %w", err)
			}
		}
		n.AudioData = nil
		manifest.VoiceNotes = append(manifest.VoiceNotes, n)
	}

	manifestEntry, err := zw.Create(manifestName)
	if err != nil {
		return fmt.Errorf("failed to create manifest entry: %w", err)
	}
	enc := json.NewEncoder(manifestEntry)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	return zw.Close()
}

// Import restores an archive into the database as a new character and
// returns it. Artifacts whose binary entry is absent from the archive
// are stored with a source reference so they can resolve lazily later.
func (a *Archiver) Import(ctx context.Context, data []byte) (*models.Character, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid archive: %w", err)
	}

	manifest, blobs, err := readEntries(zr)
	if err != nil {
		return nil, err
	}
	if manifest.Version > FormatVersion {
		return nil, fmt.Errorf("archive version %d is newer than supported version %d", manifest.Version, FormatVersion)
	}

	character := manifest.Character
	restored := &character
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// New identity in this database; relationship state carries over.
		restored.ID = 0
		if err := tx.Create(restored).Error; err != nil {
			return fmt.Errorf("failed to restore character: %w", err)
		}

		for _, m := range manifest.Media {
			m.CharacterID = restored.ID
			if blob, ok := blobs[mediaPrefix+m.ID]; ok {
				m.Data = blob
				m.SourceRef = ""
			} else if m.SourceRef == "" {
				a.log.Warn("archived media has no payload and no source reference",
					"media_id", m.ID,
				)
			}
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to restore media %s: %w", m.ID, err)
			}
		}

		for _, n := range manifest.VoiceNotes {
			n.CharacterID = restored.ID
			if blob, ok := blobs[voicePrefix+n.ID]; ok {
				n.AudioData = blob
				n.SourceRef = ""
			}
			if err := tx.Create(&n).Error; err != nil {
				return fmt.Errorf("failed to restore voice note %s: %w", n.ID, err)
			}
		}

		for _, msg := range manifest.Messages {
			msg.ID = 0
			msg.CharacterID = restored.ID
			if err := tx.Create(&msg).Error; err != nil {
				return fmt.Errorf("failed to restore message: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// readEntries splits the archive into its manifest and binary blobs.
func readEntries(zr *zip.Reader) (*Manifest, map[string][]byte, error) {
	var manifest *Manifest
	blobs := make(map[string][]byte)

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read archive entry %s: %w", f.Name, err)
		}

		if f.Name == manifestName {
			var m Manifest
			if err := json.Unmarshal(content, &m); err != nil {
				return nil, nil, fmt.Errorf("malformed manifest: %w", err)
			}
			manifest = &m
			continue
		}
		blobs[f.Name] = content
	}

	if manifest == nil {
		return nil, nil, fmt.Errorf("archive has no %s", manifestName)
	}
	return manifest, blobs, nil
}
