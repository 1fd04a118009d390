package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"companion-engine/backend/internal/service"
	"companion-engine/backend/pkg/logger"
)

// VoiceHandler serves synthesized voice notes.
type VoiceHandler struct {
	service *service.VoiceNoteService
	logger  *logger.Logger
}

func NewVoiceHandler(service *service.VoiceNoteService, logger *logger.Logger) *VoiceHandler {
	return &VoiceHandler{service: service, logger: logger}
}

// GetAudio streams a voice note's audio bytes.
func (h *VoiceHandler) GetAudio(c *gin.Context) {
	note, err := h.service.GetNote(c.Request.Context(), c.Param("noteId"))
	if err != nil {
		if errors.Is(err, service.ErrVoiceNoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "voice note not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(note.AudioData) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "voice note audio is not resolved"})
		return
	}

	mimeType := "audio/wav"
	switch note.Format {
	case "mp3":
		mimeType = "audio/mpeg"
	case "ogg":
		mimeType = "audio/ogg"
	case "webm":
		mimeType = "audio/webm"
	}
	c.Header("X-Audio-Duration", strconv.FormatFloat(note.Duration, 'f', 2, 64))
	c.Data(http.StatusOK, mimeType, note.AudioData)
}

// List returns a character's voice note metadata.
func (h *VoiceHandler) List(c *gin.Context) {
	characterID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid character id"})
		return
	}

	notes, err := h.service.ListByCharacter(c.Request.Context(), uint(characterID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, notes)
}
