package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"companion-engine/backend/internal/archive"
	"companion-engine/backend/pkg/logger"
)

// maxArchiveSize bounds uploaded archive files.
const maxArchiveSize = 256 << 20

// ArchiveHandler exports and imports character archives.
type ArchiveHandler struct {
	archiver *archive.Archiver
	logger   *logger.Logger
}

func NewArchiveHandler(archiver *archive.Archiver, logger *logger.Logger) *ArchiveHandler {
	return &ArchiveHandler{archiver: archiver, logger: logger}
}

// Export streams a character's archive as a zip download.
func (h *ArchiveHandler) Export(c *gin.Context) {
	characterID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid character id"})
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=character-%d.zip", characterID))

	if err := h.archiver.Export(c.Request.Context(), uint(characterID), c.Writer); err != nil {
		h.logger.LogError(err, "archive export failed", "character_id", characterID)
		// Headers may already be out; the truncated zip signals failure.
		return
	}
}

// Import restores an uploaded archive as a new character.
func (h *ArchiveHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("archive")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "archive file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxArchiveSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read archive"})
		return
	}

	character, err := h.archiver.Import(c.Request.Context(), data)
	if err != nil {
		h.logger.LogError(err, "archive import failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, characterView(character))
}
