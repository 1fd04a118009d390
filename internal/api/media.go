package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"companion-engine/backend/internal/chat"
	"companion-engine/backend/internal/media"
	"companion-engine/backend/internal/service"
	apperrors "companion-engine/backend/pkg/errors"
	"companion-engine/backend/pkg/logger"
)

// MediaHandler exposes the gallery and the generation workflow: manual
// requests, retries and the staged fallback decision.
type MediaHandler struct {
	service    *service.MediaService
	controller *chat.Controller
	logger     *logger.Logger
}

func NewMediaHandler(service *service.MediaService, controller *chat.Controller, logger *logger.Logger) *MediaHandler {
	return &MediaHandler{service: service, controller: controller, logger: logger}
}

// ListGallery returns a character's artifact metadata, newest first.
func (h *MediaHandler) ListGallery(c *gin.Context) {
	characterID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid character id"})
		return
	}

	items, err := h.service.ListByCharacter(c.Request.Context(), uint(characterID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetMedia streams an artifact's bytes.
func (h *MediaHandler) GetMedia(c *gin.Context) {
	m, err := h.service.GetMedia(c.Request.Context(), c.Param("mediaId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if m == nil || !m.Resolved() {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}
	c.Data(http.StatusOK, m.MimeType, m.Data)
}

// DeleteMedia removes an artifact; the session's reference chain resets
// to the avatar when it pointed here.
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	sessionID := c.Query("sessionId")
	err := h.controller.DeleteMedia(c.Request.Context(), h.service, sessionID, c.Param("mediaId"))
	if err != nil {
		if errors.Is(err, service.ErrMediaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "media deleted"})
}

type generateRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	Prompt      string `json:"prompt" binding:"required"`
	RefMediaID  string `json:"ref_media_id"`
	AspectRatio string `json:"aspect_ratio"`
	SafetyLevel string `json:"safety_level"`
}

// Generate runs a manual image request.
func (h *MediaHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.controller.RequestImage(c.Request.Context(), req.SessionID, req.Prompt, req.RefMediaID, req.AspectRatio, media.SafetyLevel(req.SafetyLevel))
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"media_id": m.ID, "mime_type": m.MimeType})
}

type retryRequest struct {
	SessionID    string `json:"session_id" binding:"required"`
	EditedPrompt string `json:"edited_prompt"`
	SafetyLevel  string `json:"safety_level"`
}

// Retry re-runs a failed slot, optionally with an edited prompt or a
// different safety level.
func (h *MediaHandler) Retry(c *gin.Context) {
	var req retryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.controller.RetryMedia(c.Request.Context(), req.SessionID, c.Param("mediaId"), req.EditedPrompt, media.SafetyLevel(req.SafetyLevel))
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"media_id": m.ID, "mime_type": m.MimeType})
}

type fallbackRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ConfirmFallback consumes a staged prompt-only fallback.
func (h *MediaHandler) ConfirmFallback(c *gin.Context) {
	var req fallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.controller.ConfirmFallback(c.Request.Context(), req.SessionID, c.Param("mediaId"))
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"media_id": m.ID, "mime_type": m.MimeType})
}

// CancelFallback declines a staged fallback.
func (h *MediaHandler) CancelFallback(c *gin.Context) {
	var req fallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.controller.CancelFallback(req.SessionID, c.Param("mediaId")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "fallback cancelled"})
}

func (h *MediaHandler) respondGenerationError(c *gin.Context, err error) {
	h.logger.Warn("generation request failed", "error", err.Error())
	c.JSON(generationStatus(err), gin.H{"error": err.Error()})
}

// generationStatus maps a generation failure to its HTTP status,
// defaulting to 500 for untyped errors.
func generationStatus(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, chat.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, chat.ErrSessionNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
