package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"companion-engine/backend/internal/chat"
	"companion-engine/backend/internal/service"
	"companion-engine/backend/pkg/logger"
)

// SessionHandler manages chat session lifecycle and transcript access
// over plain HTTP; the turn stream itself runs over the websocket.
type SessionHandler struct {
	controller *chat.Controller
	messages   *service.MessageService
	logger     *logger.Logger
}

func NewSessionHandler(controller *chat.Controller, messages *service.MessageService, logger *logger.Logger) *SessionHandler {
	return &SessionHandler{controller: controller, messages: messages, logger: logger}
}

type openSessionRequest struct {
	CharacterID uint   `json:"character_id" binding:"required"`
	SessionID   string `json:"session_id"`
}

// Open starts or resumes a chat session.
func (h *SessionHandler) Open(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sc, err := h.controller.OpenSession(c.Request.Context(), req.CharacterID, req.SessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id":   sc.SessionID,
		"character_id": sc.CharacterID,
	})
}

// Close discards a session and its snapshot.
func (h *SessionHandler) Close(c *gin.Context) {
	h.controller.CloseSession(c.Request.Context(), c.Param("sessionId"))
	c.JSON(http.StatusOK, gin.H{"message": "session closed"})
}

// History returns a character's full transcript.
func (h *SessionHandler) History(c *gin.Context) {
	characterID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid character id"})
		return
	}

	messages, err := h.messages.GetHistory(uint(characterID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
