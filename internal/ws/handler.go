// Package ws streams narrative turns and engine events to connected
// clients over websockets. One client maps to one open chat session.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"companion-engine/backend/internal/chat"
	"companion-engine/backend/internal/events"
	"companion-engine/backend/pkg/logger"
	"companion-engine/backend/pkg/observability"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Message is one websocket frame in either direction.
type Message struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

// Client is one connected chat session.
type Client struct {
	Conn        *websocket.Conn
	Send        chan []byte
	Hub         *Hub
	CharacterID uint
	SessionID   string
}

// Hub tracks connected clients and fans engine events out to the client
// whose session they belong to.
type Hub struct {
	controller *chat.Controller
	bus        *events.Bus
	log        *logger.Logger

	mu         sync.Mutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
}

func NewHub(controller *chat.Controller, bus *events.Bus, log *logger.Logger) *Hub {
	return &Hub{
		controller: controller,
		bus:        bus,
		log:        log,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run owns the client registry and the event fanout. Call it once in a
// goroutine; it returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	eventCh := h.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Info("client registered", "session_id", client.SessionID, "character_id", client.CharacterID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			h.log.Info("client unregistered", "session_id", client.SessionID)

		case e := <-eventCh:
			h.dispatch(e)
		}
	}
}

// GetActiveConnections returns the session ids of connected clients.
func (h *Hub) GetActiveConnections() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.clients))
	for client := range h.clients {
		ids = append(ids, client.SessionID)
	}
	return ids
}

// dispatch routes an engine event to the clients it concerns: a session
// scoped event to that session's client, a character scoped event to
// every client chatting with that character.
func (h *Hub) dispatch(e events.Event) {
	payload, err := json.Marshal(Message{Type: "event", Content: e})
	if err != nil {
		h.log.LogError(err, "failed to marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if e.SessionID != "" && e.SessionID != client.SessionID {
			continue
		}
		if e.SessionID == "" && e.CharacterID != client.CharacterID {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			close(client.Send)
			delete(h.clients, client)
		}
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read failed", "session_id", c.SessionID, "error", err.Error())
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Hub.log.Warn("malformed websocket message", "session_id", c.SessionID, "error", err.Error())
			continue
		}

		switch msg.Type {
		case "chat":
			go c.handleChat(msg)
		case "ping":
			c.sendMessage("pong", nil)
		default:
			c.Hub.log.Warn("unknown websocket message type", "type", msg.Type)
		}
	}
}

// handleChat runs one narrative turn and streams its chunks back.
func (c *Client) handleChat(msg Message) {
	var content struct {
		Content string `json:"content"`
	}
	raw, err := json.Marshal(msg.Content)
	if err == nil {
		err = json.Unmarshal(raw, &content)
	}
	if err != nil || content.Content == "" {
		c.sendError("chat message has no content")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	result, err := c.Hub.controller.RunTurn(ctx, c.SessionID, content.Content, func(text string) {
		c.sendMessage("chunk", map[string]string{"text": text})
	})
	observability.RecordTurn(ctx, time.Since(start).Seconds(), err == nil)
	if err != nil {
		if errors.Is(err, chat.ErrSessionBusy) {
			c.sendError("another action is still running, wait for it to finish")
			return
		}
		c.Hub.log.LogError(err, "turn failed", "session_id", c.SessionID)
		c.sendError("the character could not respond, try again")
		return
	}

	c.sendMessage("turn_done", map[string]interface{}{
		"reply_id":       result.ReplyID,
		"reply":          result.Reply,
		"media_id":       result.MediaID,
		"voice_note_id":  result.VoiceNoteID,
		"audio_duration": result.AudioDuration,
		"intimacy_delta": result.IntimacyDelta,
	})
}

func (c *Client) sendMessage(messageType string, content interface{}) {
	data, err := json.Marshal(Message{Type: messageType, Content: content})
	if err != nil {
		c.Hub.log.LogError(err, "failed to marshal websocket message", "type", messageType)
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Client) sendError(text string) {
	c.sendMessage("error", map[string]string{"message": text})
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Flush any queued frames without waiting for the next tick.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				extra := <-c.Send
				if err := c.Conn.WriteMessage(websocket.TextMessage, extra); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request, opens (or resumes) a chat session and
// starts the client pumps.
func ServeWs(hub *Hub, c *gin.Context) {
	charID := c.Query("characterId")
	if charID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "characterId is required"})
		return
	}
	charIDUint, err := strconv.ParseUint(charID, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid characterId"})
		return
	}

	// Optional: resume a snapshotted session after a reconnect.
	sessionID := c.Query("sessionId")

	sc, err := hub.controller.OpenSession(c.Request.Context(), uint(charIDUint), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.LogError(err, "websocket upgrade failed")
		return
	}
	conn.EnableWriteCompression(true)

	client := &Client{
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Hub:         hub,
		CharacterID: uint(charIDUint),
		SessionID:   sc.SessionID,
	}

	client.Hub.register <- client

	go client.WritePump()
	go client.ReadPump()

	client.sendMessage("session_open", map[string]interface{}{
		"session_id":   sc.SessionID,
		"character_id": charIDUint,
	})
}
