// Package chat runs the narrative turn loop: stream the reply, honor the
// embedded directives, score the exchange and persist the transcript.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"companion-engine/backend/internal/directive"
	"companion-engine/backend/internal/events"
	"companion-engine/backend/internal/genai"
	"companion-engine/backend/internal/intimacy"
	"companion-engine/backend/internal/media"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/service"
	"companion-engine/backend/internal/session"
	"companion-engine/backend/internal/store"
	"companion-engine/backend/internal/timectx"
	"companion-engine/backend/internal/voice"
	"companion-engine/backend/pkg/logger"
)

// ErrSessionBusy is returned when a turn or media action is already in
// flight for the session.
var ErrSessionBusy = errors.New("another action is already in flight for this session")

// ErrSessionNotFound is returned for an unknown or expired session id.
var ErrSessionNotFound = errors.New("session not found")

const defaultHistoryWindow = 30

// Controller coordinates one chat session's turns and media actions.
type Controller struct {
	characters *service.CharacterService
	messages   *service.MessageService
	voiceNotes *service.VoiceNoteService
	orch       *media.Orchestrator
	voicePipe  *voice.Pipeline
	scoring    *intimacy.Engine
	sessions   *session.Manager
	snapshots  *store.SessionStore // nil disables reconnect continuity
	client     genai.Client
	bus        *events.Bus
	log        *logger.Logger

	historyWindow int
	safetyLevel   media.SafetyLevel
}

// Options carries the controller's collaborators.
type Options struct {
	Characters    *service.CharacterService
	Messages      *service.MessageService
	VoiceNotes    *service.VoiceNoteService
	Orchestrator  *media.Orchestrator
	VoicePipeline *voice.Pipeline
	Scoring       *intimacy.Engine
	Sessions      *session.Manager
	Snapshots     *store.SessionStore
	Client        genai.Client
	Bus           *events.Bus
	Log           *logger.Logger
	HistoryWindow int
	SafetyLevel   media.SafetyLevel
}

func NewController(opts Options) *Controller {
	window := opts.HistoryWindow
	if window <= 0 {
		window = defaultHistoryWindow
	}
	level := opts.SafetyLevel
	if !level.Valid() {
		level = media.SafetyStandard
	}
	return &Controller{
		characters:    opts.Characters,
		messages:      opts.Messages,
		voiceNotes:    opts.VoiceNotes,
		orch:          opts.Orchestrator,
		voicePipe:     opts.VoicePipeline,
		scoring:       opts.Scoring,
		sessions:      opts.Sessions,
		snapshots:     opts.Snapshots,
		client:        opts.Client,
		bus:           opts.Bus,
		log:           opts.Log,
		historyWindow: window,
		safetyLevel:   level,
	}
}

// OpenSession starts a fresh session for a character, or resumes a
// snapshotted one when the id is known and a snapshot survives.
func (c *Controller) OpenSession(ctx context.Context, characterID uint, sessionID string) (*session.Context, error) {
	char, err := c.characters.GetCharacter(characterID)
	if err != nil {
		return nil, err
	}

	if sessionID != "" && c.snapshots != nil {
		snap, err := c.snapshots.Load(ctx, sessionID)
		if err != nil {
			c.log.Warn("session snapshot load failed, opening fresh", "session_id", sessionID, "error", err.Error())
		} else if snap != nil && snap.CharacterID == characterID {
			return c.sessions.Restore(*snap), nil
		}
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	return c.sessions.Open(sessionID, char), nil
}

// CloseSession discards a session and its snapshot.
func (c *Controller) CloseSession(ctx context.Context, sessionID string) {
	c.sessions.Close(sessionID)
	if c.snapshots != nil {
		if err := c.snapshots.Delete(ctx, sessionID); err != nil {
			c.log.Warn("failed to delete session snapshot", "session_id", sessionID, "error", err.Error())
		}
	}
}

// TurnResult summarizes one completed narrative turn.
type TurnResult struct {
	Reply         string
	ReplyID       string
	MediaID       string
	VoiceNoteID   string
	AudioDuration float64
	Power         *directive.PowerEvent
	IntimacyDelta float64
}

// RunTurn executes one user turn: persist the user message, stream the
// reply through onChunk with directive tags filtered out, honor the
// turn's directives, score the exchange and snapshot the session.
//
// onChunk may be nil for non-streaming callers.
func (c *Controller) RunTurn(ctx context.Context, sessionID, userMessage string, onChunk func(text string)) (*TurnResult, error) {
	sc, ok := c.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !sc.TryAcquire() {
		return nil, ErrSessionBusy
	}
	defer sc.Release()

	char, err := c.characters.GetCharacter(sc.CharacterID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := c.messages.SaveMessage(&models.Message{
		ExternalID:  uuid.New().String(),
		CharacterID: char.ID,
		SessionID:   sessionID,
		Sender:      models.SenderUser,
		Content:     userMessage,
		Kind:        models.MessageKindText,
		Timestamp:   now,
	}); err != nil {
		return nil, err
	}

	raw, err := c.streamReply(ctx, char, sessionID, userMessage, now, onChunk)
	if err != nil {
		return nil, err
	}

	reply := directive.Strip(raw)
	directives := directive.Extract(raw)

	result := &TurnResult{Reply: reply, ReplyID: uuid.New().String()}
	if reply != "" {
		if err := c.messages.SaveMessage(&models.Message{
			ExternalID:  result.ReplyID,
			CharacterID: char.ID,
			SessionID:   sessionID,
			Sender:      models.SenderAI,
			Content:     reply,
			Kind:        models.MessageKindText,
			Timestamp:   time.Now(),
		}); err != nil {
			return nil, err
		}
	}

	c.honorDirectives(ctx, char, sc, sessionID, directives, now, result)

	result.IntimacyDelta = c.scoring.Score(ctx, char, userMessage, reply)

	c.snapshot(ctx, sc)
	return result, nil
}

// streamReply runs the streaming chat call and returns the full raw
// narrative text, tags included.
func (c *Controller) streamReply(ctx context.Context, char *models.Character, sessionID, userMessage string, now time.Time, onChunk func(string)) (string, error) {
	tctx, tzErr := timectx.Resolve(now, char.Timezone)
	if tzErr != nil {
		c.log.Warn("timezone resolution fell back to UTC", "character_id", char.ID, "error", tzErr.Error())
	}

	history, err := c.messages.RecentWindow(char.ID, c.historyWindow)
	if err != nil {
		return "", err
	}

	chatHistory := make([]genai.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Kind != models.MessageKindText || m.Content == "" {
			continue
		}
		role := "user"
		if m.Sender == models.SenderAI {
			role = "assistant"
		}
		chatHistory = append(chatHistory, genai.ChatMessage{Role: role, Content: m.Content})
	}
	// RecentWindow already includes the just-saved user message; make sure
	// it is the final entry even when the window was empty.
	if len(chatHistory) == 0 || chatHistory[len(chatHistory)-1].Content != userMessage {
		chatHistory = append(chatHistory, genai.ChatMessage{Role: "user", Content: userMessage})
	}

	stream, err := c.client.StreamChat(ctx, genai.ChatRequest{
		System:      BuildSystemPrompt(char, tctx, now),
		History:     chatHistory,
		Temperature: 0.9,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var raw strings.Builder
	var filter directive.Streamer
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("narrative stream failed: %w", err)
		}
		if chunk.Text == "" {
			continue
		}
		raw.WriteString(chunk.Text)
		if onChunk != nil {
			if safe := filter.Push(chunk.Text); safe != "" {
				onChunk(safe)
			}
		}
	}
	if onChunk != nil {
		if rest := filter.Flush(); rest != "" {
			onChunk(rest)
		}
	}
	return raw.String(), nil
}

// honorDirectives runs the side effects of a turn. Each directive is
// best-effort: a failed generation leaves an errored slot and an event,
// never a failed turn.
func (c *Controller) honorDirectives(ctx context.Context, char *models.Character, sc *session.Context, sessionID string, directives []directive.Directive, now time.Time, result *TurnResult) {
	for _, d := range directives {
		switch d := d.(type) {
		case directive.Image:
			m, err := c.orch.GenerateImage(ctx, media.Request{
				Character:   char,
				Session:     sc,
				Intent:      d.Description,
				Perspective: d.Perspective,
				Safety:      c.safetyLevel,
				Now:         now,
			})
			if err != nil {
				c.log.Warn("image directive failed", "character_id", char.ID, "error", err.Error())
				continue
			}
			result.MediaID = m.ID
			c.saveMediaMessage(char.ID, sessionID, m)

		case directive.Video:
			m, err := c.orch.GenerateVideo(ctx, media.Request{
				Character: char,
				Session:   sc,
				Intent:    d.Description,
				Safety:    c.safetyLevel,
				Now:       now,
			}, d.Description)
			if err != nil {
				c.log.Warn("video directive failed", "character_id", char.ID, "error", err.Error())
				continue
			}
			result.MediaID = m.ID
			c.saveMediaMessage(char.ID, sessionID, m)

		case directive.Voice:
			note, err := c.voicePipe.Synthesize(ctx, char, d.Instruction)
			if err != nil {
				c.log.Warn("voice directive failed", "character_id", char.ID, "error", err.Error())
				continue
			}
			saved, err := c.voiceNotes.SaveNote(ctx, char.ID, note)
			if err != nil {
				c.log.LogError(err, "failed to persist voice note", "character_id", char.ID)
				continue
			}
			result.VoiceNoteID = saved.ID
			result.AudioDuration = saved.Duration
			if err := c.messages.SaveMessage(&models.Message{
				ExternalID:    uuid.New().String(),
				CharacterID:   char.ID,
				SessionID:     sessionID,
				Sender:        models.SenderAI,
				Content:       note.SpokenText,
				Kind:          models.MessageKindVoice,
				Timestamp:     time.Now(),
				VoiceNoteID:   saved.ID,
				AudioDuration: saved.Duration,
			}); err != nil {
				c.log.LogError(err, "failed to persist voice message", "character_id", char.ID)
			}

		case directive.Power:
			event := directive.ApplyPowerTrigger(char, d, now)
			if err := c.characters.SaveCharacter(ctx, char); err != nil {
				c.log.LogError(err, "failed to persist power trigger", "character_id", char.ID)
			}
			result.Power = &event
			if c.bus != nil {
				c.bus.Publish(events.Event{
					Type:        events.TypePowerRelease,
					CharacterID: char.ID,
					SessionID:   sessionID,
					Payload: events.PowerRelease{
						Level:           string(event.Level),
						AbilityName:     event.AbilityName,
						CanonicalEffect: event.CanonicalEffect,
						NarratedEffect:  event.NarratedEffect,
					},
				})
			}
		}
	}
}

func (c *Controller) saveMediaMessage(characterID uint, sessionID string, m *models.Media) {
	kind := models.MessageKindImage
	if m.Kind == models.MediaKindVideo {
		kind = models.MessageKindVideo
	}
	if err := c.messages.SaveMessage(&models.Message{
		ExternalID:  uuid.New().String(),
		CharacterID: characterID,
		SessionID:   sessionID,
		Sender:      models.SenderAI,
		Kind:        kind,
		Timestamp:   time.Now(),
		MediaID:     m.ID,
	}); err != nil {
		c.log.LogError(err, "failed to persist media message", "character_id", characterID)
	}
}

func (c *Controller) snapshot(ctx context.Context, sc *session.Context) {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.Save(ctx, sc.Snapshot()); err != nil {
		c.log.Warn("session snapshot save failed", "session_id", sc.SessionID, "error", err.Error())
	}
}
