// Package media builds generation prompts, selects a backend, applies a
// safety configuration and runs the fallback/retry workflow when a
// generation fails. It is the only writer of Media artifacts.
package media

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"companion-engine/backend/internal/directive"
	"companion-engine/backend/internal/events"
	"companion-engine/backend/internal/genai"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/session"
	"companion-engine/backend/internal/timectx"
	apperrors "companion-engine/backend/pkg/errors"
	"companion-engine/backend/pkg/logger"
)

// Store is the persistence surface the orchestrator needs. GetMedia
// returns (nil, nil) for an unknown id.
type Store interface {
	GetMedia(ctx context.Context, id string) (*models.Media, error)
	SaveMedia(ctx context.Context, m *models.Media) error
}

// Request describes one generation.
type Request struct {
	Character *models.Character
	Session   *session.Context // continuity state; required for AI-initiated requests

	// Intent is the scene description from the narrative directive, or
	// the user's own prompt for manual requests.
	Intent      string
	Perspective directive.Perspective
	Safety      SafetyLevel
	AspectRatio string

	// Manual requests may carry an explicit reference (gallery pick or
	// upload) and bypass the session chain.
	Manual        bool
	ExplicitRefID string

	// TargetID reuses an existing media slot; a retry overwrites the
	// same identifier.
	TargetID string

	// Now is the wall-clock anchor for time-of-day resolution. Zero
	// means time.Now().
	Now time.Time
}

// SlotStatus is the visible state of a media slot.
type SlotStatus string

const (
	SlotPending SlotStatus = "pending"
	SlotDone    SlotStatus = "done"
	SlotErrored SlotStatus = "errored"
)

// Slot tracks an in-progress or failed generation so a retry can be
// re-issued without losing context.
type Slot struct {
	MediaID     string
	Status      SlotStatus
	Prompt      string
	ReferenceID string
	FailureMsg  string
	Staged      *StagedFallback
}

// StagedFallback is a prepared prompt-only generation waiting for an
// explicit user decision. It is never consumed without a confirm signal.
type StagedFallback struct {
	Prompt      string
	Safety      SafetyLevel
	AspectRatio string
	Reason      string
	consumed    bool
}

// Orchestrator coordinates prompt construction, backend selection and
// the failure workflow.
type Orchestrator struct {
	client   genai.Client
	store    Store
	director Director
	stylist  session.Stylist
	bus      *events.Bus
	log      *logger.Logger
	clock    Clock

	mu    sync.Mutex
	slots map[string]*Slot
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(client genai.Client, store Store, director Director, stylist session.Stylist, bus *events.Bus, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		client:   client,
		store:    store,
		director: director,
		stylist:  stylist,
		bus:      bus,
		log:      log,
		clock:    realClock{},
		slots:    make(map[string]*Slot),
	}
}

// SetClock replaces the polling clock; tests inject a fake.
func (o *Orchestrator) SetClock(c Clock) {
	o.clock = c
}

// Slot returns the tracked state for a media id.
func (o *Orchestrator) Slot(mediaID string) (*Slot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.slots[mediaID]
	return s, ok
}

// GenerateImage runs one image generation end to end. AI-initiated
// requests always go through the reference-conditioned backend to keep
// visual identity stable; manual requests without a reference use the
// prompt-only backend.
func (o *Orchestrator) GenerateImage(ctx context.Context, req Request) (*models.Media, error) {
	mediaID := req.TargetID
	if mediaID == "" {
		mediaID = newMediaID()
	}

	prompt, ref, err := o.preparePrompt(ctx, req)
	if err != nil {
		o.markErrored(req, mediaID, prompt, "", err)
		return nil, err
	}

	backend := genai.BackendScene
	if req.Manual && ref == nil {
		backend = genai.BackendPortrait
	}

	refID := ""
	var refImage *genai.ReferenceImage
	if ref != nil {
		refID = ref.ID
		refImage = &genai.ReferenceImage{Data: ref.Data, MimeType: ref.MimeType}
	}

	o.trackPending(mediaID, prompt, refID)

	result, err := o.client.GenerateImage(ctx, genai.ImageRequest{
		Backend:     backend,
		Prompt:      prompt,
		AspectRatio: req.AspectRatio,
		Reference:   refImage,
		Safety:      req.Safety.Settings(),
	})
	if err != nil {
		// The scene backend failed outright: stage a one-time prompt-only
		// fallback at the most permissive safety level. It is consumed
		// only on explicit confirmation.
		if backend == genai.BackendScene {
			o.stageFallback(req, mediaID, prompt, refID, err)
		} else {
			o.markErrored(req, mediaID, prompt, refID, err)
		}
		return nil, err
	}

	if len(result.Data) == 0 {
		declined := apperrors.NewContentDeclinedError(result.Refusal)
		o.markErrored(req, mediaID, prompt, refID, declined)
		return nil, declined
	}

	return o.commit(ctx, req, mediaID, prompt, refID, result)
}

// ConfirmFallback consumes a staged fallback for the given media slot and
// runs the prompt-only backend. Errors if nothing is staged or the stage
// was already consumed or cancelled.
func (o *Orchestrator) ConfirmFallback(ctx context.Context, req Request, mediaID string) (*models.Media, error) {
	o.mu.Lock()
	slot, ok := o.slots[mediaID]
	if !ok || slot.Staged == nil || slot.Staged.consumed {
		o.mu.Unlock()
		return nil, apperrors.NewResourceMissingError("no staged fallback for this media slot")
	}
	staged := slot.Staged
	staged.consumed = true
	o.mu.Unlock()

	result, err := o.client.GenerateImage(ctx, genai.ImageRequest{
		Backend:     genai.BackendPortrait,
		Prompt:      staged.Prompt,
		AspectRatio: staged.AspectRatio,
		Safety:      staged.Safety.Settings(),
	})
	if err != nil {
		o.markErrored(req, mediaID, staged.Prompt, "", err)
		return nil, err
	}
	if len(result.Data) == 0 {
		declined := apperrors.NewContentDeclinedError(result.Refusal)
		o.markErrored(req, mediaID, staged.Prompt, "", declined)
		return nil, declined
	}

	return o.commit(ctx, req, mediaID, staged.Prompt, "", result)
}

// CancelFallback drops a staged fallback, leaving the slot errored with
// its original context for a later retry.
func (o *Orchestrator) CancelFallback(mediaID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if slot, ok := o.slots[mediaID]; ok {
		slot.Staged = nil
	}
}

// Retry re-runs a failed slot with an edited prompt and/or a different
// safety level, preserving the slot's reference context.
func (o *Orchestrator) Retry(ctx context.Context, req Request, mediaID, editedPrompt string, level SafetyLevel) (*models.Media, error) {
	o.mu.Lock()
	slot, ok := o.slots[mediaID]
	if !ok || slot.Status != SlotErrored {
		o.mu.Unlock()
		return nil, apperrors.NewResourceMissingError("no errored media slot to retry")
	}
	prompt := slot.Prompt
	if editedPrompt != "" {
		prompt = editedPrompt
	}
	refID := slot.ReferenceID
	slot.Staged = nil
	o.mu.Unlock()

	ref, err := o.loadReference(ctx, req, refID)
	if err != nil {
		return nil, err
	}

	backend := genai.BackendScene
	var refImage *genai.ReferenceImage
	if ref != nil {
		refImage = &genai.ReferenceImage{Data: ref.Data, MimeType: ref.MimeType}
	} else {
		backend = genai.BackendPortrait
	}

	o.trackPending(mediaID, prompt, refID)

	result, err := o.client.GenerateImage(ctx, genai.ImageRequest{
		Backend:     backend,
		Prompt:      prompt,
		AspectRatio: req.AspectRatio,
		Reference:   refImage,
		Safety:      level.Settings(),
	})
	if err != nil {
		o.markErrored(req, mediaID, prompt, refID, err)
		return nil, err
	}
	if len(result.Data) == 0 {
		declined := apperrors.NewContentDeclinedError(result.Refusal)
		o.markErrored(req, mediaID, prompt, refID, declined)
		return nil, declined
	}

	return o.commit(ctx, req, mediaID, prompt, refID, result)
}

// preparePrompt resolves the scene, outfit and reference and assembles
// the final prompt.
func (o *Orchestrator) preparePrompt(ctx context.Context, req Request) (string, *resolvedReference, error) {
	c := req.Character

	if req.Manual {
		ref, err := o.loadReference(ctx, req, req.ExplicitRefID)
		if err != nil {
			return req.Intent, nil, err
		}
		return req.Intent, ref, nil
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	tctx, tzErr := timectx.Resolve(now, c.Timezone)
	if tzErr != nil {
		o.log.Warn("timezone resolution fell back to UTC", "character_id", c.ID, "error", tzErr.Error())
	}

	scene, err := o.director.Direct(ctx, c, req.Intent, req.Session.Location())
	if err != nil {
		return "", nil, err
	}

	outfit, err := req.Session.EnsureOutfit(ctx, o.stylist, c, scene.Location, tctx.Bucket)
	if err != nil {
		// A stylist failure already fell back to a usable outfit string.
		o.log.Warn("stylist failed, using fallback outfit", "character_id", c.ID, "error", err.Error())
	}

	prompt := BuildImagePrompt(PromptInputs{
		Appearance:    c.Appearance,
		IdentityFacts: c.IdentityFacts,
		Hairstyle:     req.Session.Hairstyle(),
		Outfit:        outfit,
		Location:      scene.Location,
		TimeLabel:     tctx.Label,
		Direction:     scene.Direction,
		Perspective:   req.Perspective,
	})

	ref, err := o.resolveChainReference(ctx, req)
	if err != nil {
		return prompt, nil, err
	}
	return prompt, ref, nil
}

type resolvedReference struct {
	ID       string
	Data     []byte
	MimeType string
}

// resolveChainReference picks the visual-conditioning artifact for an
// AI-initiated generation: the session's chain pointer when it still
// resolves, otherwise the character's avatar.
func (o *Orchestrator) resolveChainReference(ctx context.Context, req Request) (*resolvedReference, error) {
	if ref := req.Session.Reference(); ref != nil {
		m, err := o.store.GetMedia(ctx, ref.MediaID)
		if err != nil {
			return nil, err
		}
		if m != nil && m.Resolved() {
			return &resolvedReference{ID: m.ID, Data: m.Data, MimeType: m.MimeType}, nil
		}
		// The chained artifact was deleted; fall back to the avatar.
		req.Session.ClearReference()
	}
	return o.loadReference(ctx, req, req.Character.AvatarMediaID)
}

// loadReference loads an artifact by id, treating a dangling avatar
// reference as a hard resource-missing error and anything else as
// best-effort.
func (o *Orchestrator) loadReference(ctx context.Context, req Request, id string) (*resolvedReference, error) {
	if id == "" {
		return nil, nil
	}
	m, err := o.store.GetMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil || !m.Resolved() {
		if id == req.Character.AvatarMediaID {
			return nil, apperrors.NewResourceMissingError("character avatar artifact is missing")
		}
		return nil, nil
	}
	return &resolvedReference{ID: m.ID, Data: m.Data, MimeType: m.MimeType}, nil
}

// commit saves the artifact, advances the session chain and publishes a
// done event.
func (o *Orchestrator) commit(ctx context.Context, req Request, mediaID, prompt, refID string, result *genai.ImageResult) (*models.Media, error) {
	m := &models.Media{
		ID:          mediaID,
		CharacterID: req.Character.ID,
		Kind:        models.MediaKindImage,
		Data:        result.Data,
		MimeType:    result.MimeType,
		Prompt:      prompt,
	}
	if m.MimeType == "" {
		m.MimeType = "image/png"
	}

	if err := o.store.SaveMedia(ctx, m); err != nil {
		o.markErrored(req, mediaID, prompt, refID, err)
		return nil, err
	}

	if req.Session != nil && !req.Manual {
		req.Session.AdvanceReference(m.ID, m.Kind)
	}

	o.mu.Lock()
	o.slots[mediaID] = &Slot{MediaID: mediaID, Status: SlotDone, Prompt: prompt}
	o.mu.Unlock()

	o.publishStatus(req, mediaID, string(SlotDone), "")
	return m, nil
}

func (o *Orchestrator) trackPending(mediaID, prompt, refID string) {
	o.mu.Lock()
	o.slots[mediaID] = &Slot{MediaID: mediaID, Status: SlotPending, Prompt: prompt, ReferenceID: refID}
	o.mu.Unlock()
}

func (o *Orchestrator) markErrored(req Request, mediaID, prompt, refID string, cause error) {
	o.mu.Lock()
	o.slots[mediaID] = &Slot{
		MediaID:     mediaID,
		Status:      SlotErrored,
		Prompt:      prompt,
		ReferenceID: refID,
		FailureMsg:  cause.Error(),
	}
	o.mu.Unlock()

	o.publishStatus(req, mediaID, string(SlotErrored), cause.Error())
}

func (o *Orchestrator) stageFallback(req Request, mediaID, prompt, refID string, cause error) {
	o.mu.Lock()
	o.slots[mediaID] = &Slot{
		MediaID:     mediaID,
		Status:      SlotErrored,
		Prompt:      prompt,
		ReferenceID: refID,
		FailureMsg:  cause.Error(),
		Staged: &StagedFallback{
			Prompt:      prompt,
			Safety:      SafetyUnrestricted,
			AspectRatio: req.AspectRatio,
			Reason:      cause.Error(),
		},
	}
	o.mu.Unlock()

	o.publishStatus(req, mediaID, string(SlotErrored), cause.Error())
	if o.bus != nil {
		o.bus.Publish(events.Event{
			Type:        events.TypeFallbackStaged,
			CharacterID: req.Character.ID,
			SessionID:   sessionID(req),
			Payload: events.FallbackStaged{
				MediaID: mediaID,
				Backend: string(genai.BackendPortrait),
				Prompt:  prompt,
				Reason:  cause.Error(),
			},
		})
	}
}

func (o *Orchestrator) publishStatus(req Request, mediaID, status, detail string) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.Event{
		Type:        events.TypeMediaStatus,
		CharacterID: req.Character.ID,
		SessionID:   sessionID(req),
		Payload: events.MediaStatus{
			MediaID: mediaID,
			Status:  status,
			Detail:  detail,
		},
	})
}

func sessionID(req Request) string {
	if req.Session == nil {
		return ""
	}
	return req.Session.SessionID
}

func newMediaID() string {
	return uuid.New().String()
}
