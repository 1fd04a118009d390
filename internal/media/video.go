package media

import (
	"fmt"
	"strings"
	"time"

	"context"

	"companion-engine/backend/internal/genai"
	"companion-engine/backend/internal/models"
	apperrors "companion-engine/backend/pkg/errors"
)

// Clock abstracts polling delay so tests can simulate job completion
// without real waiting.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Video polling bounds. Remote jobs are not cancellable; abandoning the
// caller does not stop the remote render, it only stops observing it.
const (
	defaultPollInterval = 3 * time.Second
	maxPollAttempts     = 120
)

// GenerateVideo runs the long-running video workflow as an explicit
// state machine: queued -> rendering -> done/failed, observed at a
// bounded polling interval.
func (o *Orchestrator) GenerateVideo(ctx context.Context, req Request, motion string) (*models.Media, error) {
	mediaID := req.TargetID
	if mediaID == "" {
		mediaID = newMediaID()
	}

	prompt, ref, err := o.preparePrompt(ctx, req)
	if err != nil {
		o.markErrored(req, mediaID, prompt, "", err)
		return nil, err
	}
	if m := strings.TrimSpace(motion); m != "" {
		prompt = prompt + ". motion: " + m
	}

	refID := ""
	var seed *genai.ReferenceImage
	if ref != nil {
		refID = ref.ID
		seed = &genai.ReferenceImage{Data: ref.Data, MimeType: ref.MimeType}
	}

	o.trackPending(mediaID, prompt, refID)

	jobID, err := o.client.StartVideoJob(ctx, genai.VideoRequest{
		Prompt: prompt,
		Seed:   seed,
		Safety: req.Safety.Settings(),
	})
	if err != nil {
		o.markErrored(req, mediaID, prompt, refID, err)
		return nil, err
	}

	status, err := o.observeVideoJob(ctx, jobID)
	if err != nil {
		o.markErrored(req, mediaID, prompt, refID, err)
		return nil, err
	}

	data, mimeType, err := o.client.DownloadArtifact(ctx, status.ArtifactURL)
	if err != nil {
		o.markErrored(req, mediaID, prompt, refID, err)
		return nil, err
	}

	m := &models.Media{
		ID:          mediaID,
		CharacterID: req.Character.ID,
		Kind:        models.MediaKindVideo,
		Data:        data,
		MimeType:    mimeType,
		Prompt:      prompt,
	}
	if m.MimeType == "" {
		m.MimeType = "video/mp4"
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

// observeVideoJob polls until the job reports done or failed, or the
// attempt limit runs out.
func (o *Orchestrator) observeVideoJob(ctx context.Context, jobID string) (*genai.JobStatus, error) {
	state := genai.JobQueued

	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-o.clock.After(defaultPollInterval):
		}

		status, err := o.client.PollVideoJob(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch status.State {
		case genai.JobDone:
			if status.ArtifactURL == "" {
				return nil, apperrors.NewMalformedResponseError("video job finished without an artifact")
			}
			return status, nil
		case genai.JobFailed:
			return nil, apperrors.NewTransportError("video", fmt.Errorf("video job failed: %s", status.Detail))
		case genai.JobQueued, genai.JobRendering:
			state = status.State
		}
	}

	return nil, apperrors.NewTransportError("video", fmt.Errorf("gave up waiting for video job in state %s", state))
}
