package media

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-engine/backend/internal/genai"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/internal/session"
	"companion-engine/backend/internal/timectx"
	apperrors "companion-engine/backend/pkg/errors"
	"companion-engine/backend/pkg/logger"
)

// fakeClient records image requests and plays back scripted results.
type fakeClient struct {
	genai.Client

	imageRequests []genai.ImageRequest
	imageResults  []imageOutcome

	videoJobID    string
	videoStates   []genai.JobStatus
	videoPos      int
	artifactData  []byte
	artifactMime  string
	startVideoErr error
}

type imageOutcome struct {
	result *genai.ImageResult
	err    error
}

func (f *fakeClient) GenerateImage(ctx context.Context, req genai.ImageRequest) (*genai.ImageResult, error) {
	f.imageRequests = append(f.imageRequests, req)
	if len(f.imageResults) == 0 {
		return &genai.ImageResult{Data: []byte("img"), MimeType: "image/png"}, nil
	}
	out := f.imageResults[0]
	if len(f.imageResults) > 1 {
		f.imageResults = f.imageResults[1:]
	}
	return out.result, out.err
}

func (f *fakeClient) StartVideoJob(ctx context.Context, req genai.VideoRequest) (string, error) {
	if f.startVideoErr != nil {
		return "", f.startVideoErr
	}
	return f.videoJobID, nil
}

func (f *fakeClient) PollVideoJob(ctx context.Context, jobID string) (*genai.JobStatus, error) {
	if f.videoPos >= len(f.videoStates) {
		return &genai.JobStatus{State: genai.JobRendering}, nil
	}
	s := f.videoStates[f.videoPos]
	f.videoPos++
	return &s, nil
}

func (f *fakeClient) DownloadArtifact(ctx context.Context, url string) ([]byte, string, error) {
	return f.artifactData, f.artifactMime, nil
}

type fakeStore struct {
	media   map[string]*models.Media
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{media: make(map[string]*models.Media)}
}

func (s *fakeStore) GetMedia(ctx context.Context, id string) (*models.Media, error) {
	return s.media[id], nil
}

func (s *fakeStore) SaveMedia(ctx context.Context, m *models.Media) error {
	if s.saveErr != nil {
		err := s.saveErr
		s.saveErr = nil
		return err
	}
	s.media[m.ID] = m
	return nil
}

type fixedDirector struct {
	scene Scene
	err   error
}

func (d fixedDirector) Direct(ctx context.Context, c *models.Character, intent, currentLocation string) (Scene, error) {
	return d.scene, d.err
}

type fixedStylist struct{ outfit string }

func (s fixedStylist) DescribeOutfit(ctx context.Context, c *models.Character, location string, bucket timectx.Bucket) (string, error) {
	return s.outfit, nil
}

type fakeClock struct{ ch chan time.Time }

func newFakeClock() *fakeClock {
	ch := make(chan time.Time, 256)
	for i := 0; i < 256; i++ {
		ch <- time.Time{}
	}
	return &fakeClock{ch: ch}
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time { return c.ch }

type harness struct {
	orch   *Orchestrator
	client *fakeClient
	store  *fakeStore
	sess   *session.Context
	char   *models.Character
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	char := &models.Character{
		ID:            1,
		Name:          "Mira",
		Race:          "human",
		Timezone:      "UTC",
		Appearance:    "tall, green eyes",
		Hairstyles:    "long loose waves",
		AvatarMediaID: "avatar-1",
	}
	store := newFakeStore()
	store.media["avatar-1"] = &models.Media{
		ID: "avatar-1", CharacterID: 1, Kind: models.MediaKindImage,
		Data: []byte("avatar-bytes"), MimeType: "image/png",
	}

	client := &fakeClient{}
	orch := NewOrchestrator(
		client, store,
		fixedDirector{scene: Scene{Location: "cafe window table", Direction: "soft smile"}},
		fixedStylist{outfit: "white sundress"},
		nil,
		logger.New(logger.DefaultConfig()),
	)

	mgr := session.NewManager(rand.New(rand.NewSource(1)))
	sess := mgr.Open("s1", char)

	return &harness{orch: orch, client: client, store: store, sess: sess, char: char}
}

func (h *harness) request() Request {
	return Request{
		Character: h.char,
		Session:   h.sess,
		Intent:    "a cozy afternoon",
		Safety:    SafetyStandard,
		Now:       time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC),
	}
}

func TestGenerateImageUsesAvatarWhenChainEmpty(t *testing.T) {
	h := newHarness(t)

	m, err := h.orch.GenerateImage(context.Background(), h.request())

	require.NoError(t, err)
	require.Len(t, h.client.imageRequests, 1)
	req := h.client.imageRequests[0]
	assert.Equal(t, genai.BackendScene, req.Backend)
	require.NotNil(t, req.Reference)
	assert.Equal(t, []byte("avatar-bytes"), req.Reference.Data)

	// Success advances the chain to the new artifact.
	ref := h.sess.Reference()
	require.NotNil(t, ref)
	assert.Equal(t, m.ID, ref.MediaID)

	slot, ok := h.orch.Slot(m.ID)
	require.True(t, ok)
	assert.Equal(t, SlotDone, slot.Status)
}

func TestGenerateImageChainsFromPreviousArtifact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.orch.GenerateImage(ctx, h.request())
	require.NoError(t, err)

	_, err = h.orch.GenerateImage(ctx, h.request())
	require.NoError(t, err)

	require.Len(t, h.client.imageRequests, 2)
	second := h.client.imageRequests[1]
	require.NotNil(t, second.Reference)
	assert.Equal(t, h.store.media[first.ID].Data, second.Reference.Data)
}

func TestGenerateImageDanglingChainFallsBackToAvatar(t *testing.T) {
	h := newHarness(t)

	h.sess.AdvanceReference("deleted-media", "image")

	_, err := h.orch.GenerateImage(context.Background(), h.request())

	require.NoError(t, err)
	req := h.client.imageRequests[0]
	require.NotNil(t, req.Reference)
	assert.Equal(t, []byte("avatar-bytes"), req.Reference.Data)
}

func TestGenerateImageMissingAvatarIsHardError(t *testing.T) {
	h := newHarness(t)
	delete(h.store.media, "avatar-1")

	_, err := h.orch.GenerateImage(context.Background(), h.request())

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeResourceMissing, appErr.Code)
	assert.Empty(t, h.client.imageRequests)
}

func TestSceneFailureStagesFallbackWithoutRunningIt(t *testing.T) {
	h := newHarness(t)
	h.client.imageResults = []imageOutcome{{err: errors.New("backend exploded")}}

	_, err := h.orch.GenerateImage(context.Background(), h.request())
	require.Error(t, err)

	// Exactly one backend call: the fallback was staged, never executed.
	require.Len(t, h.client.imageRequests, 1)

	slot, ok := h.orch.Slot(slotID(t, h.orch))
	require.True(t, ok)
	assert.Equal(t, SlotErrored, slot.Status)
	require.NotNil(t, slot.Staged)
	assert.Equal(t, SafetyUnrestricted, slot.Staged.Safety)

	// The chain pointer never advanced.
	assert.Nil(t, h.sess.Reference())
}

func TestConfirmFallbackRunsPortraitOnceOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.client.imageResults = []imageOutcome{
		{err: errors.New("scene backend down")},
		{result: &genai.ImageResult{Data: []byte("fallback-img"), MimeType: "image/png"}},
	}

	_, err := h.orch.GenerateImage(ctx, h.request())
	require.Error(t, err)
	mediaID := slotID(t, h.orch)

	m, err := h.orch.ConfirmFallback(ctx, h.request(), mediaID)
	require.NoError(t, err)
	assert.Equal(t, []byte("fallback-img"), m.Data)

	confirmReq := h.client.imageRequests[1]
	assert.Equal(t, genai.BackendPortrait, confirmReq.Backend)
	assert.Nil(t, confirmReq.Reference)
	assert.Equal(t, SafetyUnrestricted.Settings(), confirmReq.Safety)

	// A second confirm finds nothing staged.
	_, err = h.orch.ConfirmFallback(ctx, h.request(), mediaID)
	require.Error(t, err)
	require.Len(t, h.client.imageRequests, 2)
}

func TestCancelFallbackLeavesSlotRetryable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.client.imageResults = []imageOutcome{
		{err: errors.New("scene backend down")},
		{result: &genai.ImageResult{Data: []byte("retried"), MimeType: "image/png"}},
	}

	_, err := h.orch.GenerateImage(ctx, h.request())
	require.Error(t, err)
	mediaID := slotID(t, h.orch)

	h.orch.CancelFallback(mediaID)

	_, err = h.orch.ConfirmFallback(ctx, h.request(), mediaID)
	require.Error(t, err)

	// The errored slot still retries with its original context.
	m, err := h.orch.Retry(ctx, h.request(), mediaID, "", SafetyFlexible)
	require.NoError(t, err)
	assert.Equal(t, []byte("retried"), m.Data)
}

func TestRetryPreservesReferenceAndAppliesEdits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.client.imageResults = []imageOutcome{
		{err: errors.New("transient failure")},
		{result: &genai.ImageResult{Data: []byte("second-try"), MimeType: "image/png"}},
	}

	_, err := h.orch.GenerateImage(ctx, h.request())
	require.Error(t, err)
	mediaID := slotID(t, h.orch)

	m, err := h.orch.Retry(ctx, h.request(), mediaID, "edited scene prompt", SafetyFlexible)
	require.NoError(t, err)
	assert.Equal(t, mediaID, m.ID, "retry reuses the media slot id")

	retryReq := h.client.imageRequests[1]
	assert.Equal(t, "edited scene prompt", retryReq.Prompt)
	assert.Equal(t, genai.BackendScene, retryReq.Backend)
	require.NotNil(t, retryReq.Reference, "retry keeps the original reference")
	assert.Equal(t, []byte("avatar-bytes"), retryReq.Reference.Data)
	assert.Equal(t, SafetyFlexible.Settings(), retryReq.Safety)
}

func TestSaveFailureKeepsReferenceForRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.saveErr = errors.New("disk full")
	h.client.imageResults = []imageOutcome{
		{result: &genai.ImageResult{Data: []byte("first-try"), MimeType: "image/png"}},
		{result: &genai.ImageResult{Data: []byte("second-try"), MimeType: "image/png"}},
	}

	_, err := h.orch.GenerateImage(ctx, h.request())
	require.Error(t, err)
	mediaID := slotID(t, h.orch)

	slot, ok := h.orch.Slot(mediaID)
	require.True(t, ok)
	assert.Equal(t, SlotErrored, slot.Status)
	assert.Equal(t, "avatar-1", slot.ReferenceID, "errored slot keeps its reference")

	// A retry still chains from the original reference.
	_, err = h.orch.Retry(ctx, h.request(), mediaID, "", SafetyStandard)
	require.NoError(t, err)
	retryReq := h.client.imageRequests[1]
	assert.Equal(t, genai.BackendScene, retryReq.Backend)
	require.NotNil(t, retryReq.Reference)
	assert.Equal(t, []byte("avatar-bytes"), retryReq.Reference.Data)
}

func TestRetryWithoutErroredSlot(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Retry(context.Background(), h.request(), "unknown-id", "", SafetyStandard)
	assert.Error(t, err)
}

func TestManualRequestWithoutReferenceUsesPortrait(t *testing.T) {
	h := newHarness(t)
	req := h.request()
	req.Manual = true
	req.Intent = "a watercolor portrait of Mira"
	req.AspectRatio = "3:4"

	m, err := h.orch.GenerateImage(context.Background(), req)
	require.NoError(t, err)

	sent := h.client.imageRequests[0]
	assert.Equal(t, genai.BackendPortrait, sent.Backend)
	assert.Nil(t, sent.Reference)
	assert.Equal(t, "a watercolor portrait of Mira", sent.Prompt)
	assert.Equal(t, "3:4", sent.AspectRatio)

	// Manual generations never advance the session chain.
	assert.Nil(t, h.sess.Reference())
	assert.NotEmpty(t, m.ID)
}

func TestManualRequestWithExplicitReference(t *testing.T) {
	h := newHarness(t)
	h.store.media["pick-3"] = &models.Media{
		ID: "pick-3", CharacterID: 1, Kind: models.MediaKindImage,
		Data: []byte("gallery-pick"), MimeType: "image/png",
	}
	req := h.request()
	req.Manual = true
	req.ExplicitRefID = "pick-3"

	_, err := h.orch.GenerateImage(context.Background(), req)
	require.NoError(t, err)

	sent := h.client.imageRequests[0]
	assert.Equal(t, genai.BackendScene, sent.Backend)
	require.NotNil(t, sent.Reference)
	assert.Equal(t, []byte("gallery-pick"), sent.Reference.Data)
}

func TestContentDeclinedDoesNotStageFallback(t *testing.T) {
	h := newHarness(t)
	h.client.imageResults = []imageOutcome{
		{result: &genai.ImageResult{Refusal: "content policy"}},
	}

	_, err := h.orch.GenerateImage(context.Background(), h.request())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeContentDeclined, appErr.Code)

	slot, ok := h.orch.Slot(slotID(t, h.orch))
	require.True(t, ok)
	assert.Equal(t, SlotErrored, slot.Status)
	assert.Nil(t, slot.Staged, "a decline is a content decision, not a transport failure")
}

func TestGenerateVideoWalksJobStates(t *testing.T) {
	h := newHarness(t)
	h.orch.SetClock(newFakeClock())
	h.client.videoJobID = "job-1"
	h.client.videoStates = []genai.JobStatus{
		{State: genai.JobQueued},
		{State: genai.JobRendering},
		{State: genai.JobDone, ArtifactURL: "https://cdn/clip.mp4"},
	}
	h.client.artifactData = []byte("mp4-bytes")
	h.client.artifactMime = "video/mp4"

	m, err := h.orch.GenerateVideo(context.Background(), h.request(), "she waves at the camera")

	require.NoError(t, err)
	assert.Equal(t, models.MediaKindVideo, m.Kind)
	assert.Equal(t, []byte("mp4-bytes"), m.Data)
	assert.Contains(t, m.Prompt, "motion: she waves at the camera")

	// The video artifact becomes the new chain reference.
	ref := h.sess.Reference()
	require.NotNil(t, ref)
	assert.Equal(t, m.ID, ref.MediaID)
	assert.Equal(t, models.MediaKindVideo, ref.Kind)
}

func TestGenerateVideoJobFailure(t *testing.T) {
	h := newHarness(t)
	h.orch.SetClock(newFakeClock())
	h.client.videoJobID = "job-1"
	h.client.videoStates = []genai.JobStatus{
		{State: genai.JobQueued},
		{State: genai.JobFailed, Detail: "render node crashed"},
	}

	_, err := h.orch.GenerateVideo(context.Background(), h.request(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "render node crashed")

	slot, ok := h.orch.Slot(slotID(t, h.orch))
	require.True(t, ok)
	assert.Equal(t, SlotErrored, slot.Status)
	assert.Nil(t, h.sess.Reference())
}

func TestGenerateVideoDoneWithoutArtifact(t *testing.T) {
	h := newHarness(t)
	h.orch.SetClock(newFakeClock())
	h.client.videoJobID = "job-1"
	h.client.videoStates = []genai.JobStatus{
		{State: genai.JobDone},
	}

	_, err := h.orch.GenerateVideo(context.Background(), h.request(), "")
	assert.Error(t, err)
}

// slotID returns the single tracked slot id; the orchestrator generates
// ids internally for directive-driven requests.
func slotID(t *testing.T, o *Orchestrator) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.Len(t, o.slots, 1)
	for id := range o.slots {
		return id
	}
	return ""
}
