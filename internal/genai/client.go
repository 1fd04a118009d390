package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apperrors "companion-engine/backend/pkg/errors"
	"companion-engine/backend/pkg/logger"
	"companion-engine/backend/pkg/resilience"
)

// Config holds credentials and endpoints for the production client.
type Config struct {
	APIKey       string
	TextBaseURL  string // optional OpenAI-compatible endpoint override
	TextModel    string
	MediaBaseURL string // image/video/speech endpoint
	Timeout      time.Duration
}

// Service is the production generative model client. Text operations go
// through the OpenAI-compatible API; image, video and speech calls hit
// the media endpoint directly.
type Service struct {
	text       *openai.Client
	httpClient *http.Client
	cfg        Config
	breaker    *resilience.CircuitBreaker
	log        *logger.Logger
}

// NewService builds a Service. A missing API key is not fatal here -
// every call checks credentials and reports service-unavailable so the
// caller can prompt for them.
func NewService(cfg Config, log *logger.Logger) *Service {
	if cfg.TextModel == "" {
		cfg.TextModel = openai.GPT4oMini
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	textCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.TextBaseURL != "" {
		textCfg.BaseURL = cfg.TextBaseURL
	}

	return &Service{
		text:       openai.NewClientWithConfig(textCfg),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("genai"), log),
		log:        log,
	}
}

func (s *Service) checkCredentials() error {
	if s.cfg.APIKey == "" {
		return apperrors.NewServiceUnavailableError("generative model credentials are not configured")
	}
	return nil
}

// Complete runs a single structured text completion. When a schema is
// set the model is constrained to JSON output and the schema text is
// appended to the system instruction.
func (s *Service) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := s.checkCredentials(); err != nil {
		return "", err
	}

	system := req.System
	var format *openai.ChatCompletionResponseFormat
	if len(req.Schema) > 0 {
		format = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
		system = fmt.Sprintf("%s\nRespond with a single JSON object matching this schema:\n%s", system, string(req.Schema))
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
	}

	var content string
	err := s.breaker.Execute(func() error {
		resp, err := s.text.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:          s.cfg.TextModel,
			Messages:       messages,
			Temperature:    req.Temperature,
			MaxTokens:      req.MaxTokens,
			ResponseFormat: format,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return apperrors.NewMalformedResponseError("completion returned no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeMalformedResponse) {
			return "", err
		}
		return "", apperrors.NewTransportError("text", err)
	}
	return content, nil
}

// StreamChat opens a streaming chat completion.
func (s *Service) StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error) {
	if err := s.checkCredentials(); err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.System,
	})
	for _, m := range req.History {
		role := openai.ChatMessageRoleAssistant
		if m.Role == "user" {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	stream, err := s.text.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.TextModel,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, apperrors.NewTransportError("text", err)
	}
	return &openaiStream{inner: stream}, nil
}

type openaiStream struct {
	inner *openai.ChatCompletionStream
}

func (s *openaiStream) Recv() (ChatChunk, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		return ChatChunk{}, err
	}
	if len(resp.Choices) == 0 {
		return ChatChunk{}, nil
	}
	return ChatChunk{Text: resp.Choices[0].Delta.Content}, nil
}

func (s *openaiStream) Close() error {
	return s.inner.Close()
}

// imageRequestPayload is the wire form of an image generation call.
type imageRequestPayload struct {
	Backend     string          `json:"backend"`
	Prompt      string          `json:"prompt"`
	AspectRatio string          `json:"aspect_ratio,omitempty"`
	Reference   string          `json:"reference,omitempty"` // base64
	RefMimeType string          `json:"reference_mime_type,omitempty"`
	Safety      []SafetySetting `json:"safety,omitempty"`
}

type imageResponsePayload struct {
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Refusal     string `json:"refusal,omitempty"`
}

// GenerateImage calls the selected image backend. A textual refusal is
// returned in the result, not as an error; the orchestrator owns that
// classification.
func (s *Service) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	if err := s.checkCredentials(); err != nil {
		return nil, err
	}

	payload := imageRequestPayload{
		Backend:     string(req.Backend),
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Safety:      req.Safety,
	}
	if req.Reference != nil {
		payload.Reference = base64.StdEncoding.EncodeToString(req.Reference.Data)
		payload.RefMimeType = req.Reference.MimeType
	}

	var parsed imageResponsePayload
	if err := s.postJSON(ctx, string(req.Backend), "/v1/images/generate", payload, &parsed); err != nil {
		return nil, err
	}

	result := &ImageResult{MimeType: parsed.MimeType, Refusal: parsed.Refusal}
	if parsed.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(parsed.ImageBase64)
		if err != nil {
			return nil, apperrors.NewMalformedResponseError("image payload is not valid base64")
		}
		result.Data = data
	}
	return result, nil
}

// StartVideoJob submits a video generation job and returns its handle.
func (s *Service) StartVideoJob(ctx context.Context, req VideoRequest) (string, error) {
	if err := s.checkCredentials(); err != nil {
		return "", err
	}

	payload := map[string]any{
		"prompt": req.Prompt,
		"safety": req.Safety,
	}
	if req.Seed != nil {
		payload["seed_image"] = base64.StdEncoding.EncodeToString(req.Seed.Data)
		payload["seed_mime_type"] = req.Seed.MimeType
	}

	var parsed struct {
		JobID string `json:"job_id"`
	}
	if err := s.postJSON(ctx, "video", "/v1/videos", payload, &parsed); err != nil {
		return "", err
	}
	if parsed.JobID == "" {
		return "", apperrors.NewMalformedResponseError("video job response missing job_id")
	}
	return parsed.JobID, nil
}

// PollVideoJob observes a submitted job once.
func (s *Service) PollVideoJob(ctx context.Context, jobID string) (*JobStatus, error) {
	if err := s.checkCredentials(); err != nil {
		return nil, err
	}

	var parsed struct {
		State       string `json:"state"`
		ArtifactURL string `json:"artifact_url,omitempty"`
		Detail      string `json:"detail,omitempty"`
	}
	if err := s.getJSON(ctx, "video", "/v1/videos/"+jobID, &parsed); err != nil {
		return nil, err
	}

	switch JobState(parsed.State) {
	case JobQueued, JobRendering, JobDone, JobFailed:
		return &JobStatus{State: JobState(parsed.State), ArtifactURL: parsed.ArtifactURL, Detail: parsed.Detail}, nil
	}
	return nil, apperrors.NewMalformedResponseError("video job reported unknown state " + parsed.State)
}

// DownloadArtifact fetches a finished job's artifact.
func (s *Service) DownloadArtifact(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", apperrors.NewTransportError("video", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", apperrors.NewTransportError("video", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", apperrors.NewTransportError("video", fmt.Errorf("artifact download returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", apperrors.NewTransportError("video", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// SynthesizeSpeech streams audio for exactly the given text. The stream's
// MIME type comes from the response Content-Type header and may denote a
// container format or raw samples with encoding parameters.
func (s *Service) SynthesizeSpeech(ctx context.Context, req SpeechRequest) (AudioStream, error) {
	if err := s.checkCredentials(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{
		"text":  req.Text,
		"voice": req.VoiceType,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.MediaBaseURL+"/v1/speech", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewTransportError("speech", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewTransportError("speech", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperrors.NewTransportError("speech", fmt.Errorf("speech endpoint returned status %d", resp.StatusCode))
	}

	return &httpAudioStream{
		body:     resp.Body,
		mimeType: resp.Header.Get("Content-Type"),
	}, nil
}

type httpAudioStream struct {
	body     io.ReadCloser
	mimeType string
}

func (s *httpAudioStream) Recv() (AudioChunk, error) {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.body.Read(buf)
		if n > 0 {
			return AudioChunk{Data: buf[:n], MimeType: s.mimeType}, nil
		}
		if err != nil {
			return AudioChunk{}, err
		}
	}
}

func (s *httpAudioStream) Close() error {
	return s.body.Close()
}

// postJSON executes a media endpoint POST through the circuit breaker.
func (s *Service) postJSON(ctx context.Context, backend, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return s.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.MediaBaseURL+path, bytes.NewReader(body))
		if err != nil {
			return apperrors.NewTransportError(backend, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return apperrors.NewTransportError(backend, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			return apperrors.NewTransportError(backend, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewMalformedResponseError("could not decode " + backend + " response: " + err.Error())
		}
		return nil
	})
}

// getJSON executes a media endpoint GET through the circuit breaker.
func (s *Service) getJSON(ctx context.Context, backend, path string, out any) error {
	return s.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.MediaBaseURL+path, nil)
		if err != nil {
			return apperrors.NewTransportError(backend, err)
		}
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return apperrors.NewTransportError(backend, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			return apperrors.NewTransportError(backend, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewMalformedResponseError("could not decode " + backend + " response: " + err.Error())
		}
		return nil
	})
}
