// Package genai defines the contract the engine has with the generative
// model service: structured completions, streaming chat, image
// generation, pollable video jobs and streamed speech. The rest of the
// engine depends only on these interfaces; the production client lives in
// client.go.
package genai

import (
	"context"
	"encoding/json"
)

// Backend identifies an image generation backend.
type Backend string

const (
	// BackendPortrait is the prompt-only backend: text prompt plus
	// aspect ratio, no reference image. Suited to from-scratch portraits.
	BackendPortrait Backend = "portrait"

	// BackendScene is the reference-conditioned backend: text prompt plus
	// at most one reference artifact. Mandatory for AI-initiated in-chat
	// images so visual identity carries forward.
	BackendScene Backend = "scene"
)

// SafetySetting is one content-category threshold attached to a request.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// CompletionRequest asks for a single text completion, optionally
// constrained to a JSON schema.
type CompletionRequest struct {
	System      string
	Prompt      string
	Schema      json.RawMessage // optional JSON-schema constraint
	Temperature float32
	MaxTokens   int
}

// ChatMessage is one entry of an ordered chat history.
type ChatMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// ChatRequest asks for a streaming chat completion.
type ChatRequest struct {
	System      string
	History     []ChatMessage
	Temperature float32
	MaxTokens   int
}

// ChatChunk is one increment of a streaming chat response. Either Text or
// Image is set; Image carries an inline binary part.
type ChatChunk struct {
	Text  string
	Image []byte
}

// ChatStream yields chat chunks until io.EOF.
type ChatStream interface {
	Recv() (ChatChunk, error)
	Close() error
}

// ReferenceImage is a single visual-conditioning input.
type ReferenceImage struct {
	Data     []byte
	MimeType string
}

// ImageRequest asks a backend for an image.
type ImageRequest struct {
	Backend     Backend
	Prompt      string
	AspectRatio string          // portrait backend only
	Reference   *ReferenceImage // scene backend only, at most one
	Safety      []SafetySetting
}

// ImageResult is either image bytes or a textual refusal. When Refusal is
// non-empty the backend declined and Data is nil.
type ImageResult struct {
	Data     []byte
	MimeType string
	Refusal  string
}

// JobState is the observed state of a long-running generation job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRendering JobState = "rendering"
	JobDone      JobState = "done"
	JobFailed    JobState = "failed"
)

// VideoRequest asks for a short video clip, optionally seeded with an
// image.
type VideoRequest struct {
	Prompt string
	Seed   *ReferenceImage
	Safety []SafetySetting
}

// JobStatus is one poll observation of a video job.
type JobStatus struct {
	State       JobState
	ArtifactURL string // set when State == JobDone
	Detail      string // failure detail when State == JobFailed
}

// SpeechRequest asks for streamed audio of exactly the given text.
type SpeechRequest struct {
	Text      string
	VoiceType string
}

// AudioChunk is one increment of a speech stream, tagged with the MIME
// type of the whole stream.
type AudioChunk struct {
	Data     []byte
	MimeType string
}

// AudioStream yields audio chunks until io.EOF.
type AudioStream interface {
	Recv() (AudioChunk, error)
	Close() error
}

// Client is the full generative model service surface the engine uses.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error)
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
	StartVideoJob(ctx context.Context, req VideoRequest) (string, error)
	PollVideoJob(ctx context.Context, jobID string) (*JobStatus, error)
	DownloadArtifact(ctx context.Context, url string) ([]byte, string, error)
	SynthesizeSpeech(ctx context.Context, req SpeechRequest) (AudioStream, error)
}
