// Package voice turns a narrative voice instruction into a playable
// audio object: one call to produce the spoken line, one streamed call to
// synthesize it, then container/raw branching and duration measurement.
package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"

	"companion-engine/backend/internal/genai"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/pkg/logger"
)

// Note is an assembled voice note ready for persistence and playback.
type Note struct {
	ID              string
	Audio           []byte
	Format          string // wav, mp3, ogg, webm
	MimeType        string
	DurationSeconds float64
	SpokenText      string
	SampleRate      int
	Channels        int
}

const dialogueSystem = "Write exactly one short line of spoken dialogue for the character, " +
	"following the given instruction. Output only the words they say, no " +
	"quotation marks, no stage directions."

// Pipeline synthesizes voice notes.
type Pipeline struct {
	client genai.Client
	prober Prober
	log    *logger.Logger
}

// NewPipeline builds the pipeline with the default metadata prober.
func NewPipeline(client genai.Client, log *logger.Logger) *Pipeline {
	return &Pipeline{client: client, prober: HeaderProber{}, log: log}
}

// SetProber replaces the fallback duration prober; tests inject stubs.
func (p *Pipeline) SetProber(prober Prober) {
	p.prober = prober
}

// Synthesize produces a voice note for the instruction. The spoken text
// comes from the first model call; the audio stream synthesizes exactly
// that text.
func (p *Pipeline) Synthesize(ctx context.Context, c *models.Character, instruction string) (*Note, error) {
	line, err := p.client.Complete(ctx, genai.CompletionRequest{
		System:      dialogueSystem,
		Prompt:      "Character: " + c.Name + "\nPersonality: " + c.Personality + "\nInstruction: " + instruction,
		Temperature: 0.9,
		MaxTokens:   100,
	})
	if err != nil {
		return nil, err
	}
	line = strings.TrimSpace(line)

	stream, err := p.client.SynthesizeSpeech(ctx, genai.SpeechRequest{
		Text:      line,
		VoiceType: c.VoiceType,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	audio, mimeType, params, err := AssembleStream(stream)
	if err != nil {
		return nil, err
	}

	duration := MeasureDuration(audio, mimeType, p.prober)
	if duration == 0 {
		p.log.Warn("voice note duration could not be measured, defaulting to 0",
			"character_id", c.ID,
			"mime_type", mimeType,
		)
	}

	return &Note{
		ID:              uuid.New().String(),
		Audio:           audio,
		Format:          formatFromMime(mimeType),
		MimeType:        mimeType,
		DurationSeconds: duration,
		SpokenText:      line,
		SampleRate:      params.SampleRate,
		Channels:        params.Channels,
	}, nil
}

// AssembleStream drains an audio stream into a single playable buffer.
// Container streams concatenate as-is; raw-sample streams get a WAV
// header declaring the MIME's encoding parameters. Returns the final
// bytes, the effective MIME type and the encoding parameters.
func AssembleStream(stream genai.AudioStream) ([]byte, string, PCMParams, error) {
	var buf bytes.Buffer
	mimeType := ""

	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, "", PCMParams{}, err
		}
		if mimeType == "" {
			mimeType = chunk.MimeType
		}
		buf.Write(chunk.Data)
	}

	if IsContainerMime(mimeType) {
		return buf.Bytes(), mimeType, PCMParams{}, nil
	}

	params := ParsePCMParams(mimeType)
	return BuildWAV(buf.Bytes(), params), "audio/wav", params, nil
}

func formatFromMime(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "wav"), strings.Contains(mimeType, "wave"):
		return "wav"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return "mp3"
	case strings.Contains(mimeType, "ogg"):
		return "ogg"
	case strings.Contains(mimeType, "webm"):
		return "webm"
	default:
		return "wav"
	}
}
