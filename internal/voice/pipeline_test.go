package voice

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-engine/backend/internal/genai"
	"companion-engine/backend/internal/models"
	"companion-engine/backend/pkg/logger"
)

type fakeAudioStream struct {
	chunks []genai.AudioChunk
	pos    int
}

func (f *fakeAudioStream) Recv() (genai.AudioChunk, error) {
	if f.pos >= len(f.chunks) {
		return genai.AudioChunk{}, io.EOF
	}
	c := f.chunks[f.pos]
	f.pos++
	return c, nil
}

func (f *fakeAudioStream) Close() error { return nil }

func TestAssembleStreamRawGetsWAVHeader(t *testing.T) {
	stream := &fakeAudioStream{chunks: []genai.AudioChunk{
		{Data: make([]byte, 1000), MimeType: "audio/L16;rate=24000"},
		{Data: make([]byte, 500), MimeType: "audio/L16;rate=24000"},
	}}

	audio, mimeType, params, err := AssembleStream(stream)

	require.NoError(t, err)
	assert.Equal(t, "audio/wav", mimeType)
	assert.Len(t, audio, 1500+44)
	assert.Equal(t, "RIFF", string(audio[0:4]))
	assert.Equal(t, 24000, params.SampleRate)
	assert.Equal(t, 16, params.BitDepth)
}

func TestAssembleStreamContainerConcatenatesAsIs(t *testing.T) {
	stream := &fakeAudioStream{chunks: []genai.AudioChunk{
		{Data: []byte("mp3-part-1"), MimeType: "audio/mpeg"},
		{Data: []byte("mp3-part-2"), MimeType: "audio/mpeg"},
	}}

	audio, mimeType, _, err := AssembleStream(stream)

	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", mimeType)
	assert.Equal(t, []byte("mp3-part-1mp3-part-2"), audio)
}

type fakeVoiceClient struct {
	genai.Client // panic on anything not overridden

	line      string
	lineErr   error
	stream    genai.AudioStream
	streamErr error
}

func (f *fakeVoiceClient) Complete(ctx context.Context, req genai.CompletionRequest) (string, error) {
	return f.line, f.lineErr
}

func (f *fakeVoiceClient) SynthesizeSpeech(ctx context.Context, req genai.SpeechRequest) (genai.AudioStream, error) {
	return f.stream, f.streamErr
}

func TestSynthesizeProducesPlayableNote(t *testing.T) {
	// One second of raw samples so duration decoding has real data.
	samples := make([]byte, 48000)
	client := &fakeVoiceClient{
		line: "  Come closer, I have a secret.  ",
		stream: &fakeAudioStream{chunks: []genai.AudioChunk{
			{Data: samples, MimeType: "audio/L16;rate=24000"},
		}},
	}
	p := NewPipeline(client, logger.New(logger.DefaultConfig()))

	note, err := p.Synthesize(context.Background(), &models.Character{ID: 1, Name: "Mira"}, "whisper something")

	require.NoError(t, err)
	assert.NotEmpty(t, note.ID)
	assert.Equal(t, "Come closer, I have a secret.", note.SpokenText)
	assert.Equal(t, "wav", note.Format)
	assert.Equal(t, "audio/wav", note.MimeType)
	assert.Len(t, note.Audio, len(samples)+44)
	assert.InDelta(t, 1.0, note.DurationSeconds, 0.001)
	assert.Equal(t, 24000, note.SampleRate)
	assert.Equal(t, 1, note.Channels)
}

func TestSynthesizeDurationDefaultsToZero(t *testing.T) {
	client := &fakeVoiceClient{
		line: "hello",
		stream: &fakeAudioStream{chunks: []genai.AudioChunk{
			{Data: []byte("opaque-bytes"), MimeType: "audio/webm"},
		}},
	}
	p := NewPipeline(client, logger.New(logger.DefaultConfig()))
	p.SetProber(nil)

	note, err := p.Synthesize(context.Background(), &models.Character{ID: 1}, "say hi")

	require.NoError(t, err)
	assert.Equal(t, 0.0, note.DurationSeconds)
	assert.Equal(t, "webm", note.Format)
}

func TestMeasureDurationFallsBackToProber(t *testing.T) {
	d := MeasureDuration([]byte("opaque"), "audio/ogg", proberFunc(func(data []byte, mimeType string) (float64, error) {
		return 2.5, nil
	}))
	assert.Equal(t, 2.5, d)
}

type proberFunc func(data []byte, mimeType string) (float64, error)

func (f proberFunc) Probe(data []byte, mimeType string) (float64, error) { return f(data, mimeType) }
