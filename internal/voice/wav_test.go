package voice

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWAVHeader(t *testing.T) {
	samples := make([]byte, 48000) // 1 second of 24kHz 16-bit mono
	params := PCMParams{Channels: 1, BitDepth: 16, SampleRate: 24000}

	out := BuildWAV(samples, params)

	require.Len(t, out, len(samples)+44)
	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, "fmt ", string(out[12:16]))
	assert.Equal(t, "data", string(out[36:40]))

	assert.Equal(t, uint32(36+len(samples)), binary.LittleEndian.Uint32(out[4:8]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]))
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(out[24:28]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(out[28:32]))
	assert.Equal(t, uint32(len(samples)), binary.LittleEndian.Uint32(out[40:44]))
}

func TestBuildWAVEmptyPayload(t *testing.T) {
	out := BuildWAV(nil, PCMParams{Channels: 1, BitDepth: 16, SampleRate: 24000})
	assert.Len(t, out, 44)
}

func TestWAVDurationRoundTrip(t *testing.T) {
	params := PCMParams{Channels: 2, BitDepth: 16, SampleRate: 44100}
	samples := make([]byte, 44100*2*2) // 1 second stereo

	d, err := DecodeWAVDuration(BuildWAV(samples, params))

	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 0.001)
}

func TestDecodeWAVDurationRejectsGarbage(t *testing.T) {
	_, err := DecodeWAVDuration([]byte("definitely not a wav file, nowhere near"))
	assert.Error(t, err)

	_, err = DecodeWAVDuration(nil)
	assert.Error(t, err)
}

func TestParsePCMParams(t *testing.T) {
	tests := []struct {
		name string
		mime string
		want PCMParams
	}{
		{"defaults", "audio/unknown", PCMParams{Channels: 1, BitDepth: 16, SampleRate: 24000}},
		{"rate only", "audio/L16;rate=44100", PCMParams{Channels: 1, BitDepth: 16, SampleRate: 44100}},
		{"bit depth from subtype", "audio/L24;rate=48000", PCMParams{Channels: 1, BitDepth: 24, SampleRate: 48000}},
		{"channels attr", "audio/L16;rate=24000;channels=2", PCMParams{Channels: 2, BitDepth: 16, SampleRate: 24000}},
		{"unparseable", "???", PCMParams{Channels: 1, BitDepth: 16, SampleRate: 24000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePCMParams(tt.mime))
		})
	}
}

func TestIsContainerMime(t *testing.T) {
	assert.True(t, IsContainerMime("audio/mpeg"))
	assert.True(t, IsContainerMime("audio/wav"))
	assert.True(t, IsContainerMime("audio/ogg; codecs=opus"))
	assert.False(t, IsContainerMime("audio/L16;rate=24000"))
	assert.False(t, IsContainerMime(""))
}
