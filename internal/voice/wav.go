package voice

import (
	"encoding/binary"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

// Raw-sample defaults when the MIME parameters omit them: single channel,
// 16-bit, 24kHz.
const (
	defaultChannels   = 1
	defaultBitDepth   = 16
	defaultSampleRate = 24000

	wavHeaderSize = 44
)

// containerTypes are MIME types that denote a pre-packaged audio
// container whose chunk bytes concatenate as-is.
var containerTypes = map[string]bool{
	"audio/wav":  true,
	"audio/wave": true,
	"audio/mpeg": true,
	"audio/mp3":  true,
	"audio/ogg":  true,
	"audio/webm": true,
}

// IsContainerMime reports whether the stream's MIME type is a container
// format rather than raw samples.
func IsContainerMime(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	return containerTypes[mediaType]
}

// PCMParams are the encoding parameters of a raw sample stream.
type PCMParams struct {
	Channels   int
	BitDepth   int
	SampleRate int
}

// ParsePCMParams extracts bit depth and sample rate from a raw-audio MIME
// type such as "audio/L16;rate=24000", applying defaults for anything
// absent.
func ParsePCMParams(mimeType string) PCMParams {
	params := PCMParams{
		Channels:   defaultChannels,
		BitDepth:   defaultBitDepth,
		SampleRate: defaultSampleRate,
	}

	mediaType, attrs, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return params
	}

	// "audio/L16" style subtypes encode the bit depth after the L.
	if _, subtype, ok := strings.Cut(mediaType, "/"); ok {
		if rest, found := strings.CutPrefix(strings.ToUpper(subtype), "L"); found {
			if bits, err := strconv.Atoi(rest); err == nil && bits > 0 {
				params.BitDepth = bits
			}
		}
	}

	if v, ok := attrs["rate"]; ok {
		if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
			params.SampleRate = rate
		}
	}
	if v, ok := attrs["channels"]; ok {
		if ch, err := strconv.Atoi(v); err == nil && ch > 0 {
			params.Channels = ch
		}
	}

	return params
}

// BuildWAV prepends a minimal RIFF/WAVE header declaring the encoding
// parameters and payload length to raw sample bytes. The emitted file is
// len(samples)+44 bytes.
func BuildWAV(samples []byte, params PCMParams) []byte {
	dataLen := uint32(len(samples))
	byteRate := uint32(params.SampleRate * params.Channels * params.BitDepth / 8)
	blockAlign := uint16(params.Channels * params.BitDepth / 8)

	out := make([]byte, wavHeaderSize+len(samples))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataLen)
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format tag
	binary.LittleEndian.PutUint16(out[22:24], uint16(params.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(params.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], uint16(params.BitDepth))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataLen)

	copy(out[wavHeaderSize:], samples)
	return out
}

// DecodeWAVDuration reads a WAV file's header and computes the payload
// duration in seconds.
func DecodeWAVDuration(data []byte) (float64, error) {
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	// Walk chunks; fmt must precede data.
	var byteRate uint32
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return 0, fmt.Errorf("truncated fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("data chunk before fmt chunk")
			}
			return float64(chunkLen) / float64(byteRate), nil
		}

		offset = body + chunkLen
		if chunkLen%2 == 1 {
			offset++ // chunk bodies are word-aligned
		}
	}

	return 0, fmt.Errorf("no data chunk found")
}
