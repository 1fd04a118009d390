package voice

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Prober is the fallback media-metadata path used when direct decoding
// fails. Injectable so tests control both paths.
type Prober interface {
	Probe(data []byte, mimeType string) (float64, error)
}

// MeasureDuration computes the playable duration of an assembled audio
// object. It first tries to decode the object directly, then falls back
// to the prober. A duration is always produced; total failure yields 0
// so the playback UI can still render.
func MeasureDuration(data []byte, mimeType string, prober Prober) float64 {
	if d, err := decodeDuration(data, mimeType); err == nil && d > 0 {
		return d
	}
	if prober != nil {
		if d, err := prober.Probe(data, mimeType); err == nil && d > 0 {
			return d
		}
	}
	return 0
}

func decodeDuration(data []byte, mimeType string) (float64, error) {
	switch {
	case strings.Contains(mimeType, "wav"), strings.Contains(mimeType, "wave"):
		return DecodeWAVDuration(data)
	case len(data) >= wavHeaderSize && string(data[0:4]) == "RIFF":
		// Raw-sample streams become WAV files during assembly, whatever
		// the original MIME said.
		return DecodeWAVDuration(data)
	default:
		return 0, fmt.Errorf("no direct decoder for %s", mimeType)
	}
}

// HeaderProber is the default fallback: it estimates duration from
// format-level framing without fully decoding the stream.
type HeaderProber struct{}

// Probe implements Prober. MP3 streams are estimated from the first
// frame header's bitrate; other formats are not estimable here.
func (HeaderProber) Probe(data []byte, mimeType string) (float64, error) {
	if strings.Contains(mimeType, "mpeg") || strings.Contains(mimeType, "mp3") {
		return estimateMP3Duration(data)
	}
	return 0, fmt.Errorf("cannot probe %s", mimeType)
}

// mp3Bitrates is the MPEG-1 Layer III bitrate table, kbit/s, indexed by
// the frame header bitrate field.
var mp3Bitrates = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

func estimateMP3Duration(data []byte) (float64, error) {
	// Skip an ID3v2 tag if present.
	offset := 0
	if len(data) >= 10 && string(data[0:3]) == "ID3" {
		size := int(binary.BigEndian.Uint32([]byte{0, data[6] & 0x7f, data[7] & 0x7f, data[8] & 0x7f}))
		size = size<<7 | int(data[9]&0x7f)
		offset = 10 + size
	}

	for ; offset+4 <= len(data); offset++ {
		if data[offset] != 0xff || data[offset+1]&0xe0 != 0xe0 {
			continue
		}
		bitrateIdx := data[offset+2] >> 4
		kbps := mp3Bitrates[bitrateIdx]
		if kbps == 0 {
			continue
		}
		payload := len(data) - offset
		return float64(payload*8) / float64(kbps*1000), nil
	}

	return 0, fmt.Errorf("no MP3 frame header found")
}
