package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-engine/backend/internal/models"
)

func buildArchive(t *testing.T, manifest *Manifest, blobs map[string][]byte) *zip.Reader {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for name, data := range blobs {
		entry, err := zw.Create(name)
		require.NoError(t, err)
		_, err = entry.Write(data)
		require.NoError(t, err)
	}
	if manifest != nil {
		entry, err := zw.Create(manifestName)
		require.NoError(t, err)
		require.NoError(t, json.NewEncoder(entry).Encode(manifest))
	}
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return zr
}

func TestReadEntriesSplitsManifestAndBlobs(t *testing.T) {
	manifest := &Manifest{
		Version:    FormatVersion,
		ExportedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Character:  models.Character{Name: "Mira", IntimacyScore: 37.5},
		Media:      []models.Media{{ID: "m-1", Kind: models.MediaKindImage}},
		VoiceNotes: []models.VoiceNote{{ID: "v-1", Format: "wav"}},
	}
	blobs := map[string][]byte{
		mediaPrefix + "m-1": []byte("image-bytes"),
		voicePrefix + "v-1": []byte("audio-bytes"),
	}

	got, gotBlobs, err := readEntries(buildArchive(t, manifest, blobs))

	require.NoError(t, err)
	assert.Equal(t, "Mira", got.Character.Name)
	assert.Equal(t, 37.5, got.Character.IntimacyScore)
	assert.Equal(t, []byte("image-bytes"), gotBlobs[mediaPrefix+"m-1"])
	assert.Equal(t, []byte("audio-bytes"), gotBlobs[voicePrefix+"v-1"])
	assert.Len(t, gotBlobs, 2)
}

func TestReadEntriesPartialArchive(t *testing.T) {
	// The media row survives without its blob; the importer keeps its
	// source reference for lazy resolution.
	manifest := &Manifest{
		Version:   FormatVersion,
		Character: models.Character{Name: "Mira"},
		Media:     []models.Media{{ID: "m-1", SourceRef: "https://cdn/m-1.png"}},
	}

	got, gotBlobs, err := readEntries(buildArchive(t, manifest, nil))

	require.NoError(t, err)
	require.Len(t, got.Media, 1)
	assert.Equal(t, "https://cdn/m-1.png", got.Media[0].SourceRef)
	assert.Empty(t, gotBlobs)
}

func TestReadEntriesMissingManifest(t *testing.T) {
	zr := buildArchive(t, nil, map[string][]byte{mediaPrefix + "m-1": []byte("x")})

	_, _, err := readEntries(zr)
	assert.ErrorContains(t, err, manifestName)
}

func TestReadEntriesMalformedManifest(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create(manifestName)
	require.NoError(t, err)
	_, err = entry.Write([]byte("{not json"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	_, _, err = readEntries(zr)
	assert.ErrorContains(t, err, "malformed manifest")
}
