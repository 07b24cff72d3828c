package fingerprint

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_Deterministic(t *testing.T) {
	content := []byte("invoice content")

	h1, err := Reader(bytes.NewReader(content))
	require.NoError(t, err)
	h2, err := Reader(bytes.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // hex-encoded SHA-256
}

func TestReader_DistinctContent(t *testing.T) {
	h1, err := Reader(bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	h2, err := Reader(bytes.NewReader([]byte("b")))
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestFile_MatchesReader(t *testing.T) {
	// Larger than one chunk so the streaming path is exercised
	content := make([]byte, 3*chunkSize+17)
	_, err := rand.Read(content)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, content, 0644))

	fromFile, err := File(path)
	require.NoError(t, err)
	fromReader, err := Reader(bytes.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, fromReader, fromFile)
}

func TestFile_Missing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}
