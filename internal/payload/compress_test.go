package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGzip_Roundtrip(t *testing.T) {
	original := []byte(`{"i":"GOLD","ltp":"1925.5"}`)

	compressed, err := Gzip(original)
	require.NoError(t, err)
	assert.NotEqual(t, original, compressed)

	restored, err := Gunzip(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestGzip_Deterministic(t *testing.T) {
	data := []byte(`{"i":"GOLD","ltp":"1925.5"}`)

	a, err := Gzip(data)
	require.NoError(t, err)
	b, err := Gzip(data)
	require.NoError(t, err)

	// Fan-out correctness depends on every member of a group receiving
	// the same compressed blob for one update
	assert.Equal(t, a, b)
}

func TestGunzip_RejectsGarbage(t *testing.T) {
	_, err := Gunzip([]byte("not gzip"))
	assert.Error(t, err)
}
