package media

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestImageDims(t *testing.T) {
	data := encodeJPEG(t, 640, 480)
	w, h, err := ImageDims(data)
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestImageDims_Garbage(t *testing.T) {
	_, _, err := ImageDims([]byte("not a jpeg"))
	assert.Error(t, err)
}

func TestThumbnailOffset(t *testing.T) {
	assert.Equal(t, 5.0, ThumbnailOffset(12.0))
	assert.Equal(t, 5.0, ThumbnailOffset(5.0))
	assert.Equal(t, 2.0, ThumbnailOffset(4.0))
	assert.Equal(t, 0.0, ThumbnailOffset(0))
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 25.0, parseFrameRate("25/1"))
	assert.InDelta(t, 29.97, parseFrameRate("30000/1001"), 0.01)
	assert.Equal(t, 0.0, parseFrameRate("bogus"))
	assert.Equal(t, 0.0, parseFrameRate("30/0"))
}

func TestWriteThumbnail(t *testing.T) {
	dir := t.TempDir()
	data := encodeJPEG(t, 32, 32)

	path, err := WriteThumbnail(dir, "MDalarm_20250714_003211", data)
	require.NoError(t, err)
	assert.Equal(t, "MDalarm_20250714_003211.jpg", filepath.Base(path))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, written)

	// No temp droppings left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteThumbnail_Overwrite(t *testing.T) {
	dir := t.TempDir()
	first := encodeJPEG(t, 16, 16)
	second := encodeJPEG(t, 64, 64)

	_, err := WriteThumbnail(dir, "clip", first)
	require.NoError(t, err)
	path, err := WriteThumbnail(dir, "clip", second)
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, second, written)
}
