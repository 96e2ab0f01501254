package validate

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lore-anchor/protect/internal/apperr"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestDetectFormat_PNG(t *testing.T) {
	assert.Equal(t, "png", DetectFormat(encodePNG(t)))
}

func TestDetectFormat_JPEG(t *testing.T) {
	assert.Equal(t, "jpg", DetectFormat(encodeJPEG(t)))
}

func TestDetectFormat_WebP(t *testing.T) {
	riff := append([]byte("RIFF"), []byte{0, 0, 0, 0}...)
	riff = append(riff, []byte("WEBP")...)
	assert.Equal(t, "webp", DetectFormat(riff))
}

func TestDetectFormat_Unknown(t *testing.T) {
	assert.Equal(t, "", DetectFormat([]byte("not an image")))
}

func TestUpload_UnsupportedType(t *testing.T) {
	_, err := Upload(encodePNG(t), "image/gif")
	assertKind(t, err, apperr.InvalidInput)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "unsupported_type", appErr.Msg)
}

func TestUpload_TooLarge(t *testing.T) {
	data := append(encodePNG(t), make([]byte, MaxUploadBytes)...)
	_, err := Upload(data, "image/png")
	assertKind(t, err, apperr.InvalidInput)
}

func TestUpload_ContentMismatch(t *testing.T) {
	_, err := Upload(encodeJPEG(t), "image/png")
	assertKind(t, err, apperr.InvalidInput)
}

func TestUpload_Valid(t *testing.T) {
	ext, err := Upload(encodePNG(t), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "png", ext)
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, kind))
}
