package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lore-anchor/protect/internal/apperr"
	"github.com/lore-anchor/protect/internal/perturb"
	"github.com/lore-anchor/protect/internal/provenance"
	"github.com/lore-anchor/protect/internal/storage"
)

func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8((x * 7) % 256),
				G: uint8((y * 11) % 256),
				B: uint8((x + y*3) % 256),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestConfig(t *testing.T, store storage.ObjectStore) Config {
	t.Helper()
	signer, err := provenance.NewDevSigner("dev-key")
	require.NoError(t, err)
	return Config{
		Store:  store,
		Signer: signer,
		PerturbConfig: perturb.Config{
			Epsilon: 8,
			Steps:   3,
			Variant: perturb.VariantFrequency,
		},
	}
}

func TestRun_FullPipelineSucceedsAgainstMemStore(t *testing.T) {
	store := storage.NewMemStore()
	ctx := context.Background()
	require.NoError(t, store.PutObject(ctx, "raw/owner/img-1.png", gradientPNG(t, 128, 128), "image/png"))

	cfg := newTestConfig(t, store)
	protectedKey, wmID, manifest, err := Run(ctx, cfg, "img-1", "raw/owner/img-1.png")
	require.NoError(t, err)

	assert.Equal(t, "protected/img-1.png", protectedKey)
	assert.Len(t, wmID, 32)
	assert.Len(t, manifest.Assertions, 4)
	assert.NotEmpty(t, manifest.Signature)

	protectedBytes, err := store.GetObject(ctx, protectedKey)
	require.NoError(t, err)
	assert.NotEmpty(t, protectedBytes)
}

func TestRun_MissingOriginalKeyFailsAtDownloadStage(t *testing.T) {
	store := storage.NewMemStore()
	cfg := newTestConfig(t, store)

	_, _, _, err := Run(context.Background(), cfg, "img-1", "raw/owner/missing.png")
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.PipelineStageFailure, appErr.Kind)
	assert.Equal(t, StageDownload, appErr.Stage)
}

func TestRun_CorruptImageBytesFailAtDownloadStage(t *testing.T) {
	store := storage.NewMemStore()
	ctx := context.Background()
	require.NoError(t, store.PutObject(ctx, "raw/owner/bad.png", []byte("not an image"), "image/png"))

	cfg := newTestConfig(t, store)
	_, _, _, err := Run(ctx, cfg, "img-1", "raw/owner/bad.png")
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, StageDownload, appErr.Stage)
}
