package perturb

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8((x * 5) % 256),
				G: uint8((y * 13) % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func TestApply_FrequencyVariantStaysWithinEpsilon(t *testing.T) {
	src := gradientImage(32, 32)
	cfg := Config{Epsilon: 8, Steps: 3, Variant: VariantFrequency}

	out, err := Apply(src, cfg)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.LessOrEqual(t, MaxChannelDiff(out, src), cfg.Epsilon)
}

func TestApply_GradientVariantStaysWithinEpsilon(t *testing.T) {
	src := gradientImage(32, 32)
	cfg := Config{Epsilon: 8, Steps: 3, Variant: VariantGradient}

	out, err := Apply(src, cfg)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.LessOrEqual(t, MaxChannelDiff(out, src), cfg.Epsilon)
}

func TestApply_DefaultsToFrequencyVariant(t *testing.T) {
	src := gradientImage(16, 16)
	out, err := Apply(src, Config{Epsilon: 8, Steps: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, MaxChannelDiff(out, src), 8)
}

func TestApply_ProducesNonZeroPerturbation(t *testing.T) {
	src := gradientImage(32, 32)
	out, err := Apply(src, Config{Epsilon: 8, Steps: 3, Variant: VariantFrequency})
	require.NoError(t, err)
	assert.Greater(t, MaxChannelDiff(out, src), 0)
}

func TestMaxChannelDiff_ZeroForIdenticalImages(t *testing.T) {
	src := gradientImage(16, 16)
	assert.Equal(t, 0, MaxChannelDiff(src, src))
}
