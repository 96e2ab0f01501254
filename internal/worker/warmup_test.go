package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lore-anchor/protect/internal/perturb"
)

func TestWarmUp_PassesThroughNonGradientVariantUnchanged(t *testing.T) {
	cfg := perturb.Config{Epsilon: 8, Steps: 3, Variant: perturb.VariantFrequency}
	got := WarmUp(cfg)
	assert.Equal(t, cfg, got)
}

func TestWarmUp_GradientVariantWarmLoadsSuccessfully(t *testing.T) {
	cfg := perturb.Config{Epsilon: 8, Steps: 3, Variant: perturb.VariantGradient}
	got := WarmUp(cfg)
	assert.Equal(t, perturb.VariantGradient, got.Variant)
}
