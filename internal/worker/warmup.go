package worker

import (
	"image"
	"log/slog"

	"github.com/lore-anchor/protect/internal/perturb"
)

// WarmUp implements spec §4.4's startup warm-up steps (b) and (c):
// compute-device availability is always false in this pure-Go worker
// (logged for parity with the original CUDA-availability log line), and
// the gradient perturbation variant is warm-loaded against a throwaway
// image, falling back to the deterministic frequency-domain variant and
// logging the degradation if it fails.
func WarmUp(requested perturb.Config) perturb.Config {
	slog.Info("compute device availability", "gpu_available", false)

	if requested.Variant != perturb.VariantGradient {
		return requested
	}

	probe := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	if _, err := perturb.Apply(probe, requested); err != nil {
		slog.Warn("gradient perturbation variant failed to warm-load, falling back to frequency-domain",
			"error", err)
		fallback := requested
		fallback.Variant = perturb.VariantFrequency
		return fallback
	}

	slog.Info("gradient perturbation variant warm-loaded")
	return requested
}
