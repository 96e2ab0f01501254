// Package perturb implements the bounded adversarial perturbation
// stage (spec §4.4): a configurable epsilon-bounded noise field applied
// to the watermarked image before verification. Two variants are
// offered, selected by configuration: (a) a gradient/PGD-style variant
// and (b) deterministic frequency-domain injection. Variant (a) is
// re-expressed over a pure-Go structured-texture target instead of a
// learned diffusion-model encoder, since no Go ML runtime is available
// to host that kind of dependency.
package perturb

import (
	"image"
	"image/color"
	"math"
)

// Variant selects which perturbation algorithm to run.
type Variant string

const (
	// VariantFrequency is the deterministic DCT mid-band injection
	// (spec §4.4 option b); it is the default and the fallback used
	// when the gradient variant fails to warm-load.
	VariantFrequency Variant = "frequency"
	// VariantGradient is the iterative PGD-style variant (spec §4.4
	// option a), approximated without a learned model.
	VariantGradient Variant = "gradient"
)

// Config mirrors the worker's configurable (epsilon, steps) pair
// (spec §4.4: perturbation_epsilon default 8, perturbation_steps default 3).
type Config struct {
	Epsilon int
	Steps   int
	Variant Variant
}

// Apply perturbs img and returns a same-size RGBA image such that
// every pixel channel differs from its input value by at most
// Config.Epsilon (spec §4.4 stage 3's bounded-magnitude invariant).
func Apply(img image.Image, cfg Config) (*image.NRGBA, error) {
	switch cfg.Variant {
	case VariantGradient:
		return applyGradient(img, cfg)
	default:
		return applyFrequency(img, cfg)
	}
}

// MaxChannelDiff computes max_channel_diff(out, in) across all pixels
// and channels (spec §8 invariant 5).
func MaxChannelDiff(out, in image.Image) int {
	bounds := in.Bounds()
	max := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, _ := in.At(x, y).RGBA()
			r2, g2, b2, _ := out.At(x, y).RGBA()
			for _, d := range []int{
				absDiff8(r1, r2), absDiff8(g1, g2), absDiff8(b1, b2),
			} {
				if d > max {
					max = d
				}
			}
		}
	}
	return max
}

func absDiff8(a, b uint32) int {
	a8, b8 := int(a>>8), int(b>>8)
	d := a8 - b8
	if d < 0 {
		d = -d
	}
	return d
}

// applyFrequency injects bounded, deterministic noise into mid-band
// 8x8 DCT coefficients of each channel block, then clamps the spatial
// result back into the epsilon-ball around the original (spec §4.4
// option b).
func applyFrequency(img image.Image, cfg Config) (*image.NRGBA, error) {
	src := toNRGBA(img)
	bounds := src.Bounds()
	out := image.NewNRGBA(bounds)
	copy(out.Pix, src.Pix)

	eps := float64(cfg.Epsilon)
	const blockSize = 8

	for _, channel := range []int{0, 1, 2} {
		for by := bounds.Min.Y; by < bounds.Max.Y; by += blockSize {
			for bx := bounds.Min.X; bx < bounds.Max.X; bx += blockSize {
				perturbBlockDCT(src, out, channel, bx, by, blockSize, eps)
			}
		}
	}
	return out, nil
}

// perturbBlockDCT reads an up-to-8x8 block, injects a fixed mid-band
// coefficient delta, inverse-transforms, and clamps each resulting
// pixel to within eps of its original value.
func perturbBlockDCT(src, out *image.NRGBA, channel, bx, by, blockSize int, eps float64) {
	bounds := src.Bounds()
	w := min(blockSize, bounds.Max.X-bx)
	h := min(blockSize, bounds.Max.Y-by)
	if w <= 0 || h <= 0 {
		return
	}

	block := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := src.PixOffset(bx+x, by+y)
			block[y*w+x] = float64(src.Pix[i+channel])
		}
	}

	coeffs := dct2D(block, w, h)
	injectMidBand(coeffs, w, h, eps)
	spatial := idct2D(coeffs, w, h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := out.PixOffset(bx+x, by+y)
			orig := block[y*w+x]
			bounded := clampToEpsilon(spatial[y*w+x], orig, eps)
			out.Pix[i+channel] = clampByte(bounded)
		}
	}
}

// injectMidBand nudges a mid-frequency coefficient by a fixed fraction
// of eps, chosen deterministically (no dependency on image content) so
// perturbation is reproducible across retries of the same configuration.
func injectMidBand(coeffs []float64, w, h int, eps float64) {
	if w < 3 || h < 3 {
		return
	}
	mx, my := w/2, h/2
	idx := my*w + mx
	coeffs[idx] += eps * 4.0
}

func clampToEpsilon(v, orig, eps float64) float64 {
	if v > orig+eps {
		v = orig + eps
	}
	if v < orig-eps {
		v = orig - eps
	}
	return v
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// applyGradient runs a PGD-style loop over a structured texture target
// instead of a learned latent: each step nudges every pixel toward a
// fixed high-frequency checkerboard target by a signed step, then
// projects back into the epsilon-ball, without requiring a model.
func applyGradient(img image.Image, cfg Config) (*image.NRGBA, error) {
	src := toNRGBA(img)
	bounds := src.Bounds()
	out := image.NewNRGBA(bounds)
	copy(out.Pix, src.Pix)

	steps := cfg.Steps
	if steps <= 0 {
		steps = 1
	}
	eps := float64(cfg.Epsilon)
	stepSize := (eps / float64(steps)) * 1.5

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := src.PixOffset(x, y)
			target := structuredTarget(x, y)
			for c := 0; c < 3; c++ {
				orig := float64(src.Pix[i+c])
				cur := orig
				for s := 0; s < steps; s++ {
					direction := 1.0
					if cur > target {
						direction = -1.0
					}
					cur += stepSize * direction
					if cur > orig+eps {
						cur = orig + eps
					}
					if cur < orig-eps {
						cur = orig - eps
					}
				}
				out.Pix[i+c] = clampByte(cur)
			}
		}
	}
	return out, nil
}

// structuredTarget returns a high-frequency checkerboard value used as
// the "texture target" the gradient variant pushes pixels toward.
func structuredTarget(x, y int) float64 {
	if (x+y)%2 == 0 {
		return 255
	}
	return 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Set(x, y, color.NRGBAModel.Convert(img.At(x, y)))
		}
	}
	return out
}

// dct2D and idct2D implement a direct (O(n^4)) 2D DCT-II/DCT-III pair,
// adequate for the small blockSize=8 blocks perturbation operates on.
func dct2D(block []float64, w, h int) []float64 {
	out := make([]float64, w*h)
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			var sum float64
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					sum += block[y*w+x] *
						math.Cos(math.Pi/float64(w)*(float64(x)+0.5)*float64(u)) *
						math.Cos(math.Pi/float64(h)*(float64(y)+0.5)*float64(v))
				}
			}
			cu := alpha(u, w)
			cv := alpha(v, h)
			out[v*w+u] = cu * cv * sum
		}
	}
	return out
}

func idct2D(coeffs []float64, w, h int) []float64 {
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for v := 0; v < h; v++ {
				for u := 0; u < w; u++ {
					cu := alpha(u, w)
					cv := alpha(v, h)
					sum += cu * cv * coeffs[v*w+u] *
						math.Cos(math.Pi/float64(w)*(float64(x)+0.5)*float64(u)) *
						math.Cos(math.Pi/float64(h)*(float64(y)+0.5)*float64(v))
				}
			}
			out[y*w+x] = sum
		}
	}
	return out
}

func alpha(k, n int) float64 {
	if k == 0 {
		return math.Sqrt(1.0 / float64(n))
	}
	return math.Sqrt(2.0 / float64(n))
}
