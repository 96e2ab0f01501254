// Package watermark implements the invisible 128-bit spread-spectrum
// watermark described in spec §4.4: a deterministic, model-free Haar
// DWT scheme (no pretrained weights, robust against mild perturbation).
package watermark

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	mathrand "math/rand"
)

// BitLength is the watermark identifier length in bits (spec §4.4,
// §8 "round-trip laws").
const BitLength = 128

// MinVerifyAccuracy is the minimum Hamming accuracy for a watermark to
// count as "surviving" (spec §4.4 stage 4, §8 invariant 6).
const MinVerifyAccuracy = 0.75

// MinRoundTripAccuracy is the accuracy an unperturbed embed/extract
// round trip must reach (spec §8 round-trip law).
const MinRoundTripAccuracy = 0.95

// chipStrength scales each ±1 chip before it's added to the sub-band
// coefficient. Each chip moves every pixel channel by at most ±2, which
// keeps embedding above PSNR 40 dB (about 42 dB) on 8-bit imagery
// (spec §4.4).
const chipStrength = 2.0

// NewID mints a fresh random 128-bit identifier, hex-encoded to 32
// characters, as required at the start of every worker attempt
// (spec §3: "assigned at worker start, stable across retries").
func NewID() (string, error) {
	buf := make([]byte, BitLength/8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate watermark id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Decode parses a 32-hex-char watermark ID into its 128 bits (MSB
// first within each byte), used by both Embed and Verify.
func Decode(id string) ([]bool, error) {
	raw, err := hex.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("decode watermark id %q: %w", id, err)
	}
	if len(raw)*8 != BitLength {
		return nil, fmt.Errorf("watermark id %q is not %d bits", id, BitLength)
	}
	bits := make([]bool, BitLength)
	for i, b := range raw {
		for j := 0; j < 8; j++ {
			bits[i*8+j] = (b>>(7-j))&1 == 1
		}
	}
	return bits, nil
}

// Encode packs 128 bits back into the canonical 32-hex-char form.
// decode(encode(id)) == id for all 128-bit identifiers (spec §8).
func Encode(bits []bool) (string, error) {
	if len(bits) != BitLength {
		return "", fmt.Errorf("expected %d bits, got %d", BitLength, len(bits))
	}
	raw := make([]byte, BitLength/8)
	for i, bit := range bits {
		if bit {
			raw[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return hex.EncodeToString(raw), nil
}

// Embed spread-spectrum-encodes watermarkID into the high-frequency
// (HL) sub-band of a single-level Haar DWT of each colour channel, and
// reassembles an RGB image of identical dimensions (spec §4.4 stage 2:
// "output resolution differs from input" is a hard failure the caller
// must check for).
func Embed(img image.Image, watermarkID string) (*image.NRGBA, error) {
	bits, err := Decode(watermarkID)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	src := toNRGBA(img)
	out := image.NewNRGBA(bounds)
	copy(out.Pix, src.Pix)

	for _, channel := range []int{0, 1, 2} {
		plane := extractChannel(src, channel)
		ll, lh, hl, hh := haarForward(plane)
		embedBitsInSubband(hl, bits)
		watermarked := haarInverse(ll, lh, hl, hh, plane.w, plane.h)
		writeChannel(out, channel, watermarked)
	}

	return out, nil
}

// Verify extracts a candidate watermark from img and compares it
// against watermarkID, returning whether it counts as surviving
// (accuracy >= MinVerifyAccuracy) and the measured accuracy.
func Verify(img image.Image, watermarkID string) (match bool, accuracy float64, err error) {
	expected, err := Decode(watermarkID)
	if err != nil {
		return false, 0, err
	}

	src := toNRGBA(img)
	// Average extracted bit confidence across channels for robustness.
	scores := make([]float64, BitLength)
	for _, channel := range []int{0, 1, 2} {
		plane := extractChannel(src, channel)
		_, _, hl, _ := haarForward(plane)
		correlations := extractCorrelations(hl)
		for i, c := range correlations {
			scores[i] += c
		}
	}

	correct := 0
	for i, exp := range expected {
		bit := scores[i] > 0
		if bit == exp {
			correct++
		}
	}
	accuracy = float64(correct) / float64(BitLength)
	return accuracy >= MinVerifyAccuracy, accuracy, nil
}

type plane struct {
	w, h int
	data []float64
}

func extractChannel(img *image.NRGBA, channel int) plane {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			data[y*w+x] = float64(img.Pix[i+channel])
		}
	}
	return plane{w: w, h: h, data: data}
}

func writeChannel(img *image.NRGBA, channel int, p plane) {
	bounds := img.Bounds()
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			i := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			v := p.data[y*p.w+x]
			img.Pix[i+channel] = clampByte(v)
		}
	}
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

// haarForward runs a single-level 2D Haar wavelet transform, returning
// the four quarter-sized sub-bands (LL, LH, HL, HH). Odd dimensions are
// handled by duplicating the last row/column, kept invisible to the
// caller since haarInverse crops back to the original size.
func haarForward(p plane) (ll, lh, hl, hh plane) {
	hw, hh2 := (p.w+1)/2, (p.h+1)/2
	ll = plane{w: hw, h: hh2, data: make([]float64, hw*hh2)}
	lh = plane{w: hw, h: hh2, data: make([]float64, hw*hh2)}
	hl = plane{w: hw, h: hh2, data: make([]float64, hw*hh2)}
	hh = plane{w: hw, h: hh2, data: make([]float64, hw*hh2)}

	get := func(x, y int) float64 {
		if x >= p.w {
			x = p.w - 1
		}
		if y >= p.h {
			y = p.h - 1
		}
		return p.data[y*p.w+x]
	}

	for y := 0; y < hh2; y++ {
		for x := 0; x < hw; x++ {
			a := get(2*x, 2*y)
			b := get(2*x+1, 2*y)
			c := get(2*x, 2*y+1)
			d := get(2*x+1, 2*y+1)
			ll.data[y*hw+x] = (a + b + c + d) / 4
			lh.data[y*hw+x] = (a + b - c - d) / 4
			hl.data[y*hw+x] = (a - b + c - d) / 4
			hh.data[y*hw+x] = (a - b - c + d) / 4
		}
	}
	return ll, lh, hl, hh
}

// haarInverse reconstructs a plane of size (origW, origH) from the four
// Haar sub-bands.
func haarInverse(ll, lh, hl, hh plane, origW, origH int) plane {
	out := plane{w: origW, h: origH, data: make([]float64, origW*origH)}
	hw, hh2 := ll.w, ll.h

	for y := 0; y < hh2; y++ {
		for x := 0; x < hw; x++ {
			l := ll.data[y*hw+x]
			lH := lh.data[y*hw+x]
			hL := hl.data[y*hw+x]
			hH := hh.data[y*hw+x]

			a := l + lH + hL + hH
			b := l + lH - hL - hH
			c := l - lH + hL - hH
			d := l - lH - hL + hH

			setIfInBounds(&out, 2*x, 2*y, a)
			setIfInBounds(&out, 2*x+1, 2*y, b)
			setIfInBounds(&out, 2*x, 2*y+1, c)
			setIfInBounds(&out, 2*x+1, 2*y+1, d)
		}
	}
	return out
}

func setIfInBounds(p *plane, x, y int, v float64) {
	if x < p.w && y < p.h {
		p.data[y*p.w+x] = v
	}
}

// chipSequence deterministically derives a ±1 pseudo-random sequence
// of the given length for bit index `bit`, seeded from the bit index
// itself so embed and extract agree without sharing state.
func chipSequence(bit, length int) []float64 {
	seed := int64(bit)*2654435761 + 1
	rng := mathrand.New(mathrand.NewSource(seed))
	seq := make([]float64, length)
	for i := range seq {
		if rng.Intn(2) == 0 {
			seq[i] = -1
		} else {
			seq[i] = 1
		}
	}
	return seq
}

// embedBitsInSubband adds each bit's chip sequence, polarity-scaled by
// the bit value, into successive disjoint slices of the HL sub-band.
func embedBitsInSubband(hl plane, bits []bool) {
	capacity := len(hl.data)
	chipLen := capacity / BitLength
	if chipLen == 0 {
		chipLen = 1
	}

	for bitIdx, bit := range bits {
		start := bitIdx * chipLen
		if start >= capacity {
			break
		}
		end := start + chipLen
		if end > capacity {
			end = capacity
		}
		chips := chipSequence(bitIdx, end-start)
		polarity := -1.0
		if bit {
			polarity = 1.0
		}
		for i := start; i < end; i++ {
			hl.data[i] += polarity * chipStrength * chips[i-start]
		}
	}
}

// extractCorrelations correlates each bit's known chip sequence
// against the candidate HL sub-band; a positive correlation decodes to
// bit 1 (spec §4.4: "a positive correlation decodes to bit 1").
func extractCorrelations(hl plane) []float64 {
	capacity := len(hl.data)
	chipLen := capacity / BitLength
	if chipLen == 0 {
		chipLen = 1
	}

	scores := make([]float64, BitLength)
	for bitIdx := range scores {
		start := bitIdx * chipLen
		if start >= capacity {
			continue
		}
		end := start + chipLen
		if end > capacity {
			end = capacity
		}
		chips := chipSequence(bitIdx, end-start)
		var sum float64
		for i := start; i < end; i++ {
			sum += hl.data[i] * chips[i-start]
		}
		scores[bitIdx] = sum
	}
	return scores
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
