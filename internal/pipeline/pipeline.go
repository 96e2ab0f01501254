// Package pipeline orchestrates the Protection Worker's five
// (download plus five stages, six total) image transformation stages
// (spec §4.4's stage table), translating each stage's failure into a
// PipelineStageFailure carrying its stage name (spec §9 "error-as-data").
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"

	"github.com/lore-anchor/protect/internal/apperr"
	"github.com/lore-anchor/protect/internal/catalog"
	"github.com/lore-anchor/protect/internal/perturb"
	"github.com/lore-anchor/protect/internal/provenance"
	"github.com/lore-anchor/protect/internal/storage"
	"github.com/lore-anchor/protect/internal/watermark"
)

// Stage names used in error logs (spec §4.4: "each has a distinct
// stage name used in error logs").
const (
	StageDownload        = "download"
	StageWatermarkEmbed  = "watermark_embed"
	StagePerturb         = "perturb"
	StageWatermarkVerify = "watermark_verify"
	StageProvenanceSign  = "provenance_sign"
	StageUpload          = "upload"
)

// Config bundles the collaborators and tunables a pipeline run needs.
type Config struct {
	Store         storage.ObjectStore
	Signer        *provenance.Signer
	PerturbConfig perturb.Config
}

// Run executes stages 1-6 against the image at originalKey, returning
// the protected key, the fresh watermark ID minted for this attempt,
// and the signed manifest on success, or a *apperr.Error carrying the
// failing stage's name on failure (spec §4.4, §9).
func Run(ctx context.Context, cfg Config, imageID, originalKey string) (protectedKey, watermarkID string, manifest catalog.ProvenanceManifest, err error) {
	var empty catalog.ProvenanceManifest

	// Stage 1: download.
	raw, err := cfg.Store.GetObject(ctx, originalKey)
	if err != nil {
		return "", "", empty, apperr.Stage(StageDownload, err)
	}
	decodedRaw, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", "", empty, apperr.Stage(StageDownload, fmt.Errorf("decode rgb: %w", err))
	}
	// Normalize to a canonical *image.NRGBA so every downstream stage
	// works from the same concrete type regardless of source format.
	decoded := imaging.Clone(decodedRaw)

	// Freshly minted 128-bit watermark ID, stable across retries of
	// this same attempt (spec §3).
	wmID, err := watermark.NewID()
	if err != nil {
		return "", "", empty, apperr.Stage(StageWatermarkEmbed, err)
	}

	// Stage 2: watermark_embed.
	watermarked, err := watermark.Embed(decoded, wmID)
	if err != nil {
		return "", "", empty, apperr.Stage(StageWatermarkEmbed, err)
	}
	if watermarked.Bounds().Dx() != decoded.Bounds().Dx() || watermarked.Bounds().Dy() != decoded.Bounds().Dy() {
		return "", "", empty, apperr.Stage(StageWatermarkEmbed, fmt.Errorf("output resolution %dx%d differs from input %dx%d",
			watermarked.Bounds().Dx(), watermarked.Bounds().Dy(), decoded.Bounds().Dx(), decoded.Bounds().Dy()))
	}

	// Stage 3: perturb.
	perturbed, err := perturb.Apply(watermarked, cfg.PerturbConfig)
	if err != nil {
		return "", "", empty, apperr.Stage(StagePerturb, err)
	}
	if diff := perturb.MaxChannelDiff(perturbed, watermarked); diff > cfg.PerturbConfig.Epsilon {
		return "", "", empty, apperr.Stage(StagePerturb, fmt.Errorf("bounded-magnitude invariant violated: max_channel_diff=%d > epsilon=%d", diff, cfg.PerturbConfig.Epsilon))
	}

	// Stage 4: watermark_verify.
	match, accuracy, err := watermark.Verify(perturbed, wmID)
	if err != nil {
		return "", "", empty, apperr.Stage(StageWatermarkVerify, err)
	}
	if !match {
		return "", "", empty, apperr.Stage(StageWatermarkVerify, fmt.Errorf("watermark did not survive perturbation: accuracy=%.3f < %.2f", accuracy, watermark.MinVerifyAccuracy))
	}

	// Stage 5: provenance_sign.
	signedManifest, err := cfg.Signer.Sign(imageID)
	if err != nil {
		return "", "", empty, apperr.Stage(StageProvenanceSign, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, perturbed); err != nil {
		return "", "", empty, apperr.Stage(StageProvenanceSign, fmt.Errorf("encode signed bytes: %w", err))
	}

	// Stage 6: upload.
	destKey := fmt.Sprintf("protected/%s.png", imageID)
	if err := cfg.Store.PutObject(ctx, destKey, buf.Bytes(), "image/png"); err != nil {
		return "", "", empty, apperr.Stage(StageUpload, err)
	}

	return destKey, wmID, signedManifest, nil
}
