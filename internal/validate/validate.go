// Package validate checks uploaded bytes against the Ingest Gateway's
// declared-MIME and magic-byte contract (spec §4.1): an exact
// three-format allowlist (PNG, JPEG, WebP) enforced by magic bytes,
// not just the declared Content-Type.
package validate

import (
	"bytes"
	"fmt"

	"github.com/lore-anchor/protect/internal/apperr"
)

// MaxUploadBytes is the hard ceiling on upload size (spec §4.1: 20 MiB).
const MaxUploadBytes = 20 * 1024 * 1024

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
var jpegSignature = []byte{0xFF, 0xD8, 0xFF}

// AllowedMIMETypes is the declared_mime allowlist from spec §4.1.
var AllowedMIMETypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// DetectFormat inspects magic bytes and returns the format name that
// matches, or "" if none of the three allowed formats match.
func DetectFormat(data []byte) string {
	if bytes.HasPrefix(data, pngSignature) {
		return "png"
	}
	if bytes.HasPrefix(data, jpegSignature) {
		return "jpg"
	}
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "webp"
	}
	return ""
}

// Upload validates declared_mime against the allowlist, size against
// MaxUploadBytes, and the file's magic bytes against declared_mime
// (spec §4.1's UnsupportedType, TooLarge, ContentMismatch failures).
// It returns the file extension to use for the Object Store key.
func Upload(data []byte, declaredMIME string) (ext string, err error) {
	ext, allowed := AllowedMIMETypes[declaredMIME]
	if !allowed {
		return "", apperr.Wrap(apperr.InvalidInput, "unsupported_type", fmt.Errorf("declared_mime %q not in allowlist", declaredMIME))
	}

	if len(data) > MaxUploadBytes {
		return "", apperr.New(apperr.InvalidInput, "too_large")
	}

	detected := DetectFormat(data)
	if detected != ext {
		return "", apperr.New(apperr.InvalidInput, "content_mismatch")
	}

	return ext, nil
}
