// Package provenance signs the protected artifact with a manifest
// declaring it not licensed for AI training (spec §4.4 stage 5): four
// "notAllowed" assertions under c2pa.training-mining, signed with
// golang-jwt/jwt/v5's ES256 support. No Go binding for c2pa-python is
// available, so an ES256-signed JWT manifest stands in for a C2PA
// container.
package provenance

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	cryptorand "crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lore-anchor/protect/internal/catalog"
)

// manifestClaims is the signed body: the four assertions plus standard
// registered claims (issued-at, key id via header).
type manifestClaims struct {
	Assertions []catalog.Assertion `json:"assertions"`
	jwt.RegisteredClaims
}

// Signer holds the ES256 signing key used for every protected image.
type Signer struct {
	key   *ecdsa.PrivateKey
	keyID string
}

// NewSigner parses a PEM-encoded EC private key into a Signer.
func NewSigner(keyPEM, keyID string) (*Signer, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(keyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return &Signer{key: key, keyID: keyID}, nil
}

// assertions is the fixed assertion set every signed manifest carries
// (spec §4.4: "not-allowed for generative training, inference,
// training, data mining").
var assertions = []catalog.Assertion{
	catalog.AssertionNoGenerativeTraining,
	catalog.AssertionNoInference,
	catalog.AssertionNoTraining,
	catalog.AssertionNoDataMining,
}

// Sign produces a ProvenanceManifest for the given image ID, signed at
// the current time. The signature is stored on the manifest rather
// than embedded in the image bytes: pipeline.Run PNG-encodes the
// perturbed image as-is, and the manifest is written to the Catalog
// row alongside protected_key.
func (s *Signer) Sign(imageID string) (catalog.ProvenanceManifest, error) {
	now := time.Now().UTC()
	claims := manifestClaims{
		Assertions: assertions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   imageID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return catalog.ProvenanceManifest{}, fmt.Errorf("sign provenance manifest: %w", err)
	}

	return catalog.ProvenanceManifest{
		Assertions: assertions,
		SignedAt:   now,
		Signature:  signed,
		KeyID:      s.keyID,
	}, nil
}

// Verify parses and validates a previously issued manifest signature
// against the signer's public key, returning the subject (image ID)
// it was issued for. Used by tests and operator tooling, not by the
// hot path.
func (s *Signer) Verify(token string) (imageID string, err error) {
	parsed, err := jwt.ParseWithClaims(token, &manifestClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return &s.key.PublicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("verify provenance manifest: %w", err)
	}
	claims, ok := parsed.Claims.(*manifestClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid provenance manifest claims")
	}
	return claims.Subject, nil
}

// NewDevSigner generates a throwaway ES256 key at process start for use
// only when WORKER_DEV_MODE=true and no production SIGNING_KEY is
// configured (spec §9 Open Question, resolved to refuse this outside
// dev mode: config.LoadWorker already enforces that). This key is never
// persisted to disk; a fresh one is minted on every process start.
func NewDevSigner(keyID string) (*Signer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), cryptorand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate dev signing key: %w", err)
	}
	return &Signer{key: key, keyID: keyID}, nil
}
