package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SignVerifyRoundTrip(t *testing.T) {
	signer, err := NewDevSigner("dev-key")
	require.NoError(t, err)

	manifest, err := signer.Sign("img-1")
	require.NoError(t, err)
	assert.Equal(t, "dev-key", manifest.KeyID)
	assert.Len(t, manifest.Assertions, 4)
	assert.NotEmpty(t, manifest.Signature)

	imageID, err := signer.Verify(manifest.Signature)
	require.NoError(t, err)
	assert.Equal(t, "img-1", imageID)
}

func TestSigner_VerifyRejectsTamperedSignature(t *testing.T) {
	signer, err := NewDevSigner("dev-key")
	require.NoError(t, err)

	manifest, err := signer.Sign("img-1")
	require.NoError(t, err)

	tampered := manifest.Signature[:len(manifest.Signature)-4] + "abcd"
	_, err = signer.Verify(tampered)
	assert.Error(t, err)
}

func TestSigner_VerifyRejectsCrossKeySignature(t *testing.T) {
	signerA, err := NewDevSigner("key-a")
	require.NoError(t, err)
	signerB, err := NewDevSigner("key-b")
	require.NoError(t, err)

	manifest, err := signerA.Sign("img-1")
	require.NoError(t, err)

	_, err = signerB.Verify(manifest.Signature)
	assert.Error(t, err)
}

func TestNewSigner_RejectsInvalidPEM(t *testing.T) {
	_, err := NewSigner("not a pem key", "key-id")
	assert.Error(t, err)
}
