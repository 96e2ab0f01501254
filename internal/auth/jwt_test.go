package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")
	token, err := v.IssueToken("owner-123", time.Hour)
	require.NoError(t, err)

	ownerID, err := v.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-123", ownerID)
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	issuer := NewVerifier("secret-a")
	token, err := issuer.IssueToken("owner-123", time.Hour)
	require.NoError(t, err)

	verifier := NewVerifier("secret-b")
	_, err = verifier.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifier_RejectsExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret")
	token, err := v.IssueToken("owner-123", -time.Minute)
	require.NoError(t, err)

	_, err = v.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifier_RejectsGarbageToken(t *testing.T) {
	v := NewVerifier("test-secret")
	_, err := v.VerifyToken("not.a.jwt")
	assert.Error(t, err)
}
