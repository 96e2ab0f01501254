// Package auth verifies the bearer tokens the Ingest Gateway requires on
// every request (spec §6): self-contained HS256 verification against a
// shared secret, since no external identity provider is in scope and no
// session-provider SDK is otherwise warranted here.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the minimal set this system requires of a bearer token: a
// subject identifying the owning user (spec §3's owner_id) and the
// standard expiry/issued-at pair.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier checks bearer tokens against a single HMAC secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyToken parses and validates tokenStr, returning the owner_id
// carried in its subject claim.
func (v *Verifier) VerifyToken(tokenStr string) (ownerID string, err error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil {
		return "", fmt.Errorf("verify bearer token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid bearer token claims")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("bearer token missing sub claim")
	}
	return claims.Subject, nil
}

// IssueToken is a test/dev helper: it mints a token for ownerID signed
// with the same secret the Verifier checks against. Only the package
// tests call it; the request path never does.
func (v *Verifier) IssueToken(ownerID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
