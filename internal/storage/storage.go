// Package storage is the Object Store collaborator: content-addressed
// blob I/O for originals and protected artifacts (spec §3, §6). Kept
// behind an interface so the gateway and worker never depend on a
// specific storage vendor.
package storage

import "context"

// ObjectStore is the contract the Ingest Gateway and Protection Worker
// use for blob I/O. Implementations are S3-compatible in practice, but
// nothing above this interface assumes so.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	MoveObject(ctx context.Context, srcKey, dstKey string) error

	// PresignGet returns a time-limited URL to read the object,
	// used by Ingest Gateway's get(image_id) to rewrite protected_key
	// into a one-hour pre-signed URL (spec §4.1).
	PresignGet(ctx context.Context, key string) (string, error)
}
