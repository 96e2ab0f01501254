// Package catalog is the durable record of every image and its
// lifecycle, plus a per-attempt task record for audit (spec §3, §4.2).
package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of an Image row.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDeleted    Status = "deleted"
)

// legalPredecessors lists, for each target status, the statuses a row
// must currently hold for the transition to be legal (§3's directed
// graph: pending → processing → {completed | failed}; failed → pending;
// any terminal state → deleted).
var legalPredecessors = map[Status][]Status{
	StatusProcessing: {StatusPending},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusProcessing},
	StatusPending:    {StatusFailed},
	StatusDeleted:    {StatusCompleted, StatusFailed},
}

// Assertion is one "not allowed" clause in a provenance manifest.
type Assertion string

const (
	AssertionNoGenerativeTraining Assertion = "ai_generative_training"
	AssertionNoInference          Assertion = "ai_inference"
	AssertionNoTraining           Assertion = "ai_training"
	AssertionNoDataMining         Assertion = "data_mining"
)

// ProvenanceManifest is the opaque structured blob described in §3,
// stored as JSON in the `provenance_manifest` column.
type ProvenanceManifest struct {
	Assertions []Assertion `json:"assertions"`
	SignedAt   time.Time   `json:"signed_at"`
	Signature  string      `json:"signature"`
	KeyID      string      `json:"key_id"`
}

// Value implements driver.Valuer so ProvenanceManifest can be written
// directly through sqlx as a jsonb column.
func (m ProvenanceManifest) Value() (driver.Value, error) {
	if len(m.Assertions) == 0 && m.Signature == "" {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for reading the jsonb column back.
func (m *ProvenanceManifest) Scan(src interface{}) error {
	if src == nil {
		*m = ProvenanceManifest{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported scan type for ProvenanceManifest: %T", src)
	}
	if len(raw) == 0 {
		*m = ProvenanceManifest{}
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Image is one row per user-uploaded file (spec §3).
type Image struct {
	ImageID             string             `db:"image_id" json:"image_id"`
	OwnerID             string             `db:"owner_id" json:"owner_id"`
	OriginalKey         string             `db:"original_key" json:"-"`
	ProtectedKey        *string            `db:"protected_key" json:"-"`
	WatermarkID         *string            `db:"watermark_id" json:"watermark_id,omitempty"`
	Status              Status             `db:"status" json:"status"`
	ProvenanceManifest  ProvenanceManifest `db:"provenance_manifest" json:"provenance_manifest,omitempty"`
	DownloadCount       int64              `db:"download_count" json:"download_count"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`
}

// Task is one row per worker attempt on an image (spec §3). Mutated at
// most twice: once on start, once on terminate. Never deleted.
type Task struct {
	TaskID      string     `db:"task_id" json:"task_id"`
	ImageID     string     `db:"image_id" json:"image_id"`
	WorkerID    string     `db:"worker_id" json:"worker_id"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	ErrorLog    *string    `db:"error_log" json:"error_log,omitempty"`
}

// MaxErrorLogBytes bounds the truncated error log written to a Task or
// Image row, per spec §7 ("typically 4 KiB").
const MaxErrorLogBytes = 4096

// TruncateErrorLog bounds msg to MaxErrorLogBytes, appending a marker
// when truncation occurred.
func TruncateErrorLog(msg string) string {
	if len(msg) <= MaxErrorLogBytes {
		return msg
	}
	const marker = "...(truncated)"
	cut := MaxErrorLogBytes - len(marker)
	if cut < 0 {
		cut = 0
	}
	return msg[:cut] + marker
}
