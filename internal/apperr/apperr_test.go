package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FormatsWithoutStage(t *testing.T) {
	err := New(NotFound, "image not found")
	assert.Equal(t, "not_found: image not found", err.Error())
}

func TestStage_FormatsWithStageName(t *testing.T) {
	cause := errors.New("decode failed")
	err := Stage("watermark_embed", cause)
	assert.Equal(t, "pipeline_stage_failure: stage watermark_embed: decode failed", err.Error())
	assert.Equal(t, cause, err.Cause)
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(DependencyUnavailable, "redis unreachable", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestIs_MatchesDirectKind(t *testing.T) {
	err := New(Conflict, "invalid_transition")
	assert.True(t, Is(err, Conflict))
	assert.False(t, Is(err, NotFound))
}

func TestIs_UnwrapsWrappedError(t *testing.T) {
	inner := New(QuotaExceeded, "monthly cap reached")
	wrapped := fmt.Errorf("upload handler: %w", inner)
	assert.True(t, Is(wrapped, QuotaExceeded))
}

func TestIs_FalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), Internal))
}

func TestIs_FalseForNilError(t *testing.T) {
	assert.False(t, Is(nil, Internal))
}
