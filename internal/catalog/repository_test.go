package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildGuardedUpdate is the heart of the guarded status transition (spec
// §4.2): a conditional UPDATE whose WHERE clause only matches legal
// predecessor statuses, so a zero-row result can be mapped to
// InvalidTransition without a second round trip.
func TestBuildGuardedUpdate_SingleArmTransition(t *testing.T) {
	query, args := buildGuardedUpdate("img-1", StatusProcessing, []Status{StatusPending})

	assert.Contains(t, query, "UPDATE images SET status = $1, updated_at = $2 WHERE image_id = $3 AND status IN ($4)")
	assert.Equal(t, []interface{}{StatusProcessing, args[1], "img-1", StatusPending}, args)
}

func TestBuildGuardedUpdate_MultiArmTransition(t *testing.T) {
	predecessors := []Status{StatusCompleted, StatusFailed, StatusPending, StatusProcessing}
	query, args := buildGuardedUpdate("img-2", StatusDeleted, predecessors)

	assert.Contains(t, query, "IN ($4, $5, $6, $7)")
	assert.Equal(t, StatusDeleted, args[0])
	assert.Equal(t, "img-2", args[2])
	assert.Equal(t, []interface{}{StatusCompleted, StatusFailed, StatusPending, StatusProcessing}, args[3:])
}
