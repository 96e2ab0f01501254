package catalog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateErrorLog_UnderLimit(t *testing.T) {
	msg := "stage download failed: connection refused"
	assert.Equal(t, msg, TruncateErrorLog(msg))
}

func TestTruncateErrorLog_OverLimit(t *testing.T) {
	msg := strings.Repeat("x", MaxErrorLogBytes+500)
	truncated := TruncateErrorLog(msg)
	assert.LessOrEqual(t, len(truncated), MaxErrorLogBytes)
	assert.True(t, strings.HasSuffix(truncated, "...(truncated)"))
}

func TestProvenanceManifest_ValueScanRoundTrip(t *testing.T) {
	m := ProvenanceManifest{
		Assertions: []Assertion{AssertionNoGenerativeTraining, AssertionNoInference},
		SignedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Signature:  "signed-token",
		KeyID:      "primary",
	}

	raw, err := m.Value()
	require.NoError(t, err)
	require.NotNil(t, raw)

	var scanned ProvenanceManifest
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, m.Assertions, scanned.Assertions)
	assert.Equal(t, m.Signature, scanned.Signature)
	assert.Equal(t, m.KeyID, scanned.KeyID)
}

func TestProvenanceManifest_EmptyValueIsNil(t *testing.T) {
	var m ProvenanceManifest
	raw, err := m.Value()
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestProvenanceManifest_ScanNil(t *testing.T) {
	var m ProvenanceManifest
	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m.Assertions)
}

// legalPredecessors exercises the directed transition graph from spec §3:
// pending -> processing -> {completed | failed}; failed -> pending;
// any terminal state -> deleted.
func TestLegalPredecessors_MatchesTransitionGraph(t *testing.T) {
	assert.ElementsMatch(t, []Status{StatusPending}, legalPredecessors[StatusProcessing])
	assert.ElementsMatch(t, []Status{StatusProcessing}, legalPredecessors[StatusCompleted])
	assert.ElementsMatch(t, []Status{StatusProcessing}, legalPredecessors[StatusFailed])
	assert.ElementsMatch(t, []Status{StatusFailed}, legalPredecessors[StatusPending])
	assert.ElementsMatch(t,
		[]Status{StatusCompleted, StatusFailed},
		legalPredecessors[StatusDeleted],
	)
}
