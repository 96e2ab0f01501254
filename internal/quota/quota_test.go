package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lore-anchor/protect/internal/config"
)

// Allow short-circuits on TierPro before it ever consults the Catalog
// repository, so a Checker built with a nil repo is still safe to
// exercise for the pro-tier path.
func TestChecker_ProTierNeverConsultsRepo(t *testing.T) {
	c := NewChecker(nil, 5)
	err := c.Allow(context.Background(), "owner-1", TierPro, time.Now())
	assert.NoError(t, err)
}

func TestMonthStart_TruncatesToCalendarMonthUTC(t *testing.T) {
	now := time.Date(2026, time.March, 17, 13, 45, 0, 0, time.FixedZone("UTC-5", -5*60*60))
	start := config.MonthStart(now)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), start)
}
