// Package quota enforces the Ingest Gateway's per-owner monthly upload
// cap (spec §4.1). Free tier: at most 5 successful uploads in the
// current calendar month; Pro tier: unlimited.
package quota

import (
	"context"
	"time"

	"github.com/lore-anchor/protect/internal/apperr"
	"github.com/lore-anchor/protect/internal/catalog"
	"github.com/lore-anchor/protect/internal/config"
)

// Tier is the external Plan collaborator's classification of an owner
// (spec §4.1 names this collaborator but leaves it out of scope; here
// it is a minimal enum the gateway consults before upload/retry).
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Checker consults the Catalog for month-to-date counts and enforces
// the tier cap.
type Checker struct {
	repo        *catalog.Repository
	freeTierCap int
}

func NewChecker(repo *catalog.Repository, freeTierCap int) *Checker {
	return &Checker{repo: repo, freeTierCap: freeTierCap}
}

// Allow returns apperr.QuotaExceeded when ownerID's month-to-date
// successful-upload count meets or exceeds its tier cap (spec §4.1:
// "If the count meets or exceeds the tier cap, upload fails with
// QuotaExceeded").
func (c *Checker) Allow(ctx context.Context, ownerID string, tier Tier, now time.Time) error {
	if tier == TierPro {
		return nil
	}

	monthStart := config.MonthStart(now)
	count, err := c.repo.CountSuccessfulSince(ctx, ownerID, monthStart)
	if err != nil {
		return err
	}
	if count >= c.freeTierCap {
		return apperr.New(apperr.QuotaExceeded, "monthly free-tier upload quota exceeded")
	}
	return nil
}
