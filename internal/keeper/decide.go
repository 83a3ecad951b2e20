package keeper

import (
	"cmp"
	"slices"
	"time"
)

// Payout is one earning the keeper has chosen to realize.
type Payout struct {
	ContributionID string
	Source         string
	Amount         float64
	ExpectedAt     time.Time
}

// Decide picks up to batch due earnings, oldest expected date first. Ties
// break on contribution id then source so a cycle is reproducible.
func Decide(snap *Snapshot, batch int) []Payout {
	if batch <= 0 || len(snap.Due) == 0 {
		return nil
	}
	payouts := make([]Payout, 0, len(snap.Due))
	for _, d := range snap.Due {
		if d.Earning.Status != "" && d.Earning.Status != "pending" {
			continue
		}
		payouts = append(payouts, Payout{
			ContributionID: d.ContributionID,
			Source:         d.Earning.Source,
			Amount:         d.Earning.Amount,
			ExpectedAt:     d.Earning.ExpectedAt,
		})
	}
	slices.SortFunc(payouts, func(a, b Payout) int {
		if c := a.ExpectedAt.Compare(b.ExpectedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ContributionID, b.ContributionID); c != 0 {
			return c
		}
		return cmp.Compare(a.Source, b.Source)
	})
	if len(payouts) > batch {
		payouts = payouts[:batch]
	}
	return payouts
}
