package keeper

import "time"

// Backlog levels.
const (
	LevelHealthy = "HEALTHY"
	LevelWatch   = "WATCH"
	LevelBacklog = "BACKLOG"
)

// overdueLimit is how long an earning may sit past its date before the
// backlog is flagged.
const overdueLimit = 7 * 24 * time.Hour

// Backlog summarizes the due queue. Computed before deciding; deterministic.
type Backlog struct {
	Due          int
	DueAmount    float64
	OldestDue    time.Time
	OldestAge    time.Duration
	Contributors int
	Level        string
}

// Triage computes a Backlog from the snapshot as of now. batch is the
// keeper's per-cycle capacity.
func Triage(snap *Snapshot, batch int, now time.Time) *Backlog {
	b := &Backlog{Level: LevelHealthy}
	users := map[string]bool{}
	for _, d := range snap.Due {
		b.Due++
		b.DueAmount += d.Earning.Amount
		users[d.UserID] = true
		if b.OldestDue.IsZero() || d.Earning.ExpectedAt.Before(b.OldestDue) {
			b.OldestDue = d.Earning.ExpectedAt
		}
	}
	b.Contributors = len(users)
	if b.Due == 0 {
		return b
	}
	b.OldestAge = now.Sub(b.OldestDue)

	switch {
	case b.OldestAge > overdueLimit:
		b.Level = LevelBacklog
	case batch > 0 && b.Due > 3*batch:
		b.Level = LevelBacklog
	default:
		b.Level = LevelWatch
	}
	return b
}
