package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

// Keeper runs observe → triage → decide → act cycles.
type Keeper struct {
	Observer *Observer
	Actor    *Actor
	Memory   *CycleMemory
	Batch    int
	Now      func() time.Time
}

// New wires a keeper against one API base URL.
func New(baseURL, adminKey string, batch int, mem *CycleMemory) *Keeper {
	if mem == nil {
		mem = &CycleMemory{}
	}
	return &Keeper{
		Observer: NewObserver(baseURL),
		Actor:    NewActor(baseURL, adminKey),
		Memory:   mem,
		Batch:    batch,
		Now:      time.Now,
	}
}

// RunCycle executes one cycle and records it. Individual payout failures
// are logged and counted; only observation failure aborts the cycle.
func (k *Keeper) RunCycle() (CycleRecord, error) {
	slog.Info("keeper cycle starting")

	snap, err := k.Observer.Observe()
	if err != nil {
		return CycleRecord{}, fmt.Errorf("observe: %w", err)
	}

	backlog := Triage(snap, k.Batch, k.Now())
	rec := CycleRecord{Tick: snap.Status.Tick, Level: backlog.Level, Due: backlog.Due}
	attrs := []any{
		"tick", snap.Status.Tick,
		"due", backlog.Due,
		"due_amount", humanize.CommafWithDigits(backlog.DueAmount, 2),
		"contributors", backlog.Contributors,
		"level", backlog.Level,
	}
	if backlog.Due > 0 {
		attrs = append(attrs, "oldest", humanize.RelTime(backlog.OldestDue, k.Now(), "overdue", "ahead"))
	}
	slog.Info("observation complete", attrs...)

	for _, p := range Decide(snap, k.Batch) {
		res, err := k.Actor.Realize(p)
		if err != nil {
			rec.Failed++
			slog.Error("payout failed", "contribution", p.ContributionID, "source", p.Source, "error", err)
			continue
		}
		if !res.Realized {
			rec.Skipped++
			slog.Info("earning already settled", "contribution", p.ContributionID, "source", p.Source)
			continue
		}
		rec.Paid++
		rec.Amount += p.Amount
		slog.Info("earning paid",
			"contribution", p.ContributionID,
			"source", p.Source,
			"amount", humanize.CommafWithDigits(p.Amount, 2),
		)
	}

	k.Memory.Record(rec)
	k.Memory.Save()
	slog.Info("keeper cycle complete",
		"paid", rec.Paid,
		"skipped", rec.Skipped,
		"failed", rec.Failed,
		"amount", humanize.CommafWithDigits(rec.Amount, 2),
		"remembered_total", humanize.CommafWithDigits(k.Memory.TotalPaid(), 2),
	)
	return rec, nil
}

// WaitForAPI polls the status endpoint with exponential backoff until it
// responds 200, ctx ends, or maxWait elapses.
func WaitForAPI(ctx context.Context, apiURL string, maxWait time.Duration) error {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(maxWait)
	client := &http.Client{Timeout: 10 * time.Second}

	for {
		resp, err := client.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("neurobank API is ready")
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("API at %s not ready after %s", apiURL, maxWait)
		}
		slog.Info("neurobank API not ready, retrying...", "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
