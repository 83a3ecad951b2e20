package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/neurobank/internal/engine"
	"github.com/talgya/neurobank/internal/entropy"
	"github.com/talgya/neurobank/internal/ledger"
	"github.com/talgya/neurobank/internal/monetization"
)

func fixedNow() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "neurobank.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func populatedSim(t *testing.T) *engine.Simulation {
	t.Helper()
	sim := engine.NewSimulation(entropy.NewSeeded(11), 11, fixedNow)
	e := engine.NewEngine()
	e.OnTick = sim.TickSecond
	e.OnConfirm = sim.TickConfirm
	e.OnNetwork = sim.TickNetwork
	e.OnMarket = sim.TickMarket

	sess, err := sim.CreateSession("Mira", 900)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sim.TokenizeSession(sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := sim.MintNFT(ledger.MintRequest{Title: "Evening calm"}); err != nil {
		t.Fatal(err)
	}
	if _, err := sim.Contribute("u1", sess.ID, monetization.Signal{Quality: 90},
		monetization.Context{}, []monetization.DestinationType{monetization.DestResearch}); err != nil {
		t.Fatal(err)
	}
	e.Advance(30)
	return sim
}

func TestHasStateEmpty(t *testing.T) {
	db := openTestDB(t)
	ok, err := db.HasState()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("fresh database reports a snapshot")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	sim := populatedSim(t)
	st := sim.State()

	if err := db.SaveState(st); err != nil {
		t.Fatal(err)
	}
	if ok, _ := db.HasState(); !ok {
		t.Fatal("HasState false after save")
	}

	got, err := db.LoadState()
	if err != nil {
		t.Fatal(err)
	}
	if got.Tick != st.Tick {
		t.Errorf("tick = %d, want %d", got.Tick, st.Tick)
	}
	if len(got.Sessions) != len(st.Sessions) || got.Sessions[0].Bands != st.Sessions[0].Bands {
		t.Errorf("sessions = %+v", got.Sessions)
	}
	if !got.Sessions[0].Timestamp.Equal(st.Sessions[0].Timestamp) {
		t.Errorf("session time = %v, want %v", got.Sessions[0].Timestamp, st.Sessions[0].Timestamp)
	}
	if len(got.Ledger.NFTs) != 1 || got.Ledger.NFTs[0].Metadata.BandPowers != st.Ledger.NFTs[0].Metadata.BandPowers {
		t.Errorf("nfts = %+v", got.Ledger.NFTs)
	}
	if len(got.Ledger.Projects) != len(st.Ledger.Projects) || len(got.Ledger.Pools) != len(st.Ledger.Pools) {
		t.Errorf("seed data lost: %d projects, %d pools", len(got.Ledger.Projects), len(got.Ledger.Pools))
	}
	for i, r := range got.Ledger.Requests {
		if !r.ExpiresAt.Equal(st.Ledger.Requests[i].ExpiresAt) {
			t.Errorf("%s expires %v, want %v", r.ID, r.ExpiresAt, st.Ledger.Requests[i].ExpiresAt)
		}
	}
	if !got.Ledger.Projects[0].Deadline.Equal(st.Ledger.Projects[0].Deadline) {
		t.Errorf("deadline = %v, want %v", got.Ledger.Projects[0].Deadline, st.Ledger.Projects[0].Deadline)
	}
	if got.Ledger.Wallet != st.Ledger.Wallet {
		t.Errorf("wallet = %+v, want %+v", got.Ledger.Wallet, st.Ledger.Wallet)
	}
	if len(got.Contributions) != 1 || len(got.Contributions[0].Earnings.Pending) != len(st.Contributions[0].Earnings.Pending) {
		t.Errorf("contributions = %+v", got.Contributions)
	}
	if len(got.PendingTx) != len(st.PendingTx) || len(got.ConfirmedTx) != len(st.ConfirmedTx) {
		t.Errorf("tx queues = %d/%d, want %d/%d",
			len(got.PendingTx), len(got.ConfirmedTx), len(st.PendingTx), len(st.ConfirmedTx))
	}
	if len(got.Events) != len(st.Events) {
		t.Errorf("events = %d, want %d", len(got.Events), len(st.Events))
	}

	restored := engine.NewSimulation(entropy.NewSeeded(1), 1, fixedNow)
	restored.Restore(got)
	if a, b := sim.Status(), restored.Status(); a != b {
		t.Fatalf("status after reload\n got %+v\nwant %+v", b, a)
	}
}

func TestSaveReplacesPrevious(t *testing.T) {
	db := openTestDB(t)
	sim := populatedSim(t)
	if err := db.SaveState(sim.State()); err != nil {
		t.Fatal(err)
	}
	if _, err := sim.CreateSession("Noor", 300); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveState(sim.State()); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadState()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(got.Sessions))
	}
}

func TestZeroTimeRoundTrip(t *testing.T) {
	if n := nanos(time.Time{}); n != 0 {
		t.Fatalf("nanos(zero) = %d", n)
	}
	if !fromNanos(0).IsZero() {
		t.Fatal("fromNanos(0) is not the zero time")
	}
	ts := fixedNow()
	if !fromNanos(nanos(ts)).Equal(ts) {
		t.Fatal("time lost precision")
	}
}

func TestSeedMeta(t *testing.T) {
	db := openTestDB(t)
	if _, ok, err := db.Seed(); ok || err != nil {
		t.Fatalf("empty db seed: ok=%v err=%v", ok, err)
	}
	if err := db.SaveSeed(-7); err != nil {
		t.Fatal(err)
	}
	seed, ok, err := db.Seed()
	if err != nil || !ok || seed != -7 {
		t.Fatalf("Seed = %d, %v, %v", seed, ok, err)
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("seed", "42"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("seed", "43"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMeta("seed")
	if err != nil || v != "43" {
		t.Fatalf("GetMeta = %q, %v", v, err)
	}
}
