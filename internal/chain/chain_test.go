package chain

import (
	"regexp"
	"testing"

	"github.com/talgya/neurobank/internal/entropy"
)

type stubFees struct{}

func (stubFees) GasEstimate(txType string, hasData bool) int {
	if hasData {
		return 1200
	}
	return 1000
}
func (stubFees) ConfirmationTime() int       { return 72 }
func (stubFees) NetworkFee(gas int) float64 { return float64(gas) / 1000 }

var hexHash = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
var hexAddr = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

func TestSubmitReturnsPendingReceipt(t *testing.T) {
	p := NewPool(stubFees{}, entropy.NewSeeded(1))
	rec := p.Submit(Transaction{ID: "tx-1", Type: TxMint, Data: map[string]any{"k": 1}})

	if !hexHash.MatchString(rec.TxHash) {
		t.Fatalf("hash %q not 0x+64 hex", rec.TxHash)
	}
	if rec.Status != StatusPending || rec.Confirmations != 0 {
		t.Fatalf("unexpected receipt %+v", rec)
	}
	if rec.GasEstimate != 1200 || rec.NetworkFee != 1.2 || rec.ConfirmationTime != 72 {
		t.Fatalf("fees not applied: %+v", rec)
	}
	if len(p.Pending()) != 1 {
		t.Fatalf("expected one pending receipt")
	}
}

func TestProcessConfirmsAfterSixBlocks(t *testing.T) {
	p := NewPool(stubFees{}, entropy.NewSeeded(2))
	rec := p.Submit(Transaction{ID: "tx-1", Type: TxTransfer})

	for round := 1; round <= 5; round++ {
		if done := p.Process(); len(done) != 0 {
			t.Fatalf("round %d confirmed early", round)
		}
		got, _ := p.Status(rec.TxHash)
		if got.Status != StatusConfirming || got.Confirmations != round {
			t.Fatalf("round %d: %+v", round, got)
		}
		if got.BlockNumber < firstBlock || got.BlockNumber >= firstBlock+blockSpread {
			t.Fatalf("block number %d out of range", got.BlockNumber)
		}
	}

	done := p.Process()
	if len(done) != 1 || done[0].Status != StatusConfirmed || done[0].Confirmations != RequiredConfirmations {
		t.Fatalf("expected confirmation on round 6, got %+v", done)
	}
	if len(p.Pending()) != 0 {
		t.Fatal("confirmed tx still pending")
	}
	if got, ok := p.Status(rec.TxHash); !ok || got.Status != StatusConfirmed {
		t.Fatalf("status lookup after confirm: %+v %v", got, ok)
	}
	if len(p.Confirmed()) != 1 {
		t.Fatal("confirmed set not updated")
	}
}

func TestProcessKeepsSubmissionOrder(t *testing.T) {
	p := NewPool(stubFees{}, entropy.NewSeeded(3))
	first := p.Submit(Transaction{ID: "a"})
	p.Process()
	second := p.Submit(Transaction{ID: "b"})

	pending := p.Pending()
	if len(pending) != 2 || pending[0].TxHash != first.TxHash || pending[1].TxHash != second.TxHash {
		t.Fatalf("pending order wrong: %+v", pending)
	}
}

func TestStatusUnknown(t *testing.T) {
	p := NewPool(stubFees{}, entropy.NewSeeded(1))
	if _, ok := p.Status("0xmissing"); ok {
		t.Fatal("unknown hash reported as found")
	}
}

func TestGeneratorsFormat(t *testing.T) {
	rng := entropy.NewSeeded(4)
	if a := GenerateAddress(rng); !hexAddr.MatchString(a) {
		t.Fatalf("address %q malformed", a)
	}
	if GenerateHash(rng, "x") == GenerateHash(rng, "x") {
		t.Fatal("consecutive hashes collided")
	}
}

func TestRestore(t *testing.T) {
	p := NewPool(stubFees{}, entropy.NewSeeded(1))
	p.Restore(
		[]Receipt{{TxHash: "0x1", Status: StatusConfirming, Confirmations: 5}},
		[]Receipt{{TxHash: "0x2", Status: StatusConfirmed, Confirmations: 6}},
	)
	if done := p.Process(); len(done) != 1 || done[0].TxHash != "0x1" {
		t.Fatalf("restored pending tx did not confirm: %+v", done)
	}
	if _, ok := p.Status("0x2"); !ok {
		t.Fatal("restored confirmed tx missing")
	}
}
