// Package chain simulates a transaction pool with block confirmations.
// Nothing here touches a real network; hashes only look like Ethereum's.
package chain

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/talgya/neurobank/internal/entropy"
)

// TxType names the kind of action a transaction records.
type TxType string

const (
	TxMint           TxType = "mint"
	TxTransfer       TxType = "transfer"
	TxStake          TxType = "stake"
	TxResearchSubmit TxType = "research_submit"
)

// TxStatus is the confirmation state of a receipt.
type TxStatus string

const (
	StatusPending    TxStatus = "pending"
	StatusConfirming TxStatus = "confirming"
	StatusConfirmed  TxStatus = "confirmed"
)

const (
	RequiredConfirmations = 6
	MaxConfirmations      = 12
	firstBlock            = 15_000_000
	blockSpread           = 1_000_000
)

// ZeroAddress is the mint counterparty.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Transaction is a request to record an action.
type Transaction struct {
	ID        string         `json:"id"`
	Type      TxType         `json:"type"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Amount    float64        `json:"amount"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Receipt tracks a submitted transaction.
type Receipt struct {
	TxHash           string    `json:"tx_hash"`
	Type             TxType    `json:"type"`
	Status           TxStatus  `json:"status"`
	GasEstimate      int       `json:"gas_estimate"`
	ConfirmationTime int       `json:"confirmation_time"` // seconds
	NetworkFee       float64   `json:"network_fee"`
	Confirmations    int       `json:"confirmations"`
	BlockNumber      uint64    `json:"block_number,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// FeeQuoter prices transactions. *market.Simulator satisfies it.
type FeeQuoter interface {
	GasEstimate(txType string, hasData bool) int
	ConfirmationTime() int
	NetworkFee(gas int) float64
}

// Pool holds in-flight and confirmed receipts.
type Pool struct {
	fees FeeQuoter
	rng  entropy.Source
	now  func() time.Time

	pending   map[string]*Receipt
	order     []string // pending hashes in submission order
	confirmed map[string]*Receipt
}

// NewPool creates an empty pool.
func NewPool(fees FeeQuoter, rng entropy.Source) *Pool {
	return &Pool{
		fees:      fees,
		rng:       rng,
		now:       func() time.Time { return time.Now().UTC() },
		pending:   make(map[string]*Receipt),
		confirmed: make(map[string]*Receipt),
	}
}

// SetClock overrides the submission timestamp source.
func (p *Pool) SetClock(now func() time.Time) { p.now = now }

// Submit queues a transaction and returns its pending receipt.
func (p *Pool) Submit(tx Transaction) Receipt {
	gas := p.fees.GasEstimate(string(tx.Type), len(tx.Data) > 0)
	rec := &Receipt{
		TxHash:           GenerateHash(p.rng, tx.ID),
		Type:             tx.Type,
		Status:           StatusPending,
		GasEstimate:      gas,
		ConfirmationTime: p.fees.ConfirmationTime(),
		NetworkFee:       p.fees.NetworkFee(gas),
		SubmittedAt:      p.now(),
	}
	p.pending[rec.TxHash] = rec
	p.order = append(p.order, rec.TxHash)
	return *rec
}

// Process advances every in-flight receipt by one block and returns
// the receipts that reached the required confirmations.
func (p *Pool) Process() []Receipt {
	var done []Receipt
	remaining := p.order[:0]
	for _, hash := range p.order {
		rec := p.pending[hash]
		switch rec.Status {
		case StatusPending:
			rec.Status = StatusConfirming
			rec.Confirmations = 1
			rec.BlockNumber = uint64(firstBlock + p.rng.Intn(blockSpread))
		case StatusConfirming:
			rec.Confirmations = min(rec.Confirmations+1, MaxConfirmations)
			if rec.Confirmations >= RequiredConfirmations {
				rec.Status = StatusConfirmed
			}
		}
		if rec.Status == StatusConfirmed {
			p.confirmed[hash] = rec
			delete(p.pending, hash)
			done = append(done, *rec)
			continue
		}
		remaining = append(remaining, hash)
	}
	p.order = remaining
	return done
}

// Status looks a receipt up by hash.
func (p *Pool) Status(hash string) (Receipt, bool) {
	if rec, ok := p.pending[hash]; ok {
		return *rec, true
	}
	if rec, ok := p.confirmed[hash]; ok {
		return *rec, true
	}
	return Receipt{}, false
}

// Pending lists in-flight receipts in submission order.
func (p *Pool) Pending() []Receipt {
	out := make([]Receipt, 0, len(p.order))
	for _, hash := range p.order {
		out = append(out, *p.pending[hash])
	}
	return out
}

// Confirmed lists settled receipts in no particular order.
func (p *Pool) Confirmed() []Receipt {
	out := make([]Receipt, 0, len(p.confirmed))
	for _, rec := range p.confirmed {
		out = append(out, *rec)
	}
	return out
}

// Restore replaces pool contents. Pending receipts keep the given order.
func (p *Pool) Restore(pending, confirmed []Receipt) {
	p.pending = make(map[string]*Receipt, len(pending))
	p.confirmed = make(map[string]*Receipt, len(confirmed))
	p.order = p.order[:0]
	for i := range pending {
		rec := pending[i]
		p.pending[rec.TxHash] = &rec
		p.order = append(p.order, rec.TxHash)
	}
	for i := range confirmed {
		rec := confirmed[i]
		p.confirmed[rec.TxHash] = &rec
	}
}

// GenerateHash returns a 0x-prefixed Keccak-256 digest of random bytes and salt.
func GenerateHash(rng entropy.Source, salt string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(randomBytes(rng, 32))
	h.Write([]byte(salt))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// GenerateAddress returns a 0x-prefixed 20-byte address derived the way
// Ethereum derives one from a public key.
func GenerateAddress(rng entropy.Source) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(randomBytes(rng, 64))
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[12:])
}

func randomBytes(rng entropy.Source, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(rng.Intn(256))
	}
	return buf
}
