// Package ledger is the in-memory registry of the wallet, data NFTs,
// research projects, research requests and stake pools.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/neurobank/internal/apperr"
	"github.com/talgya/neurobank/internal/entropy"
	"github.com/talgya/neurobank/internal/session"
	"github.com/talgya/neurobank/internal/staking"
	"github.com/talgya/neurobank/internal/valuation"
)

// GenesisBonus is credited once per wallet.
const GenesisBonus = 100.0

// Recording defaults for minted NFTs.
var defaultChannels = []string{"O1", "O2", "T3", "T4"}

const (
	defaultSamplingRate = 250
	defaultRoyalty      = 10.0
	qualityWeight       = 0.1
	impactWeight        = 0.05
	maxImpact           = 10.0
)

// Wallet is the single process-wide account.
type Wallet struct {
	Address                  string  `json:"address"`
	Balance                  float64 `json:"balance"`
	StakingRewards           float64 `json:"staking_rewards"`
	DataSubmissions          int     `json:"data_submissions"`
	ResearchContributions    int     `json:"research_contributions"`
	LifetimeEarnings         float64 `json:"lifetime_earnings"`
	DataQualityScore         float64 `json:"data_quality_score"`
	ResearchImpactScore      float64 `json:"research_impact_score"`
	TotalSessionsContributed int     `json:"total_sessions_contributed"`
	AcceptedSubmissions      int     `json:"accepted_submissions"`
	GenesisClaimed           bool    `json:"genesis_claimed"`
}

// NFTMetadata describes the recording behind an NFT.
type NFTMetadata struct {
	SamplingRate      int                `json:"sampling_rate"`
	BandPowers        session.BandPowers `json:"band_powers"`
	MentalStates      []string           `json:"mental_states"`
	VerificationScore float64            `json:"verification_score"`
	EthicalCompliance bool               `json:"ethical_compliance"`
	SignalQuality     float64            `json:"signal_quality"`
	ArtifactLevel     float64            `json:"artifact_level"`
	NoiseLevel        float64            `json:"noise_level"`
}

// DataNFT is a tokenized recording.
type DataNFT struct {
	ID                string                `json:"id"`
	TokenID           string                `json:"token_id"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	Category          valuation.Category    `json:"category"`
	Duration          float64               `json:"duration"`
	Channels          []string              `json:"channels"`
	Quality           valuation.QualityTier `json:"quality"`
	Price             float64               `json:"price"`
	RoyaltyPercentage float64               `json:"royalty_percentage"`
	Owner             string                `json:"owner"`
	Minted            bool                  `json:"minted"`
	Listed            bool                  `json:"listed"`
	Sales             int                   `json:"sales"`
	Metadata          NFTMetadata           `json:"metadata"`
	TxHash            string                `json:"tx_hash,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

// MintRequest carries the caller-chosen fields of a new NFT.
type MintRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    valuation.Category  `json:"category"`
	Duration    float64             `json:"duration"`
	BandPowers  *session.BandPowers `json:"band_powers,omitempty"`
}

// StakePool is a fixed staking pool.
type StakePool struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	APY         float64              `json:"apy"`
	LockPeriod  int                  `json:"lock_period"` // days
	MinStake    float64              `json:"min_stake"`
	TotalStaked float64              `json:"total_staked"`
	Rewards     string               `json:"rewards"`
	Category    staking.PoolCategory `json:"category"`
}

// StakePosition records one stake and the quote it was made at.
type StakePosition struct {
	ID       string        `json:"id"`
	PoolID   string        `json:"pool_id"`
	Amount   float64       `json:"amount"`
	LockDays int           `json:"lock_days"`
	StakedAt time.Time     `json:"staked_at"`
	Quote    staking.Quote `json:"quote"`
}

// Achievement is a derived wallet milestone.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// State is a full copy of the ledger for snapshots.
type State struct {
	Wallet    Wallet            `json:"wallet"`
	NFTs      []DataNFT         `json:"nfts"`
	Projects  []ResearchProject `json:"projects"`
	Requests  []ResearchRequest `json:"requests"`
	Pools     []StakePool       `json:"pools"`
	Positions []StakePosition   `json:"positions"`
}

// Ledger owns all ecosystem records. It is not safe for concurrent use;
// the simulation serializes access.
type Ledger struct {
	rng   entropy.Source
	now   func() time.Time
	idGen func() string

	wallet    Wallet
	nfts      []*DataNFT
	nftIndex  map[string]*DataNFT
	projects  []*ResearchProject
	requests  []*ResearchRequest
	pools     []*StakePool
	positions []StakePosition
}

// New creates a ledger seeded with the launch projects, pools and requests.
func New(rng entropy.Source, address string, now func() time.Time) *Ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	start := now()
	return &Ledger{
		rng:      rng,
		now:      now,
		idGen:    uuid.NewString,
		wallet:   seedWallet(address),
		nftIndex: make(map[string]*DataNFT),
		projects: seedProjects(start),
		requests: seedRequests(start),
		pools:    seedPools(),
	}
}

// Mint records a new NFT owned by the wallet.
func (l *Ledger) Mint(req MintRequest) (*DataNFT, error) {
	if req.Category == "" {
		req.Category = valuation.CategoryFocus
	}
	if !req.Category.Valid() {
		return nil, apperr.NewInvalidError(fmt.Sprintf("unknown category %q", req.Category))
	}
	if req.Duration < 0 {
		return nil, apperr.NewInvalidError("duration must not be negative")
	}
	if req.Duration == 0 {
		req.Duration = valuation.ReferenceDuration
	}

	now := l.now()
	signal := entropy.Uniform(l.rng, 70, 100)
	artifact := entropy.Uniform(l.rng, 5, 20)
	noise := entropy.Uniform(l.rng, 2, 12)

	var bands session.BandPowers
	if req.BandPowers != nil {
		bands = *req.BandPowers
	} else {
		bands = session.BandPowers{
			Delta: entropy.Uniform(l.rng, 5, 25),
			Theta: entropy.Uniform(l.rng, 10, 25),
			Alpha: entropy.Uniform(l.rng, 15, 40),
			Beta:  entropy.Uniform(l.rng, 20, 50),
			Gamma: entropy.Uniform(l.rng, 5, 15),
		}
	}
	if req.Title == "" {
		req.Title = "EEG Session " + now.Format("2006-01-02")
	}
	if req.Description == "" {
		req.Description = "High-quality EEG recording session"
	}

	nft := &DataNFT{
		ID:                "nft-" + l.idGen(),
		TokenID:           "SKY-" + l.tokenSuffix(),
		Title:             req.Title,
		Description:       req.Description,
		Category:          req.Category,
		Duration:          req.Duration,
		Channels:          append([]string(nil), defaultChannels...),
		Quality:           valuation.TierFor(signal),
		Price:             valuation.ListingPrice(req.Category, req.Duration),
		RoyaltyPercentage: defaultRoyalty,
		Owner:             l.wallet.Address,
		Minted:            true,
		Metadata: NFTMetadata{
			SamplingRate:      defaultSamplingRate,
			BandPowers:        bands,
			MentalStates:      []string{string(req.Category)},
			VerificationScore: entropy.Uniform(l.rng, 70, 100),
			EthicalCompliance: true,
			SignalQuality:     signal,
			ArtifactLevel:     artifact,
			NoiseLevel:        noise,
		},
		CreatedAt: now,
	}

	l.nfts = append(l.nfts, nft)
	l.nftIndex[nft.ID] = nft
	l.wallet.TotalSessionsContributed++
	l.wallet.DataQualityScore = l.wallet.DataQualityScore*(1-qualityWeight) + signal*qualityWeight
	return cloneNFT(nft), nil
}

const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func (l *Ledger) tokenSuffix() string {
	var b strings.Builder
	for range 9 {
		b.WriteByte(tokenAlphabet[l.rng.Intn(len(tokenAlphabet))])
	}
	return b.String()
}

// SetTxHash records the mint transaction of an NFT.
func (l *Ledger) SetTxHash(nftID, hash string) error {
	nft, err := l.nft(nftID)
	if err != nil {
		return err
	}
	nft.TxHash = hash
	return nil
}

// List puts an NFT on the marketplace, repricing it when price is positive.
func (l *Ledger) List(nftID string, price float64) (*DataNFT, error) {
	if price < 0 {
		return nil, apperr.NewInvalidError("price must not be negative")
	}
	nft, err := l.nft(nftID)
	if err != nil {
		return nil, err
	}
	nft.Listed = true
	if price > 0 {
		nft.Price = price
	}
	return cloneNFT(nft), nil
}

// Purchase buys a listed NFT with the wallet balance.
func (l *Ledger) Purchase(nftID string) (*DataNFT, error) {
	nft, err := l.nft(nftID)
	if err != nil {
		return nil, err
	}
	if !nft.Listed {
		return nil, apperr.NewConflictError(fmt.Sprintf("nft %s is not listed", nftID))
	}
	if nft.Price > l.wallet.Balance {
		return nil, apperr.NewInsufficientBalanceError(
			fmt.Sprintf("price %.2f exceeds balance %.2f", nft.Price, l.wallet.Balance))
	}
	l.wallet.Balance -= nft.Price
	nft.Sales++
	return cloneNFT(nft), nil
}

// Stake locks amount in a pool. A lock of 0 uses the pool's own period.
func (l *Ledger) Stake(poolID string, amount float64, lockDays int) (StakePosition, error) {
	pool, err := l.pool(poolID)
	if err != nil {
		return StakePosition{}, err
	}
	if amount < pool.MinStake {
		return StakePosition{}, apperr.NewInvalidError(
			fmt.Sprintf("minimum stake for %s is %.0f", pool.ID, pool.MinStake))
	}
	if amount > l.wallet.Balance {
		return StakePosition{}, apperr.NewInsufficientBalanceError(
			fmt.Sprintf("stake %.2f exceeds balance %.2f", amount, l.wallet.Balance))
	}
	if lockDays == 0 {
		lockDays = pool.LockPeriod
	}

	now := l.now()
	quote, err := staking.Calculate(amount, pool.Category, lockDays, now)
	if err != nil {
		return StakePosition{}, fmt.Errorf("quote stake: %w", err)
	}

	l.wallet.Balance -= amount
	pool.TotalStaked += amount
	pos := StakePosition{
		ID:       "stake-" + l.idGen(),
		PoolID:   pool.ID,
		Amount:   amount,
		LockDays: lockDays,
		StakedAt: now,
		Quote:    quote,
	}
	l.positions = append(l.positions, pos)
	return pos, nil
}

// ClaimGenesisBonus credits the one-time welcome bonus.
func (l *Ledger) ClaimGenesisBonus() (Wallet, error) {
	if l.wallet.GenesisClaimed {
		return l.wallet, apperr.NewConflictError("genesis bonus already claimed")
	}
	l.wallet.GenesisClaimed = true
	l.wallet.Balance += GenesisBonus
	l.wallet.LifetimeEarnings += GenesisBonus
	return l.wallet, nil
}

// Achievements derives the milestones the wallet has reached.
func (l *Ledger) Achievements() []Achievement {
	w := l.wallet
	var out []Achievement
	if w.Balance > 0 {
		out = append(out, Achievement{"first-earner", "First Earner", "Earned your first SKY tokens"})
	}
	if w.Balance > 1000 {
		out = append(out, Achievement{"thousand-club", "Thousand Club", "Hold more than 1,000 SKY"})
	}
	if w.DataQualityScore > 90 {
		out = append(out, Achievement{"quality-master", "Quality Master", "Data quality score above 90"})
	}
	if w.TotalSessionsContributed > 10 {
		out = append(out, Achievement{"data-contributor", "Data Contributor", "Contributed more than 10 sessions"})
	}
	return out
}

// Wallet returns a copy of the wallet.
func (l *Ledger) Wallet() Wallet { return l.wallet }

// NFT returns a copy of one NFT.
func (l *Ledger) NFT(id string) (*DataNFT, error) {
	nft, err := l.nft(id)
	if err != nil {
		return nil, err
	}
	return cloneNFT(nft), nil
}

// NFTs lists every NFT in mint order.
func (l *Ledger) NFTs() []DataNFT {
	out := make([]DataNFT, 0, len(l.nfts))
	for _, n := range l.nfts {
		out = append(out, *cloneNFT(n))
	}
	return out
}

// Marketplace lists NFTs that are for sale.
func (l *Ledger) Marketplace() []DataNFT {
	var out []DataNFT
	for _, n := range l.nfts {
		if n.Listed {
			out = append(out, *cloneNFT(n))
		}
	}
	return out
}

func (l *Ledger) Pools() []StakePool {
	out := make([]StakePool, 0, len(l.pools))
	for _, p := range l.pools {
		out = append(out, *p)
	}
	return out
}

func (l *Ledger) Positions() []StakePosition {
	return append([]StakePosition(nil), l.positions...)
}

func (l *Ledger) nft(id string) (*DataNFT, error) {
	nft, ok := l.nftIndex[id]
	if !ok {
		return nil, apperr.NewNotFoundError(fmt.Sprintf("nft %s not found", id))
	}
	return nft, nil
}

func (l *Ledger) pool(id string) (*StakePool, error) {
	for _, p := range l.pools {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperr.NewNotFoundError(fmt.Sprintf("stake pool %s not found", id))
}

// State copies every record for a snapshot.
func (l *Ledger) State() State {
	return State{
		Wallet:    l.wallet,
		NFTs:      l.NFTs(),
		Projects:  l.Projects(),
		Requests:  l.Requests(),
		Pools:     l.Pools(),
		Positions: l.Positions(),
	}
}

// Restore replaces the ledger with a snapshot. Empty project, request or
// pool lists keep the seeded ones.
func (l *Ledger) Restore(s State) {
	l.wallet = s.Wallet
	l.nfts = make([]*DataNFT, 0, len(s.NFTs))
	l.nftIndex = make(map[string]*DataNFT, len(s.NFTs))
	for i := range s.NFTs {
		n := cloneNFT(&s.NFTs[i])
		l.nfts = append(l.nfts, n)
		l.nftIndex[n.ID] = n
	}
	if len(s.Projects) > 0 {
		l.projects = make([]*ResearchProject, 0, len(s.Projects))
		for i := range s.Projects {
			p := cloneProject(&s.Projects[i])
			l.projects = append(l.projects, p)
		}
	}
	if len(s.Requests) > 0 {
		l.requests = make([]*ResearchRequest, 0, len(s.Requests))
		for i := range s.Requests {
			r := s.Requests[i]
			l.requests = append(l.requests, &r)
		}
	}
	if len(s.Pools) > 0 {
		l.pools = make([]*StakePool, 0, len(s.Pools))
		for i := range s.Pools {
			p := s.Pools[i]
			l.pools = append(l.pools, &p)
		}
	}
	l.positions = append([]StakePosition(nil), s.Positions...)
}

func cloneNFT(n *DataNFT) *DataNFT {
	cp := *n
	cp.Channels = append([]string(nil), n.Channels...)
	cp.Metadata.MentalStates = append([]string(nil), n.Metadata.MentalStates...)
	return &cp
}
