// Simulation ties together every component and serializes access to them.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/neurobank/internal/apperr"
	"github.com/talgya/neurobank/internal/chain"
	"github.com/talgya/neurobank/internal/entropy"
	"github.com/talgya/neurobank/internal/ledger"
	"github.com/talgya/neurobank/internal/market"
	"github.com/talgya/neurobank/internal/monetization"
	"github.com/talgya/neurobank/internal/reputation"
	"github.com/talgya/neurobank/internal/session"
	"github.com/talgya/neurobank/internal/staking"
	"github.com/talgya/neurobank/internal/valuation"
)

const (
	maxEvents        = 1000
	subscriberBuffer = 64
)

// Event categories.
const (
	CategorySession  = "session"
	CategoryNFT      = "nft"
	CategoryResearch = "research"
	CategoryStaking  = "staking"
	CategoryEarnings = "earnings"
	CategoryChain    = "chain"
	CategoryNetwork  = "network"
	CategoryMarket   = "market"
	CategoryWallet   = "wallet"
)

// Event is a notable occurrence in the simulation.
type Event struct {
	Tick        uint64    `json:"tick"`
	Time        time.Time `json:"time"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
}

// Status is the headline state served by the status endpoint.
type Status struct {
	Tick          uint64               `json:"tick"`
	SimTime       string               `json:"sim_time"`
	Congestion    market.Congestion    `json:"congestion"`
	Demand        valuation.Demand     `json:"demand"`
	TokenPrice    float64              `json:"token_price"`
	Sessions      int                  `json:"sessions"`
	NFTs          int                  `json:"nfts"`
	PendingTx     int                  `json:"pending_transactions"`
	Contributions int                  `json:"contributions"`
	WalletAddress string               `json:"wallet_address"`
	WalletBalance float64              `json:"wallet_balance"`
	Events        int                  `json:"events"`
	NetworkStatus market.NetworkStatus `json:"network"`
}

// State is a complete snapshot used by persistence.
type State struct {
	Tick          uint64                      `json:"tick"`
	Sessions      []session.Session           `json:"sessions"`
	Ledger        ledger.State                `json:"ledger"`
	Contributions []monetization.Contribution `json:"contributions"`
	Reputations   map[string]reputation.Score `json:"reputations"`
	Network       market.NetworkStatus        `json:"network"`
	Market        market.Dynamics             `json:"market"`
	PendingTx     []chain.Receipt             `json:"pending_tx"`
	ConfirmedTx   []chain.Receipt             `json:"confirmed_tx"`
	Events        []Event                     `json:"events"`
}

// Simulation owns all component state. Every exported method is safe for
// concurrent use.
type Simulation struct {
	mu  sync.Mutex
	rng entropy.Source
	now func() time.Time

	lastTick uint64

	sessions   *session.Store
	reputation *reputation.Tracker
	market     *market.Simulator
	pool       *chain.Pool
	ledger     *ledger.Ledger
	earnings   *monetization.Scheduler
	pricing    *valuation.Engine

	events  []Event
	subs    map[int]chan Event
	nextSub int
}

// NewSimulation wires every component to one entropy source and clock.
// seed drives the smooth noise in the seeded price history.
func NewSimulation(rng entropy.Source, seed int64, now func() time.Time) *Simulation {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	s := &Simulation{
		rng:  rng,
		now:  now,
		subs: make(map[int]chan Event),
	}
	s.sessions = session.NewStore(rng)
	s.sessions.SetClock(now)
	s.reputation = reputation.NewTracker(rng)
	s.market = market.NewSimulator(rng, seed, now)
	s.pool = chain.NewPool(s.market, rng)
	s.pool.SetClock(now)
	s.ledger = ledger.New(rng, chain.GenerateAddress(rng), now)
	s.earnings = monetization.NewScheduler(rng)
	s.earnings.SetClock(now)
	s.pricing = valuation.NewEngine(s.market.Demand, rng)
	return s
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick
}

// TickSecond runs every tick.
func (s *Simulation) TickSecond(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTick = tick
}

// TickConfirm advances pending transactions by one block.
func (s *Simulation) TickConfirm(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.pool.Process() {
		s.emit(CategoryChain, "%s transaction %s confirmed in block %d", rec.Type, shortHash(rec.TxHash), rec.BlockNumber)
	}
}

// TickNetwork redraws network congestion.
func (s *Simulation) TickNetwork(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.market.ShiftNetwork() {
		n := s.market.Network()
		slog.Info("network congestion shifted", "tick", tick, "congestion", n.Congestion, "gas_price", fmt.Sprintf("%.1f", n.GasPrice))
		s.emit(CategoryNetwork, "network congestion now %s (gas %.1f gwei)", n.Congestion, n.GasPrice)
	}
}

// TickMarket redraws researcher demand and closes research past its deadline.
func (s *Simulation) TickMarket(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.market.ShiftMarket() {
		slog.Info("research demand shifted", "tick", tick, "demand", s.market.Demand(), "price", fmt.Sprintf("%.2f", s.market.LatestPrice()))
		s.emit(CategoryMarket, "research demand now %s", s.market.Demand())
	}
	closed := s.ledger.CloseOverdue(s.now())
	for _, id := range closed.Projects {
		s.emit(CategoryResearch, "project %s closed at its deadline", id)
	}
	for _, id := range closed.Requests {
		s.emit(CategoryResearch, "request %s expired", id)
	}
}

// Report logs a periodic summary of the simulation.
func (s *Simulation) Report(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, e := range s.events {
		counts[e.Category]++
	}
	w := s.ledger.Wallet()
	slog.Info("periodic report",
		"tick", tick,
		"time", SimTime(tick),
		"balance", humanize.CommafWithDigits(w.Balance, 2),
		"lifetime", humanize.CommafWithDigits(w.LifetimeEarnings, 2),
		"nfts", len(s.ledger.NFTs()),
		"sessions", len(s.sessions.List()),
		"pending_tx", len(s.pool.Pending()),
		"events_chain", counts[CategoryChain],
		"events_research", counts[CategoryResearch],
		"events_earnings", counts[CategoryEarnings],
	)
}

// emit records an event and fans it out. Callers hold s.mu.
func (s *Simulation) emit(category, format string, args ...any) {
	e := Event{
		Tick:        s.lastTick,
		Time:        s.now(),
		Category:    category,
		Description: fmt.Sprintf(format, args...),
	}
	s.events = append(s.events, e)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default: // slow subscriber drops the event
		}
	}
}

// Subscribe returns a buffered event feed plus up to catchUp of the most
// recent events. Both are taken under one lock, so no event appears in the
// backlog and on the channel. Call Unsubscribe with the id when done.
func (s *Simulation) Subscribe(catchUp int) (int, []Event, <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[s.nextSub] = ch
	return s.nextSub, s.recentLocked(catchUp), ch
}

// Unsubscribe closes and removes a feed.
func (s *Simulation) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// Events returns up to limit of the most recent events, oldest first.
// A limit of 0 or less returns all retained events.
func (s *Simulation) Events(limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentLocked(limit)
}

func (s *Simulation) recentLocked(limit int) []Event {
	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	return append([]Event(nil), s.events[start:]...)
}

// --- Sessions ---

// CreateSession records a simulated recording.
func (s *Simulation) CreateSession(participant string, duration float64) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessions.Create(participant, duration)
	if err != nil {
		return nil, err
	}
	s.emit(CategorySession, "%s recorded a %.0fs %s session", sess.ParticipantName, sess.Duration, sess.MentalState)
	return sess, nil
}

// TokenizeResult is the outcome of tokenizing a session.
type TokenizeResult struct {
	Session session.Session `json:"session"`
	Receipt chain.Receipt   `json:"receipt"`
}

// TokenizeSession prices a session, submits its mint and marks it tokenized.
func (s *Simulation) TokenizeSession(id string) (TokenizeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessions.Get(id)
	if err != nil {
		return TokenizeResult{}, err
	}
	if sess.Tokenized {
		return TokenizeResult{}, apperr.NewConflictError(fmt.Sprintf("session %s already tokenized as %s", id, sess.TokenID))
	}

	price := valuation.SessionPrice(*sess)
	tokenID := fmt.Sprintf("SKY-NFT-%d", s.now().UnixMilli())
	rec := s.pool.Submit(chain.Transaction{
		ID:        tokenID,
		Type:      chain.TxMint,
		From:      chain.ZeroAddress,
		To:        sess.Owner,
		Data:      map[string]any{"session_id": id, "token_id": tokenID},
		Timestamp: s.now(),
	})
	if err := s.sessions.MarkTokenized(id, tokenID, price); err != nil {
		return TokenizeResult{}, fmt.Errorf("mark session tokenized: %w", err)
	}
	sess, _ = s.sessions.Get(id)
	s.emit(CategorySession, "session %s tokenized as %s for %.0f SKY", id, tokenID, price)
	return TokenizeResult{Session: *sess, Receipt: rec}, nil
}

// SubmitSession offers a raw session to a research request.
func (s *Simulation) SubmitSession(sessionID, requestID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return 0, err
	}
	reward, err := s.ledger.SubmitSession(*sess, requestID)
	if err != nil {
		return 0, err
	}
	s.emit(CategoryResearch, "session %s accepted by request %s for %.0f SKY", sessionID, requestID, reward)
	return reward, nil
}

func (s *Simulation) Sessions() []session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.List()
}

// --- NFTs ---

// MintResult is the outcome of minting an NFT.
type MintResult struct {
	NFT     ledger.DataNFT `json:"nft"`
	Receipt chain.Receipt  `json:"receipt"`
}

// MintNFT mints an NFT and submits its mint transaction.
func (s *Simulation) MintNFT(req ledger.MintRequest) (MintResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nft, err := s.ledger.Mint(req)
	if err != nil {
		return MintResult{}, err
	}
	rec := s.pool.Submit(chain.Transaction{
		ID:        nft.ID,
		Type:      chain.TxMint,
		From:      chain.ZeroAddress,
		To:        nft.Owner,
		Data:      map[string]any{"nft_id": nft.ID, "category": string(nft.Category)},
		Timestamp: s.now(),
	})
	if err := s.ledger.SetTxHash(nft.ID, rec.TxHash); err != nil {
		return MintResult{}, fmt.Errorf("record mint hash: %w", err)
	}
	nft.TxHash = rec.TxHash
	s.emit(CategoryNFT, "minted %s (%s, %s quality)", nft.TokenID, nft.Category, nft.Quality)
	return MintResult{NFT: *nft, Receipt: rec}, nil
}

func (s *Simulation) ListNFT(id string, price float64) (*ledger.DataNFT, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nft, err := s.ledger.List(id, price)
	if err != nil {
		return nil, err
	}
	s.emit(CategoryNFT, "%s listed for %.0f SKY", nft.TokenID, nft.Price)
	return nft, nil
}

// PurchaseResult is the outcome of buying an NFT.
type PurchaseResult struct {
	NFT     ledger.DataNFT `json:"nft"`
	Receipt chain.Receipt  `json:"receipt"`
}

func (s *Simulation) PurchaseNFT(id string) (PurchaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nft, err := s.ledger.Purchase(id)
	if err != nil {
		return PurchaseResult{}, err
	}
	rec := s.pool.Submit(chain.Transaction{
		ID:        nft.ID + "-sale",
		Type:      chain.TxTransfer,
		From:      s.ledger.Wallet().Address,
		To:        nft.Owner,
		Amount:    nft.Price,
		Timestamp: s.now(),
	})
	s.emit(CategoryNFT, "%s purchased for %.0f SKY", nft.TokenID, nft.Price)
	return PurchaseResult{NFT: *nft, Receipt: rec}, nil
}

// ResearchResult is the outcome of an accepted NFT submission.
type ResearchResult struct {
	ledger.SubmissionResult
	Receipt chain.Receipt `json:"receipt"`
}

// SubmitToResearch offers an NFT to a project and updates the owner's reputation.
func (s *Simulation) SubmitToResearch(nftID, projectID string) (ResearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.ledger.SubmitToResearch(nftID, projectID)
	if err != nil {
		return ResearchResult{}, err
	}
	owner := s.ledger.Wallet().Address
	impact := res.ImpactScore * 10 // wallet impact is 0..10, reputation 0..100
	s.reputation.Update(owner, reputation.Update{ResearchImpact: &impact})

	rec := s.pool.Submit(chain.Transaction{
		ID:        nftID + "-" + projectID,
		Type:      chain.TxResearchSubmit,
		From:      owner,
		Amount:    res.Reward,
		Data:      map[string]any{"nft_id": nftID, "project_id": projectID},
		Timestamp: s.now(),
	})
	s.emit(CategoryResearch, "%s accepted by %s for %.0f SKY", nftID, projectID, res.Reward)
	if res.ProjectCompleted {
		s.emit(CategoryResearch, "project %s reached its sample size", projectID)
	}
	return ResearchResult{SubmissionResult: res, Receipt: rec}, nil
}

func (s *Simulation) NFTs() []ledger.DataNFT {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.NFTs()
}

func (s *Simulation) Marketplace() []ledger.DataNFT {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Marketplace()
}

func (s *Simulation) Projects() []ledger.ResearchProject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Projects()
}

func (s *Simulation) Requests() []ledger.ResearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Requests()
}

// --- Staking and wallet ---

// StakeResult is the outcome of a stake.
type StakeResult struct {
	Position ledger.StakePosition `json:"position"`
	Receipt  chain.Receipt        `json:"receipt"`
}

func (s *Simulation) Stake(poolID string, amount float64, lockDays int) (StakeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, err := s.ledger.Stake(poolID, amount, lockDays)
	if err != nil {
		return StakeResult{}, err
	}
	rec := s.pool.Submit(chain.Transaction{
		ID:        pos.ID,
		Type:      chain.TxStake,
		From:      s.ledger.Wallet().Address,
		Amount:    amount,
		Data:      map[string]any{"pool_id": poolID, "lock_days": pos.LockDays},
		Timestamp: s.now(),
	})
	s.emit(CategoryStaking, "staked %s SKY in %s for %d days at %.2f%%",
		humanize.Commaf(amount), poolID, pos.LockDays, pos.Quote.RiskAdjustedAPY)
	return StakeResult{Position: pos, Receipt: rec}, nil
}

func (s *Simulation) ClaimGenesisBonus() (ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.ledger.ClaimGenesisBonus()
	if err != nil {
		return w, err
	}
	s.emit(CategoryWallet, "genesis bonus of %.0f SKY claimed", ledger.GenesisBonus)
	return w, nil
}

func (s *Simulation) Wallet() ledger.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Wallet()
}

func (s *Simulation) Achievements() []ledger.Achievement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Achievements()
}

func (s *Simulation) Pools() []ledger.StakePool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Pools()
}

func (s *Simulation) Positions() []ledger.StakePosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Positions()
}

// --- Quotes and reputation ---

// QuotePrice prices a data unit, applying the address's reputation when given.
func (s *Simulation) QuotePrice(quality, duration float64, cat valuation.Category, address string) valuation.PriceBreakdown {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rep *reputation.Score
	if address != "" {
		sc := s.reputation.Get(address)
		rep = &sc
	}
	return s.pricing.DynamicPrice(quality, duration, cat, rep)
}

// QuoteStaking projects rewards without staking.
func (s *Simulation) QuoteStaking(amount float64, cat staking.PoolCategory, lockDays int) (staking.Quote, error) {
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()
	return staking.Calculate(amount, cat, lockDays, now)
}

func (s *Simulation) Reputation(address string) reputation.Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reputation.Get(address)
}

func (s *Simulation) UpdateReputation(address string, u reputation.Update) reputation.Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.reputation.Update(address, u)
	s.emit(CategoryWallet, "reputation of %s now %.1f", shortHash(address), sc.Overall)
	return sc
}

// --- Delayed monetization ---

// Contribute records a contribution for delayed monetization.
func (s *Simulation) Contribute(userID, sessionID string, sig monetization.Signal, ctx monetization.Context, consents []monetization.DestinationType) (*monetization.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.earnings.Contribute(userID, sessionID, sig, ctx, consents)
	if err != nil {
		return nil, err
	}
	s.emit(CategoryEarnings, "contribution %s matched %d destinations, projected %.2f/yr",
		c.ID, len(c.Destinations), c.Earnings.Projected)
	return c, nil
}

// RealizeEarning pays one pending earning. False means it was not pending.
func (s *Simulation) RealizeEarning(contributionID, source string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.earnings.Realize(contributionID, source)
	if err != nil || !ok {
		return ok, err
	}
	s.emit(CategoryEarnings, "earning from %q on %s paid", source, contributionID)
	return true, nil
}

// ExpireEarning marks one pending earning as failed.
func (s *Simulation) ExpireEarning(contributionID, source string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.earnings.Expire(contributionID, source)
	if err != nil || !ok {
		return ok, err
	}
	s.emit(CategoryEarnings, "earning from %q on %s expired", source, contributionID)
	return true, nil
}

func (s *Simulation) Contributions(userID string) []monetization.Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.earnings.Contributions(userID)
}

func (s *Simulation) EarningsSummary(userID string) monetization.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.earnings.Summary(userID)
}

// DueEarnings lists pending earnings whose expected date has passed.
func (s *Simulation) DueEarnings() []monetization.DueEarning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.earnings.Due(s.now())
}

// --- Network and chain ---

func (s *Simulation) Network() market.NetworkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.market.Network()
}

func (s *Simulation) Market() market.Dynamics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.market.Dynamics()
}

func (s *Simulation) PendingTransactions() []chain.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Pending()
}

func (s *Simulation) Transaction(hash string) (chain.Receipt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Status(hash)
}

// Status summarizes the simulation.
func (s *Simulation) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.ledger.Wallet()
	n := s.market.Network()
	return Status{
		Tick:          s.lastTick,
		SimTime:       SimTime(s.lastTick),
		Congestion:    n.Congestion,
		Demand:        s.market.Demand(),
		TokenPrice:    s.market.LatestPrice(),
		Sessions:      len(s.sessions.List()),
		NFTs:          len(s.ledger.NFTs()),
		PendingTx:     len(s.pool.Pending()),
		Contributions: len(s.earnings.Contributions("")),
		WalletAddress: w.Address,
		WalletBalance: w.Balance,
		Events:        len(s.events),
		NetworkStatus: n,
	}
}

// --- Snapshots ---

// State copies every component for persistence.
func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Tick:          s.lastTick,
		Sessions:      s.sessions.List(),
		Ledger:        s.ledger.State(),
		Contributions: s.earnings.Contributions(""),
		Reputations:   s.reputation.Snapshot(),
		Network:       s.market.Network(),
		Market:        s.market.Dynamics(),
		PendingTx:     s.pool.Pending(),
		ConfirmedTx:   s.pool.Confirmed(),
		Events:        append([]Event(nil), s.events...),
	}
}

// Restore replaces every component with a snapshot. Market state is kept
// when the snapshot has no price history.
func (s *Simulation) Restore(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTick = st.Tick
	s.sessions.Restore(st.Sessions)
	s.ledger.Restore(st.Ledger)
	s.earnings.Restore(st.Contributions)
	s.reputation.Restore(st.Reputations)
	if len(st.Market.PriceHistory) > 0 {
		s.market.Restore(st.Network, st.Market)
	}
	s.pool.Restore(st.PendingTx, st.ConfirmedTx)
	s.events = append([]Event(nil), st.Events...)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}

func shortHash(h string) string {
	if len(h) <= 10 {
		return h
	}
	return h[:10]
}
