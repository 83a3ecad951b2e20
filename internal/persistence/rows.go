package persistence

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/neurobank/internal/chain"
	"github.com/talgya/neurobank/internal/engine"
	"github.com/talgya/neurobank/internal/ledger"
	"github.com/talgya/neurobank/internal/monetization"
	"github.com/talgya/neurobank/internal/reputation"
	"github.com/talgya/neurobank/internal/session"
	"github.com/talgya/neurobank/internal/staking"
	"github.com/talgya/neurobank/internal/valuation"
)

// Timestamps are stored as Unix nanoseconds so snapshots restore exactly.
// nanos stores the zero time as 0 so "never" survives a round trip.
func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// codec collects the first marshal error across a batch of JSON columns.
type codec struct{ err error }

func (c *codec) encode(v any) string {
	if c.err != nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.err = err
		return ""
	}
	return string(b)
}

func (c *codec) decode(raw string, dst any) {
	if c.err != nil {
		return
	}
	c.err = json.Unmarshal([]byte(raw), dst)
}

// replace clears table, then inserts n rows built by args.
func replace(tx *sqlx.Tx, table, insert string, n int, args func(i int) ([]any, error)) error {
	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		return err
	}
	stmt, err := tx.Preparex(insert)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := range n {
		row, err := args(i)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(row...); err != nil {
			return err
		}
	}
	return nil
}

// --- sessions ---

type sessionRow struct {
	ID          string  `db:"id"`
	Participant string  `db:"participant"`
	Duration    float64 `db:"duration"`
	RecordedAt  int64   `db:"recorded_at"`
	BandsJSON   string  `db:"bands_json"`
	MentalState string  `db:"mental_state"`
	DeviceID    string  `db:"device_id"`
	Tokenized   bool    `db:"tokenized"`
	TokenID     string  `db:"token_id"`
	Price       float64 `db:"price"`
	Owner       string  `db:"owner"`
}

func saveSessions(tx *sqlx.Tx, st engine.State) error {
	return replace(tx, "sessions", `INSERT INTO sessions
		(id, seq, participant, duration, recorded_at, bands_json, mental_state, device_id, tokenized, token_id, price, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(st.Sessions), func(i int) ([]any, error) {
			s := st.Sessions[i]
			var c codec
			bands := c.encode(s.Bands)
			return []any{s.ID, i, s.ParticipantName, s.Duration, nanos(s.Timestamp), bands,
				string(s.MentalState), s.DeviceID, s.Tokenized, s.TokenID, s.Price, s.Owner}, c.err
		})
}

func loadSessions(conn *sqlx.DB, st *engine.State) error {
	var rows []sessionRow
	if err := conn.Select(&rows, `SELECT id, participant, duration, recorded_at, bands_json,
		mental_state, device_id, tokenized, token_id, price, owner FROM sessions ORDER BY seq`); err != nil {
		return err
	}
	var c codec
	for _, r := range rows {
		s := session.Session{
			ID:              r.ID,
			ParticipantName: r.Participant,
			Duration:        r.Duration,
			Timestamp:       fromNanos(r.RecordedAt),
			MentalState:     session.MentalState(r.MentalState),
			DeviceID:        r.DeviceID,
			Tokenized:       r.Tokenized,
			TokenID:         r.TokenID,
			Price:           r.Price,
			Owner:           r.Owner,
		}
		c.decode(r.BandsJSON, &s.Bands)
		st.Sessions = append(st.Sessions, s)
	}
	return c.err
}

// --- nfts ---

type nftRow struct {
	ID           string  `db:"id"`
	TokenID      string  `db:"token_id"`
	Title        string  `db:"title"`
	Description  string  `db:"description"`
	Category     string  `db:"category"`
	Duration     float64 `db:"duration"`
	Quality      string  `db:"quality"`
	Price        float64 `db:"price"`
	Royalty      float64 `db:"royalty"`
	Owner        string  `db:"owner"`
	Minted       bool    `db:"minted"`
	Listed       bool    `db:"listed"`
	Sales        int     `db:"sales"`
	TxHash       string  `db:"tx_hash"`
	CreatedAt    int64   `db:"created_at"`
	ChannelsJSON string  `db:"channels_json"`
	MetadataJSON string  `db:"metadata_json"`
}

func saveNFTs(tx *sqlx.Tx, st engine.State) error {
	nfts := st.Ledger.NFTs
	return replace(tx, "nfts", `INSERT INTO nfts
		(id, seq, token_id, title, description, category, duration, quality, price, royalty, owner,
		 minted, listed, sales, tx_hash, created_at, channels_json, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(nfts), func(i int) ([]any, error) {
			n := nfts[i]
			var c codec
			channels := c.encode(n.Channels)
			meta := c.encode(n.Metadata)
			return []any{n.ID, i, n.TokenID, n.Title, n.Description, string(n.Category), n.Duration,
				string(n.Quality), n.Price, n.RoyaltyPercentage, n.Owner, n.Minted, n.Listed, n.Sales,
				n.TxHash, nanos(n.CreatedAt), channels, meta}, c.err
		})
}

func loadNFTs(conn *sqlx.DB, st *engine.State) error {
	var rows []nftRow
	if err := conn.Select(&rows, `SELECT id, token_id, title, description, category, duration,
		quality, price, royalty, owner, minted, listed, sales, tx_hash, created_at,
		channels_json, metadata_json FROM nfts ORDER BY seq`); err != nil {
		return err
	}
	var c codec
	for _, r := range rows {
		n := ledger.DataNFT{
			ID:                r.ID,
			TokenID:           r.TokenID,
			Title:             r.Title,
			Description:       r.Description,
			Category:          valuation.Category(r.Category),
			Duration:          r.Duration,
			Quality:           valuation.QualityTier(r.Quality),
			Price:             r.Price,
			RoyaltyPercentage: r.Royalty,
			Owner:             r.Owner,
			Minted:            r.Minted,
			Listed:            r.Listed,
			Sales:             r.Sales,
			TxHash:            r.TxHash,
			CreatedAt:         fromNanos(r.CreatedAt),
		}
		c.decode(r.ChannelsJSON, &n.Channels)
		c.decode(r.MetadataJSON, &n.Metadata)
		st.Ledger.NFTs = append(st.Ledger.NFTs, n)
	}
	return c.err
}

// --- research ---

type projectRow struct {
	ID               string  `db:"id"`
	Title            string  `db:"title"`
	Institution      string  `db:"institution"`
	Researcher       string  `db:"researcher"`
	Description      string  `db:"description"`
	Category         string  `db:"category"`
	Budget           float64 `db:"budget"`
	Deadline         int64   `db:"deadline"`
	Status           string  `db:"status"`
	Submissions      int     `db:"submissions"`
	Verified         bool    `db:"verified"`
	RequirementsJSON string  `db:"requirements_json"`
	RewardsJSON      string  `db:"rewards_json"`
}

func saveProjects(tx *sqlx.Tx, st engine.State) error {
	ps := st.Ledger.Projects
	return replace(tx, "research_projects", `INSERT INTO research_projects
		(id, seq, title, institution, researcher, description, category, budget, deadline,
		 status, submissions, verified, requirements_json, rewards_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(ps), func(i int) ([]any, error) {
			p := ps[i]
			var c codec
			req := c.encode(p.Requirements)
			rew := c.encode(p.Rewards)
			return []any{p.ID, i, p.Title, p.Institution, p.Researcher, p.Description, p.Category,
				p.Budget, nanos(p.Deadline), string(p.Status), p.Submissions, p.Verified, req, rew}, c.err
		})
}

func loadProjects(conn *sqlx.DB, st *engine.State) error {
	var rows []projectRow
	if err := conn.Select(&rows, `SELECT id, title, institution, researcher, description, category,
		budget, deadline, status, submissions, verified, requirements_json, rewards_json
		FROM research_projects ORDER BY seq`); err != nil {
		return err
	}
	var c codec
	for _, r := range rows {
		p := ledger.ResearchProject{
			ID:          r.ID,
			Title:       r.Title,
			Institution: r.Institution,
			Researcher:  r.Researcher,
			Description: r.Description,
			Category:    r.Category,
			Budget:      r.Budget,
			Deadline:    fromNanos(r.Deadline),
			Status:      ledger.ProjectStatus(r.Status),
			Submissions: r.Submissions,
			Verified:    r.Verified,
		}
		c.decode(r.RequirementsJSON, &p.Requirements)
		c.decode(r.RewardsJSON, &p.Rewards)
		st.Ledger.Projects = append(st.Ledger.Projects, p)
	}
	return c.err
}

type requestRow struct {
	ID             string  `db:"id"`
	Title          string  `db:"title"`
	Researcher     string  `db:"researcher"`
	Compensation   float64 `db:"compensation"`
	Currency       string  `db:"currency"`
	Status         string  `db:"status"`
	Submissions    int     `db:"submissions"`
	MaxSubmissions int     `db:"max_submissions"`
	ExpiresAt      int64   `db:"expires_at"`
	CriteriaJSON   string  `db:"criteria_json"`
}

func saveRequests(tx *sqlx.Tx, st engine.State) error {
	rs := st.Ledger.Requests
	return replace(tx, "research_requests", `INSERT INTO research_requests
		(id, seq, title, researcher, compensation, currency, status, submissions, max_submissions, expires_at, criteria_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(rs), func(i int) ([]any, error) {
			r := rs[i]
			var c codec
			crit := c.encode(r.Criteria)
			return []any{r.ID, i, r.Title, r.Researcher, r.Compensation, r.Currency, string(r.Status),
				r.Submissions, r.MaxSubmissions, nanos(r.ExpiresAt), crit}, c.err
		})
}

func loadRequests(conn *sqlx.DB, st *engine.State) error {
	var rows []requestRow
	if err := conn.Select(&rows, `SELECT id, title, researcher, compensation, currency, status,
		submissions, max_submissions, expires_at, criteria_json FROM research_requests ORDER BY seq`); err != nil {
		return err
	}
	var c codec
	for _, r := range rows {
		req := ledger.ResearchRequest{
			ID:             r.ID,
			Title:          r.Title,
			Researcher:     r.Researcher,
			Compensation:   r.Compensation,
			Currency:       r.Currency,
			Status:         ledger.RequestStatus(r.Status),
			Submissions:    r.Submissions,
			MaxSubmissions: r.MaxSubmissions,
			ExpiresAt:      fromNanos(r.ExpiresAt),
		}
		c.decode(r.CriteriaJSON, &req.Criteria)
		st.Ledger.Requests = append(st.Ledger.Requests, req)
	}
	return c.err
}

// --- staking ---

type poolRow struct {
	ID          string  `db:"id"`
	Name        string  `db:"name"`
	APY         float64 `db:"apy"`
	LockPeriod  int     `db:"lock_period"`
	MinStake    float64 `db:"min_stake"`
	TotalStaked float64 `db:"total_staked"`
	Rewards     string  `db:"rewards"`
	Category    string  `db:"category"`
}

func savePools(tx *sqlx.Tx, st engine.State) error {
	ps := st.Ledger.Pools
	return replace(tx, "stake_pools", `INSERT INTO stake_pools
		(id, seq, name, apy, lock_period, min_stake, total_staked, rewards, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(ps), func(i int) ([]any, error) {
			p := ps[i]
			return []any{p.ID, i, p.Name, p.APY, p.LockPeriod, p.MinStake, p.TotalStaked,
				p.Rewards, string(p.Category)}, nil
		})
}

func loadPools(conn *sqlx.DB, st *engine.State) error {
	var rows []poolRow
	if err := conn.Select(&rows, `SELECT id, name, apy, lock_period, min_stake, total_staked,
		rewards, category FROM stake_pools ORDER BY seq`); err != nil {
		return err
	}
	for _, r := range rows {
		st.Ledger.Pools = append(st.Ledger.Pools, ledger.StakePool{
			ID:          r.ID,
			Name:        r.Name,
			APY:         r.APY,
			LockPeriod:  r.LockPeriod,
			MinStake:    r.MinStake,
			TotalStaked: r.TotalStaked,
			Rewards:     r.Rewards,
			Category:    staking.PoolCategory(r.Category),
		})
	}
	return nil
}

type positionRow struct {
	ID        string  `db:"id"`
	PoolID    string  `db:"pool_id"`
	Amount    float64 `db:"amount"`
	LockDays  int     `db:"lock_days"`
	StakedAt  int64   `db:"staked_at"`
	QuoteJSON string  `db:"quote_json"`
}

func savePositions(tx *sqlx.Tx, st engine.State) error {
	ps := st.Ledger.Positions
	return replace(tx, "stake_positions", `INSERT INTO stake_positions
		(id, seq, pool_id, amount, lock_days, staked_at, quote_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(ps), func(i int) ([]any, error) {
			p := ps[i]
			var c codec
			quote := c.encode(p.Quote)
			return []any{p.ID, i, p.PoolID, p.Amount, p.LockDays, nanos(p.StakedAt), quote}, c.err
		})
}

func loadPositions(conn *sqlx.DB, st *engine.State) error {
	var rows []positionRow
	if err := conn.Select(&rows, `SELECT id, pool_id, amount, lock_days, staked_at, quote_json
		FROM stake_positions ORDER BY seq`); err != nil {
		return err
	}
	var c codec
	for _, r := range rows {
		p := ledger.StakePosition{
			ID:       r.ID,
			PoolID:   r.PoolID,
			Amount:   r.Amount,
			LockDays: r.LockDays,
			StakedAt: fromNanos(r.StakedAt),
		}
		c.decode(r.QuoteJSON, &p.Quote)
		st.Ledger.Positions = append(st.Ledger.Positions, p)
	}
	return c.err
}

// --- contributions ---

type contributionRow struct {
	ID               string  `db:"id"`
	UserID           string  `db:"user_id"`
	SessionID        string  `db:"session_id"`
	ContributedAt    int64   `db:"contributed_at"`
	DataValue        float64 `db:"data_value"`
	Status           string  `db:"status"`
	ContextJSON      string  `db:"context_json"`
	DestinationsJSON string  `db:"destinations_json"`
	EarningsJSON     string  `db:"earnings_json"`
}

func saveContributions(tx *sqlx.Tx, st engine.State) error {
	cs := st.Contributions
	return replace(tx, "contributions", `INSERT INTO contributions
		(id, seq, user_id, session_id, contributed_at, data_value, status, context_json, destinations_json, earnings_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(cs), func(i int) ([]any, error) {
			ct := cs[i]
			var c codec
			ctx := c.encode(ct.Context)
			dests := c.encode(ct.Destinations)
			earn := c.encode(ct.Earnings)
			return []any{ct.ID, i, ct.UserID, ct.SessionID, nanos(ct.Timestamp), ct.DataValue,
				string(ct.Status), ctx, dests, earn}, c.err
		})
}

func loadContributions(conn *sqlx.DB, st *engine.State) error {
	var rows []contributionRow
	if err := conn.Select(&rows, `SELECT id, user_id, session_id, contributed_at, data_value, status,
		context_json, destinations_json, earnings_json FROM contributions ORDER BY seq`); err != nil {
		return err
	}
	var c codec
	for _, r := range rows {
		ct := monetization.Contribution{
			ID:        r.ID,
			UserID:    r.UserID,
			SessionID: r.SessionID,
			Timestamp: fromNanos(r.ContributedAt),
			DataValue: r.DataValue,
			Status:    monetization.Status(r.Status),
		}
		c.decode(r.ContextJSON, &ct.Context)
		c.decode(r.DestinationsJSON, &ct.Destinations)
		c.decode(r.EarningsJSON, &ct.Earnings)
		st.Contributions = append(st.Contributions, ct)
	}
	return c.err
}

// --- reputations ---

func saveReputations(tx *sqlx.Tx, st engine.State) error {
	addrs := make([]string, 0, len(st.Reputations))
	for a := range st.Reputations {
		addrs = append(addrs, a)
	}
	return replace(tx, "reputations", `INSERT INTO reputations
		(address, data_quality, consistency, research_impact, community_engagement, validator_accuracy, overall)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(addrs), func(i int) ([]any, error) {
			s := st.Reputations[addrs[i]]
			return []any{addrs[i], s.DataQuality, s.Consistency, s.ResearchImpact,
				s.CommunityEngagement, s.ValidatorAccuracy, s.Overall}, nil
		})
}

func loadReputations(conn *sqlx.DB, st *engine.State) error {
	var rows []struct {
		Address             string  `db:"address"`
		DataQuality         float64 `db:"data_quality"`
		Consistency         float64 `db:"consistency"`
		ResearchImpact      float64 `db:"research_impact"`
		CommunityEngagement float64 `db:"community_engagement"`
		ValidatorAccuracy   float64 `db:"validator_accuracy"`
		Overall             float64 `db:"overall"`
	}
	if err := conn.Select(&rows, `SELECT address, data_quality, consistency, research_impact,
		community_engagement, validator_accuracy, overall FROM reputations`); err != nil {
		return err
	}
	st.Reputations = make(map[string]reputation.Score, len(rows))
	for _, r := range rows {
		st.Reputations[r.Address] = reputation.Score{
			DataQuality:         r.DataQuality,
			Consistency:         r.Consistency,
			ResearchImpact:      r.ResearchImpact,
			CommunityEngagement: r.CommunityEngagement,
			ValidatorAccuracy:   r.ValidatorAccuracy,
			Overall:             r.Overall,
		}
	}
	return nil
}

// --- transactions ---

const (
	queuePending   = "pending"
	queueConfirmed = "confirmed"
)

type txRow struct {
	Hash             string  `db:"hash"`
	Queue            string  `db:"queue"`
	Type             string  `db:"type"`
	Status           string  `db:"status"`
	GasEstimate      int     `db:"gas_estimate"`
	ConfirmationTime int     `db:"confirmation_time"`
	NetworkFee       float64 `db:"network_fee"`
	Confirmations    int     `db:"confirmations"`
	BlockNumber      int64   `db:"block_number"`
	SubmittedAt      int64   `db:"submitted_at"`
}

func saveTransactions(tx *sqlx.Tx, st engine.State) error {
	all := make([]chain.Receipt, 0, len(st.PendingTx)+len(st.ConfirmedTx))
	all = append(all, st.PendingTx...)
	all = append(all, st.ConfirmedTx...)
	return replace(tx, "transactions", `INSERT INTO transactions
		(hash, seq, queue, type, status, gas_estimate, confirmation_time, network_fee,
		 confirmations, block_number, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(all), func(i int) ([]any, error) {
			r := all[i]
			queue := queuePending
			if i >= len(st.PendingTx) {
				queue = queueConfirmed
			}
			return []any{r.TxHash, i, queue, string(r.Type), string(r.Status), r.GasEstimate,
				r.ConfirmationTime, r.NetworkFee, r.Confirmations, int64(r.BlockNumber),
				nanos(r.SubmittedAt)}, nil
		})
}

func loadTransactions(conn *sqlx.DB, st *engine.State) error {
	var rows []txRow
	if err := conn.Select(&rows, `SELECT hash, queue, type, status, gas_estimate, confirmation_time,
		network_fee, confirmations, block_number, submitted_at FROM transactions ORDER BY seq`); err != nil {
		return err
	}
	for _, r := range rows {
		rec := chain.Receipt{
			TxHash:           r.Hash,
			Type:             chain.TxType(r.Type),
			Status:           chain.TxStatus(r.Status),
			GasEstimate:      r.GasEstimate,
			ConfirmationTime: r.ConfirmationTime,
			NetworkFee:       r.NetworkFee,
			Confirmations:    r.Confirmations,
			BlockNumber:      uint64(r.BlockNumber),
			SubmittedAt:      fromNanos(r.SubmittedAt),
		}
		if r.Queue == queueConfirmed {
			st.ConfirmedTx = append(st.ConfirmedTx, rec)
		} else {
			st.PendingTx = append(st.PendingTx, rec)
		}
	}
	return nil
}

// --- events ---

type eventRow struct {
	Tick        int64  `db:"tick"`
	OccurredAt  int64  `db:"occurred_at"`
	Description string `db:"description"`
	Category    string `db:"category"`
}

func (r eventRow) event() engine.Event {
	return engine.Event{
		Tick:        uint64(r.Tick),
		Time:        fromNanos(r.OccurredAt),
		Category:    r.Category,
		Description: r.Description,
	}
}

func saveEvents(tx *sqlx.Tx, st engine.State) error {
	return replace(tx, "events", `INSERT INTO events (tick, occurred_at, description, category)
		VALUES (?, ?, ?, ?)`,
		len(st.Events), func(i int) ([]any, error) {
			e := st.Events[i]
			return []any{int64(e.Tick), nanos(e.Time), e.Description, e.Category}, nil
		})
}

func loadEvents(conn *sqlx.DB, st *engine.State) error {
	var rows []eventRow
	if err := conn.Select(&rows, "SELECT tick, occurred_at, description, category FROM events ORDER BY id"); err != nil {
		return err
	}
	for _, r := range rows {
		st.Events = append(st.Events, r.event())
	}
	return nil
}
