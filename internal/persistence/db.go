// Package persistence snapshots simulation state to SQLite.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/neurobank/internal/engine"
)

// Meta keys.
const (
	metaLastTick = "last_tick"
	metaSeed     = "seed"
	metaWallet   = "wallet"
	metaNetwork  = "network"
	metaMarket   = "market"
)

// DB wraps a SQLite connection for simulation snapshots.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps WAL mode simple and avoids SQLITE_BUSY under load.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		participant TEXT NOT NULL,
		duration REAL NOT NULL,
		recorded_at INTEGER NOT NULL,
		bands_json TEXT NOT NULL,
		mental_state TEXT NOT NULL,
		device_id TEXT NOT NULL,
		tokenized INTEGER NOT NULL,
		token_id TEXT NOT NULL,
		price REAL NOT NULL,
		owner TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS nfts (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		token_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		duration REAL NOT NULL,
		quality TEXT NOT NULL,
		price REAL NOT NULL,
		royalty REAL NOT NULL,
		owner TEXT NOT NULL,
		minted INTEGER NOT NULL,
		listed INTEGER NOT NULL,
		sales INTEGER NOT NULL,
		tx_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		channels_json TEXT NOT NULL,
		metadata_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS research_projects (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		title TEXT NOT NULL,
		institution TEXT NOT NULL,
		researcher TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		budget REAL NOT NULL,
		deadline INTEGER NOT NULL,
		status TEXT NOT NULL,
		submissions INTEGER NOT NULL,
		verified INTEGER NOT NULL,
		requirements_json TEXT NOT NULL,
		rewards_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS research_requests (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		title TEXT NOT NULL,
		researcher TEXT NOT NULL,
		compensation REAL NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		submissions INTEGER NOT NULL,
		max_submissions INTEGER NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0,
		criteria_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stake_pools (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		apy REAL NOT NULL,
		lock_period INTEGER NOT NULL,
		min_stake REAL NOT NULL,
		total_staked REAL NOT NULL,
		rewards TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stake_positions (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		pool_id TEXT NOT NULL,
		amount REAL NOT NULL,
		lock_days INTEGER NOT NULL,
		staked_at INTEGER NOT NULL,
		quote_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contributions (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		contributed_at INTEGER NOT NULL,
		data_value REAL NOT NULL,
		status TEXT NOT NULL,
		context_json TEXT NOT NULL,
		destinations_json TEXT NOT NULL,
		earnings_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reputations (
		address TEXT PRIMARY KEY,
		data_quality REAL NOT NULL,
		consistency REAL NOT NULL,
		research_impact REAL NOT NULL,
		community_engagement REAL NOT NULL,
		validator_accuracy REAL NOT NULL,
		overall REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		hash TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		queue TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		gas_estimate INTEGER NOT NULL,
		confirmation_time INTEGER NOT NULL,
		network_fee REAL NOT NULL,
		confirmations INTEGER NOT NULL,
		block_number INTEGER NOT NULL,
		submitted_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		occurred_at INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_contributions_user ON contributions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveSeed records the seed a fresh simulation was started with.
func (db *DB) SaveSeed(seed int64) error {
	return db.SaveMeta(metaSeed, strconv.FormatInt(seed, 10))
}

// Seed returns the recorded seed. ok is false when none was recorded.
func (db *DB) Seed() (seed int64, ok bool, err error) {
	raw, err := db.GetMeta(metaSeed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	seed, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse seed %q: %w", raw, err)
	}
	return seed, true, nil
}

// HasState reports whether a snapshot has been saved.
func (db *DB) HasState() (bool, error) {
	_, err := db.GetMeta(metaLastTick)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SaveState replaces the stored snapshot with st in one transaction.
func (db *DB) SaveState(st engine.State) error {
	slog.Info("saving simulation state",
		"tick", st.Tick,
		"sessions", len(st.Sessions),
		"nfts", len(st.Ledger.NFTs),
		"contributions", len(st.Contributions),
	)

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	steps := []struct {
		name string
		fn   func(*sqlx.Tx, engine.State) error
	}{
		{"sessions", saveSessions},
		{"nfts", saveNFTs},
		{"research projects", saveProjects},
		{"research requests", saveRequests},
		{"stake pools", savePools},
		{"stake positions", savePositions},
		{"contributions", saveContributions},
		{"reputations", saveReputations},
		{"transactions", saveTransactions},
		{"events", saveEvents},
	}
	for _, s := range steps {
		if err := s.fn(tx, st); err != nil {
			return fmt.Errorf("save %s: %w", s.name, err)
		}
	}

	meta := map[string]any{
		metaWallet:  st.Ledger.Wallet,
		metaNetwork: st.Network,
		metaMarket:  st.Market,
	}
	for key, v := range meta {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", key, string(b)); err != nil {
			return fmt.Errorf("save meta %s: %w", key, err)
		}
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		metaLastTick, strconv.FormatUint(st.Tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("simulation state saved", "tick", st.Tick)
	return nil
}

// LoadState reads the stored snapshot.
func (db *DB) LoadState() (engine.State, error) {
	var st engine.State

	tickStr, err := db.GetMeta(metaLastTick)
	if err != nil {
		return st, fmt.Errorf("load last tick: %w", err)
	}
	if st.Tick, err = strconv.ParseUint(tickStr, 10, 64); err != nil {
		return st, fmt.Errorf("parse last tick %q: %w", tickStr, err)
	}

	meta := map[string]any{
		metaWallet:  &st.Ledger.Wallet,
		metaNetwork: &st.Network,
		metaMarket:  &st.Market,
	}
	for key, dst := range meta {
		raw, err := db.GetMeta(key)
		if err != nil {
			return st, fmt.Errorf("load meta %s: %w", key, err)
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return st, fmt.Errorf("decode meta %s: %w", key, err)
		}
	}

	steps := []struct {
		name string
		fn   func(*sqlx.DB, *engine.State) error
	}{
		{"sessions", loadSessions},
		{"nfts", loadNFTs},
		{"research projects", loadProjects},
		{"research requests", loadRequests},
		{"stake pools", loadPools},
		{"stake positions", loadPositions},
		{"contributions", loadContributions},
		{"reputations", loadReputations},
		{"transactions", loadTransactions},
		{"events", loadEvents},
	}
	for _, s := range steps {
		if err := s.fn(db.conn, &st); err != nil {
			return st, fmt.Errorf("load %s: %w", s.name, err)
		}
	}
	return st, nil
}
