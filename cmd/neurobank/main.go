// Command neurobank runs the neural data bank simulator and its HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/neurobank/internal/api"
	"github.com/talgya/neurobank/internal/config"
	"github.com/talgya/neurobank/internal/engine"
	"github.com/talgya/neurobank/internal/entropy"
	"github.com/talgya/neurobank/internal/persistence"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("NeuroBank simulator starting", "seed", cfg.Seed, "speed", cfg.Speed)

	rng := entropy.FromConfig(cfg.RandomOrgAPIKey, cfg.Seed)
	switch {
	case cfg.RandomOrgAPIKey != "":
		slog.Info("random.org entropy enabled")
	case cfg.Seed == 0:
		slog.Info("SEED=0, drawing from crypto/rand")
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Load or Start Fresh ───────────────────────────────────────────
	sim := engine.NewSimulation(rng, cfg.Seed, nil)
	eng := engine.NewEngine()

	saved, err := db.HasState()
	if err != nil {
		slog.Error("failed to inspect database", "error", err)
		os.Exit(1)
	}
	if saved {
		slog.Info("found saved state, loading...")
		st, err := db.LoadState()
		if err != nil {
			slog.Error("failed to load state", "error", err)
			os.Exit(1)
		}
		if seed, ok, err := db.Seed(); err != nil {
			slog.Warn("stored seed unreadable", "error", err)
		} else if ok && seed != cfg.Seed {
			slog.Warn("SEED differs from the saved simulation; price history will not match",
				"saved", seed, "configured", cfg.Seed)
		}
		sim.Restore(st)
		eng.SetTick(st.Tick)
		slog.Info("state restored",
			"tick", st.Tick,
			"sessions", len(st.Sessions),
			"contributions", len(st.Contributions),
			"sim_time", engine.SimTime(st.Tick),
		)
	} else {
		slog.Info("no saved state found, starting fresh")
		if err := db.SaveState(sim.State()); err != nil {
			slog.Error("initial save failed", "error", err)
		}
		if err := db.SaveSeed(cfg.Seed); err != nil {
			slog.Error("failed to record seed", "error", err)
		}
	}

	eng.Interval = cfg.TickInterval
	eng.SetSpeed(cfg.Speed)

	// Wire tick callbacks. Snapshot cadence also persists.
	eng.OnTick = sim.TickSecond
	eng.OnConfirm = sim.TickConfirm
	eng.OnNetwork = sim.TickNetwork
	eng.OnMarket = sim.TickMarket
	eng.OnSnapshot = func(tick uint64) {
		sim.Report(tick)
		if err := db.SaveState(sim.State()); err != nil {
			slog.Error("snapshot save failed", "tick", tick, "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("ADMIN_KEY not set, admin endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:         sim,
		Eng:         eng,
		DB:          db,
		Port:        cfg.Port,
		AdminKey:    cfg.AdminKey,
		RelayKey:    cfg.RelayKey,
		CORSOrigins: cfg.CORSOrigins,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status := sim.Status()
	fmt.Printf("\nNeuroBank is live: wallet %s holding %.2f tokens.\n", status.WalletAddress, status.WalletBalance)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	if eng.Tick() > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", eng.Tick(), engine.SimTime(eng.Tick()))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveState(sim.State()); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulator stopped. State saved.")
}
