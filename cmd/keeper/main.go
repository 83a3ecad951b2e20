// Command keeper runs the payout steward for NeuroBank. It observes due
// earnings, picks a batch to pay, and settles them via the admin API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/neurobank/internal/config"
	"github.com/talgya/neurobank/internal/keeper"
)

const memoryFile = "keeper_memory.json"

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.AdminKey == "" {
		slog.Error("ADMIN_KEY is required")
		os.Exit(1)
	}

	slog.Info("NeuroBank keeper starting",
		"api_url", cfg.KeeperAPIURL,
		"interval", cfg.KeeperInterval,
		"batch", cfg.KeeperBatch,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Process start order does not guarantee HTTP readiness.
	slog.Info("waiting for neurobank API...")
	if err := keeper.WaitForAPI(ctx, cfg.KeeperAPIURL, 5*time.Minute); err != nil {
		slog.Error("neurobank API unavailable", "error", err)
		os.Exit(1)
	}

	mem := keeper.LoadMemory(memoryFile)
	if len(mem.Records) > 0 {
		slog.Info("keeper memory loaded", "cycles", len(mem.Records))
		slog.Debug("recent cycles\n" + mem.Summary(5))
	}
	k := keeper.New(cfg.KeeperAPIURL, cfg.AdminKey, cfg.KeeperBatch, mem)

	runCycle(k)

	ticker := time.NewTicker(cfg.KeeperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCycle(k)
		case <-ctx.Done():
			slog.Info("received signal, shutting down")
			fmt.Println("Keeper stopped.")
			return
		}
	}
}

func runCycle(k *keeper.Keeper) {
	if _, err := k.RunCycle(); err != nil {
		slog.Error("keeper cycle failed", "error", err)
	}
}
