// Package engine provides the tick loop and the simulation context it drives.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Tick cadences. One tick is one simulated second at speed 1.
const (
	TicksPerConfirm  = 3
	TicksPerNetwork  = 5
	TicksPerMarket   = 10
	TicksPerSnapshot = 300
)

// minInterval floors the base tick interval so a zero Interval cannot spin.
const minInterval = time.Millisecond

// Engine drives the simulation forward.
type Engine struct {
	tick     atomic.Uint64 // monotonic, never resets
	running  atomic.Bool
	Interval time.Duration // base tick interval at speed 1

	mu    sync.Mutex
	speed float64 // 1.0 = real time, 0 = paused
	stop  chan struct{}

	// Callbacks for each cadence, populated during setup.
	OnTick     func(tick uint64) // every tick
	OnConfirm  func(tick uint64) // every 3 ticks
	OnNetwork  func(tick uint64) // every 5 ticks
	OnMarket   func(tick uint64) // every 10 ticks
	OnSnapshot func(tick uint64) // every 300 ticks
}

// NewEngine creates an engine at speed 1 with a one-second interval.
func NewEngine() *Engine {
	return &Engine{
		Interval: time.Second,
		speed:    1.0,
		stop:     make(chan struct{}),
	}
}

// Tick returns the current tick counter.
func (e *Engine) Tick() uint64 { return e.tick.Load() }

// SetTick resumes counting from a restored tick.
func (e *Engine) SetTick(t uint64) { e.tick.Store(t) }

// Running reports whether Run is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Speed returns the current multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the multiplier. Negative values pause.
func (e *Engine) SetSpeed(s float64) {
	if s < 0 {
		s = 0
	}
	e.mu.Lock()
	e.speed = s
	e.mu.Unlock()
}

// Run paces ticks by wall clock until Stop is called or ctx is done.
func (e *Engine) Run(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	for {
		speed := e.Speed()
		wait := 100 * time.Millisecond // paused poll
		if speed > 0 {
			start := time.Now()
			e.step()
			wait = time.Duration(float64(max(e.Interval, minInterval))/speed) - time.Since(start)
		}

		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick(), "reason", ctx.Err())
			return
		case <-e.stop:
			slog.Info("simulation engine stopped", "tick", e.Tick())
			return
		case <-time.After(max(wait, 0)):
		}
	}
}

// Stop halts Run. Calling it more than once is harmless.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
}

// Advance steps n ticks immediately, regardless of speed.
func (e *Engine) Advance(n int) {
	for range n {
		e.step()
	}
}

func (e *Engine) step() {
	t := e.tick.Add(1)

	if e.OnTick != nil {
		e.OnTick(t)
	}
	if t%TicksPerConfirm == 0 && e.OnConfirm != nil {
		e.OnConfirm(t)
	}
	if t%TicksPerNetwork == 0 && e.OnNetwork != nil {
		e.OnNetwork(t)
	}
	if t%TicksPerMarket == 0 && e.OnMarket != nil {
		e.OnMarket(t)
	}
	if t%TicksPerSnapshot == 0 && e.OnSnapshot != nil {
		e.OnSnapshot(t)
	}
}

// SimTime renders a tick as elapsed simulated time, e.g. "Day 2, 03:04:05".
func SimTime(tick uint64) string {
	secs := tick % 60
	mins := (tick / 60) % 60
	hours := (tick / 3600) % 24
	days := tick/86400 + 1
	return fmt.Sprintf("Day %d, %02d:%02d:%02d", days, hours, mins, secs)
}
