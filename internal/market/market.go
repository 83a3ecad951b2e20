// Package market simulates network congestion and researcher demand.
// Both drift on fixed tick cadences and feed pricing and fee quotes.
package market

import (
	"math"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"
	"golang.org/x/exp/constraints"

	"github.com/talgya/neurobank/internal/entropy"
	"github.com/talgya/neurobank/internal/valuation"
)

// Congestion is the simulated network load level.
type Congestion string

const (
	CongestionLow      Congestion = "low"
	CongestionMedium   Congestion = "medium"
	CongestionHigh     Congestion = "high"
	CongestionCritical Congestion = "critical"
)

// MaxHistory bounds the rolling price history.
const MaxHistory = 100

var blockTimes = map[Congestion]int{
	CongestionLow:      10,
	CongestionMedium:   12,
	CongestionHigh:     15,
	CongestionCritical: 20,
}

// priceDrift nudges the synthetic token price each market shift.
var priceDrift = map[valuation.Demand]float64{
	valuation.DemandVeryLow:  0.95,
	valuation.DemandLow:      0.98,
	valuation.DemandMedium:   1.0,
	valuation.DemandHigh:     1.02,
	valuation.DemandVeryHigh: 1.05,
}

// NetworkStatus is the current simulated network state.
type NetworkStatus struct {
	Congestion     Congestion `json:"congestion"`
	GasPrice       float64    `json:"gas_price"`  // gwei
	BlockTime      int        `json:"block_time"` // seconds
	PendingTxCount int        `json:"pending_tx_count"`
}

// PricePoint is one sample of the synthetic token price.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Dynamics is the aggregate research market state.
type Dynamics struct {
	TotalSupply        int64            `json:"total_supply"`
	ActiveResearchers  int              `json:"active_researchers"`
	DataSubmissions24h int              `json:"data_submissions_24h"`
	AverageQuality     float64          `json:"average_quality"`
	PriceHistory       []PricePoint     `json:"price_history"`
	Demand             valuation.Demand `json:"demand_indicator"`
}

// Simulator owns network and market state.
type Simulator struct {
	rng entropy.Source
	now func() time.Time

	network  NetworkStatus
	dynamics Dynamics
}

// NewSimulator creates a simulator with the launch state and a 31-day price history.
// seed drives the smooth noise in the seeded history.
func NewSimulator(rng entropy.Source, seed int64, now func() time.Time) *Simulator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	s := &Simulator{
		rng: rng,
		now: now,
		network: NetworkStatus{
			Congestion:     CongestionMedium,
			GasPrice:       21,
			BlockTime:      12,
			PendingTxCount: 127,
		},
		dynamics: Dynamics{
			TotalSupply:        21_000_000,
			ActiveResearchers:  1247,
			DataSubmissions24h: 3842,
			AverageQuality:     76.8,
			Demand:             valuation.DemandHigh,
		},
	}
	s.seedHistory(seed)
	return s
}

func (s *Simulator) seedHistory(seed int64) {
	noise := opensimplex.NewNormalized(seed)
	start := s.now()
	for i := 30; i >= 0; i-- {
		fi := float64(i)
		s.dynamics.PriceHistory = append(s.dynamics.PriceHistory, PricePoint{
			Timestamp: start.Add(-time.Duration(i) * 24 * time.Hour),
			Price:     45 + math.Sin(fi*0.5)*15 + noise.Eval2(fi*0.5, 0)*10,
		})
	}
}

// ShiftNetwork redraws congestion with weights 70% medium, 15% high,
// 10% low, 5% critical, and resets gas price and block time to match.
// Returns true when the congestion level changed.
func (s *Simulator) ShiftNetwork() bool {
	prev := s.network.Congestion
	r := s.rng.Float64()
	switch {
	case r < 0.7:
		s.network.Congestion = CongestionMedium
		s.network.GasPrice = entropy.Uniform(s.rng, 18, 28)
	case r < 0.85:
		s.network.Congestion = CongestionHigh
		s.network.GasPrice = entropy.Uniform(s.rng, 35, 55)
	case r < 0.95:
		s.network.Congestion = CongestionLow
		s.network.GasPrice = entropy.Uniform(s.rng, 10, 15)
	default:
		s.network.Congestion = CongestionCritical
		s.network.GasPrice = entropy.Uniform(s.rng, 80, 120)
	}
	s.network.PendingTxCount = 50 + int(s.rng.Float64()*300)
	s.network.BlockTime = blockTimes[s.network.Congestion]
	return s.network.Congestion != prev
}

// ShiftMarket perturbs researcher activity, rederives demand and appends a price point.
// Returns true when the demand level changed.
func (s *Simulator) ShiftMarket() bool {
	d := &s.dynamics
	prev := d.Demand

	d.ActiveResearchers = max(1, d.ActiveResearchers+int(math.Floor(s.rng.Float64()*20-10)))
	d.DataSubmissions24h = max(1, d.DataSubmissions24h+int(math.Floor(s.rng.Float64()*100-50)))
	d.AverageQuality = clamp(d.AverageQuality+(s.rng.Float64()-0.5)*2, 60, 95)

	d.Demand = DemandFor(float64(d.ActiveResearchers) / float64(d.DataSubmissions24h))

	last := 45.0
	if n := len(d.PriceHistory); n > 0 {
		last = d.PriceHistory[n-1].Price
	}
	d.PriceHistory = append(d.PriceHistory, PricePoint{
		Timestamp: s.now(),
		Price:     last * priceDrift[d.Demand] * (0.98 + s.rng.Float64()*0.04),
	})
	if len(d.PriceHistory) > MaxHistory {
		d.PriceHistory = d.PriceHistory[len(d.PriceHistory)-MaxHistory:]
	}

	return d.Demand != prev
}

// DemandFor maps a researcher/submission ratio onto a demand level.
func DemandFor(ratio float64) valuation.Demand {
	switch {
	case ratio > 0.4:
		return valuation.DemandVeryHigh
	case ratio > 0.3:
		return valuation.DemandHigh
	case ratio > 0.2:
		return valuation.DemandMedium
	case ratio > 0.1:
		return valuation.DemandLow
	}
	return valuation.DemandVeryLow
}

// Network returns a copy of the network status.
func (s *Simulator) Network() NetworkStatus { return s.network }

// Dynamics returns a copy of the market state, including its own history slice.
func (s *Simulator) Dynamics() Dynamics {
	d := s.dynamics
	d.PriceHistory = append([]PricePoint(nil), s.dynamics.PriceHistory...)
	return d
}

// Demand returns the current demand level.
func (s *Simulator) Demand() valuation.Demand { return s.dynamics.Demand }

// LatestPrice returns the most recent synthetic token price.
func (s *Simulator) LatestPrice() float64 {
	if n := len(s.dynamics.PriceHistory); n > 0 {
		return s.dynamics.PriceHistory[n-1].Price
	}
	return 0
}

// Restore replaces network and market state.
func (s *Simulator) Restore(n NetworkStatus, d Dynamics) {
	s.network = n
	s.dynamics = d
	s.dynamics.PriceHistory = append([]PricePoint(nil), d.PriceHistory...)
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
