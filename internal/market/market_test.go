package market

import (
	"math"
	"testing"
	"time"

	"github.com/talgya/neurobank/internal/entropy"
	"github.com/talgya/neurobank/internal/valuation"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestNewSimulatorSeedsHistory(t *testing.T) {
	s := NewSimulator(entropy.NewSeeded(1), 42, fixedNow)
	d := s.Dynamics()
	if len(d.PriceHistory) != 31 {
		t.Fatalf("expected 31 seeded points, got %d", len(d.PriceHistory))
	}
	if !d.PriceHistory[30].Timestamp.Equal(fixedNow()) {
		t.Fatalf("last seeded point should be now, got %v", d.PriceHistory[30].Timestamp)
	}
	for _, p := range d.PriceHistory {
		if p.Price < 30 || p.Price > 70 {
			t.Fatalf("seeded price %v outside expected band", p.Price)
		}
	}
	if d.Demand != valuation.DemandHigh || s.Network().Congestion != CongestionMedium {
		t.Fatalf("unexpected launch state: %+v %+v", d, s.Network())
	}

	again := NewSimulator(entropy.NewSeeded(1), 42, fixedNow).Dynamics()
	if again.PriceHistory[10].Price != d.PriceHistory[10].Price {
		t.Fatal("seeded history not reproducible")
	}
}

func TestShiftNetworkBranches(t *testing.T) {
	tests := []struct {
		draw       entropy.Constant
		congestion Congestion
		gas        float64
		blockTime  int
	}{
		{0, CongestionMedium, 18, 12},
		{0.8, CongestionHigh, 51, 15},
		{0.9, CongestionLow, 14.5, 10},
		{0.97, CongestionCritical, 118.8, 20},
	}
	for _, tc := range tests {
		s := NewSimulator(tc.draw, 1, fixedNow)
		s.ShiftNetwork()
		n := s.Network()
		if n.Congestion != tc.congestion || n.BlockTime != tc.blockTime {
			t.Errorf("draw %v: got %+v", tc.draw, n)
		}
		if math.Abs(n.GasPrice-tc.gas) > 1e-9 {
			t.Errorf("draw %v: gas %v, want %v", tc.draw, n.GasPrice, tc.gas)
		}
		if n.PendingTxCount < 50 || n.PendingTxCount >= 350 {
			t.Errorf("pending count %d out of range", n.PendingTxCount)
		}
	}
}

func TestShiftNetworkReportsChange(t *testing.T) {
	s := NewSimulator(entropy.Constant(0), 1, fixedNow)
	if s.ShiftNetwork() {
		t.Fatal("medium to medium should not report a change")
	}
	s = NewSimulator(entropy.Constant(0.97), 1, fixedNow)
	if !s.ShiftNetwork() {
		t.Fatal("medium to critical should report a change")
	}
}

func TestDemandFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  valuation.Demand
	}{
		{0.5, valuation.DemandVeryHigh},
		{0.35, valuation.DemandHigh},
		{0.25, valuation.DemandMedium},
		{0.15, valuation.DemandLow},
		{0.1, valuation.DemandVeryLow},
		{0, valuation.DemandVeryLow},
	}
	for _, tc := range tests {
		if got := DemandFor(tc.ratio); got != tc.want {
			t.Errorf("DemandFor(%v) = %s, want %s", tc.ratio, got, tc.want)
		}
	}
}

func TestShiftMarketDerivesDemand(t *testing.T) {
	s := NewSimulator(entropy.Constant(0.5), 1, fixedNow)
	d := s.Dynamics()
	d.ActiveResearchers = 100
	d.DataSubmissions24h = 1000
	s.Restore(s.Network(), d)

	last := s.LatestPrice()
	if !s.ShiftMarket() {
		t.Fatal("high to very_low should report a change")
	}
	if s.Demand() != valuation.DemandVeryLow {
		t.Fatalf("demand = %s, want very_low", s.Demand())
	}
	if want := last * 0.95; math.Abs(s.LatestPrice()-want) > 1e-9 {
		t.Fatalf("price = %v, want %v", s.LatestPrice(), want)
	}
}

func TestShiftMarketBounds(t *testing.T) {
	s := NewSimulator(entropy.NewSeeded(9), 1, fixedNow)
	for i := 0; i < 500; i++ {
		s.ShiftMarket()
		d := s.Dynamics()
		if d.AverageQuality < 60 || d.AverageQuality > 95 {
			t.Fatalf("average quality %v escaped [60,95]", d.AverageQuality)
		}
		if d.ActiveResearchers < 1 || d.DataSubmissions24h < 1 {
			t.Fatalf("counts fell below 1: %+v", d)
		}
		if len(d.PriceHistory) > MaxHistory {
			t.Fatalf("history grew to %d", len(d.PriceHistory))
		}
	}
	if got := len(s.Dynamics().PriceHistory); got != MaxHistory {
		t.Fatalf("history length = %d, want %d", got, MaxHistory)
	}
}

func TestDynamicsCopyIsolated(t *testing.T) {
	s := NewSimulator(entropy.NewSeeded(1), 1, fixedNow)
	d := s.Dynamics()
	d.PriceHistory[0].Price = -1
	if s.Dynamics().PriceHistory[0].Price == -1 {
		t.Fatal("Dynamics leaked history slice")
	}
}

func TestFees(t *testing.T) {
	s := NewSimulator(entropy.Constant(0.5), 1, fixedNow)

	if got := s.ConfirmationTime(); got != 93 {
		t.Fatalf("confirmation time = %d, want 93", got)
	}
	if got := s.NetworkFee(21000); math.Abs(got-0.441) > 1e-9 {
		t.Fatalf("fee = %v, want 0.441", got)
	}

	n := s.Network()
	n.Congestion = CongestionLow
	s.Restore(n, s.Dynamics())
	if got := s.GasEstimate("transfer", false); got != 21000 {
		t.Fatalf("low transfer gas = %d", got)
	}
	n.Congestion = CongestionCritical
	s.Restore(n, s.Dynamics())
	if got := s.GasEstimate("transfer", false); got != 42000 {
		t.Fatalf("critical transfer gas = %d", got)
	}
	if got := s.GasEstimate("unknown", false); got != 100000 {
		t.Fatalf("critical default gas = %d", got)
	}
}
