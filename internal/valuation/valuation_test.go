package valuation

import (
	"math"
	"strings"
	"testing"

	"github.com/talgya/neurobank/internal/entropy"
	"github.com/talgya/neurobank/internal/reputation"
	"github.com/talgya/neurobank/internal/session"
)

func fixedEngine(d Demand) *Engine {
	return NewEngine(func() Demand { return d }, entropy.Constant(0))
}

func TestTierForMonotonic(t *testing.T) {
	prev := 0
	for q := 0.0; q <= 100; q += 0.5 {
		rank := TierFor(q).Rank()
		if rank < prev {
			t.Fatalf("tier rank dropped at quality %v", q)
		}
		prev = rank
	}

	tests := []struct {
		q    float64
		want QualityTier
	}{
		{0, TierBasic},
		{69.9, TierBasic},
		{70, TierStandard},
		{85, TierStandard},
		{85.01, TierPremium},
		{100, TierPremium},
	}
	for _, tc := range tests {
		if got := TierFor(tc.q); got != tc.want {
			t.Errorf("TierFor(%v) = %s, want %s", tc.q, got, tc.want)
		}
	}
}

func TestMeets(t *testing.T) {
	if !Meets(TierPremium, TierStandard) || !Meets(TierStandard, TierStandard) {
		t.Fatal("higher or equal tier should meet requirement")
	}
	if Meets(TierBasic, TierStandard) {
		t.Fatal("basic should not meet standard")
	}
}

func TestDynamicPricePinned(t *testing.T) {
	e := fixedEngine(DemandHigh)

	got := e.DynamicPrice(95, 300, CategoryMeditation, nil)
	if got.TotalPrice != 121 {
		t.Fatalf("total = %v, want 121 (%+v)", got.TotalPrice, got)
	}
	if got.RarityBonus != 0 || got.ReputationBonus != 0 {
		t.Fatalf("unexpected bonuses: %+v", got)
	}
	if !strings.HasPrefix(got.Breakdown, "Base: $50 | Quality: +$22 | Demand: x1.68") {
		t.Fatalf("unexpected breakdown %q", got.Breakdown)
	}

	rep := &reputation.Score{Overall: 50}
	withRep := e.DynamicPrice(95, 300, CategoryMeditation, rep)
	if withRep.ReputationBonus != 15 || withRep.TotalPrice != 147 {
		t.Fatalf("with reputation = %+v", withRep)
	}
}

func TestDynamicPriceBelowThresholdHasNoQualityBonus(t *testing.T) {
	e := fixedEngine(DemandMedium)
	for _, q := range []float64{0, 50, 85} {
		if b := e.DynamicPrice(q, 300, CategoryFocus, nil); b.QualityBonus != 0 {
			t.Fatalf("quality %v produced bonus %v", q, b.QualityBonus)
		}
	}
}

func TestDynamicPriceMonotonicInQuality(t *testing.T) {
	for _, d := range []Demand{DemandVeryLow, DemandMedium, DemandVeryHigh} {
		e := fixedEngine(d)
		prev := -1.0
		for q := 85.0; q <= 100; q += 0.25 {
			p := e.DynamicPrice(q, 600, CategorySleep, nil).TotalPrice
			if p < prev {
				t.Fatalf("demand %s: price fell from %v to %v at quality %v", d, prev, p, q)
			}
			prev = p
		}
	}
}

func TestDynamicPriceMonotonicInDuration(t *testing.T) {
	e := fixedEngine(DemandHigh)
	for _, q := range []float64{60, 82, 92, 99} {
		prev := -1.0
		for dur := 0.0; dur <= 7200; dur += 60 {
			p := e.DynamicPrice(q, dur, CategoryStress, nil).TotalPrice
			if p < prev {
				t.Fatalf("quality %v: price fell from %v to %v at duration %v", q, prev, p, dur)
			}
			prev = p
		}
	}
}

func TestDynamicPriceNeverNegative(t *testing.T) {
	e := NewEngine(func() Demand { return DemandVeryLow }, entropy.NewSeeded(3))
	for _, q := range []float64{-20, 0, 150} {
		if p := e.DynamicPrice(q, -100, Category("unknown"), nil); p.TotalPrice < 0 {
			t.Fatalf("negative price %v", p.TotalPrice)
		}
	}
}

func TestDynamicPriceNonFiniteInputs(t *testing.T) {
	e := fixedEngine(DemandMedium)
	inputs := [][2]float64{
		{math.NaN(), 300},
		{90, math.Inf(1)},
		{math.Inf(-1), math.NaN()},
	}
	for _, in := range inputs {
		p := e.DynamicPrice(in[0], in[1], CategoryMeditation, nil)
		if math.IsNaN(p.TotalPrice) || math.IsInf(p.TotalPrice, 0) || p.TotalPrice < 0 {
			t.Fatalf("DynamicPrice(%v, %v) = %v", in[0], in[1], p.TotalPrice)
		}
	}
}

func TestRarityScoreCap(t *testing.T) {
	if got := RarityScore(99, 3600, 0.999); got != 10 {
		t.Fatalf("rarity should cap at 10, got %v", got)
	}
	if got := RarityScore(50, 100, 0); got != 1 {
		t.Fatalf("rarity floor = %v, want 1", got)
	}
}

func TestListingPrice(t *testing.T) {
	tests := []struct {
		cat  Category
		dur  float64
		want float64
	}{
		{CategoryFocus, 300, 5},
		{CategorySleep, 600, 15},
		{CategoryMeditation, 100, 6},
		{Category("other"), 900, 15},
	}
	for _, tc := range tests {
		if got := ListingPrice(tc.cat, tc.dur); got != tc.want {
			t.Errorf("ListingPrice(%s, %v) = %v, want %v", tc.cat, tc.dur, got, tc.want)
		}
	}
}

func TestSessionPrice(t *testing.T) {
	tests := []struct {
		name  string
		bands session.BandPowers
		state session.MentalState
		want  float64
	}{
		{"rare alpha", session.BandPowers{Alpha: 60, Theta: 20}, session.StateCreative, 23},
		{"uncommon", session.BandPowers{Alpha: 20, Theta: 50}, session.StateMeditation, 18},
		{"common", session.BandPowers{Alpha: 30, Theta: 30}, session.StateRelaxed, 11},
		{"zero theta", session.BandPowers{Alpha: 30}, session.StateFocused, 12},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := session.Session{Bands: tc.bands, MentalState: tc.state}
			if got := SessionPrice(s); got != tc.want {
				t.Fatalf("SessionPrice = %v, want %v", got, tc.want)
			}
		})
	}
}
