package staking

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/talgya/neurobank/internal/apperr"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestCalculateResearchExample(t *testing.T) {
	q, err := Calculate(50_000, PoolResearch, 90, epoch)
	if err != nil {
		t.Fatal(err)
	}
	want := Quote{
		Amount:             50_000,
		Category:           PoolResearch,
		LockDays:           90,
		BaseAPY:            18.5,
		LockBonusAPY:       3.2,
		AmountBonusAPY:     3.2,
		BonusAPY:           6.4,
		VolatilityDiscount: 0.8,
		TotalAPY:           24.1,
		RiskAdjustedAPY:    22.17,
		CompoundingFactor:  1.04,
		ProjectedRewards:   2842.88,
		DailyRewards:       31.59,
		MonthlyRewards:     960.79,
		YearlyRewards:      11529.44,
		UnlockAt:           epoch.AddDate(0, 0, 90),
	}
	if q != want {
		t.Fatalf("quote mismatch\n got %+v\nwant %+v", q, want)
	}
}

func TestCalculateGrid(t *testing.T) {
	cats := []struct {
		cat      PoolCategory
		base     float64
		discount float64
	}{
		{PoolResearch, 18.5, 0.8},
		{PoolValidation, 12.8, 1.2},
		{PoolGovernance, 24.2, 2.1},
	}
	locks := []struct {
		days        int
		bonus       float64
		compounding float64
	}{
		{0, 0, 1.0},
		{30, 0, 1.0},
		{45, 0, 1.0},
		{90, 3.2, 1.04},
		{180, 7.8, 1.08},
		{365, 15.5, 1.08},
	}
	amounts := []struct {
		amount float64
		bonus  float64
	}{
		{1_000, 0},
		{5_000, 1.0},
		{10_000, 2.1},
		{50_000, 3.2},
		{100_000, 4.5},
	}

	for _, c := range cats {
		for _, l := range locks {
			for _, a := range amounts {
				name := fmt.Sprintf("%s/%dd/%.0f", c.cat, l.days, a.amount)
				t.Run(name, func(t *testing.T) {
					q, err := Calculate(a.amount, c.cat, l.days, epoch)
					if err != nil {
						t.Fatal(err)
					}
					if q.BaseAPY != c.base || q.VolatilityDiscount != c.discount {
						t.Errorf("base/discount = %v/%v", q.BaseAPY, q.VolatilityDiscount)
					}
					if q.LockBonusAPY != l.bonus || q.AmountBonusAPY != a.bonus {
						t.Errorf("bonuses = %v/%v, want %v/%v", q.LockBonusAPY, q.AmountBonusAPY, l.bonus, a.bonus)
					}
					if q.CompoundingFactor != l.compounding {
						t.Errorf("compounding = %v, want %v", q.CompoundingFactor, l.compounding)
					}
					if want := round2(c.base + l.bonus + a.bonus - c.discount); q.TotalAPY != want {
						t.Errorf("total = %v, want %v", q.TotalAPY, want)
					}
					if q.RiskAdjustedAPY > q.TotalAPY {
						t.Errorf("risk adjusted %v exceeds total %v", q.RiskAdjustedAPY, q.TotalAPY)
					}
					if !q.UnlockAt.Equal(epoch.AddDate(0, 0, l.days)) {
						t.Errorf("unlock = %v", q.UnlockAt)
					}

					again, _ := Calculate(a.amount, c.cat, l.days, epoch)
					if again != q {
						t.Error("calculation not deterministic")
					}
				})
			}
		}
	}
}

func TestCalculateGovernanceWhale(t *testing.T) {
	q, err := Calculate(200_000, PoolGovernance, 365, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if q.TotalAPY != 42.1 || q.RiskAdjustedAPY != 38.73 {
		t.Fatalf("apy = %v/%v", q.TotalAPY, q.RiskAdjustedAPY)
	}
	if q.YearlyRewards != 83661.12 || q.ProjectedRewards != q.YearlyRewards {
		t.Fatalf("rewards = %v/%v", q.YearlyRewards, q.ProjectedRewards)
	}
}

func TestCalculateZeroLockProjectsNothing(t *testing.T) {
	q, err := Calculate(10_000, PoolValidation, 0, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if q.ProjectedRewards != 0 || q.YearlyRewards <= 0 {
		t.Fatalf("unexpected rewards %+v", q)
	}
}

func TestCalculateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		cat    PoolCategory
		lock   int
	}{
		{"unknown category", 100, "liquidity", 30},
		{"negative amount", -1, PoolResearch, 30},
		{"negative lock", 100, PoolResearch, -30},
		{"nan amount", math.NaN(), PoolResearch, 30},
		{"infinite amount", math.Inf(1), PoolResearch, 30},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Calculate(tc.amount, tc.cat, tc.lock, epoch)
			if apperr.CodeOf(err) != apperr.ErrorInvalid {
				t.Fatalf("expected invalid error, got %v", err)
			}
		})
	}
}
