// Package staking computes APY and payout projections for stake positions.
// Everything here is a pure function of its inputs.
package staking

import (
	"fmt"
	"math"
	"time"

	"github.com/talgya/neurobank/internal/apperr"
)

// PoolCategory selects a pool's base rate and risk profile.
type PoolCategory string

const (
	PoolResearch   PoolCategory = "research"
	PoolValidation PoolCategory = "validation"
	PoolGovernance PoolCategory = "governance"
)

// SafetyMargin is the share of total APY kept after the risk haircut.
const SafetyMargin = 0.92

var baseAPY = map[PoolCategory]float64{
	PoolResearch:   18.5,
	PoolValidation: 12.8,
	PoolGovernance: 24.2,
}

var volatilityDiscount = map[PoolCategory]float64{
	PoolResearch:   0.8,
	PoolValidation: 1.2,
	PoolGovernance: 2.1,
}

// lockBonus is an exact-match table; lock periods not listed earn nothing.
var lockBonus = map[int]float64{
	30:  0,
	90:  3.2,
	180: 7.8,
	365: 15.5,
}

// Valid reports whether c is a known pool category.
func (c PoolCategory) Valid() bool {
	_, ok := baseAPY[c]
	return ok
}

// Quote is a full staking projection. Rates are percentages.
type Quote struct {
	Amount             float64      `json:"amount"`
	Category           PoolCategory `json:"category"`
	LockDays           int          `json:"lock_days"`
	BaseAPY            float64      `json:"base_apy"`
	LockBonusAPY       float64      `json:"lock_bonus_apy"`
	AmountBonusAPY     float64      `json:"amount_bonus_apy"`
	BonusAPY           float64      `json:"bonus_apy"`
	VolatilityDiscount float64      `json:"volatility_discount"`
	TotalAPY           float64      `json:"total_apy"`
	RiskAdjustedAPY    float64      `json:"risk_adjusted_apy"`
	CompoundingFactor  float64      `json:"compounding_factor"`
	ProjectedRewards   float64      `json:"projected_rewards"`
	DailyRewards       float64      `json:"daily_rewards"`
	MonthlyRewards     float64      `json:"monthly_rewards"`
	YearlyRewards      float64      `json:"yearly_rewards"`
	UnlockAt           time.Time    `json:"unlock_at"`
}

// AmountBonus returns the stake-size tier bonus.
func AmountBonus(amount float64) float64 {
	switch {
	case amount >= 100_000:
		return 4.5
	case amount >= 50_000:
		return 3.2
	case amount >= 10_000:
		return 2.1
	case amount >= 5_000:
		return 1.0
	}
	return 0
}

// LockBonus returns the bonus for an exact lock period.
func LockBonus(days int) float64 {
	return lockBonus[days]
}

// CompoundingFactor rewards longer locks.
func CompoundingFactor(days int) float64 {
	switch {
	case days >= 180:
		return 1.08
	case days >= 90:
		return 1.04
	}
	return 1.0
}

// Calculate projects rewards for staking amount in a pool of the given
// category for lockDays, unlocking relative to now.
func Calculate(amount float64, cat PoolCategory, lockDays int, now time.Time) (Quote, error) {
	if !cat.Valid() {
		return Quote{}, apperr.NewInvalidError(fmt.Sprintf("unknown pool category %q", cat))
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Quote{}, apperr.NewInvalidError("stake amount must be finite")
	}
	if amount < 0 {
		return Quote{}, apperr.NewInvalidError("stake amount must not be negative")
	}
	if lockDays < 0 {
		return Quote{}, apperr.NewInvalidError("lock period must not be negative")
	}

	base := baseAPY[cat]
	lock := LockBonus(lockDays)
	size := AmountBonus(amount)
	bonus := lock + size
	discount := volatilityDiscount[cat]
	total := math.Max(0, base+bonus-discount)
	risk := total * SafetyMargin
	compounding := CompoundingFactor(lockDays)

	annual := amount * (risk / 100) * compounding

	return Quote{
		Amount:             amount,
		Category:           cat,
		LockDays:           lockDays,
		BaseAPY:            round2(base),
		LockBonusAPY:       round2(lock),
		AmountBonusAPY:     round2(size),
		BonusAPY:           round2(bonus),
		VolatilityDiscount: round2(discount),
		TotalAPY:           round2(total),
		RiskAdjustedAPY:    round2(risk),
		CompoundingFactor:  compounding,
		ProjectedRewards:   round2(annual * float64(lockDays) / 365),
		DailyRewards:       round2(annual / 365),
		MonthlyRewards:     round2(annual / 12),
		YearlyRewards:      round2(annual),
		UnlockAt:           now.AddDate(0, 0, lockDays),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
