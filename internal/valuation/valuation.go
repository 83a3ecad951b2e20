// Package valuation prices data units from quality, duration, category,
// market demand, rarity and contributor reputation.
package valuation

import (
	"fmt"
	"math"

	"github.com/talgya/neurobank/internal/entropy"
	"github.com/talgya/neurobank/internal/reputation"
)

// Category is the recording context of a data unit.
type Category string

const (
	CategoryMeditation Category = "meditation"
	CategoryFocus      Category = "focus"
	CategorySleep      Category = "sleep"
	CategoryGaming     Category = "gaming"
	CategoryLearning   Category = "learning"
	CategoryStress     Category = "stress"
)

// Categories lists every known category.
var Categories = []Category{
	CategoryMeditation, CategoryFocus, CategorySleep,
	CategoryGaming, CategoryLearning, CategoryStress,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryDemand[c]
	return ok
}

// Demand is the simulated researcher demand for data.
type Demand string

const (
	DemandVeryLow  Demand = "very_low"
	DemandLow      Demand = "low"
	DemandMedium   Demand = "medium"
	DemandHigh     Demand = "high"
	DemandVeryHigh Demand = "very_high"
)

// QualityTier is derived from signal quality.
type QualityTier string

const (
	TierPremium  QualityTier = "premium"
	TierStandard QualityTier = "standard"
	TierBasic    QualityTier = "basic"
)

const (
	BasePrice          = 50.0
	QualityThreshold   = 85.0
	ReferenceDuration  = 300.0 // seconds; the duration multiplier is 1 here
	maxRarity          = 10.0
	rarityBonusFloor   = 7.0
	reputationBonusCap = 30.0
)

var categoryDemand = map[Category]float64{
	CategoryMeditation: 1.4,
	CategoryFocus:      1.2,
	CategorySleep:      1.5,
	CategoryGaming:     1.1,
	CategoryLearning:   1.3,
	CategoryStress:     1.4,
}

var marketDemand = map[Demand]float64{
	DemandVeryLow:  0.8,
	DemandLow:      0.9,
	DemandMedium:   1.0,
	DemandHigh:     1.2,
	DemandVeryHigh: 1.5,
}

// TierFor maps signal quality onto a tier: >85 premium, 70–85 standard, <70 basic.
func TierFor(signalQuality float64) QualityTier {
	switch {
	case signalQuality > 85:
		return TierPremium
	case signalQuality >= 70:
		return TierStandard
	default:
		return TierBasic
	}
}

// Rank orders tiers: basic 1, standard 2, premium 3. Unknown tiers rank 0.
func (t QualityTier) Rank() int {
	switch t {
	case TierPremium:
		return 3
	case TierStandard:
		return 2
	case TierBasic:
		return 1
	}
	return 0
}

// Meets reports whether tier have satisfies a minimum of need.
func Meets(have, need QualityTier) bool {
	return have.Rank() >= need.Rank()
}

// DemandMultiplier returns the market-wide factor for a demand level.
func DemandMultiplier(d Demand) float64 {
	if m, ok := marketDemand[d]; ok {
		return m
	}
	return 1.0
}

// CategoryDemand returns the category-specific demand factor, 1.0 if unknown.
func CategoryDemand(c Category) float64 {
	if m, ok := categoryDemand[c]; ok {
		return m
	}
	return 1.0
}

// PriceBreakdown itemizes a dynamic price.
type PriceBreakdown struct {
	BasePrice          float64 `json:"base_price"`
	QualityBonus       float64 `json:"quality_bonus"`
	DemandMultiplier   float64 `json:"demand_multiplier"`
	DurationMultiplier float64 `json:"duration_multiplier"`
	RarityScore        float64 `json:"rarity_score"`
	RarityBonus        float64 `json:"rarity_bonus"`
	ReputationBonus    float64 `json:"reputation_bonus"`
	TotalPrice         float64 `json:"total_price"`
	Breakdown          string  `json:"price_breakdown"`
}

// Engine computes dynamic prices against the current market demand.
type Engine struct {
	demand func() Demand
	rng    entropy.Source
}

// NewEngine creates a pricing engine. demand is read on every quote.
func NewEngine(demand func() Demand, rng entropy.Source) *Engine {
	return &Engine{demand: demand, rng: rng}
}

// DynamicPrice prices a data unit. rep may be nil.
func (e *Engine) DynamicPrice(quality, duration float64, cat Category, rep *reputation.Score) PriceBreakdown {
	// Non-finite inputs price as zero.
	if math.IsNaN(quality) {
		quality = 0
	}
	quality = math.Max(0, math.Min(100, quality))
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		duration = 0
	}

	qualityBonus := QualityBonus(quality)

	demand := DemandMedium
	if e.demand != nil {
		demand = e.demand()
	}
	demandMult := CategoryDemand(cat) * DemandMultiplier(demand)

	rarity := RarityScore(quality, duration, e.rng.Float64())
	rarityBonus := 0.0
	if rarity > rarityBonusFloor {
		rarityBonus = (rarity - rarityBonusFloor) * 20
	}

	reputationBonus := 0.0
	if rep != nil {
		reputationBonus = rep.Overall / 100 * reputationBonusCap
	}

	durationMult := DurationMultiplier(duration)

	total := math.Round((BasePrice + qualityBonus + rarityBonus + reputationBonus) * demandMult * durationMult)
	if total < 0 {
		total = 0
	}

	return PriceBreakdown{
		BasePrice:          BasePrice,
		QualityBonus:       qualityBonus,
		DemandMultiplier:   demandMult,
		DurationMultiplier: durationMult,
		RarityScore:        rarity,
		RarityBonus:        rarityBonus,
		ReputationBonus:    reputationBonus,
		TotalPrice:         total,
		Breakdown: fmt.Sprintf("Base: $%.0f | Quality: +$%.0f | Demand: x%.2f | Rarity: +$%.0f | Reputation: +$%.0f",
			BasePrice, qualityBonus, demandMult, rarityBonus, reputationBonus),
	}
}

// QualityBonus is convex above the threshold and zero below it.
func QualityBonus(quality float64) float64 {
	if quality <= QualityThreshold {
		return 0
	}
	x := (quality - QualityThreshold) / 15
	return x * x * 50
}

// RarityScore combines quality and duration rarity with a jitter in [0, 1).
func RarityScore(quality, duration, jitter float64) float64 {
	qualityRarity := 1.0
	switch {
	case quality > 90:
		qualityRarity = 3
	case quality > 80:
		qualityRarity = 2
	}
	durationRarity := 1.0
	switch {
	case duration > 1800:
		durationRarity = 3
	case duration > 900:
		durationRarity = 2
	}
	return math.Min(maxRarity, qualityRarity*durationRarity+jitter*2)
}

// DurationMultiplier scales with the square root of duration.
func DurationMultiplier(duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return math.Sqrt(duration / ReferenceDuration)
}
