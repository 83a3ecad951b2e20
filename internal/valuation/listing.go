package valuation

import (
	"math"

	"github.com/talgya/neurobank/internal/session"
)

var listingMultiplier = map[Category]float64{
	CategoryMeditation: 1.2,
	CategoryFocus:      1.0,
	CategorySleep:      1.5,
	CategoryGaming:     1.1,
	CategoryLearning:   1.3,
	CategoryStress:     1.4,
}

var stateDemand = map[session.MentalState]float64{
	session.StateMeditation: 1.4,
	session.StateFocused:    1.2,
	session.StateRelaxed:    1.1,
	session.StateStressed:   1.3,
	session.StateCreative:   1.5,
}

// ListingPrice is the default marketplace price of a freshly minted NFT.
func ListingPrice(cat Category, duration float64) float64 {
	mult, ok := listingMultiplier[cat]
	if !ok {
		mult = 1.0
	}
	return math.Round(5 * math.Max(1, duration/ReferenceDuration) * mult)
}

// SessionPrice prices a tokenized session from its alpha/theta pattern and state.
func SessionPrice(s session.Session) float64 {
	demand, ok := stateDemand[s.MentalState]
	if !ok {
		demand = 1.0
	}
	return math.Round(10 * PatternRarity(s.Bands) * demand)
}

// PatternRarity rewards unusual alpha/theta ratios.
func PatternRarity(b session.BandPowers) float64 {
	if b.Theta <= 0 {
		return 1.0
	}
	ratio := b.Alpha / b.Theta
	switch {
	case ratio > 2:
		return 1.5
	case ratio < 0.5:
		return 1.3
	}
	return 1.0
}
