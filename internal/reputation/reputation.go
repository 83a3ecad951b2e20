// Package reputation tracks per-address contributor scores.
// Scores feed the reputation bonus in dynamic pricing.
package reputation

import (
	"github.com/talgya/neurobank/internal/entropy"
)

// Score weights. They sum to 1.
const (
	WeightDataQuality = 0.4
	WeightConsistency = 0.3
	WeightImpact      = 0.2
	WeightEngagement  = 0.1
)

// Score is a contributor's standing; every component is in [0, 100].
type Score struct {
	DataQuality         float64 `json:"data_quality"`
	Consistency         float64 `json:"consistency"`
	ResearchImpact      float64 `json:"research_impact"`
	CommunityEngagement float64 `json:"community_engagement"`
	ValidatorAccuracy   float64 `json:"validator_accuracy"`
	Overall             float64 `json:"overall"`
}

// Update carries a partial score. Nil fields are left unchanged.
type Update struct {
	DataQuality         *float64 `json:"data_quality,omitempty"`
	Consistency         *float64 `json:"consistency,omitempty"`
	ResearchImpact      *float64 `json:"research_impact,omitempty"`
	CommunityEngagement *float64 `json:"community_engagement,omitempty"`
	ValidatorAccuracy   *float64 `json:"validator_accuracy,omitempty"`
}

// Overall computes the weighted aggregate. Validator accuracy is not weighted.
func Overall(s Score) float64 {
	return s.DataQuality*WeightDataQuality +
		s.Consistency*WeightConsistency +
		s.ResearchImpact*WeightImpact +
		s.CommunityEngagement*WeightEngagement
}

// Tracker holds scores keyed by address.
type Tracker struct {
	rng    entropy.Source
	scores map[string]Score
}

// NewTracker creates a tracker that seeds unseen addresses from rng.
func NewTracker(rng entropy.Source) *Tracker {
	return &Tracker{rng: rng, scores: make(map[string]Score)}
}

// Get returns the score for address, creating a starting score on first sight.
func (t *Tracker) Get(address string) Score {
	if s, ok := t.scores[address]; ok {
		return s
	}
	s := Score{
		DataQuality:         entropy.Uniform(t.rng, 70, 90),
		Consistency:         entropy.Uniform(t.rng, 60, 90),
		ResearchImpact:      entropy.Uniform(t.rng, 0, 50),
		CommunityEngagement: entropy.Uniform(t.rng, 0, 40),
	}
	s.Overall = Overall(s)
	t.scores[address] = s
	return s
}

// Update merges u into the address's score and recomputes the overall value.
func (t *Tracker) Update(address string, u Update) Score {
	s := t.Get(address)
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = clampScore(*v)
		}
	}
	set(&s.DataQuality, u.DataQuality)
	set(&s.Consistency, u.Consistency)
	set(&s.ResearchImpact, u.ResearchImpact)
	set(&s.CommunityEngagement, u.CommunityEngagement)
	set(&s.ValidatorAccuracy, u.ValidatorAccuracy)
	s.Overall = Overall(s)
	t.scores[address] = s
	return s
}

// Snapshot returns a copy of every tracked score.
func (t *Tracker) Snapshot() map[string]Score {
	out := make(map[string]Score, len(t.scores))
	for k, v := range t.scores {
		out[k] = v
	}
	return out
}

// Restore replaces tracked scores.
func (t *Tracker) Restore(scores map[string]Score) {
	t.scores = make(map[string]Score, len(scores))
	for k, v := range scores {
		t.scores[k] = v
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
