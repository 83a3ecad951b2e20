// Package monetization schedules conditional, delayed payouts for data
// contributions. Nothing is paid up front; each matched destination yields
// a pending earning that is realized or expired later.
package monetization

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/neurobank/internal/apperr"
	"github.com/talgya/neurobank/internal/entropy"
)

// AnnualCap bounds any projected annual figure.
const AnnualCap = 12_000.0

// DefaultUser owns contributions submitted without a user id.
const DefaultUser = "current-user"

const (
	timelineWellness = "6-8 weeks after study completion"
	timelineAI       = "Quarterly revenue share from model performance"
	timelineResearch = "Upon study publication (3-6 months)"
)

// DestinationType is where contributed data may create value.
type DestinationType string

const (
	DestWellness DestinationType = "wellness_validation"
	DestAI       DestinationType = "ai_training"
	DestResearch DestinationType = "research"
	DestClinical DestinationType = "clinical"
)

// Status is the monetization state of a contribution.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusRealized   Status = "realized"
	StatusFailed     Status = "failed"
)

// EarningStatus is the state of a single delayed earning.
type EarningStatus string

const (
	EarningPending EarningStatus = "pending"
	EarningPaid    EarningStatus = "paid"
	EarningFailed  EarningStatus = "failed"
)

// Signal carries the recording-level measurements DataValue scores.
type Signal struct {
	Quality float64 `json:"signal_quality"`
}

type Demographics struct {
	Age          int    `json:"age,omitempty"`
	Location     string `json:"location,omitempty"`
	Occupation   string `json:"occupation,omitempty"`
	HealthStatus string `json:"health_status,omitempty"`
}

type SessionContext struct {
	TimeOfDay   string  `json:"time_of_day"`
	Activity    string  `json:"activity"` // meditation, focus, rest, sleep, stress
	Environment string  `json:"environment"`
	Duration    float64 `json:"duration"`
}

type WellnessContext struct {
	ProductsUsed []string `json:"products_used,omitempty"`
	Supplements  []string `json:"supplements,omitempty"`
	Practices    []string `json:"practices,omitempty"`
	Goals        []string `json:"goals,omitempty"`
}

type Longitudinal struct {
	SessionNumber    int     `json:"session_number"`
	DaysInProgram    int     `json:"days_in_program"`
	PreviousSessions int     `json:"previous_sessions"`
	Consistency      float64 `json:"consistency"` // 0..1
}

// Context is the user-supplied description surrounding a recording.
type Context struct {
	Demographics Demographics    `json:"demographics"`
	Session      SessionContext  `json:"session_context"`
	Wellness     WellnessContext `json:"wellness_context"`
	Longitudinal Longitudinal    `json:"longitudinal"`
}

// Destination is a matched use of the data.
type Destination struct {
	ID             string          `json:"id"`
	Type           DestinationType `json:"type"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	MatchScore     float64         `json:"match_score"`
	EstimatedValue float64         `json:"estimated_value"`
	Timeline       string          `json:"realization_timeline"`
}

// Earning is one conditional future payout.
type Earning struct {
	Source     string        `json:"source"`
	Amount     float64       `json:"amount"`
	Status     EarningStatus `json:"status"`
	ExpectedAt time.Time     `json:"expected_at"`
	Condition  string        `json:"condition"`
}

// Earnings aggregates a contribution's payouts.
type Earnings struct {
	Immediate float64   `json:"immediate"`
	Pending   []Earning `json:"pending"`
	Projected float64   `json:"projected"`
	Realized  float64   `json:"realized"`
	Timeline  string    `json:"timeline"`
}

// Contribution is one recording offered for delayed monetization.
type Contribution struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	SessionID    string        `json:"session_id"`
	Timestamp    time.Time     `json:"timestamp"`
	DataValue    float64       `json:"data_quality"`
	Context      Context       `json:"contextual_data"`
	Destinations []Destination `json:"destinations"`
	Status       Status        `json:"monetization_status"`
	Earnings     Earnings      `json:"earnings"`
}

// Summary is a user's earnings overview.
type Summary struct {
	TotalContributions int        `json:"total_contributions"`
	PendingEarnings    float64    `json:"pending_earnings"`
	ProjectedAnnual    float64    `json:"projected_annual"`
	RealizedToDate     float64    `json:"realized_to_date"`
	NextPaymentDate    *time.Time `json:"next_payment_date"`
}

// DueEarning is a pending earning whose expected date has passed.
type DueEarning struct {
	ContributionID string  `json:"contribution_id"`
	UserID         string  `json:"user_id"`
	Earning        Earning `json:"earning"`
}

// DataValue scores a recording 0..100 from signal quality and how rich its context is.
func DataValue(sig Signal, ctx Context) float64 {
	value := 50.0
	switch {
	case sig.Quality > 90:
		value += 20
	case sig.Quality > 80:
		value += 10
	}
	if len(ctx.Wellness.ProductsUsed) > 0 {
		value += 15
	}
	if len(ctx.Wellness.Supplements) > 0 {
		value += 15
	}
	if ctx.Longitudinal.SessionNumber > 10 {
		value += 20
	}
	if ctx.Longitudinal.Consistency > 0.8 {
		value += 15
	}
	if ctx.Session.Activity == "meditation" && ctx.Longitudinal.DaysInProgram > 30 {
		value += 25
	}
	return math.Min(value, 100)
}

// Scheduler tracks contributions and their payouts.
type Scheduler struct {
	rng   entropy.Source
	now   func() time.Time
	idGen func() string

	contributions []*Contribution
	index         map[string]*Contribution
}

// NewScheduler creates an empty scheduler. rng scores research matches.
func NewScheduler(rng entropy.Source) *Scheduler {
	return &Scheduler{
		rng:   rng,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: uuid.NewString,
		index: make(map[string]*Contribution),
	}
}

// SetClock overrides the time source.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Contribute scores a recording, matches it to consented destinations and
// records the resulting pending earnings.
func (s *Scheduler) Contribute(userID, sessionID string, sig Signal, ctx Context, consents []DestinationType) (*Contribution, error) {
	if sessionID == "" {
		return nil, apperr.NewInvalidError("session id required")
	}
	if userID == "" {
		userID = DefaultUser
	}

	value := DataValue(sig, ctx)
	dests := s.match(ctx, consents, value)
	now := s.now()

	c := &Contribution{
		ID:           "contrib-" + s.idGen(),
		UserID:       userID,
		SessionID:    sessionID,
		Timestamp:    now,
		DataValue:    value,
		Context:      ctx,
		Destinations: dests,
		Status:       StatusPending,
		Earnings:     earningsFor(dests, value, now),
	}
	s.contributions = append(s.contributions, c)
	s.index[c.ID] = c
	return cloneContribution(c), nil
}

func (s *Scheduler) match(ctx Context, consents []DestinationType, value float64) []Destination {
	consented := make(map[DestinationType]bool, len(consents))
	for _, c := range consents {
		consented[c] = true
	}

	var dests []Destination
	if len(ctx.Wellness.ProductsUsed) > 0 && consented[DestWellness] {
		dests = append(dests, Destination{
			ID:             "wellness-" + s.idGen(),
			Type:           DestWellness,
			Name:           ctx.Wellness.ProductsUsed[0] + " Validation Study",
			Status:         "pending",
			MatchScore:     85,
			EstimatedValue: 25,
			Timeline:       timelineWellness,
		})
	}
	if ctx.Longitudinal.SessionNumber > 5 && value > 75 && consented[DestAI] {
		dests = append(dests, Destination{
			ID:             "ai-" + s.idGen(),
			Type:           DestAI,
			Name:           "Personalization Model Training",
			Status:         "active",
			MatchScore:     90,
			EstimatedValue: 15,
			Timeline:       timelineAI,
		})
	}
	if consented[DestResearch] {
		if study, ok := matchStudy(ctx); ok {
			dests = append(dests, Destination{
				ID:             "research-" + s.idGen(),
				Type:           DestResearch,
				Name:           study.name,
				Status:         "pending",
				MatchScore:     75 + s.rng.Float64()*25,
				EstimatedValue: study.value,
				Timeline:       timelineResearch,
			})
		}
	}
	return dests
}

type study struct {
	name    string
	value   float64
	matches func(Context) bool
}

var studies = []study{
	{
		name:  "Meditation Efficacy Research - IIT Delhi",
		value: 30,
		matches: func(c Context) bool {
			return c.Session.Activity == "meditation" && c.Longitudinal.SessionNumber >= 10
		},
	},
	{
		name:  "Stress Response Study - AIIMS",
		value: 35,
		matches: func(c Context) bool {
			return c.Session.Activity == "stress" && c.Longitudinal.Consistency > 0.7
		},
	},
	{
		name:  "Ayurvedic Validation - AYUSH Ministry",
		value: 40,
		matches: func(c Context) bool {
			return len(c.Wellness.Supplements) > 0 && c.Longitudinal.DaysInProgram >= 14
		},
	},
}

// matchStudy returns the first study the context qualifies for.
func matchStudy(ctx Context) (study, bool) {
	for _, st := range studies {
		if st.matches(ctx) {
			return st, true
		}
	}
	return study{}, false
}

func earningsFor(dests []Destination, value float64, now time.Time) Earnings {
	e := Earnings{Pending: make([]Earning, 0, len(dests))}
	total := 0.0
	for _, d := range dests {
		amt := d.EstimatedValue * value / 100
		e.Pending = append(e.Pending, Earning{
			Source:     d.Name,
			Amount:     amt,
			Status:     EarningPending,
			ExpectedAt: ExpectedDate(d.Timeline, now),
			Condition:  Condition(d.Type),
		})
		total += amt
	}
	e.Projected = math.Min(total*12, AnnualCap)
	e.Timeline = OverallTimeline(dests)
	return e
}

// ExpectedDate infers a payout date from a free-text timeline.
func ExpectedDate(timeline string, from time.Time) time.Time {
	const day = 24 * time.Hour
	switch {
	case strings.Contains(timeline, "6-8 weeks"):
		return from.Add(49 * day)
	case strings.Contains(timeline, "3-6 months"):
		return from.Add(135 * day)
	case strings.Contains(timeline, "Quarterly"):
		return from.Add(90 * day)
	}
	return from.Add(180 * day)
}

// Condition describes what must happen before a destination pays.
func Condition(t DestinationType) string {
	switch t {
	case DestWellness:
		return "When product validation study completes and company pays"
	case DestAI:
		return "When AI model is deployed and generates revenue"
	case DestResearch:
		return "When research is published and grant funds are released"
	case DestClinical:
		return "When clinical trial reaches milestone checkpoints"
	}
	return "When data creates verified value"
}

// OverallTimeline summarizes when the first money is likely to arrive.
func OverallTimeline(dests []Destination) string {
	if len(dests) == 0 {
		return "No active monetization paths"
	}
	for _, d := range dests {
		if strings.Contains(d.Timeline, "6-8 weeks") {
			return "First earnings expected in 6-8 weeks"
		}
	}
	for _, d := range dests {
		if strings.Contains(d.Timeline, "3-6 months") {
			return "Earnings expected over 3-6 months"
		}
	}
	return "Long-term value creation (6+ months)"
}

// Realize pays one pending earning. It reports false without crediting
// when the earning is no longer pending.
func (s *Scheduler) Realize(contributionID, source string) (bool, error) {
	c, e, err := s.find(contributionID, source)
	if err != nil {
		return false, err
	}
	if e.Status != EarningPending {
		return false, nil
	}
	e.Status = EarningPaid
	c.Earnings.Realized += e.Amount
	c.Status = lifecycle(c)
	return true, nil
}

// Expire marks a pending earning as failed. It reports false when the
// earning is no longer pending.
func (s *Scheduler) Expire(contributionID, source string) (bool, error) {
	c, e, err := s.find(contributionID, source)
	if err != nil {
		return false, err
	}
	if e.Status != EarningPending {
		return false, nil
	}
	e.Status = EarningFailed
	c.Status = lifecycle(c)
	return true, nil
}

func (s *Scheduler) find(contributionID, source string) (*Contribution, *Earning, error) {
	c, ok := s.index[contributionID]
	if !ok {
		return nil, nil, apperr.NewNotFoundError(fmt.Sprintf("contribution %s not found", contributionID))
	}
	for i := range c.Earnings.Pending {
		if c.Earnings.Pending[i].Source == source {
			return c, &c.Earnings.Pending[i], nil
		}
	}
	return nil, nil, apperr.NewNotFoundError(fmt.Sprintf("contribution %s has no earning from %q", contributionID, source))
}

// lifecycle derives a contribution's status from its earnings.
func lifecycle(c *Contribution) Status {
	var pending, paid, failed int
	for _, e := range c.Earnings.Pending {
		switch e.Status {
		case EarningPending:
			pending++
		case EarningPaid:
			paid++
		case EarningFailed:
			failed++
		}
	}
	switch {
	case pending+paid+failed == 0:
		return StatusPending
	case pending > 0 && paid > 0:
		return StatusProcessing
	case pending > 0:
		return StatusPending
	case failed > 0:
		return StatusFailed
	}
	return StatusRealized
}

// Summary aggregates a user's contributions.
func (s *Scheduler) Summary(userID string) Summary {
	if userID == "" {
		userID = DefaultUser
	}
	var sum Summary
	var projected float64
	var next time.Time
	for _, c := range s.contributions {
		if c.UserID != userID {
			continue
		}
		sum.TotalContributions++
		for _, e := range c.Earnings.Pending {
			if e.Status != EarningPending {
				continue
			}
			sum.PendingEarnings += e.Amount
			if next.IsZero() || e.ExpectedAt.Before(next) {
				next = e.ExpectedAt
			}
		}
		projected += c.Earnings.Projected
		sum.RealizedToDate += c.Earnings.Realized
	}
	sum.ProjectedAnnual = math.Min(projected, AnnualCap)
	if !next.IsZero() {
		sum.NextPaymentDate = &next
	}
	return sum
}

// Due lists pending earnings expected at or before now, in contribution order.
func (s *Scheduler) Due(now time.Time) []DueEarning {
	var out []DueEarning
	for _, c := range s.contributions {
		for _, e := range c.Earnings.Pending {
			if e.Status == EarningPending && !e.ExpectedAt.After(now) {
				out = append(out, DueEarning{ContributionID: c.ID, UserID: c.UserID, Earning: e})
			}
		}
	}
	return out
}

// Get returns a copy of one contribution.
func (s *Scheduler) Get(id string) (*Contribution, error) {
	c, ok := s.index[id]
	if !ok {
		return nil, apperr.NewNotFoundError(fmt.Sprintf("contribution %s not found", id))
	}
	return cloneContribution(c), nil
}

// Contributions lists a user's contributions, or everyone's when userID is empty.
func (s *Scheduler) Contributions(userID string) []Contribution {
	out := make([]Contribution, 0, len(s.contributions))
	for _, c := range s.contributions {
		if userID == "" || c.UserID == userID {
			out = append(out, *cloneContribution(c))
		}
	}
	return out
}

// Restore replaces all contributions.
func (s *Scheduler) Restore(list []Contribution) {
	s.contributions = make([]*Contribution, 0, len(list))
	s.index = make(map[string]*Contribution, len(list))
	for i := range list {
		c := cloneContribution(&list[i])
		s.contributions = append(s.contributions, c)
		s.index[c.ID] = c
	}
}

func cloneContribution(c *Contribution) *Contribution {
	cp := *c
	cp.Destinations = append([]Destination(nil), c.Destinations...)
	cp.Earnings.Pending = append([]Earning(nil), c.Earnings.Pending...)
	return &cp
}
