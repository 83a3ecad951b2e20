package monetization

import (
	"math"
	"testing"
	"time"

	"github.com/talgya/neurobank/internal/apperr"
	"github.com/talgya/neurobank/internal/entropy"
)

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func newTestScheduler() *Scheduler {
	s := NewScheduler(entropy.Constant(0.5))
	s.SetClock(func() time.Time { return t0 })
	return s
}

func richContext() Context {
	return Context{
		Session:      SessionContext{Activity: "meditation", Duration: 600},
		Wellness:     WellnessContext{ProductsUsed: []string{"Ashwagandha Tea"}, Supplements: []string{"Brahmi"}},
		Longitudinal: Longitudinal{SessionNumber: 12, DaysInProgram: 40, Consistency: 0.9},
	}
}

var allConsents = []DestinationType{DestWellness, DestAI, DestResearch}

func TestDataValue(t *testing.T) {
	tests := []struct {
		name string
		sig  Signal
		ctx  Context
		want float64
	}{
		{"bare", Signal{Quality: 70}, Context{}, 50},
		{"good signal", Signal{Quality: 85}, Context{}, 60},
		{"great signal", Signal{Quality: 95}, Context{}, 70},
		{"products", Signal{}, Context{Wellness: WellnessContext{ProductsUsed: []string{"x"}}}, 65},
		{"long program meditation", Signal{}, Context{
			Session:      SessionContext{Activity: "meditation"},
			Longitudinal: Longitudinal{DaysInProgram: 31},
		}, 75},
		{"long program focus", Signal{}, Context{
			Session:      SessionContext{Activity: "focus"},
			Longitudinal: Longitudinal{DaysInProgram: 31},
		}, 50},
		{"capped", Signal{Quality: 99}, richContext(), 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DataValue(tc.sig, tc.ctx); got != tc.want {
				t.Fatalf("DataValue = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestContributeMatchesConsentedDestinations(t *testing.T) {
	s := newTestScheduler()
	c, err := s.Contribute("u1", "session-1", Signal{Quality: 95}, richContext(), allConsents)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Destinations) != 3 {
		t.Fatalf("expected 3 destinations, got %+v", c.Destinations)
	}
	wantTypes := []DestinationType{DestWellness, DestAI, DestResearch}
	for i, d := range c.Destinations {
		if d.Type != wantTypes[i] {
			t.Fatalf("destination %d type %s, want %s", i, d.Type, wantTypes[i])
		}
	}
	if c.Destinations[0].Name != "Ashwagandha Tea Validation Study" {
		t.Fatalf("wellness name = %q", c.Destinations[0].Name)
	}
	research := c.Destinations[2]
	if research.Name != "Meditation Efficacy Research - IIT Delhi" || research.MatchScore != 87.5 {
		t.Fatalf("research match = %+v", research)
	}

	// data value 100 so each earning equals the destination's estimate.
	wantAmounts := []float64{25, 15, 30}
	wantDates := []time.Time{t0.Add(49 * 24 * time.Hour), t0.Add(90 * 24 * time.Hour), t0.Add(135 * 24 * time.Hour)}
	for i, e := range c.Earnings.Pending {
		if e.Amount != wantAmounts[i] || !e.ExpectedAt.Equal(wantDates[i]) || e.Status != EarningPending {
			t.Fatalf("earning %d = %+v", i, e)
		}
	}
	if c.Earnings.Projected != 12*70 || c.Earnings.Immediate != 0 {
		t.Fatalf("earnings = %+v", c.Earnings)
	}
	if c.Earnings.Timeline != "First earnings expected in 6-8 weeks" {
		t.Fatalf("timeline = %q", c.Earnings.Timeline)
	}
	if c.Status != StatusPending {
		t.Fatalf("status = %s", c.Status)
	}
}

func TestContributeWithoutConsent(t *testing.T) {
	s := newTestScheduler()
	c, err := s.Contribute("", "session-1", Signal{Quality: 95}, richContext(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Destinations) != 0 || c.Earnings.Projected != 0 {
		t.Fatalf("no consent should match nothing: %+v", c)
	}
	if c.UserID != DefaultUser || c.Earnings.Timeline != "No active monetization paths" {
		t.Fatalf("unexpected contribution %+v", c)
	}
}

func TestContributeRequiresSession(t *testing.T) {
	_, err := newTestScheduler().Contribute("u1", "", Signal{}, Context{}, nil)
	if apperr.CodeOf(err) != apperr.ErrorInvalid {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestResearchStudyOrder(t *testing.T) {
	ctx := Context{
		Session:      SessionContext{Activity: "stress"},
		Wellness:     WellnessContext{Supplements: []string{"Jatamansi"}},
		Longitudinal: Longitudinal{Consistency: 0.75, DaysInProgram: 20},
	}
	st, ok := matchStudy(ctx)
	if !ok || st.value != 35 {
		t.Fatalf("stress study should win over supplements: %+v", st)
	}
	ctx.Session.Activity = "rest"
	if st, _ = matchStudy(ctx); st.value != 40 {
		t.Fatalf("supplement study expected, got %+v", st)
	}
	ctx.Longitudinal.DaysInProgram = 13
	if _, ok = matchStudy(ctx); ok {
		t.Fatal("13 days should not qualify")
	}
}

func TestProjectionNeverExceedsCap(t *testing.T) {
	s := newTestScheduler()
	for i := 0; i < 100; i++ {
		c, err := s.Contribute("whale", "session-x", Signal{Quality: 99}, richContext(), allConsents)
		if err != nil {
			t.Fatal(err)
		}
		if c.Earnings.Projected > AnnualCap {
			t.Fatalf("per-contribution projection %v over cap", c.Earnings.Projected)
		}
	}
	if got := s.Summary("whale").ProjectedAnnual; got != AnnualCap {
		t.Fatalf("summary projection = %v, want %v", got, AnnualCap)
	}
}

func TestRealizeIsIdempotent(t *testing.T) {
	s := newTestScheduler()
	c, _ := s.Contribute("u1", "session-1", Signal{Quality: 95}, richContext(), allConsents)
	src := c.Earnings.Pending[0].Source

	ok, err := s.Realize(c.ID, src)
	if err != nil || !ok {
		t.Fatalf("first realize = %v, %v", ok, err)
	}
	ok, err = s.Realize(c.ID, src)
	if err != nil || ok {
		t.Fatalf("second realize = %v, %v", ok, err)
	}

	got, _ := s.Get(c.ID)
	if got.Earnings.Realized != 25 {
		t.Fatalf("realized = %v, want 25", got.Earnings.Realized)
	}
	if got.Status != StatusProcessing {
		t.Fatalf("status = %s, want processing", got.Status)
	}

	for _, e := range got.Earnings.Pending[1:] {
		if _, err := s.Realize(c.ID, e.Source); err != nil {
			t.Fatal(err)
		}
	}
	got, _ = s.Get(c.ID)
	if got.Status != StatusRealized || math.Abs(got.Earnings.Realized-70) > 1e-9 {
		t.Fatalf("after all payouts: %s %v", got.Status, got.Earnings.Realized)
	}
}

func TestRealizeUnknown(t *testing.T) {
	s := newTestScheduler()
	c, _ := s.Contribute("u1", "session-1", Signal{Quality: 95}, richContext(), allConsents)

	if _, err := s.Realize("contrib-missing", "x"); apperr.CodeOf(err) != apperr.ErrorNotFound {
		t.Fatalf("unknown contribution: %v", err)
	}
	if _, err := s.Realize(c.ID, "Nope"); apperr.CodeOf(err) != apperr.ErrorNotFound {
		t.Fatalf("unknown source: %v", err)
	}
}

func TestExpireFailsContribution(t *testing.T) {
	s := newTestScheduler()
	c, _ := s.Contribute("u1", "session-1", Signal{Quality: 95}, richContext(), allConsents)
	srcs := []string{c.Earnings.Pending[0].Source, c.Earnings.Pending[1].Source, c.Earnings.Pending[2].Source}

	if ok, _ := s.Expire(c.ID, srcs[0]); !ok {
		t.Fatal("expire of pending earning should succeed")
	}
	if ok, _ := s.Realize(c.ID, srcs[0]); ok {
		t.Fatal("expired earning must not be realized")
	}
	s.Realize(c.ID, srcs[1])
	if got, _ := s.Get(c.ID); got.Status != StatusProcessing {
		t.Fatalf("status = %s, want processing", got.Status)
	}
	s.Expire(c.ID, srcs[2])

	got, _ := s.Get(c.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.Earnings.Realized != 15 {
		t.Fatalf("realized = %v, want 15", got.Earnings.Realized)
	}
}

func TestSummaryAndDue(t *testing.T) {
	s := newTestScheduler()
	c, _ := s.Contribute("u1", "session-1", Signal{Quality: 95}, richContext(), allConsents)
	s.Contribute("u2", "session-2", Signal{Quality: 95}, richContext(), allConsents)

	sum := s.Summary("u1")
	if sum.TotalContributions != 1 || sum.PendingEarnings != 70 || sum.ProjectedAnnual != 840 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.NextPaymentDate == nil || !sum.NextPaymentDate.Equal(t0.Add(49*24*time.Hour)) {
		t.Fatalf("next payment = %v", sum.NextPaymentDate)
	}

	if due := s.Due(t0.Add(48 * 24 * time.Hour)); len(due) != 0 {
		t.Fatalf("nothing should be due yet, got %d", len(due))
	}
	due := s.Due(t0.Add(100 * 24 * time.Hour))
	if len(due) != 4 {
		t.Fatalf("expected 4 due earnings across both users, got %d", len(due))
	}
	if due[0].ContributionID != c.ID || due[0].Earning.Amount != 25 {
		t.Fatalf("first due = %+v", due[0])
	}

	s.Realize(c.ID, due[0].Earning.Source)
	if got := len(s.Due(t0.Add(100 * 24 * time.Hour))); got != 3 {
		t.Fatalf("paid earning still due: %d", got)
	}
	if s.Summary("nobody").NextPaymentDate != nil {
		t.Fatal("empty summary should have no next payment")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	s := newTestScheduler()
	s.Contribute("u1", "session-1", Signal{Quality: 95}, richContext(), allConsents)
	saved := s.Contributions("")

	other := newTestScheduler()
	other.Restore(saved)
	if got := other.Summary("u1"); got.PendingEarnings != 70 {
		t.Fatalf("restored summary = %+v", got)
	}
	saved[0].Earnings.Pending[0].Amount = 9999
	if got := other.Summary("u1"); got.PendingEarnings != 70 {
		t.Fatal("restore aliased caller slice")
	}
}
