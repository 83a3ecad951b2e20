package ledger

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/talgya/neurobank/internal/apperr"
	"github.com/talgya/neurobank/internal/session"
	"github.com/talgya/neurobank/internal/valuation"
)

type ProjectStatus string

// A project that reaches its deadline before its sample is complete closes
// as funded: the submissions it took are paid and it accepts no more.
const (
	ProjectActive    ProjectStatus = "active"
	ProjectFunded    ProjectStatus = "funded"
	ProjectCompleted ProjectStatus = "completed"
)

type RequestStatus string

const (
	RequestActive    RequestStatus = "active"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestExpired   RequestStatus = "expired"
)

// AnyDevice and AnyState disable the matching request criterion.
const (
	AnyDevice = "Any"
	AnyState  = "any"
)

// Requirements gate which NFTs a project accepts.
type Requirements struct {
	MinDuration  float64               `json:"min_duration"`
	Categories   []valuation.Category  `json:"categories"`
	MinQuality   valuation.QualityTier `json:"min_quality"`
	SampleSize   int                   `json:"sample_size"`
	Demographics []string              `json:"demographics,omitempty"`
}

// Rewards is a project's payout schedule.
type Rewards struct {
	PerSubmission  float64 `json:"per_submission"`
	BonusThreshold int     `json:"bonus_threshold"` // wallet submissions needed for the bonus
	BonusAmount    float64 `json:"bonus_amount"`
}

// ResearchProject is an institution's call for NFT submissions.
type ResearchProject struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Institution  string        `json:"institution"`
	Researcher   string        `json:"researcher"`
	Description  string        `json:"description"`
	Category     string        `json:"category"`
	Budget       float64       `json:"budget"`
	Deadline     time.Time     `json:"deadline"`
	Requirements Requirements  `json:"requirements"`
	Rewards      Rewards       `json:"rewards"`
	Status       ProjectStatus `json:"status"`
	Submissions  int           `json:"submissions"`
	Verified     bool          `json:"verified"`
}

// Criteria gate which raw sessions a request accepts.
type Criteria struct {
	MentalState string  `json:"mental_state"`
	MinDuration float64 `json:"min_duration"`
	DeviceType  string  `json:"device_type"`
}

// ResearchRequest asks for raw sessions rather than NFTs.
type ResearchRequest struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Researcher     string        `json:"researcher"`
	Criteria       Criteria      `json:"criteria"`
	Compensation   float64       `json:"compensation"`
	Currency       string        `json:"currency"`
	Status         RequestStatus `json:"status"`
	Submissions    int           `json:"submissions"`
	MaxSubmissions int           `json:"max_submissions"`
	ExpiresAt      time.Time     `json:"expires_at"` // zero never expires
}

// SubmissionResult reports the outcome of an accepted research submission.
type SubmissionResult struct {
	Reward           float64 `json:"reward"`
	BonusApplied     bool    `json:"bonus_applied"`
	ProjectCompleted bool    `json:"project_completed"`
	ImpactScore      float64 `json:"impact_score"`
}

// SubmitToResearch offers an NFT to a project and pays the reward when accepted.
func (l *Ledger) SubmitToResearch(nftID, projectID string) (SubmissionResult, error) {
	nft, err := l.nft(nftID)
	if err != nil {
		return SubmissionResult{}, err
	}
	p, err := l.project(projectID)
	if err != nil {
		return SubmissionResult{}, err
	}
	closeProject(p, l.now())
	if p.Status == ProjectCompleted || p.Submissions >= p.Requirements.SampleSize {
		return SubmissionResult{}, apperr.NewCapacityReachedError(
			fmt.Sprintf("project %s has all %d samples", p.ID, p.Requirements.SampleSize))
	}
	if p.Status != ProjectActive {
		return SubmissionResult{}, apperr.NewRequirementsNotMetError(fmt.Sprintf("project %s is %s", p.ID, p.Status))
	}
	if reason := unmet(nft, p.Requirements); reason != "" {
		return SubmissionResult{}, apperr.NewRequirementsNotMetError(reason)
	}

	res := SubmissionResult{Reward: p.Rewards.PerSubmission}
	if l.wallet.DataSubmissions >= p.Rewards.BonusThreshold {
		res.Reward += p.Rewards.BonusAmount
		res.BonusApplied = true
	}

	w := &l.wallet
	w.Balance += res.Reward
	w.LifetimeEarnings += res.Reward
	w.DataSubmissions++
	w.ResearchContributions++
	w.AcceptedSubmissions++

	multiplier := 1.0
	if p.Rewards.PerSubmission > 0 {
		multiplier = res.Reward / p.Rewards.PerSubmission
	}
	w.ResearchImpactScore = math.Min(maxImpact, w.ResearchImpactScore*(1-impactWeight)+multiplier*2*impactWeight)
	res.ImpactScore = w.ResearchImpactScore

	p.Submissions++
	if p.Submissions >= p.Requirements.SampleSize {
		p.Status = ProjectCompleted
		res.ProjectCompleted = true
	}
	return res, nil
}

func unmet(nft *DataNFT, req Requirements) string {
	switch {
	case nft.Duration < req.MinDuration:
		return fmt.Sprintf("duration %.0fs below minimum %.0fs", nft.Duration, req.MinDuration)
	case !slices.Contains(req.Categories, nft.Category):
		return fmt.Sprintf("category %s not accepted", nft.Category)
	case !valuation.Meets(nft.Quality, req.MinQuality):
		return fmt.Sprintf("quality %s below required %s", nft.Quality, req.MinQuality)
	}
	return ""
}

// SubmitSession offers a raw session to a research request and returns the compensation.
func (l *Ledger) SubmitSession(s session.Session, requestID string) (float64, error) {
	r, err := l.request(requestID)
	if err != nil {
		return 0, err
	}
	expireRequest(r, l.now())
	if r.Status == RequestFulfilled || r.Submissions >= r.MaxSubmissions {
		return 0, apperr.NewCapacityReachedError(fmt.Sprintf("request %s is full", r.ID))
	}
	if r.Status != RequestActive {
		return 0, apperr.NewRequirementsNotMetError(fmt.Sprintf("request %s is %s", r.ID, r.Status))
	}
	if !MeetsCriteria(s, r.Criteria) {
		return 0, apperr.NewRequirementsNotMetError(fmt.Sprintf("session %s does not meet request %s criteria", s.ID, r.ID))
	}

	r.Submissions++
	if r.Submissions >= r.MaxSubmissions {
		r.Status = RequestFulfilled
	}
	l.wallet.Balance += r.Compensation
	l.wallet.LifetimeEarnings += r.Compensation
	return r.Compensation, nil
}

// Closed lists what CloseOverdue closed.
type Closed struct {
	Projects []string
	Requests []string
}

// CloseOverdue closes active projects past their deadline and active
// requests past their expiry.
func (l *Ledger) CloseOverdue(now time.Time) Closed {
	var c Closed
	for _, p := range l.projects {
		if closeProject(p, now) {
			c.Projects = append(c.Projects, p.ID)
		}
	}
	for _, r := range l.requests {
		if expireRequest(r, now) {
			c.Requests = append(c.Requests, r.ID)
		}
	}
	return c
}

func closeProject(p *ResearchProject, now time.Time) bool {
	if p.Status != ProjectActive || p.Deadline.IsZero() || !now.After(p.Deadline) {
		return false
	}
	p.Status = ProjectFunded
	return true
}

func expireRequest(r *ResearchRequest, now time.Time) bool {
	if r.Status != RequestActive || r.ExpiresAt.IsZero() || !now.After(r.ExpiresAt) {
		return false
	}
	r.Status = RequestExpired
	return true
}

// MeetsCriteria reports whether a session satisfies a request.
func MeetsCriteria(s session.Session, c Criteria) bool {
	if s.Duration < c.MinDuration {
		return false
	}
	if c.MentalState != AnyState && string(s.MentalState) != c.MentalState {
		return false
	}
	return c.DeviceType == AnyDevice || strings.Contains(s.DeviceID, strings.ToLower(c.DeviceType))
}

// Projects lists research projects in seed order.
func (l *Ledger) Projects() []ResearchProject {
	out := make([]ResearchProject, 0, len(l.projects))
	for _, p := range l.projects {
		out = append(out, *cloneProject(p))
	}
	return out
}

// Project returns a copy of one research project.
func (l *Ledger) Project(id string) (*ResearchProject, error) {
	p, err := l.project(id)
	if err != nil {
		return nil, err
	}
	return cloneProject(p), nil
}

// Requests lists session research requests.
func (l *Ledger) Requests() []ResearchRequest {
	out := make([]ResearchRequest, 0, len(l.requests))
	for _, r := range l.requests {
		out = append(out, *r)
	}
	return out
}

func (l *Ledger) project(id string) (*ResearchProject, error) {
	for _, p := range l.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperr.NewNotFoundError(fmt.Sprintf("research project %s not found", id))
}

func (l *Ledger) request(id string) (*ResearchRequest, error) {
	for _, r := range l.requests {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, apperr.NewNotFoundError(fmt.Sprintf("research request %s not found", id))
}

func cloneProject(p *ResearchProject) *ResearchProject {
	cp := *p
	cp.Requirements.Categories = append([]valuation.Category(nil), p.Requirements.Categories...)
	cp.Requirements.Demographics = append([]string(nil), p.Requirements.Demographics...)
	return &cp
}
