// Package session holds simulated EEG recording sessions for the process lifetime.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/neurobank/internal/apperr"
	"github.com/talgya/neurobank/internal/entropy"
)

// MentalState labels the dominant state detected in a session.
type MentalState string

const (
	StateMeditation MentalState = "meditation"
	StateFocused    MentalState = "focused"
	StateRelaxed    MentalState = "relaxed"
	StateStressed   MentalState = "stressed"
	StateCreative   MentalState = "creative"
)

// MentalStates lists every state in draw order.
var MentalStates = []MentalState{StateMeditation, StateFocused, StateRelaxed, StateStressed, StateCreative}

// DefaultDevice is the headset every demo session is recorded on.
const DefaultDevice = "brainbit-001"

// BandPowers are relative power values per EEG frequency band.
type BandPowers struct {
	Delta float64 `json:"delta"`
	Theta float64 `json:"theta"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// Session is one simulated recording.
type Session struct {
	ID              string      `json:"id"`
	ParticipantName string      `json:"participant_name"`
	Duration        float64     `json:"duration"` // seconds
	Timestamp       time.Time   `json:"timestamp"`
	Bands           BandPowers  `json:"wave_patterns"`
	MentalState     MentalState `json:"mental_state"`
	DeviceID        string      `json:"device_id"`
	Tokenized       bool        `json:"is_tokenized"`
	TokenID         string      `json:"token_id,omitempty"`
	Price           float64     `json:"price,omitempty"`
	Owner           string      `json:"owner"`
}

// Store keeps sessions in creation order.
type Store struct {
	rng   entropy.Source
	now   func() time.Time
	idGen func() string

	sessions []*Session
	index    map[string]*Session
}

// NewStore creates an empty store drawing band powers from rng.
func NewStore(rng entropy.Source) *Store {
	return &Store{
		rng:   rng,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: func() string { return "session-" + uuid.NewString() },
		index: make(map[string]*Session),
	}
}

// SetClock overrides the time source. Used by tests and the simulation.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Create records a new session for a participant.
func (s *Store) Create(participant string, duration float64) (*Session, error) {
	if participant == "" {
		return nil, apperr.NewInvalidError("participant name required")
	}
	if duration <= 0 {
		return nil, apperr.NewInvalidError("duration must be positive")
	}

	sess := &Session{
		ID:              s.idGen(),
		ParticipantName: participant,
		Duration:        duration,
		Timestamp:       s.now(),
		Bands: BandPowers{
			Delta: entropy.Uniform(s.rng, 10, 60),
			Theta: entropy.Uniform(s.rng, 15, 55),
			Alpha: entropy.Uniform(s.rng, 20, 80),
			Beta:  entropy.Uniform(s.rng, 25, 70),
			Gamma: entropy.Uniform(s.rng, 10, 40),
		},
		MentalState: MentalStates[s.rng.Intn(len(MentalStates))],
		DeviceID:    DefaultDevice,
		Owner:       participant,
	}

	s.sessions = append(s.sessions, sess)
	s.index[sess.ID] = sess
	cp := *sess
	return &cp, nil
}

// Get returns a copy of the session with the given id.
func (s *Store) Get(id string) (*Session, error) {
	sess, ok := s.index[id]
	if !ok {
		return nil, apperr.NewNotFoundError(fmt.Sprintf("session %s not found", id))
	}
	cp := *sess
	return &cp, nil
}

// List returns copies of all sessions in creation order.
func (s *Store) List() []Session {
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	return out
}

// MarkTokenized is the one mutation a session undergoes.
func (s *Store) MarkTokenized(id, tokenID string, price float64) error {
	sess, ok := s.index[id]
	if !ok {
		return apperr.NewNotFoundError(fmt.Sprintf("session %s not found", id))
	}
	if sess.Tokenized {
		return apperr.NewConflictError(fmt.Sprintf("session %s already tokenized as %s", id, sess.TokenID))
	}
	if price < 0 {
		price = 0
	}
	sess.Tokenized = true
	sess.TokenID = tokenID
	sess.Price = price
	return nil
}

// Restore replaces the store contents with previously saved sessions.
func (s *Store) Restore(sessions []Session) {
	s.sessions = make([]*Session, 0, len(sessions))
	s.index = make(map[string]*Session, len(sessions))
	for i := range sessions {
		sess := sessions[i]
		s.sessions = append(s.sessions, &sess)
		s.index[sess.ID] = &sess
	}
}
