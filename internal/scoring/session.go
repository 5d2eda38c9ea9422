package scoring

import (
	"time"

	"badminton-scoreboard/internal/constants"
	"badminton-scoreboard/internal/domain"
)

// Outcome is the state after a rally event.
type Outcome struct {
	Score   domain.Score
	Serving ServingState
	Winner  domain.TeamKey // set when the rally produced a candidate result
	Ignored bool           // the event fell inside the debounce window
}

func (o Outcome) HasWinner() bool {
	return o.Winner != ""
}

// Result is a detected set winner waiting for confirmation.
type Result struct {
	Winner domain.TeamKey
	Score  domain.Score
}

type SessionOption func(*Session)

// WithClock overrides time.Now for the debounce guard.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

func WithDebounce(window time.Duration) SessionOption {
	return func(s *Session) { s.debounce = window }
}

// Session is the in-memory scoring state of one match on one device. It is
// not safe for concurrent use.
type Session struct {
	matchID string
	roster  Roster
	rules   Rules

	score   domain.Score
	serving ServingState
	history History
	pending *Result

	now        func() time.Time
	debounce   time.Duration
	guardUntil time.Time
}

// NewSession starts scoring match from 0-0 with the given opening serve.
func NewSession(match domain.Match, initial ServingState, opts ...SessionOption) (*Session, error) {
	if match.ID == "" {
		return nil, &domain.StateError{Reason: "missing match"}
	}
	if match.Finished() {
		return nil, &domain.StateError{Reason: "match is already finished"}
	}

	roster := RosterOf(match)
	if len(roster.A) == 0 || len(roster.B) == 0 {
		return nil, &domain.StateError{Reason: "match has no players"}
	}
	if initial.Server == "" || initial.Receiver == "" {
		return nil, &domain.StateError{Reason: "missing initial serve"}
	}
	if err := initial.Validate(roster); err != nil {
		return nil, &domain.StateError{Reason: err.Error()}
	}

	s := &Session{
		matchID:  match.ID,
		roster:   roster,
		rules:    RulesOf(match),
		serving:  initial,
		now:      time.Now,
		debounce: constants.RallyDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) MatchID() string { return s.matchID }

func (s *Session) Score() domain.Score { return s.score }

func (s *Session) Serving() ServingState { return s.serving }

// Rallies is the number of rallies that can still be undone.
func (s *Session) Rallies() int { return s.history.Len() }

// PendingResult returns the detected winner awaiting confirmation.
func (s *Session) PendingResult() (Result, bool) {
	if s.pending == nil {
		return Result{}, false
	}
	return *s.pending, true
}

// RecordRally awards one rally to team. A second event within the debounce
// window is ignored. Rallies are refused while a result awaits confirmation.
func (s *Session) RecordRally(team domain.TeamKey) (Outcome, error) {
	if s.pending != nil {
		return s.outcome(), &domain.StateError{Reason: "set already won, confirm or undo the last point"}
	}

	now := s.now()
	if now.Before(s.guardUntil) {
		out := s.outcome()
		out.Ignored = true
		return out, nil
	}

	score, serving, err := ApplyPoint(team, s.score, s.serving, s.roster)
	if err != nil {
		return s.outcome(), err
	}

	s.history.Push(Snapshot{Score: s.score, Serving: s.serving})
	s.score, s.serving = score, serving
	s.guardUntil = now.Add(s.debounce)

	if winner, ok := DetectWinner(score, s.rules); ok {
		s.pending = &Result{Winner: winner, Score: score}
		s.guardUntil = time.Time{}
	}
	return s.outcome(), nil
}

// Undo restores the state before the last rally. It reports false and does
// nothing when there is no history.
func (s *Session) Undo() bool {
	last, ok := s.history.Pop()
	if !ok {
		return false
	}
	s.score, s.serving = last.Score, last.Serving
	s.pending = nil
	s.guardUntil = time.Time{}
	return true
}

// Discard drops the undo history, as when the session ends.
func (s *Session) Discard() {
	s.history.Clear()
	s.pending = nil
}

func (s *Session) outcome() Outcome {
	out := Outcome{Score: s.score, Serving: s.serving}
	if s.pending != nil {
		out.Winner = s.pending.Winner
	}
	return out
}
