package scoring

import (
	"errors"
	"fmt"
	"slices"

	"badminton-scoreboard/internal/domain"
)

var (
	ErrInvalidTeam    = errors.New("scoring team must be A or B")
	ErrEmptyRoster    = errors.New("both teams need at least one player")
	ErrInvalidServing = errors.New("serving state does not match the rosters")
)

// Roster holds the player names of both teams in entry order.
type Roster struct {
	A []string
	B []string
}

func RosterOf(m domain.Match) Roster {
	return Roster{A: m.TeamA.Names(), B: m.TeamB.Names()}
}

func (r Roster) Of(team domain.TeamKey) []string {
	if team == domain.TeamA {
		return r.A
	}
	return r.B
}

// Doubles reports whether both teams field more than one player. A mixed
// roster plays by singles rules.
func (r Roster) Doubles() bool {
	return len(r.A) > 1 && len(r.B) > 1
}

type ServingState struct {
	ServingTeam   domain.TeamKey
	Server        string
	ReceivingTeam domain.TeamKey
	Receiver      string
	Courts        CourtAssignment
}

// NewServingState builds the opening serve chosen before the first rally.
func NewServingState(servingTeam domain.TeamKey, server, receiver string) ServingState {
	return ServingState{
		ServingTeam:   servingTeam,
		Server:        server,
		ReceivingTeam: servingTeam.Other(),
		Receiver:      receiver,
	}
}

// Validate checks that server and receiver belong to their teams.
func (s ServingState) Validate(roster Roster) error {
	if !s.ServingTeam.Valid() || s.ReceivingTeam != s.ServingTeam.Other() {
		return fmt.Errorf("%w: serving team %q, receiving team %q", ErrInvalidServing, s.ServingTeam, s.ReceivingTeam)
	}
	if !slices.Contains(roster.Of(s.ServingTeam), s.Server) {
		return fmt.Errorf("%w: server %q is not on team %s", ErrInvalidServing, s.Server, s.ServingTeam)
	}
	if !slices.Contains(roster.Of(s.ReceivingTeam), s.Receiver) {
		return fmt.Errorf("%w: receiver %q is not on team %s", ErrInvalidServing, s.Receiver, s.ReceivingTeam)
	}
	return nil
}

// ApplyPoint awards a rally to scoringTeam and returns the next score and
// serving state. It is pure: the inputs are not modified and identical inputs
// give identical results.
func ApplyPoint(scoringTeam domain.TeamKey, score domain.Score, serving ServingState, roster Roster) (domain.Score, ServingState, error) {
	if !scoringTeam.Valid() {
		return score, serving, fmt.Errorf("%w: got %q", ErrInvalidTeam, scoringTeam)
	}
	if len(roster.A) == 0 || len(roster.B) == 0 {
		return score, serving, ErrEmptyRoster
	}
	if err := serving.Validate(roster); err != nil {
		return score, serving, err
	}

	next := score.Inc(scoringTeam)
	doubles := roster.Doubles()

	current := serving
	if doubles && !current.Courts.IsAssigned() {
		current.Courts = initCourts(score, serving, roster)
	}

	if scoringTeam == current.ServingTeam {
		return next, retainServe(current, roster, doubles), nil
	}
	return next, sideOut(current, roster, doubles), nil
}

// retainServe handles a rally won by the serving team.
func retainServe(s ServingState, roster Roster, doubles bool) ServingState {
	if !doubles {
		return s
	}

	servingRight, _ := s.Courts.RightCourt(s.ServingTeam)
	s.Courts = s.Courts.withRight(s.ServingTeam, partner(roster.Of(s.ServingTeam), servingRight))

	servingRight, _ = s.Courts.RightCourt(s.ServingTeam)
	receivingRight, _ := s.Courts.RightCourt(s.ReceivingTeam)
	if s.Server == servingRight {
		s.Receiver = partner(roster.Of(s.ReceivingTeam), receivingRight)
	} else {
		s.Receiver = receivingRight
	}
	return s
}

// sideOut handles a rally won by the receiving team, which takes the serve.
func sideOut(s ServingState, roster Roster, doubles bool) ServingState {
	next := ServingState{
		ServingTeam:   s.ReceivingTeam,
		Server:        s.Receiver,
		ReceivingTeam: s.ServingTeam,
		Receiver:      s.Server,
		Courts:        s.Courts,
	}
	if !doubles {
		return next
	}

	// Nobody moves; the new receiver is the former serving team's player
	// not on the new server's side.
	newServingRight, _ := s.Courts.RightCourt(next.ServingTeam)
	newReceivingRight, _ := s.Courts.RightCourt(next.ReceivingTeam)
	if next.Server == newServingRight {
		next.Receiver = partner(roster.Of(next.ReceivingTeam), newReceivingRight)
	} else {
		next.Receiver = newReceivingRight
	}
	return next
}
