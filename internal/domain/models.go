package domain

import (
	"time"
)

type TeamKey string

const (
	TeamA TeamKey = "A"
	TeamB TeamKey = "B"
)

func (t TeamKey) Valid() bool {
	return t == TeamA || t == TeamB
}

// Other returns the opposing team. It is only meaningful for valid keys.
func (t TeamKey) Other() TeamKey {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

type MatchType string

const (
	MatchSingle MatchType = "single"
	MatchDouble MatchType = "double"
)

// PlayersPerTeam is 1 for singles and 2 for doubles.
func (t MatchType) PlayersPerTeam() int {
	if t == MatchDouble {
		return 2
	}
	return 1
}

type MatchStatus string

const (
	StatusCreated  MatchStatus = "created"
	StatusPlaying  MatchStatus = "playing"
	StatusFinished MatchStatus = "finished"
)

type Player struct {
	Name string
}

type Team struct {
	Players []Player
}

func (t Team) Names() []string {
	names := make([]string, len(t.Players))
	for i, p := range t.Players {
		names[i] = p.Name
	}
	return names
}

func (t Team) Has(name string) bool {
	for _, p := range t.Players {
		if p.Name == name {
			return true
		}
	}
	return false
}

func TeamOf(names ...string) Team {
	players := make([]Player, len(names))
	for i, n := range names {
		players[i] = Player{Name: n}
	}
	return Team{Players: players}
}

type Score struct {
	A int
	B int
}

func (s Score) Of(team TeamKey) int {
	if team == TeamA {
		return s.A
	}
	return s.B
}

// Inc returns a copy of s with one point added for team.
func (s Score) Inc(team TeamKey) Score {
	if team == TeamA {
		s.A++
	} else {
		s.B++
	}
	return s
}

// Lock is the advisory session lock stored on a match. A zero Lock is unlocked.
type Lock struct {
	OwnerDeviceID string
	LockedAt      time.Time
}

func (l Lock) Held() bool {
	return l.OwnerDeviceID != ""
}

type Match struct {
	ID           string
	Name         string
	Type         MatchType
	TeamA        Team
	TeamB        Team
	PointsPerSet int
	CapPoint     int
	CurrentSet   int
	Status       MatchStatus
	CreatedAt    time.Time
	CompletedAt  *time.Time
	Winner       TeamKey // empty until finished
	FinalScore   *Score
	Lock         Lock
}

func (m Match) Team(key TeamKey) Team {
	if key == TeamA {
		return m.TeamA
	}
	return m.TeamB
}

func (m Match) Finished() bool {
	return m.Status == StatusFinished
}

// LiveState is the latest score and serve published by the device that owns the match.
type LiveState struct {
	MatchID     string
	Score       Score
	ServingTeam TeamKey
	Server      string
	Receiver    string
	UpdatedAt   time.Time
}
