package scoring

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"badminton-scoreboard/internal/domain"
)

var (
	singles = Roster{A: []string{"X"}, B: []string{"Y"}}
	doubles = Roster{A: []string{"X", "Z"}, B: []string{"Y", "W"}}
)

func TestApplyPoint(t *testing.T) {
	tests := []struct {
		name        string
		scoringTeam domain.TeamKey
		score       domain.Score
		serving     ServingState
		roster      Roster
		wantScore   domain.Score
		wantServing ServingState
	}{
		{
			name:        "singles serve retention keeps roles",
			scoringTeam: domain.TeamA,
			serving:     NewServingState(domain.TeamA, "X", "Y"),
			roster:      singles,
			wantScore:   domain.Score{A: 1},
			wantServing: NewServingState(domain.TeamA, "X", "Y"),
		},
		{
			name:        "singles side-out inverts roles",
			scoringTeam: domain.TeamB,
			serving:     NewServingState(domain.TeamA, "X", "Y"),
			roster:      singles,
			wantScore:   domain.Score{B: 1},
			wantServing: NewServingState(domain.TeamB, "Y", "X"),
		},
		{
			name:        "doubles serve retention swaps serving pair only",
			scoringTeam: domain.TeamA,
			serving:     NewServingState(domain.TeamA, "X", "Y"),
			roster:      doubles,
			wantScore:   domain.Score{A: 1},
			wantServing: ServingState{
				ServingTeam: domain.TeamA, Server: "X",
				ReceivingTeam: domain.TeamB, Receiver: "W",
				Courts: Assigned("Z", "W"),
			},
		},
		{
			name:        "doubles side-out passes serve to the receiver",
			scoringTeam: domain.TeamB,
			serving:     NewServingState(domain.TeamA, "X", "Y"),
			roster:      doubles,
			wantScore:   domain.Score{B: 1},
			wantServing: ServingState{
				ServingTeam: domain.TeamB, Server: "Y",
				ReceivingTeam: domain.TeamA, Receiver: "X",
				Courts: Assigned("X", "W"),
			},
		},
		{
			name:        "doubles lazy init from odd score",
			scoringTeam: domain.TeamA,
			score:       domain.Score{A: 3, B: 2},
			serving:     NewServingState(domain.TeamA, "X", "Y"),
			roster:      doubles,
			wantScore:   domain.Score{A: 4, B: 2},
			wantServing: ServingState{
				ServingTeam: domain.TeamA, Server: "X",
				ReceivingTeam: domain.TeamB, Receiver: "W",
				Courts: Assigned("X", "Y"),
			},
		},
		{
			name:        "doubles existing assignment is not re-derived",
			scoringTeam: domain.TeamA,
			serving: ServingState{
				ServingTeam: domain.TeamA, Server: "X",
				ReceivingTeam: domain.TeamB, Receiver: "Y",
				Courts: Assigned("Z", "Y"),
			},
			roster:    doubles,
			wantScore: domain.Score{A: 1},
			wantServing: ServingState{
				ServingTeam: domain.TeamA, Server: "X",
				ReceivingTeam: domain.TeamB, Receiver: "W",
				Courts: Assigned("X", "Y"),
			},
		},
		{
			name:        "mixed roster plays singles rules",
			scoringTeam: domain.TeamB,
			serving:     NewServingState(domain.TeamA, "X", "Y"),
			roster:      Roster{A: []string{"X", "Z"}, B: []string{"Y"}},
			wantScore:   domain.Score{B: 1},
			wantServing: NewServingState(domain.TeamB, "Y", "X"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, serving, err := ApplyPoint(tt.scoringTeam, tt.score, tt.serving, tt.roster)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if score != tt.wantScore {
				t.Errorf("score: got %+v, want %+v", score, tt.wantScore)
			}
			if serving != tt.wantServing {
				t.Errorf("serving: got %+v, want %+v", serving, tt.wantServing)
			}
		})
	}
}

func TestApplyPointIsPure(t *testing.T) {
	serving := NewServingState(domain.TeamA, "X", "Y")
	score := domain.Score{A: 5, B: 7}

	s1, sv1, err := ApplyPoint(domain.TeamA, score, serving, doubles)
	if err != nil {
		t.Fatal(err)
	}
	s2, sv2, err := ApplyPoint(domain.TeamA, score, serving, doubles)
	if err != nil {
		t.Fatal(err)
	}

	if s1 != s2 || sv1 != sv2 {
		t.Errorf("results differ: %+v/%+v vs %+v/%+v", s1, sv1, s2, sv2)
	}
	if serving.Courts.IsAssigned() {
		t.Error("input serving state was modified")
	}
}

func TestApplyPointPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		team    domain.TeamKey
		serving ServingState
		roster  Roster
		wantErr error
	}{
		{"unknown team", "C", NewServingState(domain.TeamA, "X", "Y"), singles, ErrInvalidTeam},
		{"empty roster", domain.TeamA, NewServingState(domain.TeamA, "X", "Y"), Roster{A: []string{"X"}}, ErrEmptyRoster},
		{"server not on team", domain.TeamA, NewServingState(domain.TeamA, "Y", "Y"), singles, ErrInvalidServing},
		{"receiver not on team", domain.TeamA, NewServingState(domain.TeamA, "X", "Q"), doubles, ErrInvalidServing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ApplyPoint(tt.team, domain.Score{}, tt.serving, tt.roster)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRallySequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, roster := range []Roster{singles, doubles} {
		score := domain.Score{}
		serving := NewServingState(domain.TeamB, roster.B[len(roster.B)-1], roster.A[0])
		var history History
		wonA, wonB := 0, 0

		for i := 0; i < 200; i++ {
			team := domain.TeamA
			if rng.Intn(2) == 1 {
				team = domain.TeamB
			}

			history.Push(Snapshot{Score: score, Serving: serving})
			nextScore, nextServing, err := ApplyPoint(team, score, serving, roster)
			if err != nil {
				t.Fatalf("rally %d: %v", i, err)
			}

			// undo is an exact inverse of the rally just applied
			prev, _ := history.Pop()
			if prev.Score != score || prev.Serving != serving {
				t.Fatalf("rally %d: snapshot mismatch", i)
			}
			history.Push(prev)

			score, serving = nextScore, nextServing
			if team == domain.TeamA {
				wonA++
			} else {
				wonB++
			}

			if score.A != wonA || score.B != wonB || score.A+score.B != i+1 {
				t.Fatalf("rally %d: score %+v, won A=%d B=%d", i, score, wonA, wonB)
			}
			if serving.ServingTeam != team {
				t.Fatalf("rally %d: rally winner %s should serve, got %s", i, team, serving.ServingTeam)
			}
			if !slices.Contains(roster.Of(serving.ServingTeam), serving.Server) ||
				!slices.Contains(roster.Of(serving.ReceivingTeam), serving.Receiver) {
				t.Fatalf("rally %d: players on wrong teams: %+v", i, serving)
			}
		}

		if history.Len() != wonA+wonB {
			t.Errorf("history depth %d, want %d", history.Len(), wonA+wonB)
		}
	}
}
