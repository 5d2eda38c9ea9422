package scoring

import "badminton-scoreboard/internal/domain"

// CourtAssignment records which player of each team stands in the right-hand
// service court. It is either unassigned or assigned for both teams; only
// doubles sessions ever assign it.
type CourtAssignment struct {
	assigned bool
	rightA   string
	rightB   string
}

func Unassigned() CourtAssignment {
	return CourtAssignment{}
}

func Assigned(teamARight, teamBRight string) CourtAssignment {
	return CourtAssignment{assigned: true, rightA: teamARight, rightB: teamBRight}
}

func (c CourtAssignment) IsAssigned() bool {
	return c.assigned
}

// RightCourt returns the right-court occupant of team, or false when unassigned.
func (c CourtAssignment) RightCourt(team domain.TeamKey) (string, bool) {
	if !c.assigned {
		return "", false
	}
	if team == domain.TeamA {
		return c.rightA, true
	}
	return c.rightB, true
}

func (c CourtAssignment) withRight(team domain.TeamKey, player string) CourtAssignment {
	if team == domain.TeamA {
		c.rightA = player
	} else {
		c.rightB = player
	}
	return c
}

// initCourts reconstructs the "even score, server on the right" layout from
// the pre-rally score and current serve.
func initCourts(score domain.Score, serving ServingState, roster Roster) CourtAssignment {
	return Assigned(
		initialRight(domain.TeamA, score, serving, roster),
		initialRight(domain.TeamB, score, serving, roster),
	)
}

func initialRight(team domain.TeamKey, score domain.Score, serving ServingState, roster Roster) string {
	players := roster.Of(team)
	if serving.ServingTeam == team {
		if score.Of(team)%2 == 0 {
			return serving.Server
		}
		return partner(players, serving.Server)
	}
	if score.Of(serving.ServingTeam)%2 == 0 {
		return partner(players, serving.Receiver)
	}
	return serving.Receiver
}

// partner returns the first teammate of name in players.
func partner(players []string, name string) string {
	for _, p := range players {
		if p != name {
			return p
		}
	}
	return name
}
