package scoring

import "badminton-scoreboard/internal/domain"

type Rules struct {
	PointsPerSet int
	CapPoint     int
}

func RulesOf(m domain.Match) Rules {
	return Rules{PointsPerSet: m.PointsPerSet, CapPoint: m.CapPoint}
}

// DetectWinner reports the team that has won the set at score, if any.
// Reaching the cap wins outright; otherwise a team needs PointsPerSet and a
// two point lead.
func DetectWinner(score domain.Score, rules Rules) (domain.TeamKey, bool) {
	if score.A >= rules.CapPoint {
		return domain.TeamA, true
	}
	if score.B >= rules.CapPoint {
		return domain.TeamB, true
	}

	if score.A >= rules.PointsPerSet || score.B >= rules.PointsPerSet {
		lead := score.A - score.B
		if lead >= 2 {
			return domain.TeamA, true
		}
		if lead <= -2 {
			return domain.TeamB, true
		}
	}
	return "", false
}
