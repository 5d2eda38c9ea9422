package domain

import (
	"fmt"
	"strings"
)

// NewMatch is the setup submitted when a match is created.
type NewMatch struct {
	Name         string
	Type         MatchType
	TeamA        []string
	TeamB        []string
	PointsPerSet int
	CapPoint     int
}

// Validate checks the setup and returns a normalized copy: trimmed names and
// exactly as many players per team as the match type requires.
func (n NewMatch) Validate() (NewMatch, error) {
	errs := FieldErrors{}

	if n.Type != MatchSingle && n.Type != MatchDouble {
		n.Type = MatchSingle
	}
	required := n.Type.PlayersPerTeam()

	n.Name = strings.TrimSpace(n.Name)
	if n.Name == "" {
		errs["name"] = "match name is required"
	}

	if n.PointsPerSet < 1 {
		errs["pointsPerSet"] = "points per set must be at least 1"
	}

	if n.CapPoint < 1 || n.CapPoint < n.PointsPerSet {
		errs["capPoint"] = "cap point must be greater than or equal to points per set"
	}

	var ok bool
	if n.TeamA, ok = normalizeTeam(n.TeamA, required); !ok {
		errs["teamA"] = fmt.Sprintf("enter %d distinct player name(s) for team A", required)
	}
	if n.TeamB, ok = normalizeTeam(n.TeamB, required); !ok {
		errs["teamB"] = fmt.Sprintf("enter %d distinct player name(s) for team B", required)
	}

	if len(errs) > 0 {
		return n, &ValidationError{Fields: errs}
	}
	return n, nil
}

func normalizeTeam(names []string, required int) ([]string, bool) {
	if len(names) < required {
		return names, false
	}

	out := make([]string, 0, required)
	seen := make(map[string]bool, required)
	for _, name := range names[:required] {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return names, false
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, true
}
