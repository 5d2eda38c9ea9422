package domain

import (
	"errors"
	"testing"
)

func TestNewMatchValidate(t *testing.T) {
	tests := []struct {
		name       string
		input      NewMatch
		wantFields []string
	}{
		{
			name:  "valid singles",
			input: NewMatch{Name: "Final", Type: MatchSingle, TeamA: []string{"X"}, TeamB: []string{"Y"}, PointsPerSet: 21, CapPoint: 30},
		},
		{
			name:  "valid doubles",
			input: NewMatch{Name: "Final", Type: MatchDouble, TeamA: []string{"X", "Z"}, TeamB: []string{"Y", "W"}, PointsPerSet: 21, CapPoint: 30},
		},
		{
			name:       "blank name",
			input:      NewMatch{Name: "   ", Type: MatchSingle, TeamA: []string{"X"}, TeamB: []string{"Y"}, PointsPerSet: 21, CapPoint: 30},
			wantFields: []string{"name"},
		},
		{
			name:       "non-positive points per set",
			input:      NewMatch{Name: "m", Type: MatchSingle, TeamA: []string{"X"}, TeamB: []string{"Y"}, PointsPerSet: 0, CapPoint: 30},
			wantFields: []string{"pointsPerSet"},
		},
		{
			name:       "cap below points per set",
			input:      NewMatch{Name: "m", Type: MatchSingle, TeamA: []string{"X"}, TeamB: []string{"Y"}, PointsPerSet: 21, CapPoint: 20},
			wantFields: []string{"capPoint"},
		},
		{
			name:       "missing doubles partner",
			input:      NewMatch{Name: "m", Type: MatchDouble, TeamA: []string{"X", " "}, TeamB: []string{"Y"}, PointsPerSet: 21, CapPoint: 30},
			wantFields: []string{"teamA", "teamB"},
		},
		{
			name:       "duplicate names in a team",
			input:      NewMatch{Name: "m", Type: MatchDouble, TeamA: []string{"X", "X"}, TeamB: []string{"Y", "W"}, PointsPerSet: 21, CapPoint: 30},
			wantFields: []string{"teamA"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.input.Validate()
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Errorf("got fields %v, want %v", verr.Fields, tt.wantFields)
			}
			for _, f := range tt.wantFields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("missing error for field %s", f)
				}
			}
		})
	}
}

func TestNewMatchValidateNormalizes(t *testing.T) {
	in := NewMatch{Name: "  Final ", Type: MatchSingle, TeamA: []string{" X ", "extra"}, TeamB: []string{"Y"}, PointsPerSet: 21, CapPoint: 30}

	out, err := in.Validate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "Final" {
		t.Errorf("name: got %q", out.Name)
	}
	if len(out.TeamA) != 1 || out.TeamA[0] != "X" {
		t.Errorf("teamA: got %v, want [X]", out.TeamA)
	}
}
