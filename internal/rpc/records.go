// Package rpc holds the wire shapes of the scoreboard.v1.MatchService
// procedures. Bodies are google.protobuf.Struct messages whose fields use
// the persisted Match record names; times travel as Unix milliseconds.
package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"badminton-scoreboard/internal/domain"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type PlayerRecord struct {
	Name string `json:"name"`
}

type TeamRecord struct {
	Players []PlayerRecord `json:"players"`
}

type ScoreRecord struct {
	A int `json:"A"`
	B int `json:"B"`
}

type MatchRecord struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Type           string       `json:"type"`
	TeamA          TeamRecord   `json:"teamA"`
	TeamB          TeamRecord   `json:"teamB"`
	PointsPerSet   int          `json:"pointsPerSet"`
	CapPoint       int          `json:"capPoint"`
	CurrentSet     int          `json:"currentSet"`
	Status         string       `json:"status"`
	CreatedAt      int64        `json:"createdAt"`
	CompletedAt    *int64       `json:"completedAt,omitempty"`
	Winner         string       `json:"winner,omitempty"`
	FinalScore     *ScoreRecord `json:"finalScore,omitempty"`
	ActiveDeviceID string       `json:"activeDeviceId,omitempty"`
	LockedAt       *int64       `json:"lockedAt,omitempty"`
}

type LiveStateRecord struct {
	MatchID     string      `json:"matchId"`
	Score       ScoreRecord `json:"score"`
	ServingTeam string      `json:"servingTeam"`
	Server      string      `json:"server,omitempty"`
	Receiver    string      `json:"receiver,omitempty"`
	UpdatedAt   int64       `json:"updatedAt"`
}

type CreateMatchRequest struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	TeamA        TeamRecord `json:"teamA"`
	TeamB        TeamRecord `json:"teamB"`
	PointsPerSet int        `json:"pointsPerSet"`
	CapPoint     int        `json:"capPoint"`
}

type MatchRequest struct {
	MatchID  string `json:"matchId"`
	DeviceID string `json:"deviceId,omitempty"`
}

type SaveResultRequest struct {
	MatchID    string      `json:"matchId"`
	Winner     string      `json:"winner"`
	FinalScore ScoreRecord `json:"finalScore"`
}

type MatchListResponse struct {
	Matches []MatchRecord `json:"matches"`
}

type MatchSnapshotResponse struct {
	Match     MatchRecord     `json:"match"`
	LiveState LiveStateRecord `json:"liveState"`
}

func teamRecord(t domain.Team) TeamRecord {
	players := make([]PlayerRecord, len(t.Players))
	for i, p := range t.Players {
		players[i] = PlayerRecord{Name: p.Name}
	}
	return TeamRecord{Players: players}
}

func (t TeamRecord) Names() []string {
	names := make([]string, len(t.Players))
	for i, p := range t.Players {
		names[i] = p.Name
	}
	return names
}

func ScoreOf(s domain.Score) ScoreRecord {
	return ScoreRecord{A: s.A, B: s.B}
}

func (s ScoreRecord) Domain() domain.Score {
	return domain.Score{A: s.A, B: s.B}
}

func millis(t *time.Time) *int64 {
	if t == nil || t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}

func MatchOf(m domain.Match) MatchRecord {
	rec := MatchRecord{
		ID:           m.ID,
		Name:         m.Name,
		Type:         string(m.Type),
		TeamA:        teamRecord(m.TeamA),
		TeamB:        teamRecord(m.TeamB),
		PointsPerSet: m.PointsPerSet,
		CapPoint:     m.CapPoint,
		CurrentSet:   m.CurrentSet,
		Status:       string(m.Status),
		CreatedAt:    m.CreatedAt.UnixMilli(),
		CompletedAt:  millis(m.CompletedAt),
		Winner:       string(m.Winner),
	}
	if m.FinalScore != nil {
		final := ScoreOf(*m.FinalScore)
		rec.FinalScore = &final
	}
	if m.Lock.Held() {
		rec.ActiveDeviceID = m.Lock.OwnerDeviceID
		rec.LockedAt = millis(&m.Lock.LockedAt)
	}
	return rec
}

func (r MatchRecord) Domain() domain.Match {
	m := domain.Match{
		ID:           r.ID,
		Name:         r.Name,
		Type:         domain.MatchType(r.Type),
		TeamA:        domain.TeamOf(r.TeamA.Names()...),
		TeamB:        domain.TeamOf(r.TeamB.Names()...),
		PointsPerSet: r.PointsPerSet,
		CapPoint:     r.CapPoint,
		CurrentSet:   r.CurrentSet,
		Status:       domain.MatchStatus(r.Status),
		CreatedAt:    time.UnixMilli(r.CreatedAt),
		CompletedAt:  fromMillis(r.CompletedAt),
		Winner:       domain.TeamKey(r.Winner),
	}
	if r.FinalScore != nil {
		final := r.FinalScore.Domain()
		m.FinalScore = &final
	}
	if r.ActiveDeviceID != "" {
		m.Lock.OwnerDeviceID = r.ActiveDeviceID
		if at := fromMillis(r.LockedAt); at != nil {
			m.Lock.LockedAt = *at
		}
	}
	return m
}

func MatchesOf(matches []domain.Match) MatchListResponse {
	recs := make([]MatchRecord, len(matches))
	for i, m := range matches {
		recs[i] = MatchOf(m)
	}
	return MatchListResponse{Matches: recs}
}

func LiveStateOf(s domain.LiveState) LiveStateRecord {
	return LiveStateRecord{
		MatchID:     s.MatchID,
		Score:       ScoreOf(s.Score),
		ServingTeam: string(s.ServingTeam),
		Server:      s.Server,
		Receiver:    s.Receiver,
		UpdatedAt:   s.UpdatedAt.UnixMilli(),
	}
}

func (r LiveStateRecord) Domain() domain.LiveState {
	s := domain.LiveState{
		MatchID:     r.MatchID,
		Score:       r.Score.Domain(),
		ServingTeam: domain.TeamKey(r.ServingTeam),
		Server:      r.Server,
		Receiver:    r.Receiver,
	}
	if r.UpdatedAt != 0 {
		s.UpdatedAt = time.UnixMilli(r.UpdatedAt)
	}
	return s
}

func (r CreateMatchRequest) Domain() domain.NewMatch {
	return domain.NewMatch{
		Name:         r.Name,
		Type:         domain.MatchType(r.Type),
		TeamA:        r.TeamA.Names(),
		TeamB:        r.TeamB.Names(),
		PointsPerSet: r.PointsPerSet,
		CapPoint:     r.CapPoint,
	}
}

func CreateMatchOf(in domain.NewMatch) CreateMatchRequest {
	return CreateMatchRequest{
		Name:         in.Name,
		Type:         string(in.Type),
		TeamA:        teamRecord(domain.TeamOf(in.TeamA...)),
		TeamB:        teamRecord(domain.TeamOf(in.TeamB...)),
		PointsPerSet: in.PointsPerSet,
		CapPoint:     in.CapPoint,
	}
}

// Encode turns a record into a Struct message.
func Encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("failed to build struct: %w", err)
	}
	return msg, nil
}

// Decode fills v from a Struct message. A nil message decodes as empty.
func Decode(msg *structpb.Struct, v any) error {
	if msg == nil {
		msg = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal struct: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}
