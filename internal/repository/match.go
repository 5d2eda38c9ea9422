package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"badminton-scoreboard/internal/constants"
	"badminton-scoreboard/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type MatchRepository struct {
	db     *sql.DB
	feed   *Feed
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		db:     sqlDB,
		feed:   NewFeed(),
		logger: logger,
	}
}

type teamRecord struct {
	Players []playerRecord `json:"players"`
}

type playerRecord struct {
	Name string `json:"name"`
}

const matchColumns = `id, name, type, team_a, team_b, points_per_set, cap_point, current_set, status,
	created_at, completed_at, winner, final_score_a, final_score_b, active_device_id, locked_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *MatchRepository) Create(ctx context.Context, in domain.NewMatch, at time.Time) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate nanoid: %w", err)
	}

	teamA, err := encodeTeam(in.TeamA)
	if err != nil {
		return "", err
	}
	teamB, err := encodeTeam(in.TeamB)
	if err != nil {
		return "", err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO matches (id, name, type, team_a, team_b, points_per_set, cap_point, current_set, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		id, in.Name, string(in.Type), teamA, teamB, in.PointsPerSet, in.CapPoint, string(domain.StatusCreated), at.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to insert match: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_live_state (match_id, score_a, score_b, serving_team, updated_at)
		VALUES (?, 0, 0, ?, ?)`,
		id, string(domain.TeamA), at.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to insert live state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit match: %w", err)
	}

	r.logger.Info().Str("match_id", id).Str("name", in.Name).Str("type", string(in.Type)).Msg("match created")
	r.publish(ctx)
	return id, nil
}

func (r *MatchRepository) Get(ctx context.Context, id string) (*domain.Match, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List returns all matches, newest first.
func (r *MatchRepository) List(ctx context.Context) ([]domain.Match, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := []domain.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// Delete removes a match that has not started.
func (r *MatchRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE id = ? AND status = ?`, id, string(domain.StatusCreated))
	if err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	if err := r.expectOne(ctx, res, id, domain.ErrMatchNotDeletable); err != nil {
		return err
	}

	r.logger.Info().Str("match_id", id).Msg("match deleted")
	r.publish(ctx)
	return nil
}

// AcquireLock records deviceID as the lock owner and moves a created match to
// playing. It does not check the current owner.
func (r *MatchRepository) AcquireLock(ctx context.Context, id, deviceID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE matches
		SET active_device_id = ?, locked_at = ?,
		    status = CASE WHEN status = ? THEN ? ELSE status END
		WHERE id = ? AND status != ?`,
		deviceID, at.UnixMilli(),
		string(domain.StatusCreated), string(domain.StatusPlaying),
		id, string(domain.StatusFinished))
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if err := r.expectOne(ctx, res, id, domain.ErrMatchFinished); err != nil {
		return err
	}

	r.logger.Debug().Str("match_id", id).Str("device_id", deviceID).Msg("lock acquired")
	r.publish(ctx)
	return nil
}

// ReleaseLock clears the lock fields. Releasing a finished or unlocked match is a no-op.
func (r *MatchRepository) ReleaseLock(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE matches SET active_device_id = NULL, locked_at = NULL
		WHERE id = ? AND active_device_id IS NOT NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return nil
	}

	r.logger.Debug().Str("match_id", id).Msg("lock released")
	r.publish(ctx)
	return nil
}

// SaveResult finishes the match and clears its lock in one statement.
func (r *MatchRepository) SaveResult(ctx context.Context, id string, winner domain.TeamKey, final domain.Score, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE matches
		SET status = ?, winner = ?, final_score_a = ?, final_score_b = ?, completed_at = ?,
		    active_device_id = NULL, locked_at = NULL
		WHERE id = ? AND status != ?`,
		string(domain.StatusFinished), string(winner), final.A, final.B, at.UnixMilli(),
		id, string(domain.StatusFinished))
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	if err := r.expectOne(ctx, res, id, domain.ErrMatchFinished); err != nil {
		return err
	}

	r.logger.Info().
		Str("match_id", id).
		Str("winner", string(winner)).
		Int("score_a", final.A).
		Int("score_b", final.B).
		Msg("match result saved")
	r.publish(ctx)
	return nil
}

func (r *MatchRepository) UpdateLiveState(ctx context.Context, state domain.LiveState) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE match_live_state
		SET score_a = ?, score_b = ?, serving_team = ?, server = ?, receiver = ?, updated_at = ?
		WHERE match_id = ?
		  AND match_id IN (SELECT id FROM matches WHERE status != ?)`,
		state.Score.A, state.Score.B, string(state.ServingTeam), state.Server, state.Receiver,
		state.UpdatedAt.UnixMilli(), state.MatchID, string(domain.StatusFinished))
	if err != nil {
		return fmt.Errorf("failed to update live state: %w", err)
	}
	return r.expectOne(ctx, res, state.MatchID, domain.ErrMatchFinished)
}

func (r *MatchRepository) GetLiveState(ctx context.Context, id string) (*domain.LiveState, error) {
	var (
		state       domain.LiveState
		servingTeam string
		updatedAt   int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT match_id, score_a, score_b, serving_team, server, receiver, updated_at
		FROM match_live_state WHERE match_id = ?`, id).
		Scan(&state.MatchID, &state.Score.A, &state.Score.B, &servingTeam, &state.Server, &state.Receiver, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	state.ServingTeam = domain.TeamKey(servingTeam)
	state.UpdatedAt = time.UnixMilli(updatedAt)
	return &state, nil
}

// Subscribe registers for match list snapshots. The current list is sent
// immediately.
func (r *MatchRepository) Subscribe(ctx context.Context) (*Subscription, error) {
	sub := r.feed.Subscribe(constants.WatchBufferSize)

	matches, err := r.List(ctx)
	if err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("failed to load initial snapshot: %w", err)
	}
	r.feed.Send(sub, matches)
	return sub, nil
}

func (r *MatchRepository) publish(ctx context.Context) {
	if r.feed.Len() == 0 {
		return
	}
	matches, err := r.List(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to publish match snapshot")
		return
	}
	r.feed.Publish(matches)
}

// expectOne maps a zero-row write to ErrMatchNotFound or to conflict when the match exists.
func (r *MatchRepository) expectOne(ctx context.Context, res sql.Result, id string, conflict error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return conflict
}

func scanMatch(row rowScanner) (*domain.Match, error) {
	var (
		m                      domain.Match
		matchType, status      string
		teamA, teamB           string
		createdAt              int64
		completedAt, lockedAt  sql.NullInt64
		finalA, finalB         sql.NullInt64
		winner, activeDeviceID sql.NullString
	)

	err := row.Scan(&m.ID, &m.Name, &matchType, &teamA, &teamB, &m.PointsPerSet, &m.CapPoint, &m.CurrentSet, &status,
		&createdAt, &completedAt, &winner, &finalA, &finalB, &activeDeviceID, &lockedAt)
	if err != nil {
		return nil, err
	}

	m.Type = domain.MatchType(matchType)
	m.Status = domain.MatchStatus(status)
	m.CreatedAt = time.UnixMilli(createdAt)

	if m.TeamA, err = decodeTeam(teamA); err != nil {
		return nil, fmt.Errorf("match %s team A: %w", m.ID, err)
	}
	if m.TeamB, err = decodeTeam(teamB); err != nil {
		return nil, fmt.Errorf("match %s team B: %w", m.ID, err)
	}

	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64)
		m.CompletedAt = &t
	}
	if winner.Valid {
		m.Winner = domain.TeamKey(winner.String)
	}
	if finalA.Valid && finalB.Valid {
		m.FinalScore = &domain.Score{A: int(finalA.Int64), B: int(finalB.Int64)}
	}
	if activeDeviceID.Valid && lockedAt.Valid {
		m.Lock = domain.Lock{OwnerDeviceID: activeDeviceID.String, LockedAt: time.UnixMilli(lockedAt.Int64)}
	}
	return &m, nil
}

func encodeTeam(names []string) (string, error) {
	rec := teamRecord{Players: make([]playerRecord, len(names))}
	for i, n := range names {
		rec.Players[i] = playerRecord{Name: n}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode team: %w", err)
	}
	return string(b), nil
}

func decodeTeam(raw string) (domain.Team, error) {
	var rec teamRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.Team{}, err
	}
	team := domain.Team{Players: make([]domain.Player, len(rec.Players))}
	for i, p := range rec.Players {
		team.Players[i] = domain.Player{Name: p.Name}
	}
	return team, nil
}
