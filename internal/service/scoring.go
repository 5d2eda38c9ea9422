package service

import (
	"context"
	"errors"
	"time"

	"badminton-scoreboard/internal/constants"
	"badminton-scoreboard/internal/domain"
	"badminton-scoreboard/internal/lock"
	"badminton-scoreboard/internal/scoring"

	"github.com/rs/zerolog"
)

// SessionStore is the part of the Match Store a scoring device writes to.
// Both the local repository and the remote API client implement it.
type SessionStore interface {
	AcquireLock(ctx context.Context, matchID, deviceID string, at time.Time) error
	ReleaseLock(ctx context.Context, matchID string) error
	SaveResult(ctx context.Context, matchID string, winner domain.TeamKey, final domain.Score, at time.Time) error
	UpdateLiveState(ctx context.Context, state domain.LiveState) error
}

type ScoringService struct {
	store  SessionStore
	logger zerolog.Logger
	now    func() time.Time
}

func NewScoringService(store SessionStore, logger zerolog.Logger) *ScoringService {
	return &ScoringService{store: store, logger: logger, now: time.Now}
}

// ActiveSession is one device scoring one match. Rallies are applied in memory
// first; store writes never roll them back. It is not safe for concurrent use.
type ActiveSession struct {
	svc      *ScoringService
	match    domain.Match
	deviceID string
	engine   *scoring.Session
	logger   zerolog.Logger
	finished bool
	closed   bool
}

// Start takes the session lock for deviceID and begins scoring from 0-0.
func (s *ScoringService) Start(ctx context.Context, match domain.Match, deviceID string, initial scoring.ServingState) (*ActiveSession, error) {
	if deviceID == "" {
		return nil, &domain.StateError{Reason: "missing device id"}
	}

	engine, err := scoring.NewSession(match, initial, scoring.WithClock(s.now))
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := lock.CheckAvailable(match, deviceID, now); err != nil {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, constants.StoreTimeout)
	defer cancel()
	if err := s.store.AcquireLock(lockCtx, match.ID, deviceID, now); err != nil {
		s.logger.Error().Err(err).Str("match_id", match.ID).Str("device_id", deviceID).Msg("failed to acquire session lock")
		return nil, asPersistence("acquire lock", match.ID, err)
	}

	a := &ActiveSession{
		svc:      s,
		match:    match,
		deviceID: deviceID,
		engine:   engine,
		logger:   s.logger.With().Str("match_id", match.ID).Str("device_id", deviceID).Logger(),
	}
	a.logger.Info().
		Str("serving_team", string(initial.ServingTeam)).
		Str("server", initial.Server).
		Str("receiver", initial.Receiver).
		Msg("scoring session started")

	a.publish(ctx)
	return a, nil
}

func (a *ActiveSession) Match() domain.Match { return a.match }

func (a *ActiveSession) Score() domain.Score { return a.engine.Score() }

func (a *ActiveSession) Serving() scoring.ServingState { return a.engine.Serving() }

func (a *ActiveSession) PendingResult() (scoring.Result, bool) { return a.engine.PendingResult() }

func (a *ActiveSession) Finished() bool { return a.finished }

// RecordRally applies a rally won by team and publishes the new live state.
func (a *ActiveSession) RecordRally(ctx context.Context, team domain.TeamKey) (scoring.Outcome, error) {
	if err := a.usable(); err != nil {
		return scoring.Outcome{Score: a.engine.Score(), Serving: a.engine.Serving()}, err
	}

	out, err := a.engine.RecordRally(team)
	if err != nil || out.Ignored {
		return out, err
	}

	a.logger.Debug().
		Str("team", string(team)).
		Int("score_a", out.Score.A).
		Int("score_b", out.Score.B).
		Str("server", out.Serving.Server).
		Msg("rally recorded")

	if out.HasWinner() {
		a.logger.Info().
			Str("winner", string(out.Winner)).
			Int("score_a", out.Score.A).
			Int("score_b", out.Score.B).
			Msg("set won, awaiting confirmation")
	}

	a.publish(ctx)
	return out, nil
}

// Undo reverts the last rally, including a win that was not yet confirmed.
func (a *ActiveSession) Undo(ctx context.Context) bool {
	if a.usable() != nil {
		return false
	}
	if !a.engine.Undo() {
		return false
	}
	a.publish(ctx)
	return true
}

// Confirm saves the pending result. On failure the session keeps the result
// so the operator can retry.
func (a *ActiveSession) Confirm(ctx context.Context) (scoring.Result, error) {
	if err := a.usable(); err != nil {
		return scoring.Result{}, err
	}
	result, ok := a.engine.PendingResult()
	if !ok {
		return scoring.Result{}, domain.ErrNoPendingResult
	}

	saveCtx, cancel := context.WithTimeout(ctx, constants.StoreTimeout)
	defer cancel()
	if err := a.svc.store.SaveResult(saveCtx, a.match.ID, result.Winner, result.Score, a.svc.now()); err != nil {
		a.logger.Error().Err(err).Str("winner", string(result.Winner)).Msg("failed to save result")
		return scoring.Result{}, asPersistence("save result", a.match.ID, err)
	}

	a.finished = true
	a.engine.Discard()
	a.logger.Info().
		Str("winner", string(result.Winner)).
		Int("score_a", result.Score.A).
		Int("score_b", result.Score.B).
		Msg("result confirmed")
	return result, nil
}

// Close ends the session and releases the lock in the background. The
// returned channel yields the release error, if any, and is then closed;
// callers may ignore it.
func (a *ActiveSession) Close(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	if a.closed {
		close(done)
		return done
	}
	a.closed = true
	a.engine.Discard()

	if a.finished {
		// saving the result already cleared the lock
		close(done)
		return done
	}

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.LockReleaseTimeout)
	go func() {
		defer cancel()
		defer close(done)

		if err := a.svc.store.ReleaseLock(releaseCtx, a.match.ID); err != nil {
			perr := asPersistence("release lock", a.match.ID, err)
			a.logger.Warn().Err(perr).Msg("failed to release session lock")
			done <- perr
			return
		}
		a.logger.Info().Msg("scoring session closed")
	}()
	return done
}

func (a *ActiveSession) usable() error {
	if a.closed {
		return &domain.StateError{Reason: "session is closed"}
	}
	if a.finished {
		return &domain.StateError{Reason: "match is finished"}
	}
	return nil
}

// publish writes the live state. Failures are logged and otherwise ignored.
func (a *ActiveSession) publish(ctx context.Context) {
	serving := a.engine.Serving()
	state := domain.LiveState{
		MatchID:     a.match.ID,
		Score:       a.engine.Score(),
		ServingTeam: serving.ServingTeam,
		Server:      serving.Server,
		Receiver:    serving.Receiver,
		UpdatedAt:   a.svc.now(),
	}

	pubCtx, cancel := context.WithTimeout(ctx, constants.LiveStateTimeout)
	defer cancel()
	if err := a.svc.store.UpdateLiveState(pubCtx, state); err != nil {
		a.logger.Warn().Err(asPersistence("update live state", a.match.ID, err)).Msg("failed to publish live state")
	}
}

func asPersistence(op, id string, err error) error {
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return &domain.PersistenceError{Op: op, MatchID: id, Err: err}
}
