package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"badminton-scoreboard/internal/constants"
	"badminton-scoreboard/internal/domain"
	"badminton-scoreboard/internal/lock"
	"badminton-scoreboard/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LiveNotifier is told about every accepted live state update.
type LiveNotifier interface {
	NotifyLive(state domain.LiveState)
}

type MatchService struct {
	matchRepo *repository.MatchRepository
	notifier  LiveNotifier
	logger    zerolog.Logger
	now       func() time.Time
}

func NewMatchService(matchRepo *repository.MatchRepository, notifier LiveNotifier, logger zerolog.Logger) *MatchService {
	return &MatchService{matchRepo: matchRepo, notifier: notifier, logger: logger, now: time.Now}
}

// MatchSnapshot is a match record together with its latest live state.
type MatchSnapshot struct {
	Match domain.Match
	Live  domain.LiveState
}

func (s *MatchService) Create(ctx context.Context, in domain.NewMatch) (*domain.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.StoreTimeout)
	defer cancel()

	valid, err := in.Validate()
	if err != nil {
		s.logger.Debug().Err(err).Str("name", in.Name).Msg("match setup rejected")
		return nil, err
	}

	id, err := s.matchRepo.Create(ctx, valid, s.now())
	if err != nil {
		s.logger.Error().Err(err).Str("name", valid.Name).Msg("failed to create match")
		return nil, &domain.PersistenceError{Op: "create", Err: err}
	}
	return s.matchRepo.Get(ctx, id)
}

func (s *MatchService) List(ctx context.Context) ([]domain.Match, error) {
	return s.matchRepo.List(ctx)
}

func (s *MatchService) Get(ctx context.Context, id string) (*domain.Match, error) {
	return s.matchRepo.Get(ctx, id)
}

// Watch streams match list snapshots until the subscription is cancelled.
func (s *MatchService) Watch(ctx context.Context) (*repository.Subscription, error) {
	return s.matchRepo.Subscribe(ctx)
}

func (s *MatchService) Delete(ctx context.Context, id string) error {
	if err := s.matchRepo.Delete(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("match_id", id).Msg("failed to delete match")
		return storeErr("delete", id, err)
	}
	return nil
}

// Open checks whether deviceID may start scoring the match. It does not take
// the lock; that happens when the opening serve is chosen.
func (s *MatchService) Open(ctx context.Context, id, deviceID string) (*domain.Match, error) {
	m, err := s.matchRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := lock.CheckAvailable(*m, deviceID, s.now()); err != nil {
		var conflict *domain.LockConflictError
		if errors.As(err, &conflict) {
			s.logger.Info().
				Str("match_id", id).
				Str("device_id", deviceID).
				Str("owner_device_id", conflict.OwnerDeviceID).
				Dur("retry_after", conflict.RetryAfter).
				Msg("match is locked by another device")
		}
		return nil, err
	}
	return m, nil
}

func (s *MatchService) AcquireLock(ctx context.Context, id, deviceID string) error {
	if deviceID == "" {
		return &domain.ValidationError{Fields: domain.FieldErrors{"deviceId": "device id is required"}}
	}
	if err := s.matchRepo.AcquireLock(ctx, id, deviceID, s.now()); err != nil {
		s.logger.Error().Err(err).Str("match_id", id).Str("device_id", deviceID).Msg("failed to acquire lock")
		return storeErr("acquire lock", id, err)
	}
	return nil
}

func (s *MatchService) ReleaseLock(ctx context.Context, id string) error {
	if err := s.matchRepo.ReleaseLock(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("match_id", id).Msg("failed to release lock")
		return storeErr("release lock", id, err)
	}
	return nil
}

func (s *MatchService) SaveResult(ctx context.Context, id string, winner domain.TeamKey, final domain.Score) error {
	if !winner.Valid() {
		return &domain.ValidationError{Fields: domain.FieldErrors{"winner": "winner must be A or B"}}
	}
	if err := s.matchRepo.SaveResult(ctx, id, winner, final, s.now()); err != nil {
		s.logger.Error().Err(err).Str("match_id", id).Msg("failed to save result")
		return storeErr("save result", id, err)
	}
	return nil
}

func (s *MatchService) UpdateLiveState(ctx context.Context, state domain.LiveState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = s.now()
	}
	if err := s.matchRepo.UpdateLiveState(ctx, state); err != nil {
		s.logger.Warn().Err(err).Str("match_id", state.MatchID).Msg("failed to update live state")
		return storeErr("update live state", state.MatchID, err)
	}
	if s.notifier != nil {
		s.notifier.NotifyLive(state)
	}
	return nil
}

func (s *MatchService) GetLiveState(ctx context.Context, id string) (*domain.LiveState, error) {
	return s.matchRepo.GetLiveState(ctx, id)
}

// Snapshot loads the match record and its live state concurrently.
func (s *MatchService) Snapshot(ctx context.Context, id string) (*MatchSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.StoreTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	var (
		match *domain.Match
		live  *domain.LiveState
	)

	g.Go(func() error {
		var err error
		match, err = s.matchRepo.Get(gCtx, id)
		return err
	})

	g.Go(func() error {
		var err error
		live, err = s.matchRepo.GetLiveState(gCtx, id)
		return err
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, domain.ErrMatchNotFound) {
			s.logger.Error().Err(err).Str("match_id", id).Msg("failed to load match snapshot")
		}
		return nil, fmt.Errorf("failed to load match snapshot: %w", err)
	}
	return &MatchSnapshot{Match: *match, Live: *live}, nil
}

// storeErr keeps domain outcomes as they are and wraps anything else as a
// persistence failure.
func storeErr(op, id string, err error) error {
	switch {
	case errors.Is(err, domain.ErrMatchNotFound),
		errors.Is(err, domain.ErrMatchFinished),
		errors.Is(err, domain.ErrMatchNotDeletable):
		return err
	}
	return &domain.PersistenceError{Op: op, MatchID: id, Err: err}
}
