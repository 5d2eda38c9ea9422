package server

import (
	"context"
	"time"

	"badminton-scoreboard/internal/domain"
	"badminton-scoreboard/internal/rpc"
	"badminton-scoreboard/internal/service"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/structpb"
)

// ScoreboardServer serves the Match Store over connect.
type ScoreboardServer struct {
	matchSvc *service.MatchService
	logger   zerolog.Logger
}

var _ rpc.MatchServiceHandler = (*ScoreboardServer)(nil)

func NewScoreboardServer(matchSvc *service.MatchService, logger zerolog.Logger) *ScoreboardServer {
	return &ScoreboardServer{matchSvc: matchSvc, logger: logger}
}

func (s *ScoreboardServer) CreateMatch(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	defer s.trace(ctx, "CreateMatch")()

	var in rpc.CreateMatchRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	m, err := s.matchSvc.Create(ctx, in.Domain())
	if err != nil {
		return nil, rpc.ConnectError(err)
	}
	return respond(rpc.MatchOf(*m))
}

func (s *ScoreboardServer) ListMatches(ctx context.Context, _ *rpc.Request) (*rpc.Response, error) {
	defer s.trace(ctx, "ListMatches")()

	matches, err := s.matchSvc.List(ctx)
	if err != nil {
		return nil, rpc.ConnectError(err)
	}
	return respond(rpc.MatchesOf(matches))
}

// GetMatch returns the match record together with its live state.
func (s *ScoreboardServer) GetMatch(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	defer s.trace(ctx, "GetMatch")()

	in, err := decodeMatchRequest(req)
	if err != nil {
		return nil, err
	}

	snap, err := s.matchSvc.Snapshot(ctx, in.MatchID)
	if err != nil {
		return nil, rpc.ConnectError(err)
	}
	return respond(rpc.MatchSnapshotResponse{
		Match:     rpc.MatchOf(snap.Match),
		LiveState: rpc.LiveStateOf(snap.Live),
	})
}

func (s *ScoreboardServer) DeleteMatch(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	defer s.trace(ctx, "DeleteMatch")()

	in, err := decodeMatchRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.matchSvc.Delete(ctx, in.MatchID); err != nil {
		return nil, rpc.ConnectError(err)
	}
	return empty(), nil
}

// OpenMatch checks the session lock for the calling device without taking it.
func (s *ScoreboardServer) OpenMatch(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	defer s.trace(ctx, "OpenMatch")()

	in, err := decodeMatchRequest(req)
	if err != nil {
		return nil, err
	}

	m, err := s.matchSvc.Open(ctx, in.MatchID, in.DeviceID)
	if err != nil {
		return nil, rpc.ConnectError(err)
	}
	return respond(rpc.MatchOf(*m))
}

func (s *ScoreboardServer) AcquireLock(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	defer s.trace(ctx, "AcquireLock")()

	in, err := decodeMatchRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.matchSvc.AcquireLock(ctx, in.MatchID, in.DeviceID); err != nil {
		return nil, rpc.ConnectError(err)
	}
	return empty(), nil
}

func (s *ScoreboardServer) ReleaseLock(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	defer s.trace(ctx, "ReleaseLock")()

	in, err := decodeMatchRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.matchSvc.ReleaseLock(ctx, in.MatchID); err != nil {
		return nil, rpc.ConnectError(err)
	}
	return empty(), nil
}

func (s *ScoreboardServer) SaveResult(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	defer s.trace(ctx, "SaveResult")()

	var in rpc.SaveResultRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.MatchID == "" {
		return nil, rpc.ConnectError(missingMatchID())
	}

	err := s.matchSvc.SaveResult(ctx, in.MatchID, domain.TeamKey(in.Winner), in.FinalScore.Domain())
	if err != nil {
		return nil, rpc.ConnectError(err)
	}
	return empty(), nil
}

func (s *ScoreboardServer) UpdateLiveState(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	defer s.trace(ctx, "UpdateLiveState")()

	var in rpc.LiveStateRecord
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.MatchID == "" {
		return nil, rpc.ConnectError(missingMatchID())
	}
	if err := s.matchSvc.UpdateLiveState(ctx, in.Domain()); err != nil {
		return nil, rpc.ConnectError(err)
	}
	return empty(), nil
}

func (s *ScoreboardServer) GetLiveState(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	defer s.trace(ctx, "GetLiveState")()

	in, err := decodeMatchRequest(req)
	if err != nil {
		return nil, err
	}

	state, err := s.matchSvc.GetLiveState(ctx, in.MatchID)
	if err != nil {
		return nil, rpc.ConnectError(err)
	}
	return respond(rpc.LiveStateOf(*state))
}

// WatchMatches streams the full match list, first as it is now and then after
// every change, until the client goes away.
func (s *ScoreboardServer) WatchMatches(ctx context.Context, _ *rpc.Request, stream *rpc.Stream) error {
	sub, err := s.matchSvc.Watch(ctx)
	if err != nil {
		return rpc.ConnectError(err)
	}
	defer sub.Unsubscribe()

	logger := s.log(ctx)
	logger.Debug().Msg("match watcher connected")
	defer func() { logger.Debug().Msg("match watcher disconnected") }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case matches, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			msg, err := rpc.Encode(rpc.MatchesOf(matches))
			if err != nil {
				return connect.NewError(connect.CodeInternal, err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// trace logs the call duration with the request scoped logger.
func (s *ScoreboardServer) trace(ctx context.Context, procedure string) func() {
	start := time.Now()
	return func() {
		s.log(ctx).Debug().
			Str("procedure", procedure).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("rpc handled")
	}
}

// log prefers the request scoped logger set by the middleware.
func (s *ScoreboardServer) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}

func decode(req *rpc.Request, v any) error {
	if err := rpc.Decode(req.Msg, v); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	return nil
}

func decodeMatchRequest(req *rpc.Request) (rpc.MatchRequest, error) {
	var in rpc.MatchRequest
	if err := decode(req, &in); err != nil {
		return in, err
	}
	if in.MatchID == "" {
		return in, rpc.ConnectError(missingMatchID())
	}
	return in, nil
}

func missingMatchID() error {
	return &domain.ValidationError{Fields: domain.FieldErrors{"matchId": "match id is required"}}
}

func respond(v any) (*rpc.Response, error) {
	msg, err := rpc.Encode(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func empty() *rpc.Response {
	return connect.NewResponse(&structpb.Struct{})
}
