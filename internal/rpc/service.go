package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

const MatchServiceName = "scoreboard.v1.MatchService"

const (
	CreateMatchProcedure     = "/scoreboard.v1.MatchService/CreateMatch"
	ListMatchesProcedure     = "/scoreboard.v1.MatchService/ListMatches"
	GetMatchProcedure        = "/scoreboard.v1.MatchService/GetMatch"
	DeleteMatchProcedure     = "/scoreboard.v1.MatchService/DeleteMatch"
	OpenMatchProcedure       = "/scoreboard.v1.MatchService/OpenMatch"
	AcquireLockProcedure     = "/scoreboard.v1.MatchService/AcquireLock"
	ReleaseLockProcedure     = "/scoreboard.v1.MatchService/ReleaseLock"
	SaveResultProcedure      = "/scoreboard.v1.MatchService/SaveResult"
	UpdateLiveStateProcedure = "/scoreboard.v1.MatchService/UpdateLiveState"
	GetLiveStateProcedure    = "/scoreboard.v1.MatchService/GetLiveState"
	WatchMatchesProcedure    = "/scoreboard.v1.MatchService/WatchMatches"
)

type (
	Request  = connect.Request[structpb.Struct]
	Response = connect.Response[structpb.Struct]
	Stream   = connect.ServerStream[structpb.Struct]
)

type MatchServiceHandler interface {
	CreateMatch(context.Context, *Request) (*Response, error)
	ListMatches(context.Context, *Request) (*Response, error)
	GetMatch(context.Context, *Request) (*Response, error)
	DeleteMatch(context.Context, *Request) (*Response, error)
	OpenMatch(context.Context, *Request) (*Response, error)
	AcquireLock(context.Context, *Request) (*Response, error)
	ReleaseLock(context.Context, *Request) (*Response, error)
	SaveResult(context.Context, *Request) (*Response, error)
	UpdateLiveState(context.Context, *Request) (*Response, error)
	GetLiveState(context.Context, *Request) (*Response, error)
	WatchMatches(context.Context, *Request, *Stream) error
}

// NewMatchServiceHandler builds an HTTP handler for every procedure and
// returns the path to mount it on.
func NewMatchServiceHandler(svc MatchServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	unary := map[string]func(context.Context, *Request) (*Response, error){
		CreateMatchProcedure:     svc.CreateMatch,
		ListMatchesProcedure:     svc.ListMatches,
		GetMatchProcedure:        svc.GetMatch,
		DeleteMatchProcedure:     svc.DeleteMatch,
		OpenMatchProcedure:       svc.OpenMatch,
		AcquireLockProcedure:     svc.AcquireLock,
		ReleaseLockProcedure:     svc.ReleaseLock,
		SaveResultProcedure:      svc.SaveResult,
		UpdateLiveStateProcedure: svc.UpdateLiveState,
		GetLiveStateProcedure:    svc.GetLiveState,
	}

	mux := http.NewServeMux()
	for procedure, fn := range unary {
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
	}
	mux.Handle(WatchMatchesProcedure, connect.NewServerStreamHandler(WatchMatchesProcedure, svc.WatchMatches, opts...))

	return "/" + MatchServiceName + "/", mux
}
