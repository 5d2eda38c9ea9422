package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"badminton-scoreboard/internal/database"
	"badminton-scoreboard/internal/middleware"
	"badminton-scoreboard/internal/repository"
	"badminton-scoreboard/internal/rpc"
	"badminton-scoreboard/internal/service"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zerolog.Nop()
	matchSvc := service.NewMatchService(repository.NewMatchRepository(db, logger), nil, logger)
	path, handler := rpc.NewMatchServiceHandler(NewScoreboardServer(matchSvc, logger))

	mux := http.NewServeMux()
	mux.Handle(path, middleware.RequestID(logger)(handler))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, procedure string, in any, opts ...connect.ClientOption) (*structpb.Struct, error) {
	t.Helper()
	msg, err := rpc.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	client := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+procedure, opts...)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func createMatch(t *testing.T, srv *httptest.Server, name string) rpc.MatchRecord {
	t.Helper()
	out, err := call(t, srv, rpc.CreateMatchProcedure, rpc.CreateMatchRequest{
		Name:         name,
		Type:         "double",
		TeamA:        rpc.TeamRecord{Players: []rpc.PlayerRecord{{Name: "X"}, {Name: "Z"}}},
		TeamB:        rpc.TeamRecord{Players: []rpc.PlayerRecord{{Name: "Y"}, {Name: "W"}}},
		PointsPerSet: 21,
		CapPoint:     30,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var rec rpc.MatchRecord
	if err := rpc.Decode(out, &rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func errorDetail(t *testing.T, err error) (connect.Code, rpc.ErrorDetail) {
	t.Helper()
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected connect error, got %v", err)
	}
	var detail rpc.ErrorDetail
	for _, d := range cerr.Details() {
		msg, derr := d.Value()
		if derr != nil {
			t.Fatalf("detail: %v", derr)
		}
		if s, ok := msg.(*structpb.Struct); ok {
			if err := rpc.Decode(s, &detail); err != nil {
				t.Fatal(err)
			}
		}
	}
	return cerr.Code(), detail
}

func TestCreateAndGetMatch(t *testing.T) {
	srv := newTestServer(t)

	rec := createMatch(t, srv, " Final ")
	if rec.ID == "" || rec.Name != "Final" || rec.Status != "created" || rec.CurrentSet != 1 {
		t.Errorf("created record: %+v", rec)
	}
	if len(rec.TeamA.Players) != 2 || rec.TeamA.Players[1].Name != "Z" {
		t.Errorf("team A: %+v", rec.TeamA)
	}
	if rec.CreatedAt == 0 || rec.LockedAt != nil || rec.FinalScore != nil {
		t.Errorf("optional fields: %+v", rec)
	}

	// the JSON codec must carry the same record
	out, err := call(t, srv, rpc.GetMatchProcedure, rpc.MatchRequest{MatchID: rec.ID}, connect.WithProtoJSON())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var snap rpc.MatchSnapshotResponse
	if err := rpc.Decode(out, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Match.ID != rec.ID || snap.LiveState.ServingTeam != "A" || snap.LiveState.Score != (rpc.ScoreRecord{}) {
		t.Errorf("snapshot: %+v", snap)
	}

	out, err = call(t, srv, rpc.ListMatchesProcedure, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	var list rpc.MatchListResponse
	if err := rpc.Decode(out, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Matches) != 1 {
		t.Errorf("list: got %d matches", len(list.Matches))
	}
}

func TestCreateMatchValidation(t *testing.T) {
	srv := newTestServer(t)

	_, err := call(t, srv, rpc.CreateMatchProcedure, rpc.CreateMatchRequest{
		Name:         "",
		Type:         "single",
		TeamA:        rpc.TeamRecord{Players: []rpc.PlayerRecord{{Name: "X"}}},
		PointsPerSet: 21,
		CapPoint:     15,
	})
	code, detail := errorDetail(t, err)
	if code != connect.CodeInvalidArgument {
		t.Fatalf("code: got %v", code)
	}
	for _, field := range []string{"name", "capPoint", "teamB"} {
		if detail.Fields[field] == "" {
			t.Errorf("missing field error for %s: %+v", field, detail.Fields)
		}
	}
}

func TestLockProcedures(t *testing.T) {
	srv := newTestServer(t)
	rec := createMatch(t, srv, "Final")

	if _, err := call(t, srv, rpc.OpenMatchProcedure, rpc.MatchRequest{MatchID: rec.ID, DeviceID: "d1"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := call(t, srv, rpc.AcquireLockProcedure, rpc.MatchRequest{MatchID: rec.ID, DeviceID: "d1"}); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	_, err := call(t, srv, rpc.OpenMatchProcedure, rpc.MatchRequest{MatchID: rec.ID, DeviceID: "d2"})
	code, detail := errorDetail(t, err)
	if code != connect.CodeAborted || detail.OwnerDeviceID != "d1" || detail.RetryAfterMs <= 0 {
		t.Fatalf("conflict: code=%v detail=%+v", code, detail)
	}

	if _, err := call(t, srv, rpc.ReleaseLockProcedure, rpc.MatchRequest{MatchID: rec.ID}); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := call(t, srv, rpc.OpenMatchProcedure, rpc.MatchRequest{MatchID: rec.ID, DeviceID: "d2"}); err != nil {
		t.Errorf("open after release: %v", err)
	}

	_, err = call(t, srv, rpc.AcquireLockProcedure, rpc.MatchRequest{MatchID: rec.ID})
	if code, _ := errorDetail(t, err); code != connect.CodeInvalidArgument {
		t.Errorf("acquire without device: got %v", code)
	}
}

func TestResultAndLiveState(t *testing.T) {
	srv := newTestServer(t)
	rec := createMatch(t, srv, "Final")

	_, err := call(t, srv, rpc.UpdateLiveStateProcedure, rpc.LiveStateRecord{
		MatchID:     rec.ID,
		Score:       rpc.ScoreRecord{A: 20, B: 18},
		ServingTeam: "A",
		Server:      "Z",
		Receiver:    "Y",
		UpdatedAt:   1_700_000_000_000,
	})
	if err != nil {
		t.Fatalf("update live state: %v", err)
	}

	out, err := call(t, srv, rpc.GetLiveStateProcedure, rpc.MatchRequest{MatchID: rec.ID})
	if err != nil {
		t.Fatal(err)
	}
	var live rpc.LiveStateRecord
	if err := rpc.Decode(out, &live); err != nil {
		t.Fatal(err)
	}
	if live.Score != (rpc.ScoreRecord{A: 20, B: 18}) || live.Server != "Z" || live.UpdatedAt != 1_700_000_000_000 {
		t.Errorf("live state: %+v", live)
	}

	_, err = call(t, srv, rpc.SaveResultProcedure, rpc.SaveResultRequest{MatchID: rec.ID, Winner: "A", FinalScore: rpc.ScoreRecord{A: 21, B: 18}})
	if err != nil {
		t.Fatalf("save result: %v", err)
	}

	_, err = call(t, srv, rpc.SaveResultProcedure, rpc.SaveResultRequest{MatchID: rec.ID, Winner: "B", FinalScore: rpc.ScoreRecord{A: 0, B: 21}})
	if code, detail := errorDetail(t, err); code != connect.CodeFailedPrecondition || detail.Reason != "finished" {
		t.Errorf("second save: code=%v detail=%+v", code, detail)
	}

	_, err = call(t, srv, rpc.DeleteMatchProcedure, rpc.MatchRequest{MatchID: rec.ID})
	if code, detail := errorDetail(t, err); code != connect.CodeFailedPrecondition || detail.Reason != "not_deletable" {
		t.Errorf("delete finished: code=%v detail=%+v", code, detail)
	}

	_, err = call(t, srv, rpc.GetMatchProcedure, rpc.MatchRequest{MatchID: "missing"})
	if code, _ := errorDetail(t, err); code != connect.CodeNotFound {
		t.Errorf("missing match: got %v", code)
	}
}

func TestWatchMatches(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+rpc.WatchMatchesProcedure)
	stream, err := client.CallServerStream(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer stream.Close()

	if !stream.Receive() {
		t.Fatalf("initial snapshot: %v", stream.Err())
	}

	created := createMatch(t, srv, "Live")
	for stream.Receive() {
		var list rpc.MatchListResponse
		if err := rpc.Decode(stream.Msg(), &list); err != nil {
			t.Fatal(err)
		}
		if len(list.Matches) == 1 && list.Matches[0].ID == created.ID {
			return
		}
	}
	t.Fatalf("stream ended without the new match: %v", stream.Err())
}
