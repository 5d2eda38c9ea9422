package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"badminton-scoreboard/internal/constants"
	"badminton-scoreboard/internal/domain"
	"badminton-scoreboard/internal/rpc"
	"badminton-scoreboard/internal/service"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client talks to a remote Match Store with the connect JSON protocol. A
// scoring device uses it as the SessionStore of its ScoringService.
type Client struct {
	baseURL string
	client  *fasthttp.Client
	logger  zerolog.Logger
}

var _ service.SessionStore = (*Client)(nil)

func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.RemoteAPITimeout,
			WriteTimeout:        constants.RemoteAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

func (c *Client) CreateMatch(ctx context.Context, in domain.NewMatch) (*domain.Match, error) {
	rec, err := doRequest[rpc.MatchRecord](ctx, c, rpc.CreateMatchProcedure, rpc.CreateMatchOf(in))
	if err != nil {
		return nil, err
	}
	m := rec.Domain()
	return &m, nil
}

func (c *Client) ListMatches(ctx context.Context) ([]domain.Match, error) {
	resp, err := doRequest[rpc.MatchListResponse](ctx, c, rpc.ListMatchesProcedure, struct{}{})
	if err != nil {
		return nil, err
	}
	matches := make([]domain.Match, len(resp.Matches))
	for i, rec := range resp.Matches {
		matches[i] = rec.Domain()
	}
	return matches, nil
}

// GetMatch returns the match record and its live state.
func (c *Client) GetMatch(ctx context.Context, matchID string) (*domain.Match, *domain.LiveState, error) {
	resp, err := doRequest[rpc.MatchSnapshotResponse](ctx, c, rpc.GetMatchProcedure, rpc.MatchRequest{MatchID: matchID})
	if err != nil {
		return nil, nil, err
	}
	m := resp.Match.Domain()
	live := resp.LiveState.Domain()
	return &m, &live, nil
}

func (c *Client) DeleteMatch(ctx context.Context, matchID string) error {
	_, err := doRequest[struct{}](ctx, c, rpc.DeleteMatchProcedure, rpc.MatchRequest{MatchID: matchID})
	return err
}

// OpenMatch asks the server whether deviceID may score the match.
func (c *Client) OpenMatch(ctx context.Context, matchID, deviceID string) (*domain.Match, error) {
	rec, err := doRequest[rpc.MatchRecord](ctx, c, rpc.OpenMatchProcedure, rpc.MatchRequest{MatchID: matchID, DeviceID: deviceID})
	if err != nil {
		return nil, err
	}
	m := rec.Domain()
	return &m, nil
}

// AcquireLock takes the session lock. The server stamps the lock time with
// its own clock, so at is not sent.
func (c *Client) AcquireLock(ctx context.Context, matchID, deviceID string, _ time.Time) error {
	_, err := doRequest[struct{}](ctx, c, rpc.AcquireLockProcedure, rpc.MatchRequest{MatchID: matchID, DeviceID: deviceID})
	return err
}

func (c *Client) ReleaseLock(ctx context.Context, matchID string) error {
	_, err := doRequest[struct{}](ctx, c, rpc.ReleaseLockProcedure, rpc.MatchRequest{MatchID: matchID})
	return err
}

func (c *Client) SaveResult(ctx context.Context, matchID string, winner domain.TeamKey, final domain.Score, _ time.Time) error {
	_, err := doRequest[struct{}](ctx, c, rpc.SaveResultProcedure, rpc.SaveResultRequest{
		MatchID:    matchID,
		Winner:     string(winner),
		FinalScore: rpc.ScoreOf(final),
	})
	return err
}

func (c *Client) UpdateLiveState(ctx context.Context, state domain.LiveState) error {
	_, err := doRequest[struct{}](ctx, c, rpc.UpdateLiveStateProcedure, rpc.LiveStateOf(state))
	return err
}

func (c *Client) GetLiveState(ctx context.Context, matchID string) (*domain.LiveState, error) {
	rec, err := doRequest[rpc.LiveStateRecord](ctx, c, rpc.GetLiveStateProcedure, rpc.MatchRequest{MatchID: matchID})
	if err != nil {
		return nil, err
	}
	state := rec.Domain()
	return &state, nil
}

func doRequest[T any](ctx context.Context, client *Client, procedure string, in any) (*T, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", procedure, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(client.baseURL + procedure)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Connect-Protocol-Version", "1")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		err := decodeError(resp.StatusCode(), resp.Body())
		client.logger.Debug().Err(err).Str("procedure", procedure).Int("status", resp.StatusCode()).Msg("match store call failed")
		return nil, err
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", procedure, err)
	}
	return &result, nil
}

type wireError struct {
	Code    connect.Code `json:"code"`
	Message string       `json:"message"`
	Details []wireDetail `json:"details"`
}

type wireDetail struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// decodeError turns a connect error body back into the domain error the
// server started from.
func decodeError(status int, body []byte) error {
	var werr wireError
	if err := json.Unmarshal(body, &werr); err != nil || werr.Code == 0 {
		return fmt.Errorf("API error: %d", status)
	}

	var detail *rpc.ErrorDetail
	for _, d := range werr.Details {
		if d.Type != "google.protobuf.Struct" {
			continue
		}
		parsed, err := parseDetail(d.Value)
		if err != nil {
			return errors.Join(rpc.DomainError(werr.Code, werr.Message, nil), err)
		}
		detail = parsed
		break
	}
	return rpc.DomainError(werr.Code, werr.Message, detail)
}

func parseDetail(value string) (*rpc.ErrorDetail, error) {
	raw, err := base64.RawStdEncoding.DecodeString(value)
	if err != nil {
		if raw, err = base64.StdEncoding.DecodeString(value); err != nil {
			return nil, fmt.Errorf("invalid error detail encoding: %w", err)
		}
	}

	msg := &structpb.Struct{}
	if err := proto.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("invalid error detail: %w", err)
	}

	var detail rpc.ErrorDetail
	if err := rpc.Decode(msg, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}
