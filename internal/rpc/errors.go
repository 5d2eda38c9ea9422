package rpc

import (
	"errors"
	"time"

	"badminton-scoreboard/internal/domain"

	"connectrpc.com/connect"
)

const (
	reasonFinished     = "finished"
	reasonNotDeletable = "not_deletable"
	reasonNoPending    = "no_pending_result"
	reasonState        = "state"
)

// ErrorDetail is attached to error responses as a Struct detail so clients
// can rebuild the domain error.
type ErrorDetail struct {
	Reason        string            `json:"reason,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	MatchID       string            `json:"matchId,omitempty"`
	OwnerDeviceID string            `json:"ownerDeviceId,omitempty"`
	LockedAt      int64             `json:"lockedAt,omitempty"`
	RetryAfterMs  int64             `json:"retryAfterMs,omitempty"`
}

// ConnectError maps a domain error to its connect code and detail.
func ConnectError(err error) *connect.Error {
	var (
		verr     *domain.ValidationError
		conflict *domain.LockConflictError
		serr     *domain.StateError
		cerr     *connect.Error
	)

	var (
		code   connect.Code
		detail *ErrorDetail
	)
	switch {
	case errors.As(err, &cerr):
		return cerr
	case errors.As(err, &verr):
		code = connect.CodeInvalidArgument
		detail = &ErrorDetail{Fields: verr.Fields}
	case errors.As(err, &conflict):
		code = connect.CodeAborted
		detail = &ErrorDetail{
			MatchID:       conflict.MatchID,
			OwnerDeviceID: conflict.OwnerDeviceID,
			LockedAt:      conflict.LockedAt.UnixMilli(),
			RetryAfterMs:  conflict.RetryAfter.Milliseconds(),
		}
	case errors.Is(err, domain.ErrMatchNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, domain.ErrMatchFinished):
		code = connect.CodeFailedPrecondition
		detail = &ErrorDetail{Reason: reasonFinished}
	case errors.Is(err, domain.ErrMatchNotDeletable):
		code = connect.CodeFailedPrecondition
		detail = &ErrorDetail{Reason: reasonNotDeletable}
	case errors.Is(err, domain.ErrNoPendingResult):
		code = connect.CodeFailedPrecondition
		detail = &ErrorDetail{Reason: reasonNoPending}
	case errors.As(err, &serr):
		code = connect.CodeFailedPrecondition
		detail = &ErrorDetail{Reason: reasonState}
	default:
		code = connect.CodeInternal
	}

	out := connect.NewError(code, err)
	if detail == nil {
		return out
	}
	msg, encErr := Encode(detail)
	if encErr != nil {
		return out
	}
	if d, detErr := connect.NewErrorDetail(msg); detErr == nil {
		out.AddDetail(d)
	}
	return out
}

// DomainError rebuilds the domain error for a connect code, message and
// optional detail read off the wire.
func DomainError(code connect.Code, message string, detail *ErrorDetail) error {
	if detail == nil {
		detail = &ErrorDetail{}
	}
	switch code {
	case connect.CodeInvalidArgument:
		if len(detail.Fields) > 0 {
			return &domain.ValidationError{Fields: domain.FieldErrors(detail.Fields)}
		}
	case connect.CodeAborted:
		return &domain.LockConflictError{
			MatchID:       detail.MatchID,
			OwnerDeviceID: detail.OwnerDeviceID,
			LockedAt:      time.UnixMilli(detail.LockedAt),
			RetryAfter:    time.Duration(detail.RetryAfterMs) * time.Millisecond,
		}
	case connect.CodeNotFound:
		return domain.ErrMatchNotFound
	case connect.CodeFailedPrecondition:
		switch detail.Reason {
		case reasonFinished:
			return domain.ErrMatchFinished
		case reasonNotDeletable:
			return domain.ErrMatchNotDeletable
		case reasonNoPending:
			return domain.ErrNoPendingResult
		case reasonState:
			return &domain.StateError{Reason: message}
		}
	}
	return connect.NewError(code, errors.New(message))
}
