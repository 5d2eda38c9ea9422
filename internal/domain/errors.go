package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchFinished     = errors.New("match is already finished")
	ErrMatchNotDeletable = errors.New("match can only be deleted before play starts")
	ErrNoPendingResult   = errors.New("no result is waiting for confirmation")
)

// FieldErrors maps a form field (name, pointsPerSet, capPoint, teamA, teamB) to its message.
type FieldErrors map[string]string

type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "invalid match: " + strings.Join(parts, "; ")
}

// LockConflictError reports that another device holds a fresh lock on the match.
type LockConflictError struct {
	MatchID       string
	OwnerDeviceID string
	LockedAt      time.Time
	RetryAfter    time.Duration
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("match %s is in use by another device, try again later", e.MatchID)
}

type PersistenceError struct {
	Op      string
	MatchID string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s match %s: %v", e.Op, e.MatchID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// StateError means a scoring session was used without the context it needs.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return "scoring session: " + e.Reason
}
