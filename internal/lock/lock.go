// Package lock decides whether a device may take over the advisory session
// lock stored on a match.
//
// The check and the following acquire are separate store calls, so two
// devices acquiring within the same instant can both believe they own the
// match. A lock older than constants.LockStaleTimeout is reclaimed silently;
// the previous owner is not notified.
package lock

import (
	"time"

	"badminton-scoreboard/internal/constants"
	"badminton-scoreboard/internal/domain"
)

type State int

const (
	Free State = iota
	Owned      // held by the asking device
	Held       // held by another device and still fresh
	Stale      // held by another device past the staleness timeout
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Owned:
		return "owned"
	case Held:
		return "held"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Inspect classifies l from the point of view of deviceID at now.
func Inspect(l domain.Lock, deviceID string, now time.Time) State {
	switch {
	case !l.Held():
		return Free
	case l.OwnerDeviceID == deviceID:
		return Owned
	case now.Sub(l.LockedAt) >= constants.LockStaleTimeout:
		return Stale
	default:
		return Held
	}
}

// CheckAvailable returns nil when deviceID may open m for scoring.
func CheckAvailable(m domain.Match, deviceID string, now time.Time) error {
	if m.Finished() {
		return domain.ErrMatchFinished
	}
	if Inspect(m.Lock, deviceID, now) == Held {
		return &domain.LockConflictError{
			MatchID:       m.ID,
			OwnerDeviceID: m.Lock.OwnerDeviceID,
			LockedAt:      m.Lock.LockedAt,
			RetryAfter:    constants.LockStaleTimeout - now.Sub(m.Lock.LockedAt),
		}
	}
	return nil
}
