// Package association provides the tag-to-playlist association engine.
package association

import (
	"time"

	"github.com/klangbox/klangbox/internal/domain/tag"
)

// State represents the lifecycle state of an association session.
type State int

const (
	StateListening State = iota // waiting for a tag
	StateSuccess                // tag bound to the session's playlist
	StateDuplicate              // tag already bound to a different playlist
	StateStopped                // cancelled by an explicit stop request
	StateTimeout                // window expired without a usable tag
	StateError                  // detection processing failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateSuccess:
		return "success"
	case StateDuplicate:
		return "duplicate"
	case StateStopped:
		return "stopped"
	case StateTimeout:
		return "timeout"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	return s != StateListening
}

// Session is a single time-boxed attempt to bind one tag to one
// playlist. All mutation happens inside the service under its lock;
// callers treat returned sessions as read-only.
type Session struct {
	ID                 string
	PlaylistID         string
	State              State
	DetectedTag        tag.Identifier // zero until a tag is seen
	ConflictPlaylistID string
	ErrorMessage       string
	StartedAt          time.Time
	Timeout            time.Duration
	OverrideMode       bool

	seq uint64 // registration order, for deterministic selection
}

// TimeoutAt returns the instant the session window closes.
func (s *Session) TimeoutAt() time.Time {
	return s.StartedAt.Add(s.Timeout)
}

// IsExpired reports whether the window has passed at the given time,
// regardless of state.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.TimeoutAt())
}

// IsActive reports whether the session is still listening and inside
// its window. Computed live from the clock on every call, so an
// expired-but-not-yet-swept session never counts as active.
func (s *Session) IsActive(now time.Time) bool {
	return s.State == StateListening && now.Before(s.TimeoutAt())
}
