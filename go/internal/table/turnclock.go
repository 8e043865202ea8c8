package table

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTickInterval is how often the countdown is re-derived between updates.
const DefaultTickInterval = 250 * time.Millisecond

// IsMyTurn reports whether the snapshot's turn owner is the local identity.
// Either side being unset means it is not.
func IsMyTurn(s Snapshot, identity string) bool {
	return s.Public.TurnOwner != "" && identity != "" && s.Public.TurnOwner == identity
}

// RemainingSeconds derives the countdown from the server deadline: the
// ceiling of deadline-now, never negative. ok is false when there is no
// deadline and the timer should be hidden.
func RemainingSeconds(s Snapshot, now time.Time) (seconds int, ok bool) {
	if s.Public.Deadline == nil {
		return 0, false
	}
	left := math.Ceil(s.Public.Deadline.Sub(now).Seconds())
	if left < 0 {
		return 0, true
	}
	return int(left), true
}

// TurnView holds the values derived from a snapshot at a point in time.
type TurnView struct {
	MyTurn   bool   `json:"my_turn"`
	Owner    string `json:"owner,omitempty"`
	Seconds  int    `json:"seconds_left"`
	HasTimer bool   `json:"has_timer"`
}

// TurnClock derives TurnViews. It keeps no countdown of its own; every call
// recomputes from the snapshot's deadline and the clock's current time.
type TurnClock struct {
	clock clockwork.Clock
}

// NewTurnClock returns a TurnClock reading time from clock.
func NewTurnClock(clock clockwork.Clock) *TurnClock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TurnClock{clock: clock}
}

// Derive computes the turn view for the snapshot as of now.
func (tc *TurnClock) Derive(s Snapshot, identity string) TurnView {
	seconds, ok := RemainingSeconds(s, tc.clock.Now())
	return TurnView{
		MyTurn:   IsMyTurn(s, identity),
		Owner:    s.Public.TurnOwner,
		Seconds:  seconds,
		HasTimer: ok,
	}
}

// anchorChanged reports whether the turn owner or deadline differ between two snapshots.
func anchorChanged(prev, next Snapshot) bool {
	if prev.Public.TurnOwner != next.Public.TurnOwner {
		return true
	}
	a, b := prev.Public.Deadline, next.Public.Deadline
	switch {
	case a == nil && b == nil:
		return false
	case a == nil || b == nil:
		return true
	}
	return !a.Equal(*b)
}
