package table

import (
	"github.com/rs/zerolog/log"
)

// ReconcileStats counts applied updates.
type ReconcileStats struct {
	RoomUpdates       uint64 `json:"room_updates"`
	PlayerUpdates     uint64 `json:"player_updates"`
	SuspectedReorders uint64 `json:"suspected_reorders"`
}

// Reconciler is the single writer of the canonical snapshot.
//
// The snapshot is split into two field groups. The public group belongs to
// whichever channel delivered the most recent update; the private group
// belongs to the most recent player update only. Updates are applied in the
// order they are handed in and nothing is buffered or reordered.
type Reconciler struct {
	snap  Snapshot
	stats ReconcileStats
}

// NewReconciler returns a reconciler holding the default snapshot: phase
// waiting, no players, zero pot, no turn owner.
func NewReconciler() *Reconciler {
	return &Reconciler{snap: emptySnapshot()}
}

// ApplyRoomUpdate replaces the public field group. Hole cards and allowed
// actions are left untouched.
func (r *Reconciler) ApplyRoomUpdate(u RoomUpdate) Snapshot {
	r.stats.RoomUpdates++
	r.setPublic(u.public(), ChannelRoom)
	return r.Snapshot()
}

// ApplyPlayerUpdate replaces the private field group and re-derives the
// public group from the same fragment, so the two channels never disagree.
func (r *Reconciler) ApplyPlayerUpdate(u PlayerUpdate) Snapshot {
	r.stats.PlayerUpdates++
	r.snap.Private = u.private()
	r.snap.PrivateSource = ChannelPlayer
	r.setPublic(u.RoomUpdate.public(), ChannelPlayer)
	return r.Snapshot()
}

// Snapshot returns a deep copy of the canonical snapshot.
func (r *Reconciler) Snapshot() Snapshot {
	return r.snap.Clone()
}

// Stats returns update counters.
func (r *Reconciler) Stats() ReconcileStats {
	return r.stats
}

// Reset drops all table state, e.g. after leaving the room.
func (r *Reconciler) Reset() {
	r.snap = emptySnapshot()
	r.stats = ReconcileStats{}
}

func (r *Reconciler) setPublic(next PublicState, from Channel) {
	prev := r.snap.Public

	// Within a hand the board only grows. The server is trusted regardless,
	// a shrinking board only gets flagged.
	if !startsHand(prev.Phase, next.Phase) && len(next.Community) < len(prev.Community) {
		r.stats.SuspectedReorders++
		log.Warn().
			Str("channel", string(from)).
			Str("prev_phase", string(prev.Phase)).
			Str("next_phase", string(next.Phase)).
			Int("prev_board", len(prev.Community)).
			Int("next_board", len(next.Community)).
			Msg("community cards went backwards, update may be out of order")
	}

	r.snap.Public = next
	r.snap.PublicSource = from
	r.snap.Version++
}

// startsHand reports whether moving from prev to next may legitimately clear the board.
func startsHand(prev, next Phase) bool {
	switch {
	case prev == PhaseWaiting, next == PhaseWaiting:
		return true
	case next == PhasePreflop && prev != PhasePreflop:
		return true
	}
	return false
}
