package table

import (
	"math"
	"slices"
	"time"
)

// Phase is the stage of the current hand.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePreflop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseShowdown Phase = "showdown"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseWaiting, PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver, PhaseShowdown:
		return true
	}
	return false
}

// Participant is a seated player as shown to everyone at the table.
type Participant struct {
	ID     string `json:"sid"`
	Name   string `json:"name"`
	Chips  int    `json:"chips"`
	InHand bool   `json:"in_hand"`
}

// AllowedActions is the capability set the server grants the local player.
// Flags are independent; all are false when it is not this player's turn.
type AllowedActions struct {
	Check bool `json:"check"`
	Call  bool `json:"call"`
	Raise bool `json:"raise"`
	Fold  bool `json:"fold"`
}

// Permits reports whether the server currently authorizes kind.
func (a AllowedActions) Permits(kind ActionKind) bool {
	switch kind {
	case ActionCheck:
		return a.Check
	case ActionCall:
		return a.Call
	case ActionRaise:
		return a.Raise
	case ActionFold:
		return a.Fold
	}
	return false
}

// Any reports whether at least one action is permitted.
func (a AllowedActions) Any() bool {
	return a.Check || a.Call || a.Raise || a.Fold
}

// RoomUpdate is the public room-wide broadcast.
type RoomUpdate struct {
	Players      []Participant `json:"players"`
	Community    []string      `json:"community"`
	Pot          int           `json:"pot"`
	State        Phase         `json:"state"`
	Dealer       *string       `json:"dealer"`
	CurrentTo    *string       `json:"current_to"`
	CurrentBet   int           `json:"current_bet"`
	TurnDeadline *float64      `json:"turn_deadline,omitempty"` // unix seconds
}

// PlayerUpdate is the private per-player broadcast. It carries every public
// field plus the viewer's own cards and allowed actions.
type PlayerUpdate struct {
	RoomUpdate
	YourCards      []string       `json:"your_cards"`
	AllowedActions AllowedActions `json:"allowed_actions"`
}

// Channel names the update stream that last wrote a field group.
type Channel string

const (
	ChannelNone   Channel = ""
	ChannelRoom   Channel = EventRoomUpdate
	ChannelPlayer Channel = EventPlayerUpdate
)

// PublicState is the field group shared by both channels.
// Empty Dealer or TurnOwner means the server sent null.
type PublicState struct {
	Players    []Participant `json:"players"`
	Community  []string      `json:"community"`
	Pot        int           `json:"pot"`
	Phase      Phase         `json:"phase"`
	Dealer     string        `json:"dealer,omitempty"`
	TurnOwner  string        `json:"turn_owner,omitempty"`
	CurrentBet int           `json:"current_bet"`
	Deadline   *time.Time    `json:"deadline,omitempty"`
}

// PrivateState is the field group only the player channel writes.
type PrivateState struct {
	HoleCards []string       `json:"hole_cards"`
	Allowed   AllowedActions `json:"allowed_actions"`
}

// Snapshot is the reconciled view of the table.
type Snapshot struct {
	Public        PublicState  `json:"public"`
	Private       PrivateState `json:"private"`
	PublicSource  Channel      `json:"public_source,omitempty"`
	PrivateSource Channel      `json:"private_source,omitempty"`
	Version       uint64       `json:"version"`
}

func emptySnapshot() Snapshot {
	return Snapshot{
		Public: PublicState{
			Players:   []Participant{},
			Community: []string{},
			Phase:     PhaseWaiting,
		},
		Private: PrivateState{
			HoleCards: []string{},
		},
	}
}

// Clone returns a deep copy that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Public = s.Public.clone()
	out.Private.HoleCards = cloneStrings(s.Private.HoleCards)
	return out
}

// Participant looks up a seated player by session id.
func (s Snapshot) Participant(id string) (Participant, bool) {
	if id == "" {
		return Participant{}, false
	}
	i := slices.IndexFunc(s.Public.Players, func(p Participant) bool { return p.ID == id })
	if i < 0 {
		return Participant{}, false
	}
	return s.Public.Players[i], true
}

func (p PublicState) clone() PublicState {
	out := p
	out.Players = slices.Clone(p.Players)
	if out.Players == nil {
		out.Players = []Participant{}
	}
	out.Community = cloneStrings(p.Community)
	if p.Deadline != nil {
		d := *p.Deadline
		out.Deadline = &d
	}
	return out
}

// public extracts the shared field group from a room fragment.
func (u RoomUpdate) public() PublicState {
	ps := PublicState{
		Players:    slices.Clone(u.Players),
		Community:  cloneStrings(u.Community),
		Pot:        u.Pot,
		Phase:      u.State,
		CurrentBet: u.CurrentBet,
	}
	if ps.Players == nil {
		ps.Players = []Participant{}
	}
	if ps.Phase == "" {
		ps.Phase = PhaseWaiting
	}
	if u.Dealer != nil {
		ps.Dealer = *u.Dealer
	}
	if u.CurrentTo != nil {
		ps.TurnOwner = *u.CurrentTo
	}
	if u.TurnDeadline != nil && *u.TurnDeadline > 0 {
		d := unixSeconds(*u.TurnDeadline)
		ps.Deadline = &d
	}
	return ps
}

// private extracts the private field group from a player fragment.
func (u PlayerUpdate) private() PrivateState {
	return PrivateState{
		HoleCards: cloneStrings(u.YourCards),
		Allowed:   u.AllowedActions,
	}
}

func unixSeconds(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9)))
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}
