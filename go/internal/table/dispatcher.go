package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ActionKind is a betting action the local player can request.
type ActionKind string

const (
	ActionCheck ActionKind = "check"
	ActionCall  ActionKind = "call"
	ActionRaise ActionKind = "raise"
	ActionFold  ActionKind = "fold"
)

// ParseActionKind maps user input to an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	switch kind := ActionKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case ActionCheck, ActionCall, ActionRaise, ActionFold:
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// ParseAmount parses a raise amount. Chips are indivisible, so the amount must
// be a positive whole number; "40.0" is read as 40 while "2.5" is rejected.
func ParseAmount(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q is not a whole number of chips", ErrInvalidAmount, s)
	}
	if f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, s)
	}
	return int(f), nil
}

// Emitter is the part of the connection the dispatcher needs.
type Emitter interface {
	Connected() bool
	Emit(event string, payload any) error
}

// DispatchState is what the dispatcher reads to gate a request.
type DispatchState struct {
	Room     string
	Identity string
	Snapshot Snapshot
}

// Dispatcher validates requests against the reconciled state and sends
// them, allowing only one request in flight at a time.
type Dispatcher struct {
	conn     Emitter
	inFlight bool
	pending  string
}

// NewDispatcher returns a dispatcher sending through conn.
func NewDispatcher(conn Emitter) *Dispatcher {
	return &Dispatcher{conn: conn}
}

// InFlight reports whether a sent request is still waiting for a state update.
func (d *Dispatcher) InFlight() bool {
	return d.inFlight
}

// ClearInFlight unblocks dispatch. It reports whether a request was pending.
func (d *Dispatcher) ClearInFlight() bool {
	was := d.inFlight
	if was {
		log.Debug().Str("pending", d.pending).Msg("in-flight request settled")
	}
	d.inFlight = false
	d.pending = ""
	return was
}

// RequestAction checks, in order: connectivity, room, nothing in flight,
// turn ownership, raise amount and the server's capability flag. The
// amount is only read for raises.
func (d *Dispatcher) RequestAction(st DispatchState, kind ActionKind, amount string) error {
	if err := d.checkSession(st); err != nil {
		return err
	}

	switch kind {
	case ActionCheck, ActionCall, ActionRaise, ActionFold:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}

	if !IsMyTurn(st.Snapshot, st.Identity) {
		return ErrNotYourTurn
	}

	req := actionRequest{Room: st.Room, Action: kind}
	if kind == ActionRaise {
		n, err := ParseAmount(amount)
		if err != nil {
			return err
		}
		req.Amount = n
	}

	if !st.Snapshot.Private.Allowed.Permits(kind) {
		return fmt.Errorf("%w: %s", ErrActionNotAllowed, kind)
	}

	return d.send(EventPlayerAction, string(kind), req)
}

// StartHand asks the server to deal a new hand. It is only offered while the table is waiting.
func (d *Dispatcher) StartHand(st DispatchState) error {
	if err := d.checkSession(st); err != nil {
		return err
	}
	if st.Snapshot.Public.Phase != PhaseWaiting {
		return fmt.Errorf("%w (phase %s)", ErrHandInProgress, st.Snapshot.Public.Phase)
	}
	return d.send(EventStartHand, EventStartHand, roomRequest{Room: st.Room})
}

func (d *Dispatcher) checkSession(st DispatchState) error {
	if d.conn == nil || !d.conn.Connected() {
		return ErrNotConnected
	}
	if st.Room == "" {
		return ErrNoRoom
	}
	if d.inFlight {
		return fmt.Errorf("%w (%s)", ErrActionPending, d.pending)
	}
	return nil
}

// send marks the request in flight before transmitting and rolls the flag
// back if the transmission itself fails.
func (d *Dispatcher) send(event, label string, payload any) error {
	d.inFlight = true
	d.pending = label

	if err := d.conn.Emit(event, payload); err != nil {
		d.inFlight = false
		d.pending = ""
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	log.Info().Str("event", event).Str("request", label).Msg("request sent")
	return nil
}
