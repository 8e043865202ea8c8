package table

import (
	"time"
)

// View is a point-in-time copy of everything a front end needs. It is never
// mutated after it has been handed out.
type View struct {
	Snapshot  Snapshot       `json:"snapshot"`
	Turn      TurnView       `json:"turn"`
	Identity  string         `json:"identity,omitempty"`
	Room      string         `json:"room,omitempty"`
	Name      string         `json:"name"`
	Connected bool           `json:"connected"`
	InFlight  bool           `json:"in_flight"`
	Stats     ReconcileStats `json:"stats"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Me returns the local player's public entry, if seated.
func (v View) Me() (Participant, bool) {
	return v.Snapshot.Participant(v.Identity)
}

// CanAct reports whether a button for kind should be enabled.
func (v View) CanAct(kind ActionKind) bool {
	return v.Connected && v.Turn.MyTurn && !v.InFlight && v.Snapshot.Private.Allowed.Permits(kind)
}

// CanStartHand reports whether the start control should be offered.
func (v View) CanStartHand() bool {
	return v.Connected && v.Room != "" && !v.InFlight && v.Snapshot.Public.Phase == PhaseWaiting
}

// NoticeKind classifies informational events.
type NoticeKind string

const (
	NoticeJoined       NoticeKind = "joined"
	NoticeMessage      NoticeKind = "message"
	NoticeHandStarted  NoticeKind = "hand_started"
	NoticeShowdown     NoticeKind = "showdown"
	NoticeConnected    NoticeKind = "connected"
	NoticeDisconnected NoticeKind = "disconnected"
)

// Notice is an informational event that does not change the snapshot.
type Notice struct {
	Kind     NoticeKind `json:"kind"`
	Message  string     `json:"message,omitempty"`
	Showdown *Showdown  `json:"showdown,omitempty"`
	At       time.Time  `json:"at"`
}

// Observer receives session output. Calls are made from the session loop,
// one at a time, and must not block.
type Observer interface {
	OnView(View)
	OnWarning(error)
	OnNotice(Notice)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) OnView(View)     {}
func (NopObserver) OnWarning(error) {}
func (NopObserver) OnNotice(Notice) {}

// ObserverFuncs adapts plain functions to an Observer. Nil fields are skipped.
type ObserverFuncs struct {
	View    func(View)
	Warning func(error)
	Notice  func(Notice)
}

func (o ObserverFuncs) OnView(v View) {
	if o.View != nil {
		o.View(v)
	}
}

func (o ObserverFuncs) OnWarning(err error) {
	if o.Warning != nil {
		o.Warning(err)
	}
}

func (o ObserverFuncs) OnNotice(n Notice) {
	if o.Notice != nil {
		o.Notice(n)
	}
}
