// Package mirror republishes the reconciled table view so spectators,
// recorders and bots can follow a game without their own socket.
package mirror

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/holdem/go/internal/table"
)

type FrameKind string

const (
	FrameState  FrameKind = "state"
	FrameNotice FrameKind = "notice"
)

// Frame is the envelope published for every view or notice.
type Frame struct {
	ID        string        `json:"frame_id"`
	Kind      FrameKind     `json:"kind"`
	Room      string        `json:"room"`
	Version   uint64        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	View      *table.View   `json:"view,omitempty"`
	Notice    *table.Notice `json:"notice,omitempty"`
}

type RelayStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

// Relay is a table.Observer that forwards frames to a Publisher from its own
// goroutine. The session loop never waits on the network: when the buffer is
// full the frame is dropped.
type Relay struct {
	pub            Publisher
	includePrivate bool
	timeout        time.Duration
	frames         chan Frame

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

type RelayConfig struct {
	// IncludePrivate keeps hole cards and allowed actions in published views.
	IncludePrivate bool
	BufferSize     int
	PublishTimeout time.Duration
}

func NewRelay(pub Publisher, cfg RelayConfig) *Relay {
	if pub == nil {
		pub = NoopPublisher{}
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Relay{
		pub:            pub,
		includePrivate: cfg.IncludePrivate,
		timeout:        cfg.PublishTimeout,
		frames:         make(chan Frame, cfg.BufferSize),
	}
}

func (r *Relay) OnView(v table.View) {
	if !r.includePrivate {
		v = Redact(v)
	}
	r.enqueue(Frame{
		ID:        uuid.NewString(),
		Kind:      FrameState,
		Room:      v.Room,
		Version:   v.Snapshot.Version,
		Timestamp: v.UpdatedAt,
		View:      &v,
	})
}

func (r *Relay) OnNotice(n table.Notice) {
	r.enqueue(Frame{
		ID:        uuid.NewString(),
		Kind:      FrameNotice,
		Timestamp: n.At,
		Notice:    &n,
	})
}

// OnWarning is a no-op; warnings stay local.
func (r *Relay) OnWarning(error) {}

func (r *Relay) enqueue(f Frame) {
	select {
	case r.frames <- f:
	default:
		n := r.dropped.Add(1)
		log.Warn().Str("kind", string(f.Kind)).Uint64("dropped", n).Msg("mirror buffer full, dropping frame")
	}
}

// Run publishes queued frames until ctx is cancelled. Notices carry no room
// and are stamped with the room of the last state frame.
func (r *Relay) Run(ctx context.Context) {
	room := ""
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-r.frames:
			if f.Kind == FrameState {
				room = f.Room
			} else {
				f.Room = room
			}
			r.publish(ctx, f)
		}
	}
}

func (r *Relay) publish(ctx context.Context, f Frame) {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.pub.Publish(pctx, f); err != nil {
		r.failed.Add(1)
		log.Error().Err(err).Str("room", f.Room).Str("kind", string(f.Kind)).Msg("failed to mirror frame")
		return
	}
	r.published.Add(1)
}

func (r *Relay) Stats() RelayStats {
	return RelayStats{
		Published: r.published.Load(),
		Dropped:   r.dropped.Load(),
		Failed:    r.failed.Load(),
	}
}

// Redact strips the local player's private field group from a view.
func Redact(v table.View) table.View {
	v.Snapshot = v.Snapshot.Clone()
	v.Snapshot.Private = table.PrivateState{HoleCards: []string{}}
	return v
}
