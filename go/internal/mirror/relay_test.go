package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/holdem/go/internal/table"
)

type recordingPublisher struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, f Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.frames = append(p.frames, f)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Frame(nil), p.frames...)
}

func privateView() table.View {
	var v table.View
	v.Room = "AB12"
	v.Name = "Alice"
	v.Snapshot.Version = 3
	v.Snapshot.Public.Phase = table.PhaseFlop
	v.Snapshot.Public.Community = []string{"2c", "7h", "Js"}
	v.Snapshot.Private.HoleCards = []string{"As", "Kd"}
	v.Snapshot.Private.Allowed = table.AllowedActions{Check: true}
	v.UpdatedAt = time.Unix(1700000000, 0)
	return v
}

func runRelay(t *testing.T, r *Relay) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRelay_RedactsPrivateFields(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewRelay(pub, RelayConfig{})
	runRelay(t, r)

	v := privateView()
	r.OnView(v)

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	f := pub.published()[0]

	assert.Equal(t, FrameState, f.Kind)
	assert.Equal(t, "AB12", f.Room)
	assert.Equal(t, uint64(3), f.Version)
	assert.NotEmpty(t, f.ID)
	require.NotNil(t, f.View)
	assert.Empty(t, f.View.Snapshot.Private.HoleCards)
	assert.False(t, f.View.Snapshot.Private.Allowed.Any())
	assert.Equal(t, []string{"2c", "7h", "Js"}, f.View.Snapshot.Public.Community)

	// the caller's view is untouched
	assert.Equal(t, []string{"As", "Kd"}, v.Snapshot.Private.HoleCards)
}

func TestRelay_IncludePrivate(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewRelay(pub, RelayConfig{IncludePrivate: true})
	runRelay(t, r)

	r.OnView(privateView())

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"As", "Kd"}, pub.published()[0].View.Snapshot.Private.HoleCards)
}

func TestRelay_NoticesTakeRoomOfLastState(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewRelay(pub, RelayConfig{})
	runRelay(t, r)

	r.OnView(privateView())
	r.OnNotice(table.Notice{Kind: table.NoticeMessage, Message: "Bob folded"})

	require.Eventually(t, func() bool { return len(pub.published()) == 2 }, time.Second, 5*time.Millisecond)
	f := pub.published()[1]
	assert.Equal(t, FrameNotice, f.Kind)
	assert.Equal(t, "AB12", f.Room)
	require.NotNil(t, f.Notice)
	assert.Equal(t, "Bob folded", f.Notice.Message)
}

func TestRelay_DropsWhenBufferFull(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewRelay(pub, RelayConfig{BufferSize: 2})

	// not running: nothing drains the buffer
	for i := 0; i < 5; i++ {
		r.OnView(privateView())
	}
	assert.Equal(t, uint64(3), r.Stats().Dropped)

	runRelay(t, r)
	require.Eventually(t, func() bool { return r.Stats().Published == 2 }, time.Second, 5*time.Millisecond)
}

func TestRelay_CountsFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats: no responders")}
	r := NewRelay(pub, RelayConfig{})
	runRelay(t, r)

	r.OnView(privateView())
	require.Eventually(t, func() bool { return r.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, r.Stats().Published)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "poker.table.AB12.state", Subject("poker.table", "AB12", FrameState))
	assert.Equal(t, "poker.table.lobby.notice", Subject("poker.table", "", FrameNotice))
	assert.Equal(t, "poker.table.a_b_.state", Subject("poker.table", "a.b>", FrameState))
}

func TestStreamConfig(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	sc := streamConfig(cfg)

	assert.Equal(t, "POKER_TABLE", sc.Name)
	assert.Equal(t, []string{"poker.table.>"}, sc.Subjects)
	assert.Equal(t, jetstream.LimitsPolicy, sc.Retention)
	assert.True(t, isStreamConfigEqual(sc, streamConfig(cfg)))

	cfg.MaxAge = time.Hour
	assert.False(t, isStreamConfigEqual(sc, streamConfig(cfg)))
}
