package main

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/holdem/go/internal/table"
)

func TestMain(m *testing.M) {
	pterm.DisableColor()
	os.Exit(m.Run())
}

func flopView() table.View {
	var v table.View
	v.Room = "AB12"
	v.Name = "Alice"
	v.Identity = "sid-a"
	v.Connected = true
	v.Snapshot.Public = table.PublicState{
		Players: []table.Participant{
			{ID: "sid-a", Name: "Alice", Chips: 990, InHand: true},
			{ID: "sid-b", Name: "Bob", Chips: 500, InHand: false},
		},
		Community:  []string{"2c", "7h", "Js"},
		Pot:        40,
		Phase:      table.PhaseFlop,
		Dealer:     "sid-b",
		TurnOwner:  "sid-a",
		CurrentBet: 10,
	}
	v.Snapshot.Private = table.PrivateState{
		HoleCards: []string{"As", "Kd"},
		Allowed:   table.AllowedActions{Check: true, Raise: true},
	}
	v.Turn = table.TurnView{MyTurn: true, Owner: "sid-a", Seconds: 12, HasTimer: true}
	return v
}

func TestRenderView(t *testing.T) {
	out := renderView(flopView())

	for _, want := range []string{
		"Room AB12",
		"Alice (you)",
		"Bob (D)",
		"To act",
		"Out",
		"Board: 2c 7h Js",
		"Pot: 40",
		"Timer: 12s",
		"As Kd",
		"Your turn",
		"Actions: check raise",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderView_LongSeatNames(t *testing.T) {
	v := flopView()
	v.Snapshot.Public.Players = append(v.Snapshot.Public.Players,
		table.Participant{ID: "sid-c", Name: "Bartholomew-the-Great", Chips: 5, InHand: true},
	)
	v.Snapshot.Public.Dealer = "sid-c"

	var out string
	require.NotPanics(t, func() { out = renderView(v) })
	assert.Contains(t, out, "Bartholomew-the-Great (D)")
	assert.Contains(t, out, "Chips: 5")

	require.NotPanics(t, func() { out = seatBox(v.Snapshot.Public.Players[2], v.Snapshot.Public, "sid-c") })
	assert.Contains(t, out, "Bartholomew-the-Great (D,you)")
}

func TestRenderView_InFlightAndEmpty(t *testing.T) {
	v := flopView()
	v.InFlight = true
	assert.Contains(t, renderView(v), "sent, waiting for server")

	empty := renderView(table.View{Name: "Carol"})
	assert.Contains(t, empty, "No players seated")
	assert.Contains(t, empty, "offline")
}

func TestShowdownLines(t *testing.T) {
	lines := showdownLines(&table.Showdown{
		Winners:   []table.Winner{{Name: "Alice", HandName: "Flush", Combo: "As Ks Qs Js 9s"}},
		Results:   []table.ChipResult{{Name: "Bob", FinalChips: 400, Delta: -100}},
		Community: []string{"2s", "7h", "Js", "Qs", "9s"},
	})

	require.Len(t, lines, 3)
	assert.Equal(t, "Alice wins with Flush (As Ks Qs Js 9s)", lines[0])
	assert.Equal(t, "Bob -100, now 400", lines[1])
	assert.Equal(t, "Board: 2s 7h Js Qs 9s", lines[2])
	assert.Nil(t, showdownLines(nil))
}

func TestTerminal_KeepsRecentLines(t *testing.T) {
	term := newTerminal()
	for i := 0; i < maxLogLines+3; i++ {
		term.OnNotice(table.Notice{Kind: table.NoticeMessage, Message: "msg"})
	}
	term.OnNotice(table.Notice{Kind: table.NoticeMessage, Message: "Bob folded"})

	frame := term.frame()
	assert.Equal(t, maxLogLines, strings.Count(frame, "msg")+strings.Count(frame, "Bob folded"))
	assert.Contains(t, frame, "Bob folded")
	assert.Len(t, term.dirty, 1)
}

func TestRunCommand_LocalParsing(t *testing.T) {
	ctx := context.Background()

	assert.ErrorIs(t, runCommand(ctx, nil, "quit"), errQuit)
	assert.ErrorIs(t, runCommand(ctx, nil, "shove all"), table.ErrUnknownAction)
}
