package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/mcdev12/holdem/go/internal/table"
)

const maxLogLines = 8

// terminal is a table.Observer that redraws the table in place. The session
// loop only stores the latest view and signals; drawing happens on the
// terminal's own goroutine.
type terminal struct {
	mu    sync.Mutex
	view  table.View
	lines []string
	dirty chan struct{}
}

func newTerminal() *terminal {
	return &terminal{dirty: make(chan struct{}, 1)}
}

func (t *terminal) OnView(v table.View) {
	t.mu.Lock()
	t.view = v
	t.mu.Unlock()
	t.signal()
}

func (t *terminal) OnWarning(err error) {
	t.logf("%s", pterm.LightRed(err.Error()))
}

func (t *terminal) OnNotice(n table.Notice) {
	switch n.Kind {
	case table.NoticeShowdown:
		for _, line := range showdownLines(n.Showdown) {
			t.logf("%s", line)
		}
	case table.NoticeHandStarted:
		t.logf("%s", pterm.LightYellow("New hand"))
	case table.NoticeJoined:
		t.logf("Joined room %s", pterm.LightCyan(n.Message))
	case table.NoticeConnected:
		t.logf("%s", pterm.LightGreen("Connected"))
	case table.NoticeDisconnected:
		t.logf("%s %s", pterm.LightRed("Disconnected"), n.Message)
	default:
		t.logf("%s", n.Message)
	}
}

func (t *terminal) logf(format string, args ...any) {
	t.mu.Lock()
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
	if len(t.lines) > maxLogLines {
		t.lines = t.lines[len(t.lines)-maxLogLines:]
	}
	t.mu.Unlock()
	t.signal()
}

func (t *terminal) signal() {
	select {
	case t.dirty <- struct{}{}:
	default:
	}
}

// frame renders the latest view and log lines.
func (t *terminal) frame() string {
	t.mu.Lock()
	v := t.view
	lines := append([]string(nil), t.lines...)
	t.mu.Unlock()

	var b strings.Builder
	b.WriteString(renderView(v))
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(pterm.Gray(promptLine(v)))
	return b.String()
}

// renderView lays out the header, seats, board and the local player's hand.
func renderView(v table.View) string {
	pub := v.Snapshot.Public

	var seats []pterm.Panel
	for _, p := range pub.Players {
		seats = append(seats, pterm.Panel{Data: seatBox(p, pub, v.Identity)})
	}
	if len(seats) == 0 {
		seats = append(seats, pterm.Panel{Data: pterm.Gray("No players seated")})
	}

	board := pterm.Panel{Data: boardBox(v)}
	hand := pterm.Panel{Data: handBox(v)}

	out, err := pterm.DefaultPanel.WithPanels([][]pterm.Panel{
		{{Data: headerLine(v)}},
		seats,
		{board, hand},
	}).Srender()
	if err != nil {
		return err.Error()
	}
	return out
}

func headerLine(v table.View) string {
	room := v.Room
	if room == "" {
		room = "-"
	}
	status := pterm.LightGreen("online")
	if !v.Connected {
		status = pterm.LightRed("offline")
	}
	return fmt.Sprintf("Room %s | %s | %s", pterm.LightCyan(room), v.Name, status)
}

// seatBox draws one participant. The label goes in the body rather than the
// box title: pterm panics when a title is wider than the body.
func seatBox(p table.Participant, pub table.PublicState, me string) string {
	label := p.Name
	var marks []string
	if p.ID == pub.Dealer {
		marks = append(marks, "D")
	}
	if p.ID == me {
		marks = append(marks, "you")
	}
	if len(marks) > 0 {
		label = fmt.Sprintf("%s (%s)", p.Name, strings.Join(marks, ","))
	}

	state := pterm.LightGreen("In hand")
	if !p.InHand {
		state = pterm.LightRed("Out")
	}
	if p.ID == pub.TurnOwner {
		state = pterm.LightYellow("To act")
	}

	box := pterm.DefaultBox.WithHorizontalPadding(2)
	return box.Sprintf("%s\n%s\nChips: %d", pterm.Bold.Sprint(label), state, p.Chips)
}

func boardBox(v table.View) string {
	pub := v.Snapshot.Public
	cards := strings.Join(pub.Community, " ")
	if cards == "" {
		cards = "-"
	}

	timer := ""
	if v.Turn.HasTimer {
		timer = fmt.Sprintf("\nTimer: %ds", v.Turn.Seconds)
	}

	phase := strings.ToUpper(string(pub.Phase))
	if phase == "" {
		phase = "-"
	}

	box := pterm.DefaultBox.WithHorizontalPadding(4)
	return box.Sprintf("%s\nBoard: %s\nPot: %d\nBet: %d%s", pterm.LightGreen(phase), cards, pub.Pot, pub.CurrentBet, timer)
}

func handBox(v table.View) string {
	cards := strings.Join(v.Snapshot.Private.HoleCards, " ")
	if cards == "" {
		cards = "-"
	}

	var actions []string
	for _, k := range []table.ActionKind{table.ActionCheck, table.ActionCall, table.ActionRaise, table.ActionFold} {
		if v.CanAct(k) {
			actions = append(actions, string(k))
		}
	}
	if v.CanStartHand() {
		actions = append(actions, "start")
	}
	allowed := "waiting"
	switch {
	case v.InFlight:
		allowed = "sent, waiting for server"
	case len(actions) > 0:
		allowed = strings.Join(actions, " ")
	}

	turn := "Not your turn"
	if v.Turn.MyTurn {
		turn = pterm.LightYellow("Your turn")
	}

	box := pterm.DefaultBox.WithHorizontalPadding(4)
	return box.Sprintf("Hand %s\n%s\nActions: %s", pterm.BgGreen.Sprint(" "+cards+" "), turn, allowed)
}

func promptLine(v table.View) string {
	if v.Room == "" {
		return "commands: quit"
	}
	return "commands: check | call | raise N | fold | start | leave | quit"
}

func showdownLines(sd *table.Showdown) []string {
	if sd == nil {
		return nil
	}
	var lines []string
	for _, w := range sd.Winners {
		lines = append(lines, pterm.Sprintf("%s wins with %s (%s)", pterm.LightCyan(w.Name), w.HandName, w.Combo))
	}
	for _, r := range sd.Results {
		lines = append(lines, pterm.Sprintf("%s %+d, now %d", pterm.LightCyan(r.Name), r.Delta, r.FinalChips))
	}
	if len(sd.Community) > 0 {
		lines = append(lines, "Board: "+strings.Join(sd.Community, " "))
	}
	return lines
}
