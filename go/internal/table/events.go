package table

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Inbound events
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventRoomCreated  = "room_created"
	EventJoined       = "joined"
	EventRoomUpdate   = "room_update"
	EventPlayerUpdate = "player_update"
	EventError        = "error"
	EventConnectError = "connect_error"
	EventMessage      = "message"
	EventHandStarted  = "hand_started"
	EventShowdown     = "showdown"
)

// Outbound events
const (
	EventCreateRoom   = "create_room"
	EventJoinRoom     = "join_room"
	EventLeaveRoom    = "leave_room"
	EventPlayerAction = "player_action"
	EventStartHand    = "start_hand"
)

// RoomCreatedPayload is sent after create_room.
type RoomCreatedPayload struct {
	Room string `json:"room"`
}

// JoinedPayload acknowledges join_room.
type JoinedPayload struct {
	Room  string `json:"room"`
	Name  string `json:"name"`
	Chips int    `json:"chips"`
}

// MessagePayload is free-form table chatter such as "Bob folded".
type MessagePayload struct {
	Msg string `json:"msg"`
}

// Winner is one entry of a showdown decided by hand strength.
type Winner struct {
	ID       string `json:"sid"`
	Name     string `json:"name"`
	HandName string `json:"hand_name"`
	Combo    string `json:"combo"`
}

// ChipResult is one entry of the per-player settlement after a hand.
type ChipResult struct {
	ID         string `json:"sid"`
	Name       string `json:"name"`
	FinalChips int    `json:"final_chips"`
	Delta      int    `json:"delta"`
}

// Showdown carries either the winning hands or the chip settlement.
type Showdown struct {
	Winners   []Winner     `json:"winners,omitempty"`
	Results   []ChipResult `json:"results,omitempty"`
	Community []string     `json:"community"`
}

type joinRequest struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

type roomRequest struct {
	Room string `json:"room"`
}

type actionRequest struct {
	Room   string     `json:"room"`
	Action ActionKind `json:"action"`
	Amount int        `json:"amount,omitempty"`
}

// decodePayload unmarshals an event payload, rejecting a missing one.
func decodePayload[T any](event string, payload json.RawMessage) (T, error) {
	var out T
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return out, fmt.Errorf("%s: empty payload", event)
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("%s: decode payload: %w", event, err)
	}
	return out, nil
}

// errorMessage extracts a human readable message from an error event, which
// may carry {"message": ...}, a bare string or nothing at all.
func errorMessage(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Message != "" {
		return body.Message
	}

	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s
	}

	if bytes.Equal(payload, []byte("null")) || bytes.Equal(payload, []byte("{}")) {
		return ""
	}
	return string(payload)
}
