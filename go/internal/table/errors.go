package table

import (
	"errors"
	"fmt"
)

// Rejections raised locally before anything is sent to the server.
var (
	ErrNotConnected     = errors.New("not connected to server")
	ErrNoRoom           = errors.New("no room code")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrInvalidAmount    = errors.New("raise amount must be a positive number of chips")
	ErrActionNotAllowed = errors.New("action not allowed")
	ErrActionPending    = errors.New("previous action is awaiting the server")
	ErrHandInProgress   = errors.New("a hand is already in progress")
	ErrUnknownAction    = errors.New("unknown action")
	ErrSessionClosed    = errors.New("session closed")
	ErrSessionRunning   = errors.New("session already running")
)

// ServerError is an error event relayed from the server or the transport.
type ServerError struct {
	Event   string
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server %s", e.Event)
	}
	return fmt.Sprintf("server %s: %s", e.Event, e.Message)
}
