package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Engine.IO v4 packet types. Each WebSocket text frame carries exactly one packet.
const (
	eioOpen    byte = '0'
	eioClose   byte = '1'
	eioPing    byte = '2'
	eioPong    byte = '3'
	eioMessage byte = '4'
	eioUpgrade byte = '5'
	eioNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message packet.
const (
	sioConnect      byte = '0'
	sioDisconnect   byte = '1'
	sioEvent        byte = '2'
	sioAck          byte = '3'
	sioConnectError byte = '4'
	sioBinaryEvent  byte = '5'
	sioBinaryAck    byte = '6'
)

var (
	errEmptyPacket       = errors.New("empty packet")
	errBinaryUnsupported = errors.New("binary packets are not supported")
)

// openPayload is the handshake sent by the server in the Engine.IO open packet.
type openPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// connectPayload is the namespace CONNECT acknowledgement.
type connectPayload struct {
	SID string `json:"sid"`
}

// errorPayload is the body of a CONNECT_ERROR packet and of server "error" events.
type errorPayload struct {
	Message string `json:"message"`
}

// packet is a decoded Socket.IO packet.
type packet struct {
	Type      byte
	Namespace string
	AckID     int
	HasAck    bool
	Data      json.RawMessage
}

// decodePacket parses the Socket.IO part of an Engine.IO message packet
// (everything after the leading '4').
func decodePacket(raw string) (packet, error) {
	if raw == "" {
		return packet{}, errEmptyPacket
	}

	p := packet{Type: raw[0], Namespace: "/"}
	rest := raw[1:]

	switch p.Type {
	case sioConnect, sioDisconnect, sioEvent, sioAck, sioConnectError:
	case sioBinaryEvent, sioBinaryAck:
		return packet{}, errBinaryUnsupported
	default:
		return packet{}, fmt.Errorf("unknown packet type %q", p.Type)
	}

	if strings.HasPrefix(rest, "/") {
		end := strings.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = rest
			return p, nil
		}
		p.Namespace = rest[:end]
		rest = rest[end+1:]
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		p.AckID = p.AckID*10 + int(rest[i]-'0')
		i++
	}
	p.HasAck = i > 0
	rest = rest[i:]

	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return packet{}, fmt.Errorf("invalid packet data: %q", rest)
		}
		p.Data = json.RawMessage(rest)
	}

	return p, nil
}

// event splits an EVENT packet's data array into the event name and its first argument.
// Extra arguments are ignored; a missing argument yields a nil payload.
func (p packet) event() (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(p.Data, &args); err != nil {
		return "", nil, fmt.Errorf("decode event array: %w", err)
	}
	if len(args) == 0 {
		return "", nil, errors.New("event packet without name")
	}

	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}

	if len(args) < 2 {
		return name, nil, nil
	}
	return name, args[1], nil
}

// encodeEvent builds the full Engine.IO frame for an event on the given namespace.
// A nil payload sends the event with no arguments.
func encodeEvent(namespace, name string, payload any) ([]byte, error) {
	args := []any{name}
	if payload != nil {
		args = append(args, payload)
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", name, err)
	}

	var b strings.Builder
	b.WriteByte(eioMessage)
	b.WriteByte(sioEvent)
	if namespace != "" && namespace != "/" {
		b.WriteString(namespace)
		b.WriteByte(',')
	}
	b.Write(data)
	return []byte(b.String()), nil
}

// encodeControl builds a CONNECT or DISCONNECT frame for the namespace.
func encodeControl(namespace string, typ byte) []byte {
	frame := []byte{eioMessage, typ}
	if namespace != "" && namespace != "/" {
		frame = append(frame, namespace...)
		frame = append(frame, ',')
	}
	return frame
}
