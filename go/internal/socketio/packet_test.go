package socketio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePacket_Event(t *testing.T) {
	p, err := decodePacket(`2["room_created",{"room":"AB12"}]`)
	require.NoError(t, err)
	assert.Equal(t, sioEvent, p.Type)
	assert.Equal(t, "/", p.Namespace)
	assert.False(t, p.HasAck)

	name, payload, err := p.event()
	require.NoError(t, err)
	assert.Equal(t, "room_created", name)
	assert.JSONEq(t, `{"room":"AB12"}`, string(payload))
}

func TestDecodePacket_EventWithoutArguments(t *testing.T) {
	p, err := decodePacket(`2["hand_started"]`)
	require.NoError(t, err)

	name, payload, err := p.event()
	require.NoError(t, err)
	assert.Equal(t, "hand_started", name)
	assert.Nil(t, payload)
}

func TestDecodePacket_NamespaceAndAck(t *testing.T) {
	p, err := decodePacket(`2/admin,12["ping",1]`)
	require.NoError(t, err)
	assert.Equal(t, "/admin", p.Namespace)
	assert.True(t, p.HasAck)
	assert.Equal(t, 12, p.AckID)

	name, payload, err := p.event()
	require.NoError(t, err)
	assert.Equal(t, "ping", name)
	assert.Equal(t, "1", string(payload))
}

func TestDecodePacket_ConnectAck(t *testing.T) {
	p, err := decodePacket(`0{"sid":"abc"}`)
	require.NoError(t, err)
	assert.Equal(t, sioConnect, p.Type)
	assert.JSONEq(t, `{"sid":"abc"}`, string(p.Data))
}

func TestDecodePacket_Rejects(t *testing.T) {
	_, err := decodePacket("")
	assert.ErrorIs(t, err, errEmptyPacket)

	_, err = decodePacket(`51-["upload",{"_placeholder":true,"num":0}]`)
	assert.ErrorIs(t, err, errBinaryUnsupported)

	_, err = decodePacket(`9[]`)
	assert.Error(t, err)

	_, err = decodePacket(`2["broken"`)
	assert.Error(t, err)
}

func TestEncodeEvent(t *testing.T) {
	frame, err := encodeEvent("/", "join_room", map[string]string{"room": "AB12", "name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, `42["join_room",{"name":"Alice","room":"AB12"}]`, string(frame))

	frame, err = encodeEvent("/", "create_room", nil)
	require.NoError(t, err)
	assert.Equal(t, `42["create_room"]`, string(frame))

	frame, err = encodeEvent("/table", "start_hand", map[string]string{"room": "X"})
	require.NoError(t, err)
	assert.Equal(t, `42/table,["start_hand",{"room":"X"}]`, string(frame))
}

func TestEncodeControl(t *testing.T) {
	assert.Equal(t, "40", string(encodeControl("/", sioConnect)))
	assert.Equal(t, "41/table,", string(encodeControl("/table", sioDisconnect)))
}

func TestEndpointURL(t *testing.T) {
	u, err := endpointURL("http://10.0.2.2:5000", "/socket.io")
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.2.2:5000/socket.io/?EIO=4&transport=websocket", u)

	u, err = endpointURL("https://poker.example.com", "socket.io/")
	require.NoError(t, err)
	assert.Equal(t, "wss://poker.example.com/socket.io/?EIO=4&transport=websocket", u)

	_, err = endpointURL("ftp://example.com", "/socket.io")
	assert.Error(t, err)

	_, err = endpointURL("localhost", "/socket.io")
	assert.Error(t, err)
}

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.validate())

	opts.Transports = []string{TransportPolling}
	assert.ErrorIs(t, opts.validate(), ErrUnsupportedTransport)

	opts = DefaultOptions()
	opts.ReconnectionAttempts = 0
	assert.Error(t, opts.validate())

	opts.Reconnection = false
	assert.NoError(t, opts.validate())
}
