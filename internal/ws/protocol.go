package ws

import (
	"encoding/json"
	"strings"
)

// Event names used on the realtime wire.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventMessage     = "message"
	EventError       = "error"
)

// Frame is the envelope exchanged with realtime clients. Clients send
// subscribe/unsubscribe frames carrying Channel; the server sends message
// and error frames carrying Data.
type Frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame wraps an already encoded JSON value in a server frame.
func EncodeFrame(event string, data json.RawMessage) []byte {
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		// data was not valid JSON; ship it as a string instead
		quoted, _ := json.Marshal(string(data))
		frame, _ = json.Marshal(Frame{Event: event, Data: quoted})
	}
	return frame
}

// EncodeText builds a server frame whose data is a plain string.
func EncodeText(event, text string) []byte {
	quoted, _ := json.Marshal(text)
	return EncodeFrame(event, quoted)
}

// RoomForChannel maps a broker channel or client supplied channel name onto
// the canonical room key by removing prefix. Names without the prefix are
// already room keys.
func RoomForChannel(channel, prefix string) string {
	if prefix == "" {
		return channel
	}
	if room := strings.TrimPrefix(channel, prefix); room != "" {
		return room
	}
	return channel
}
