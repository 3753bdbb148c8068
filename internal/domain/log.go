package domain

import "encoding/json"

// NonJSONMessage is reported to viewers when a log payload fails to decode.
const NonJSONMessage = "Non-JSON message received"

// LogMessage is a payload received on a project's log channel.
type LogMessage struct {
	Channel string
	Payload []byte
}

// MalformedLog wraps a payload that could not be decoded as JSON.
type MalformedLog struct {
	Error      string `json:"error"`
	RawMessage string `json:"rawMessage"`
}

// Decode returns the payload as JSON when it is well formed, otherwise the
// fallback envelope carrying the raw body. The boolean reports whether the
// payload was valid JSON.
func (m LogMessage) Decode() (json.RawMessage, bool) {
	if len(m.Payload) > 0 && json.Valid(m.Payload) {
		return json.RawMessage(m.Payload), true
	}
	envelope, _ := json.Marshal(MalformedLog{Error: NonJSONMessage, RawMessage: string(m.Payload)})
	return envelope, false
}
