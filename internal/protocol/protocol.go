package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeMove    = "MOVE"
	TypeCancel  = "CANCEL"
	TypePause   = "PAUSE"
	TypeResume  = "RESUME"
	TypeAck     = "ACK"
	TypeError   = "ERROR"

	TypeSubscribe = "SUBSCRIBE"
	TypeState     = "STATE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// IsCommand reports whether t is one of the unit command types.
func IsCommand(t string) bool {
	switch t {
	case TypeMove, TypeCancel, TypePause, TypeResume:
		return true
	}
	return false
}
