package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id,omitempty"`
	Team            string `json:"team"`
	Name            string `json:"name,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	MatchID         string `json:"match_id"`
	Team            string `json:"team"`
	Tick            uint64 `json:"tick"`
	TickRateHz      int    `json:"tick_rate_hz"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	MaxWaypoints    int    `json:"max_waypoints"`
}

// MOVE / CANCEL / PAUSE / RESUME (client -> server)
type CommandMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Seq             uint64       `json:"seq,omitempty"`
	UnitID          string       `json:"unit_id"`
	Waypoints       [][2]float64 `json:"waypoints,omitempty"`
	Mode            *ModeMsg     `json:"mode,omitempty"`
	TargetRotation  *float64     `json:"target_rotation,omitempty"`
}

type ModeMsg struct {
	SpeedMultiplier float64 `json:"speed_multiplier,omitempty"`
	RotateToFace    bool    `json:"rotate_to_face,omitempty"`
}

// ACK (server -> client)
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	Tick            uint64 `json:"tick"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(seq uint64, code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Seq: seq, Code: code, Message: msg}
}
