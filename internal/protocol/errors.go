package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Match routing/state.
	ErrMatchBusy     = "E_MATCH_BUSY"
	ErrMatchNotFound = "E_MATCH_NOT_FOUND"

	// Command layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrUnknownUnit   = "E_UNKNOWN_UNIT"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrMatchBusy:       {},
	ErrMatchNotFound:   {},
	ErrBadRequest:      {},
	ErrInvalidTarget:   {},
	ErrUnknownUnit:     {},
	ErrNoPermission:    {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
