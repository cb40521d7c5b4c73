package codec

import (
	"errors"

	"daq-svr/internal/registry"
)

var (
	ErrShortPacket    = errors.New("packet too short")
	ErrBadAck         = errors.New("invalid ack code")
	ErrUnknownChannel = registry.ErrUnknownChannel
	ErrWidthMismatch  = errors.New("declared width does not match registry")
	ErrPartialRecord  = errors.New("settings payload is not a whole number of records")
	ErrSizeMismatch   = errors.New("data payload length does not match subscription")
)

// Reason maps a decode error to a short metric label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrShortPacket):
		return "short_packet"
	case errors.Is(err, ErrBadAck):
		return "bad_ack"
	case errors.Is(err, ErrUnknownChannel):
		return "unknown_channel"
	case errors.Is(err, ErrWidthMismatch):
		return "width_mismatch"
	case errors.Is(err, ErrPartialRecord):
		return "partial_record"
	case errors.Is(err, ErrSizeMismatch):
		return "size_mismatch"
	default:
		return "other"
	}
}
