package decoder

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDecoder means no decoder is registered for the manufacturer
	// identifier. It is informational: the payload is counted as unknown.
	ErrNoDecoder = errors.New("decoder: no decoder registered")

	// ErrDecodeFailure is matched by every *DecodeError.
	ErrDecodeFailure = errors.New("decoder: decode failure")

	ErrNotImplemented    = errors.New("decoder: not implemented")
	ErrPayloadTooShort   = errors.New("decoder: payload too short")
	ErrUnsupportedFormat = errors.New("decoder: unsupported payload format")
	ErrMissingKey        = errors.New("decoder: encryption key not configured")
	ErrInvalidKey        = errors.New("decoder: invalid encryption key")
	ErrKeyMismatch       = errors.New("decoder: encryption key does not match payload")
	ErrPanic             = errors.New("decoder: panic during decode")
)

// DecodeError reports a registered decoder rejecting a payload.
// errors.Is matches both ErrDecodeFailure and the underlying cause.
type DecodeError struct {
	ManufacturerID uint16
	Decoder        string
	Reason         string
	Err            error
}

func (e *DecodeError) Error() string {
	if e.Decoder == "" {
		return fmt.Sprintf("decode 0x%04X: %s", e.ManufacturerID, e.Reason)
	}
	return fmt.Sprintf("decode 0x%04X (%s): %s", e.ManufacturerID, e.Decoder, e.Reason)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecodeFailure}
	}
	return []error{ErrDecodeFailure, e.Err}
}
