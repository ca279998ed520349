package ingest

import "errors"

// ErrInvalidMessage is returned for a scanner message that cannot be parsed.
var ErrInvalidMessage = errors.New("ingest: invalid message")
