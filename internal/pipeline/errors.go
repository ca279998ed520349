package pipeline

import "errors"

var (
	// ErrMissingComponent is returned by New when a required collaborator is nil.
	ErrMissingComponent = errors.New("pipeline: missing component")

	// ErrInvalidAdvertisement is returned for an advertisement without an
	// address or payload.
	ErrInvalidAdvertisement = errors.New("pipeline: invalid advertisement")
)
