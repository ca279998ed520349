package patch

import "errors"

var (
	// ErrInvalidPath is returned when a JSON Pointer is malformed.
	ErrInvalidPath = errors.New("patch: invalid path")

	// ErrPathNotFound is returned when an operation targets a missing key.
	ErrPathNotFound = errors.New("patch: path not found")

	// ErrInvalidOperation is returned for an unknown op kind.
	ErrInvalidOperation = errors.New("patch: invalid operation")

	// ErrNotObject is returned when decoding a JSON value that is not an object.
	ErrNotObject = errors.New("patch: not an object")
)
