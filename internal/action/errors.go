package action

import "errors"

var (
	// ErrInvalidAction is returned for an action without a type.
	ErrInvalidAction = errors.New("action: invalid action")

	// ErrDispatchFailed wraps sink delivery errors.
	ErrDispatchFailed = errors.New("action: dispatch failed")
)
