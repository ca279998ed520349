package manufacturer

import "errors"

var (
	// ErrInvalidValue is returned for identifiers that are not decimal or
	// 0x-hex integers in the uint16 range.
	ErrInvalidValue = errors.New("manufacturer: invalid identifier")

	ErrDuplicate     = errors.New("manufacturer: duplicate identifier")
	ErrEmptyName     = errors.New("manufacturer: name is required")
	ErrUnknownParent = errors.New("manufacturer: parent not in catalog")
)
