package events

import "errors"

// Build errors.
var (
	ErrRelationQuery    = errors.New("related services query failed")
	ErrMissingID        = errors.New("record has no identifier")
	ErrInvalidOperation = errors.New("unsupported record operation")
)
