package selector

import "errors"

// Sentinel kinds for selector errors.
var (
	ErrInsufficientItems = errors.New("fewer than two items to compare")
)
