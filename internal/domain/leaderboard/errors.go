package leaderboard

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrNotFound     = errors.New("item not on leaderboard")
)
