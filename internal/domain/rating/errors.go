package rating

import "errors"

// Sentinel kinds for rating errors.
var (
	ErrInvalidRating = errors.New("rating is not a finite number")
	ErrSameItem      = errors.New("winner and loser are the same item")
)
