package repository

import (
	"errors"

	"github.com/okian/duel/internal/domain/rating"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("item not found")
	ErrInvalidItem  = errors.New("invalid item")
	ErrInvalidLimit = errors.New("invalid page bounds")
	ErrPersist      = errors.New("persist result failed")
	ErrSameItem     = rating.ErrSameItem
)
