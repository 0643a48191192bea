package service

import (
	"errors"

	"github.com/okian/duel/internal/adapters/repository"
)

// Vote rejection kinds. All are session-local and recoverable.
var (
	ErrStalePair   = errors.New("vote does not match the outstanding pair")
	ErrSelfVote    = errors.New("winner and loser are the same item")
	ErrUnknownItem = errors.New("unknown item")
	ErrRateLimited = errors.New("vote rate limit exceeded")
)

// Service lifecycle errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrUnknownSession = errors.New("unknown session")
	ErrBootstrap      = errors.New("bootstrap failed")
)

// Rejection reasons reported on the wire and in metrics.
const (
	ReasonStalePair   = "stale_pair"
	ReasonSelfVote    = "self_vote"
	ReasonUnknownItem = "unknown_item"
	ReasonRateLimited = "rate_limited"
	ReasonUnavailable = "store_unavailable"
	ReasonInternal    = "internal"
)

// RejectReason maps a SubmitVote error to its stable reason string.
func RejectReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStalePair), errors.Is(err, ErrUnknownSession):
		return ReasonStalePair
	case errors.Is(err, ErrSelfVote):
		return ReasonSelfVote
	case errors.Is(err, ErrUnknownItem):
		return ReasonUnknownItem
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, repository.ErrPersist):
		return ReasonUnavailable
	default:
		return ReasonInternal
	}
}
