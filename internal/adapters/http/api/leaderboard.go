package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

const defaultPageLimit = 100

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, limit, offset int) ([]Entry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?limit=N&offset=M requests.
// limit defaults to 100 and offset to 0.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", min(defaultPageLimit, h.maxLimit))
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
		return
	}
	if limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: %d", ErrLimitExceeded, h.maxLimit))
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: offset must be a non-negative integer", ErrBadRequest))
		return
	}

	entries, err := h.deps.Leaderboard(r.Context(), limit, offset)
	if err != nil {
		status, code := statusOf(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
