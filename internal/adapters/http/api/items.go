package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ItemDependencies defines the interface for single item reads.
type ItemDependencies interface {
	Item(ctx context.Context, id string) (Entry, error)
	Started() bool
}

// ItemHandler handles item requests.
type ItemHandler struct {
	deps ItemDependencies
}

// NewItemHandler creates a new item handler.
func NewItemHandler(deps ItemDependencies) *ItemHandler {
	return &ItemHandler{deps: deps}
}

// HandleGetItem handles GET /items/{id} requests.
func (h *ItemHandler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	entry, err := h.deps.Item(r.Context(), id)
	if err != nil {
		status, code := statusOf(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
