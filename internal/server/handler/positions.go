package handler

import (
	"log/slog"
	"net/http"

	"github.com/mawtrade/mawbot/internal/domain"
)

// PositionStore is the read surface of the live position store that the
// handler needs.
type PositionStore interface {
	List() []domain.Position
	Get(symbol string) (domain.Position, bool)
}

// PositionRemover schedules a tracked position for removal. The engine frees
// the slot the next time the position's trailing stop closes it.
type PositionRemover interface {
	MarkForRemoval(symbol string)
}

// PositionHandler serves the live position set and removal requests.
type PositionHandler struct {
	store   PositionStore
	remover PositionRemover
	logger  *slog.Logger
}

// NewPositionHandler creates a PositionHandler. remover may be nil in
// monitor mode, in which case removal requests are rejected.
func NewPositionHandler(store PositionStore, remover PositionRemover, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		store:   store,
		remover: remover,
		logger:  logger.With(slog.String("handler", "positions")),
	}
}

// ListPositions responds with every tracked position.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.store.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"positions": positions,
		"count":     len(positions),
	})
}

// GetPosition responds with one tracked position by symbol.
// GET /api/positions/{symbol}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	pos, ok := h.store.Get(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "position not tracked: "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// RemovePosition marks a tracked position for removal after its next close.
// The position keeps trading until the trailing stop fires; it is then closed
// without reopening.
// DELETE /api/positions/{symbol}
func (h *PositionHandler) RemovePosition(w http.ResponseWriter, r *http.Request) {
	if h.remover == nil {
		writeError(w, http.StatusConflict, "trading engine not running")
		return
	}

	symbol := r.PathValue("symbol")
	if _, ok := h.store.Get(symbol); !ok {
		writeError(w, http.StatusNotFound, "position not tracked: "+symbol)
		return
	}

	h.remover.MarkForRemoval(symbol)
	h.logger.InfoContext(r.Context(), "position marked for removal",
		slog.String("symbol", symbol))

	writeJSON(w, http.StatusAccepted, map[string]string{
		"symbol": symbol,
		"status": "removal scheduled",
	})
}
