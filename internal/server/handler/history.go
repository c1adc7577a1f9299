package handler

import (
	"log/slog"
	"net/http"

	"github.com/mawtrade/mawbot/internal/domain"
)

// HistoryHandler serves the trade-cycle journal.
type HistoryHandler struct {
	cycles domain.CycleStore
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler backed by the given cycle store.
func NewHistoryHandler(cycles domain.CycleStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		cycles: cycles,
		logger: logger.With(slog.String("handler", "history")),
	}
}

// ListRecent responds with the most recently closed trade cycles.
// GET /api/history?limit=50
func (h *HistoryHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.cycles.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list recent cycles", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load trade history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cycles": cycles,
		"count":  len(cycles),
	})
}

// ListBySymbol responds with recent trade cycles for one symbol.
// GET /api/history/{symbol}?limit=50
func (h *HistoryHandler) ListBySymbol(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	cycles, err := h.cycles.ListBySymbol(r.Context(), symbol, parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list cycles by symbol",
			slog.String("symbol", symbol), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load trade history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"cycles": cycles,
		"count":  len(cycles),
	})
}
