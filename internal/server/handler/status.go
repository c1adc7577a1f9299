package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves runtime status for dashboards.
type StatusHandler struct {
	mode    string
	started time.Time
	store   PositionStore
}

// NewStatusHandler creates a StatusHandler. started is the process start
// time used for the uptime field.
func NewStatusHandler(mode string, started time.Time, store PositionStore) *StatusHandler {
	return &StatusHandler{mode: mode, started: started, store: store}
}

// GetStatus responds with the running mode, uptime, and tracked symbols.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	positions := h.store.List()
	symbols := make([]string, 0, len(positions))
	for _, pos := range positions {
		symbols = append(symbols, pos.Symbol)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":    h.mode,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"symbols": symbols,
	})
}
