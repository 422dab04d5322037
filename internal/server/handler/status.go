package handler

import (
	"net/http"
	"time"
)

// StatusHandler reports what this process is watching.
type StatusHandler struct {
	Mode      string
	Symbol    string
	SessionID string
	StartedAt time.Time
}

// GetStatus responds with the mode, instrument and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"symbol":         h.Symbol,
		"session_id":     h.SessionID,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
