package httptransport

import (
	"net/http"
	"time"

	platformmw "sylo/internal/platform/middleware"
)

type connectionView struct {
	ID       string    `json:"id"`
	Service  string    `json:"service"`
	IsActive bool      `json:"isActive"`
	LastUsed time.Time `json:"lastUsed"`
	Scopes   []string  `json:"scopes"`
}

// handleConnections lists the session user's broker connections. Token
// material never appears here; the broker owns it.
func (h *Handler) handleConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.connections.List(r.Context(), platformmw.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to fetch connections", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "FETCH_CONNECTIONS_FAILED",
			"message": err.Error(),
		})
		return
	}

	views := make([]connectionView, 0, len(conns))
	for _, c := range conns {
		scopes := c.Scopes
		if scopes == nil {
			scopes = []string{}
		}
		views = append(views, connectionView{
			ID:       c.ID,
			Service:  c.Service,
			IsActive: c.IsActive,
			LastUsed: c.UpdatedAt,
			Scopes:   scopes,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"connections": views})
}
