package httptransport

import (
	"fmt"
	"net/http"

	"sylo/internal/audit"
)

// handleAuditCleanup runs the audit retention sweep. It is meant for a
// scheduler, so auth is a static bearer secret rather than a session.
func (h *Handler) handleAuditCleanup(w http.ResponseWriter, r *http.Request) {
	if h.cfg.CronSecret != "" {
		if r.Header.Get("Authorization") != "Bearer "+h.cfg.CronSecret {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	retentionDays := h.cfg.AuditRetentionDays
	deleted, err := h.audit.CleanupOldLogs(r.Context(), retentionDays)
	if err != nil {
		h.logger.Error("audit cleanup failed", "error", err)
		h.audit.LogError(r.Context(), &audit.Entry{
			UserID:  "system",
			Service: "system",
			Action:  "audit_cleanup",
		}, "CLEANUP_FAILED", err.Error(), 0)
		writeError(w, http.StatusInternalServerError, "Failed to cleanup audit logs")
		return
	}

	h.audit.LogSuccess(r.Context(), &audit.Entry{
		UserID:  "system",
		Service: "system",
		Action:  "audit_cleanup",
	}, map[string]any{
		"deletedCount":  deleted,
		"retentionDays": retentionDays,
	}, 0)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"deletedCount": deleted,
		"message":      fmt.Sprintf("Cleaned up %d audit logs older than %d days", deleted, retentionDays),
	})
}
