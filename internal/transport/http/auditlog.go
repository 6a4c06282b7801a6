package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"sylo/internal/audit"
	platformmw "sylo/internal/platform/middleware"
)

type auditLogRequest struct {
	Service    string         `json:"service"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Status     string         `json:"status,omitempty"`
}

// handleAuditLogCreate records an audit entry on behalf of the session's
// user, for actions performed outside the webhook path.
func (h *Handler) handleAuditLogCreate(w http.ResponseWriter, r *http.Request) {
	var req auditLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields: service, action")
		return
	}
	if req.Service == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: service, action")
		return
	}

	status := audit.Status(req.Status)
	if status == "" {
		status = audit.StatusSuccess
	}

	h.audit.Log(r.Context(), &audit.Entry{
		UserID:     platformmw.GetUserID(r.Context()),
		Service:    req.Service,
		Action:     req.Action,
		Resource:   req.Resource,
		Parameters: req.Parameters,
		Result:     req.Result,
		Status:     status,
		IPAddress:  platformmw.GetClientIP(r.Context()),
		UserAgent:  platformmw.GetUserAgent(r.Context()),
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleAuditLogList returns the session user's audit trail, newest first.
func (h *Handler) handleAuditLogList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Service: q.Get("service"),
		Action:  q.Get("action"),
		Status:  q.Get("status"),
		Limit:   queryInt(q.Get("limit"), 100),
		Offset:  queryInt(q.Get("offset"), 0),
	}

	logs, err := h.audit.ListUserLogs(r.Context(), platformmw.GetUserID(r.Context()), filter)
	if err != nil {
		h.logger.Error("audit log retrieval failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve audit logs")
		return
	}
	if logs == nil {
		logs = []*audit.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}

// handleAuditStats aggregates one service's audit trail over a trailing
// window of days, default 30.
func (h *Handler) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	service := q.Get("service")
	if service == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameter: service")
		return
	}
	days := queryInt(q.Get("days"), 30)

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	stats, err := h.audit.ServiceStats(r.Context(), service, start, end)
	if err != nil {
		h.logger.Error("audit stats aggregation failed", "error", err, "service", service)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve audit statistics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service": service,
		"period": map[string]any{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
			"days":  days,
		},
		"stats": stats,
	})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
