package httptransport

import (
	"net/http"

	platformmw "sylo/internal/platform/middleware"
)

// handleContext returns the compiled workspace snapshot for the session's
// user, as JSON or a markdown status report.
func (h *Handler) handleContext(w http.ResponseWriter, r *http.Request) {
	userID := platformmw.GetUserID(r.Context())

	q := r.URL.Query()
	if q.Get("type") == "markdown" || q.Get("format") == "markdown" {
		md, err := h.compiler.GenerateMarkdown(r.Context(), userID)
		if err != nil {
			h.contextFailed(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/markdown")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(md))
		return
	}

	pc, err := h.compiler.Compile(r.Context(), userID)
	if err != nil {
		h.contextFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pc)
}

func (h *Handler) contextFailed(w http.ResponseWriter, err error) {
	h.logger.Error("context compilation failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "CONTEXT_COMPILATION_FAILED",
		"message": err.Error(),
	})
}
