package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"sylo/internal/audit"
	"sylo/internal/command"
	platformmw "sylo/internal/platform/middleware"
	"sylo/internal/security"
)

const (
	headerSignature = "X-Signature"
	headerTimestamp = "X-Timestamp"

	webhookRequests = 50
	webhookWindow   = "1h"
)

// webhookResponse is the success envelope agents receive. Failed commands
// still get a 200; the envelope carries the failure.
type webhookResponse struct {
	Success   bool           `json:"success"`
	CommandID string         `json:"commandId"`
	Status    string         `json:"status"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// handleWebhookCommand authenticates, rate limits, dispatches and audits one
// agent command. The security checks run against the raw body before any
// JSON decoding.
func (h *Handler) handleWebhookCommand(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(headerSignature)
	timestamp := r.Header.Get(headerTimestamp)
	if signature == "" || timestamp == "" {
		writeError(w, http.StatusUnauthorized, "Missing signature or timestamp")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "COMMAND_EXECUTION_FAILED",
			"message": err.Error(),
		})
		return
	}

	if err := security.Validate(body, signature, timestamp, h.cfg.WebhookSecret, security.DefaultTimestampTolerance); err != nil {
		h.rejectSignature(w, r, err)
		return
	}

	// A body that does not decode at all is an execution failure, not a
	// structurally invalid command.
	var cmd command.Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "COMMAND_EXECUTION_FAILED",
			"message": err.Error(),
		})
		return
	}
	if err := cmd.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid command structure")
		return
	}

	if !h.allowCommand(w, r, &cmd) {
		return
	}

	cmd.RequestID = chimiddleware.GetReqID(r.Context())

	start := time.Now()
	result, err := h.dispatcher.Execute(r.Context(), &cmd)
	if err != nil {
		if errors.Is(err, command.ErrInvalidCommand) {
			writeError(w, http.StatusBadRequest, "Invalid command structure")
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "COMMAND_EXECUTION_FAILED",
			"message": err.Error(),
		})
		return
	}

	h.auditCommand(r, &cmd, result, time.Since(start))

	writeJSON(w, http.StatusOK, webhookResponse{
		Success:   result.Status == command.StatusSuccess,
		CommandID: result.CommandID,
		Status:    result.Status,
		Result:    result.Data,
		Error:     result.Error,
	})
}

func (h *Handler) rejectSignature(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("webhook security validation failed",
		"error", err,
		"client_ip", platformmw.GetClientIP(r.Context()),
	)
	if h.metrics != nil {
		h.metrics.SignatureFailures.Inc()
	}
	switch {
	case errors.Is(err, security.ErrMissingSignature), errors.Is(err, security.ErrMissingTimestamp), errors.Is(err, security.ErrMissingPayload):
		writeError(w, http.StatusUnauthorized, "Missing signature or timestamp")
	case errors.Is(err, security.ErrStaleTimestamp):
		writeError(w, http.StatusUnauthorized, "Request too old or invalid timestamp")
	default:
		writeError(w, http.StatusUnauthorized, "Invalid signature")
	}
}

// allowCommand enforces the overall webhook budget, then the per-service one.
// The limiter failing open means a broken store never blocks commands.
func (h *Handler) allowCommand(w http.ResponseWriter, r *http.Request, cmd *command.Command) bool {
	if h.limiter == nil {
		return true
	}
	if token := h.cfg.RateLimitBypassToken; token != "" && r.Header.Get("X-Bypass-Token") == token {
		return true
	}

	checks := []struct {
		key      string
		requests int
		window   string
	}{
		{cmd.UserID + ":webhook", webhookRequests, webhookWindow},
	}
	if budget, ok := serviceBudgets[cmd.Service]; ok {
		checks = append(checks, struct {
			key      string
			requests int
			window   string
		}{cmd.UserID + ":" + cmd.Service, budget.requests, budget.window})
	}

	for i, check := range checks {
		result, err := h.limiter.Limit(r.Context(), check.key, check.requests, check.window)
		if err != nil {
			h.logger.Error("rate limit check failed, failing open", "error", err, "key", check.key)
			continue
		}
		// Headers reflect the overall webhook budget, not the service one.
		if i == 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		}
		if !result.Allowed {
			if h.metrics != nil {
				h.metrics.RateLimitRejections.Inc()
			}
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return false
		}
	}
	return true
}

func (h *Handler) auditCommand(r *http.Request, cmd *command.Command, result *command.Result, elapsed time.Duration) {
	entry := &audit.Entry{
		UserID:     cmd.UserID,
		Service:    cmd.Service,
		Action:     cmd.Action,
		Parameters: cmd.Parameters,
		IPAddress:  platformmw.GetClientIP(r.Context()),
		UserAgent:  platformmw.GetUserAgent(r.Context()),
		RequestID:  result.CommandID,
	}

	ms := elapsed.Milliseconds()
	if result.Status == command.StatusSuccess {
		h.audit.LogSuccess(r.Context(), entry, result.Data, ms)
		return
	}

	// An upstream that answered with a rejection leaves data behind; a
	// routing or transport failure does not.
	code := "UNKNOWN_ERROR"
	if result.Data != nil {
		code = "UPSTREAM_REJECTED"
	}
	entry.Result = result.Data
	h.audit.LogError(r.Context(), entry, code, result.Error, ms)
}
