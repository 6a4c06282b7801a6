package httptransport

import (
	"encoding/json"
	"net/http"

	"gopkg.in/yaml.v3"

	platformmw "sylo/internal/platform/middleware"
)

// handleAgentConfigGet renders the session user's capability manifest. The
// format parameter selects JSON (default), YAML, or a JSON download;
// validate=true wraps the manifest with its validation report.
func (h *Handler) handleAgentConfigGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configGen.Generate(r.Context(), platformmw.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error("agent config generation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "CONFIG_GENERATION_FAILED",
			"message": err.Error(),
		})
		return
	}

	q := r.URL.Query()
	if q.Get("validate") == "true" {
		writeJSON(w, http.StatusOK, map[string]any{
			"config":     cfg,
			"validation": h.configGen.Validate(cfg),
		})
		return
	}

	switch q.Get("format") {
	case "yaml":
		out, err := yaml.Marshal(cfg)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "CONFIG_GENERATION_FAILED",
				"message": err.Error(),
			})
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		w.Header().Set("Content-Disposition", `attachment; filename="sylo-mcp-config.yaml"`)
		_, _ = w.Write(out)
	case "download":
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "CONFIG_GENERATION_FAILED",
				"message": err.Error(),
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="sylo-mcp-config.json"`)
		_, _ = w.Write(out)
	default:
		writeJSON(w, http.StatusOK, cfg)
	}
}

// handleAgentConfigGenerate forces a fresh manifest and returns it in a
// success envelope.
func (h *Handler) handleAgentConfigGenerate(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configGen.Generate(r.Context(), platformmw.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error("agent config generation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "CONFIG_GENERATION_FAILED",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"config":  cfg,
		"message": "MCP configuration generated successfully",
	})
}
