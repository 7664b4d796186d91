package server

import (
	"log/slog"
	"net/http"

	"github.com/mirovado/firefly-gateway/internal/lightroom"
)

// AutoTone handles POST /auto-tone requests.
func (h *Handlers) AutoTone(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req lightroom.AutoToneRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ref, err := h.deps.Lightroom.AutoTone(r.Context(), token, req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("auto tone submitted", slog.String("job_id", ref.ID))
	writeRaw(w, http.StatusOK, ref.Raw)
}

// LightroomStatus handles GET /lightroom-status requests.
func (h *Handlers) LightroomStatus(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id query parameter is required", "MISSING_JOB_ID")
		return
	}

	raw, err := h.deps.Lightroom.Status(r.Context(), token, jobID)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}
