package server

import (
	"log/slog"
	"net/http"

	"github.com/mirovado/firefly-gateway/internal/photoshop"
)

// RemoveBackground handles POST /remove-background-async requests. The body
// is the removal payload itself; unset options pick up service defaults.
func (h *Handlers) RemoveBackground(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req photoshop.RemoveBackgroundRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.deps.Photoshop.RemoveBackground(r.Context(), token, req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("background removal submitted", slog.String("job_id", sub.JobID))
	writeRaw(w, http.StatusOK, sub.Raw)
}

// CropImage handles POST /crop-image requests with a product crop payload.
func (h *Handlers) CropImage(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req photoshop.ProductCropRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ref, err := h.deps.Photoshop.ProductCrop(r.Context(), token, req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("product crop submitted", slog.String("job_id", ref.ID))
	writeRaw(w, http.StatusOK, ref.Raw)
}

// PSDStatus handles GET /get-psd-status/{job_id} requests.
func (h *Handlers) PSDStatus(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	jobID := r.PathValue("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	raw, err := h.deps.Photoshop.PSDStatus(r.Context(), token, jobID)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}
