package server

import (
	"log/slog"
	"net/http"

	"github.com/mirovado/firefly-gateway/internal/audiovideo"
)

// Voices handles GET /available-voices requests.
func (h *Handlers) Voices(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	raw, err := h.deps.AudioVideo.Voices(r.Context(), token)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}

// Avatars handles GET /available-avatars requests.
func (h *Handlers) Avatars(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	raw, err := h.deps.AudioVideo.Avatars(r.Context(), token)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}

// GenerateSpeech handles POST /generate-audio-from-text requests.
func (h *Handlers) GenerateSpeech(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req audiovideo.SpeechRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.deps.AudioVideo.GenerateSpeech(r.Context(), token, req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("speech generation submitted", slog.String("job_id", sub.JobID))
	writeRaw(w, http.StatusOK, sub.Raw)
}

// GenerateAvatarVideo handles POST /generate-avatar-video requests.
func (h *Handlers) GenerateAvatarVideo(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req audiovideo.AvatarRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.deps.AudioVideo.GenerateAvatar(r.Context(), token, req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("avatar generation submitted", slog.String("job_id", sub.JobID))
	writeRaw(w, http.StatusOK, sub.Raw)
}

// DubVideo handles POST /dub-video requests.
func (h *Handlers) DubVideo(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req audiovideo.DubRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.deps.AudioVideo.Dub(r.Context(), token, req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("dub submitted", slog.String("job_id", sub.JobID))
	writeRaw(w, http.StatusOK, sub.Raw)
}

// ReframeVideo handles POST /reframe-video requests.
func (h *Handlers) ReframeVideo(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req audiovideo.ReframeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.deps.AudioVideo.Reframe(r.Context(), token, req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("reframe submitted", slog.String("job_id", sub.JobID))
	writeRaw(w, http.StatusOK, sub.Raw)
}

// AudioVideoStatus handles GET /check-audio-video-status requests.
func (h *Handlers) AudioVideoStatus(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id query parameter is required", "MISSING_JOB_ID")
		return
	}

	raw, err := h.deps.AudioVideo.Status(r.Context(), token, jobID)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}
