package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mirovado/firefly-gateway/internal/firefly"
)

// referenceStyleStrength is the style strength applied when a generation
// carries a reference image.
const referenceStyleStrength = 100

// maxUploadBytes bounds the in-memory portion of an image upload.
const maxUploadBytes = 32 << 20

// GenerateImage handles POST /generate-image-async requests. The prompt and
// optional style reference are reshaped into the generation payload and the
// raw submit response is relayed.
func (h *Handlers) GenerateImage(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req GenerateImageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	payload := firefly.GenerateImageRequest{Prompt: req.Prompt}
	if req.ReferenceImage != "" {
		payload.Style = &firefly.Style{
			Strength:       referenceStyleStrength,
			ImageReference: &firefly.StyleReference{URL: req.ReferenceImage},
		}
	}

	sub, err := h.deps.Firefly.GenerateImage(r.Context(), token, payload)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("image generation submitted", slog.String("job_id", sub.JobID))
	writeRaw(w, http.StatusOK, sub.Raw)
}

// GenerateObjectComposite handles POST /generate-object-composite requests.
// The body is the composite payload itself, relayed after validation.
func (h *Handlers) GenerateObjectComposite(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req firefly.ObjectCompositeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.deps.Firefly.GenerateObjectComposite(r.Context(), token, req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("object composite submitted", slog.String("job_id", sub.JobID))
	writeRaw(w, http.StatusOK, sub.Raw)
}

// CheckStatus handles GET /check-status requests, a single status fetch
// without polling.
func (h *Handlers) CheckStatus(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id query parameter is required", "MISSING_JOB_ID")
		return
	}

	raw, err := h.deps.Firefly.Status(r.Context(), token, jobID)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}

// CancelJob handles PUT /cancel-job requests. The cancel endpoint answers
// with an empty body, mapped to 204.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id query parameter is required", "MISSING_JOB_ID")
		return
	}

	raw, err := h.deps.Firefly.CancelJob(r.Context(), token, jobID)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("job cancelled", slog.String("job_id", jobID))

	if len(bytes.TrimSpace(raw)) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

// UploadImage handles POST /image-upload requests. The multipart file is
// streamed to image storage and the raw upload response is wrapped with the
// original filename.
func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.logger.Warn("failed to parse multipart form",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required", "MISSING_FILE")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}

	raw, err := h.deps.Firefly.UploadImage(r.Context(), token, contentType, file)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("image uploaded",
		slog.String("filename", header.Filename),
		slog.String("content_type", contentType),
	)

	writeJSON(w, http.StatusOK, UploadResponse{
		Filename:        header.Filename,
		FireflyResponse: raw,
	})
}

// ExpandImage handles POST /expand-image-async requests. The uploaded image
// ID and target size are reshaped into the expand payload.
func (h *Handlers) ExpandImage(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req ExpandImageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	payload := firefly.ExpandImageRequest{
		Image: firefly.ImageInput{Source: firefly.ImageSource{UploadID: req.ImageID}},
		Size:  firefly.Size{Width: req.Width, Height: req.Height},
	}

	sub, err := h.deps.Firefly.ExpandImage(r.Context(), token, payload)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("image expand submitted", slog.String("job_id", sub.JobID))
	writeRaw(w, http.StatusOK, sub.Raw)
}

// ExpandImageAllSizes handles POST /expand-image-all-sizes requests: one
// expand submit per supported size, answered with the submission list. A
// failed submit aborts the batch.
func (h *Handlers) ExpandImageAllSizes(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req ExpandAllSizesRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	submissions := make([]json.RawMessage, 0, len(firefly.SupportedExpandSizes))
	for _, size := range firefly.SupportedExpandSizes {
		payload := firefly.ExpandImageRequest{
			Image: firefly.ImageInput{Source: firefly.ImageSource{UploadID: req.ImageID}},
			Size:  size,
		}

		sub, err := h.deps.Firefly.ExpandImage(r.Context(), token, payload)
		if err != nil {
			h.writeUpstreamError(w, r, err)
			return
		}
		submissions = append(submissions, sub.Raw)
	}

	h.logger.Info("image expand batch submitted",
		slog.String("image_id", req.ImageID),
		slog.Int("count", len(submissions)),
	)

	writeJSON(w, http.StatusOK, submissions)
}

// GenerateSimilar handles POST /generate-similar-async requests.
func (h *Handlers) GenerateSimilar(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req firefly.SimilarImageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.deps.Firefly.GenerateSimilar(r.Context(), token, req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("similar generation submitted", slog.String("job_id", sub.JobID))
	writeRaw(w, http.StatusOK, sub.Raw)
}

// ListCustomModels handles GET /list-custom-models requests. The request
// correlation ID is relayed upstream.
func (h *Handlers) ListCustomModels(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", "INVALID_LIMIT")
			return
		}
		limit = n
	}

	raw, err := h.deps.Firefly.ListCustomModels(r.Context(), token, RequestID(r.Context()), limit)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}

// GenerateVideo handles POST /generate-video-from-text requests.
func (h *Handlers) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireToken(w, r)
	if !ok {
		return
	}

	var req firefly.GenerateVideoRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.deps.Firefly.GenerateVideo(r.Context(), token, req)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	h.logger.Info("video generation submitted", slog.String("job_id", sub.JobID))
	writeRaw(w, http.StatusOK, sub.Raw)
}
