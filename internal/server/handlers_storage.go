package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mirovado/firefly-gateway/internal/media"
)

// alteredKeyPrefix is prepended to upload keys so presigned puts cannot
// overwrite source objects.
const alteredKeyPrefix = "altered/"

// PresignURL handles GET /get-s3-presigned-url requests. Any method other
// than put_object presigns a download. Upload keys are prefixed and the
// final key is returned so the caller can find the object afterwards.
func (h *Handlers) PresignURL(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket_name")
	if bucket == "" {
		writeError(w, http.StatusBadRequest, "bucket_name query parameter is required", "MISSING_BUCKET")
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key query parameter is required", "MISSING_KEY")
		return
	}

	var (
		url string
		err error
	)
	if r.URL.Query().Get("method") == "put_object" {
		key = alteredKeyPrefix + key
		url, err = h.deps.Store.PresignPut(r.Context(), bucket, key)
	} else {
		url, err = h.deps.Store.PresignGet(r.Context(), bucket, key)
	}
	if err != nil {
		h.logger.Error("failed to presign URL",
			slog.String("bucket", bucket),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to generate presigned URL", "PRESIGN_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, PresignResponse{URL: url, Key: key})
}

// Thumbnails handles GET /get-s3-thumbnails requests: every key under the
// prefix is presigned and listed with its display name.
func (h *Handlers) Thumbnails(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket_name")
	if bucket == "" {
		writeError(w, http.StatusBadRequest, "bucket_name query parameter is required", "MISSING_BUCKET")
		return
	}
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		writeError(w, http.StatusBadRequest, "prefix query parameter is required", "MISSING_PREFIX")
		return
	}

	keys, err := h.deps.Store.List(r.Context(), bucket, prefix)
	if err != nil {
		h.logger.Error("failed to list objects",
			slog.String("bucket", bucket),
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read bucket contents", "STORAGE_ERROR")
		return
	}

	entries := make([]ThumbnailEntry, 0, len(keys))
	for _, key := range keys {
		url, err := h.deps.Store.PresignGet(r.Context(), bucket, key)
		if err != nil {
			h.logger.Error("failed to presign thumbnail",
				slog.String("bucket", bucket),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		entries = append(entries, ThumbnailEntry{
			URL:  url,
			Name: strings.TrimPrefix(key, media.ThumbnailPrefix),
		})
	}

	writeJSON(w, http.StatusOK, entries)
}

// ProxyImage handles GET /proxy-s3-image requests, streaming the object from
// the configured bucket so browsers can show it without storage credentials.
func (h *Handlers) ProxyImage(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("image_name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "image_name query parameter is required", "MISSING_IMAGE_NAME")
		return
	}

	obj, err := h.deps.Store.Get(r.Context(), h.bucket, name)
	if err != nil {
		h.logger.Error("failed to fetch image",
			slog.String("bucket", h.bucket),
			slog.String("key", name),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read image", "STORAGE_ERROR")
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "image/png"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "inline; filename="+name)
	if obj.Length > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Length, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Error("failed to stream image",
			slog.String("key", name),
			slog.String("error", err.Error()),
		)
	}
}

// VideoNames handles GET /get-s3-video-names requests, listing the video
// keys under the prefix.
func (h *Handlers) VideoNames(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket_name")
	if bucket == "" {
		writeError(w, http.StatusBadRequest, "bucket_name query parameter is required", "MISSING_BUCKET")
		return
	}
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		writeError(w, http.StatusBadRequest, "prefix query parameter is required", "MISSING_PREFIX")
		return
	}

	keys, err := h.deps.Store.List(r.Context(), bucket, prefix)
	if err != nil {
		h.logger.Error("failed to list objects",
			slog.String("bucket", bucket),
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read bucket contents", "STORAGE_ERROR")
		return
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, ".mp4") {
			names = append(names, key)
		}
	}

	writeJSON(w, http.StatusOK, names)
}

// GenerateThumbnails handles POST /generate-thumbnails requests, running the
// thumbnail pass over the bucket.
func (h *Handlers) GenerateThumbnails(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket_name")
	if bucket == "" {
		bucket = h.bucket
	}
	prefix := r.URL.Query().Get("prefix")

	count, err := h.deps.Thumbnailer.GenerateAll(r.Context(), bucket, prefix)
	if err != nil {
		h.logger.Error("thumbnail pass failed",
			slog.String("bucket", bucket),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to generate thumbnails", "THUMBNAIL_FAILED")
		return
	}

	h.logger.Info("thumbnail pass completed",
		slog.String("bucket", bucket),
		slog.Int("generated", count),
	)

	writeJSON(w, http.StatusOK, ThumbnailRunResponse{Generated: count})
}

// GenerateMask handles POST /generate-mask requests, answering with PNG
// bytes. Omitted dimensions fall back to the default mask size.
func (h *Handlers) GenerateMask(w http.ResponseWriter, r *http.Request) {
	var req MaskRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	width, height := req.Width, req.Height
	if width == 0 {
		width = media.DefaultMaskSize
	}
	if height == 0 {
		height = media.DefaultMaskSize
	}

	var (
		mask []byte
		err  error
	)
	if req.WidthPercent > 0 || req.HeightPercent > 0 {
		mask, err = media.CenteredMask(width, height, req.WidthPercent, req.HeightPercent)
	} else {
		mask, err = media.SimpleMask(width, height)
	}
	if err != nil {
		if errors.Is(err, media.ErrInvalidDimensions) || errors.Is(err, media.ErrInvalidPercent) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_MASK")
			return
		}
		h.logger.Error("failed to render mask", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to render mask", "MASK_FAILED")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(mask); err != nil {
		h.logger.Error("failed to write mask response", slog.String("error", err.Error()))
	}
}
