package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mirovado/firefly-gateway/internal/storage"
)

// ThumbnailPrefix is prepended to the source key when storing a thumbnail.
const ThumbnailPrefix = "thumbnails/"

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp"}

// IsImageKey reports whether an object key has a recognized image extension.
func IsImageKey(key string) bool {
	lower := strings.ToLower(key)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Thumbnailer renders thumbnails for the images in a bucket and stores them
// back under the thumbnail prefix.
type Thumbnailer struct {
	store  storage.Storage
	maxPx  int
	logger *slog.Logger
}

// NewThumbnailer creates a Thumbnailer. A non-positive maxPx falls back to
// DefaultThumbnailMax.
func NewThumbnailer(store storage.Storage, maxPx int, logger *slog.Logger) *Thumbnailer {
	if maxPx <= 0 {
		maxPx = DefaultThumbnailMax
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Thumbnailer{
		store:  store,
		maxPx:  maxPx,
		logger: logger,
	}
}

// GenerateAll renders a thumbnail for every image under the prefix and
// writes it back under thumbnails/<key>. Keys that already hold thumbnails
// are skipped, and objects that fail to process are logged and skipped so
// one bad image does not stop the pass. It returns the number of thumbnails
// written.
func (t *Thumbnailer) GenerateAll(ctx context.Context, bucket, prefix string) (int, error) {
	keys, err := t.store.List(ctx, bucket, prefix)
	if err != nil {
		return 0, fmt.Errorf("list images: %w", err)
	}

	generated := 0
	for _, key := range keys {
		if !IsImageKey(key) || strings.HasPrefix(key, ThumbnailPrefix) {
			continue
		}

		if err := t.generateOne(ctx, bucket, key); err != nil {
			t.logger.Error("thumbnail generation failed",
				"bucket", bucket,
				"key", key,
				"error", err,
			)
			continue
		}
		generated++
	}

	t.logger.Info("thumbnail pass complete",
		"bucket", bucket,
		"prefix", prefix,
		"generated", generated,
	)

	return generated, nil
}

func (t *Thumbnailer) generateOne(ctx context.Context, bucket, key string) error {
	obj, err := t.store.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer func() {
		_ = obj.Body.Close()
	}()

	src, err := io.ReadAll(obj.Body)
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}

	thumb, contentType, err := Thumbnail(src, t.maxPx)
	if err != nil {
		return err
	}

	return t.store.Put(ctx, bucket, ThumbnailPrefix+key, contentType, bytes.NewReader(thumb))
}
