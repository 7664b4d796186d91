package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /generate-access-token", h.GenerateAccessToken)

	// Image and video generation
	mux.HandleFunc("POST /generate-image-async", h.GenerateImage)
	mux.HandleFunc("POST /generate-object-composite", h.GenerateObjectComposite)
	mux.HandleFunc("GET /complete-image-callback", h.CompleteImageCallback)
	mux.HandleFunc("GET /check-status", h.CheckStatus)
	mux.HandleFunc("PUT /cancel-job", h.CancelJob)
	mux.HandleFunc("POST /image-upload", h.UploadImage)
	mux.HandleFunc("POST /expand-image-async", h.ExpandImage)
	mux.HandleFunc("POST /expand-image-all-sizes", h.ExpandImageAllSizes)
	mux.HandleFunc("POST /generate-similar-async", h.GenerateSimilar)
	mux.HandleFunc("GET /list-custom-models", h.ListCustomModels)
	mux.HandleFunc("POST /generate-video-from-text", h.GenerateVideo)

	// Imaging services
	mux.HandleFunc("POST /remove-background-async", h.RemoveBackground)
	mux.HandleFunc("POST /crop-image", h.CropImage)
	mux.HandleFunc("GET /get-psd-status/{job_id}", h.PSDStatus)
	mux.HandleFunc("POST /auto-tone", h.AutoTone)
	mux.HandleFunc("GET /lightroom-status", h.LightroomStatus)

	// Audio and video services
	mux.HandleFunc("GET /available-voices", h.Voices)
	mux.HandleFunc("GET /available-avatars", h.Avatars)
	mux.HandleFunc("POST /generate-avatar-video", h.GenerateAvatarVideo)
	mux.HandleFunc("POST /generate-audio-from-text", h.GenerateSpeech)
	mux.HandleFunc("POST /dub-video", h.DubVideo)
	mux.HandleFunc("POST /reframe-video", h.ReframeVideo)
	mux.HandleFunc("GET /check-audio-video-status", h.AudioVideoStatus)

	// Object storage
	mux.HandleFunc("GET /get-s3-presigned-url", h.PresignURL)
	mux.HandleFunc("GET /get-s3-thumbnails", h.Thumbnails)
	mux.HandleFunc("GET /proxy-s3-image", h.ProxyImage)
	mux.HandleFunc("GET /get-s3-video-names", h.VideoNames)
	mux.HandleFunc("POST /generate-thumbnails", h.GenerateThumbnails)
	mux.HandleFunc("POST /generate-mask", h.GenerateMask)

	// Workflows
	mux.HandleFunc("POST /workflows/product-shot", h.CreateWorkflowRun)
	mux.HandleFunc("GET /workflows", h.ListWorkflowRuns)
	mux.HandleFunc("GET /workflows/{id}", h.GetWorkflowRun)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
