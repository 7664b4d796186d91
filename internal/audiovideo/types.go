// Package audiovideo provides an HTTP client for the speech, avatar,
// dubbing, and reframe APIs. Generation jobs are asynchronous and polled
// through the v2 status endpoint.
package audiovideo

import "encoding/json"

// Submission is the job reference returned by the generation endpoints.
type Submission struct {
	JobID     string `json:"jobId"`
	StatusURL string `json:"statusUrl"`

	// Raw is the unmodified submit response body.
	Raw json.RawMessage `json:"-"`
}

// Script is spoken text with its media type and locale.
type Script struct {
	Text       string `json:"text" validate:"required"`
	MediaType  string `json:"mediaType,omitempty"`
	LocaleCode string `json:"localeCode,omitempty"`
}

// MediaOutput names the media type of a produced asset.
type MediaOutput struct {
	MediaType string `json:"mediaType"`
}

// SpeechRequest is the payload for v1/generate-speech.
type SpeechRequest struct {
	Script  Script       `json:"script"`
	VoiceID string       `json:"voiceId" validate:"required"`
	Output  *MediaOutput `json:"output,omitempty"`
}

// AvatarRequest is the payload for v1/generate-avatar.
type AvatarRequest struct {
	AvatarID string       `json:"avatarId" validate:"required"`
	VoiceID  string       `json:"voiceId" validate:"required"`
	Script   Script       `json:"script"`
	Output   *MediaOutput `json:"output,omitempty"`
}

// VideoSource identifies a video by signed URL.
type VideoSource struct {
	URL string `json:"url" validate:"required,url"`
}

// VideoInput wraps a video source with its media type.
type VideoInput struct {
	Source    VideoSource `json:"source"`
	MediaType string      `json:"mediaType,omitempty"`
}

// DubRequest is the payload for v1/dub. Lip sync is on unless explicitly
// disabled.
type DubRequest struct {
	Video             VideoInput `json:"video"`
	TargetLocaleCodes []string   `json:"targetLocaleCodes" validate:"min=1"`
	LipSync           *bool      `json:"lipSync,omitempty"`
}

// ReframeVideo is the video being reframed.
type ReframeVideo struct {
	Source VideoSource `json:"source"`
}

// Scale is an overlay size in pixels.
type Scale struct {
	Width  int `json:"width" validate:"gt=0"`
	Height int `json:"height" validate:"gt=0"`
}

// OverlayPosition anchors an overlay within the frame.
type OverlayPosition struct {
	AnchorPoint string `json:"anchorPoint" validate:"oneof=top_left top_center top_right center_left center center_right bottom_left bottom_center bottom_right"`
	OffsetX     int    `json:"offsetX"`
	OffsetY     int    `json:"offsetY"`
}

// Overlay is a video layered onto the reframed composition.
type Overlay struct {
	Source    VideoSource     `json:"source"`
	StartTime string          `json:"startTime"`
	Duration  string          `json:"duration"`
	Scale     Scale           `json:"scale"`
	Position  OverlayPosition `json:"position"`
}

// Composition groups the overlays of a reframe.
type Composition struct {
	Overlays []Overlay `json:"overlays"`
}

// Analysis tunes how the reframe tracks the subject.
type Analysis struct {
	SceneEditDetection bool     `json:"sceneEditDetection"`
	FocalPoints        []string `json:"focalPoints,omitempty"`
}

// OutputFormat selects the container and optional sidecar of the renditions.
type OutputFormat struct {
	Media   string `json:"media" validate:"oneof=none mp4 mov source"`
	Sidecar string `json:"sidecar,omitempty" validate:"omitempty,oneof=json otio"`
}

// AspectRatio is a target rendition ratio.
type AspectRatio struct {
	X int `json:"x" validate:"gt=0"`
	Y int `json:"y" validate:"gt=0"`
}

// Rendition is one reframed output and its destination.
type Rendition struct {
	AspectRatio        AspectRatio  `json:"aspectRatio"`
	MediaDestination   VideoSource  `json:"mediaDestination"`
	SidecarDestination *VideoSource `json:"sidecarDestination,omitempty"`
}

// ReframeOutput groups the format and renditions of a reframe.
type ReframeOutput struct {
	Format     OutputFormat `json:"format"`
	Renditions []Rendition  `json:"renditions" validate:"min=1,dive"`
}

// ReframeRequest is the payload for v2/reframe.
type ReframeRequest struct {
	Video       ReframeVideo  `json:"video"`
	Analysis    Analysis      `json:"analysis"`
	Composition Composition   `json:"composition"`
	Output      ReframeOutput `json:"output"`
}
