// Package firefly provides an HTTP client for the Firefly image and video
// generation APIs. Every generation endpoint is asynchronous: a submit
// returns a job reference whose status URL is then polled to completion.
package firefly

import "encoding/json"

// Submission is the job reference returned by the async generation endpoints.
type Submission struct {
	JobID     string `json:"jobId"`
	StatusURL string `json:"statusUrl"`
	CancelURL string `json:"cancelUrl,omitempty"`

	// Raw is the unmodified submit response body, relayed to callers.
	Raw json.RawMessage `json:"-"`
}

// ImageSource identifies an image by signed URL or by uploaded image ID.
type ImageSource struct {
	URL      string `json:"url,omitempty"`
	UploadID string `json:"uploadId,omitempty"`
}

// ImageInput wraps an image source.
type ImageInput struct {
	Source ImageSource `json:"source"`
}

// Size is an output size in pixels.
type Size struct {
	Width  int `json:"width" validate:"gt=0"`
	Height int `json:"height" validate:"gt=0"`
}

// SupportedExpandSizes is the size grid submitted by the expand-all-sizes
// operation, one expand job per entry.
var SupportedExpandSizes = []Size{
	{Width: 2688, Height: 1536},
	{Width: 1344, Height: 756},
	{Width: 896, Height: 1152},
	{Width: 1344, Height: 768},
	{Width: 2688, Height: 1512},
	{Width: 2304, Height: 1792},
	{Width: 1152, Height: 896},
	{Width: 2048, Height: 2048},
	{Width: 1792, Height: 2304},
	{Width: 1024, Height: 1024},
}

// Alignment positions a composited object inside the generated scene.
type Alignment struct {
	Horizontal string `json:"horizontal" validate:"oneof=center left right"`
	Vertical   string `json:"vertical" validate:"oneof=center top bottom"`
}

// Inset is the margin in pixels around a placed object.
type Inset struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Placement controls where the object lands in a composite.
type Placement struct {
	Alignment Alignment `json:"alignment"`
	Inset     *Inset    `json:"inset,omitempty"`
}

// StyleReference points at the style image for a generation. The generate
// endpoint takes a bare URL while the composite endpoint nests it in a
// source; only one of the two fields is set.
type StyleReference struct {
	URL    string       `json:"url,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// Style carries the style reference and its strength.
type Style struct {
	Strength       int             `json:"strength,omitempty"`
	ImageReference *StyleReference `json:"imageReference,omitempty"`
}

// GenerateImageRequest is the payload for v3/images/generate-async.
type GenerateImageRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Style  *Style `json:"style,omitempty"`
}

// ObjectCompositeRequest is the payload for
// v3/images/generate-object-composite-async.
type ObjectCompositeRequest struct {
	ContentClass  string      `json:"contentClass,omitempty" validate:"omitempty,oneof=photo art"`
	Image         ImageInput  `json:"image"`
	Mask          *ImageInput `json:"mask,omitempty"`
	NumVariations int         `json:"numVariations,omitempty" validate:"omitempty,min=1,max=4"`
	Placement     *Placement  `json:"placement,omitempty"`
	Prompt        string      `json:"prompt" validate:"required"`
	Seeds         []int       `json:"seeds,omitempty"`
	Size          *Size       `json:"size,omitempty"`
	Style         *Style      `json:"style,omitempty"`
}

// ExpandImageRequest is the payload for v3/images/expand-async.
type ExpandImageRequest struct {
	Image ImageInput `json:"image"`
	Size  Size       `json:"size"`
}

// SimilarImageRequest is the payload for v3/images/generate-similar-async.
type SimilarImageRequest struct {
	Image         ImageInput `json:"image"`
	NumVariations int        `json:"numVariations,omitempty" validate:"omitempty,min=1,max=4"`
	Seeds         []int      `json:"seeds,omitempty"`
	Size          *Size      `json:"size,omitempty"`
}

// ConditionPlacement pins a conditioning image to a frame position.
type ConditionPlacement struct {
	Position int `json:"position"`
}

// ImageCondition is one conditioning image for video generation.
type ImageCondition struct {
	Placement ConditionPlacement `json:"placement"`
	Source    ImageSource        `json:"source"`
}

// ImageConditions groups the conditioning images for video generation.
type ImageConditions struct {
	Conditions []ImageCondition `json:"conditions,omitempty"`
}

// VideoSettings tunes the camera work of a text-to-video generation.
type VideoSettings struct {
	CameraMotion string `json:"cameraMotion"`
	PromptStyle  string `json:"promptStyle"`
	ShotAngle    string `json:"shotAngle"`
	ShotSize     string `json:"shotSize"`
}

// GenerateVideoRequest is the payload for v3/videos/generate.
type GenerateVideoRequest struct {
	BitRateFactor int              `json:"bitRateFactor,omitempty" validate:"omitempty,min=1,max=63"`
	Image         *ImageConditions `json:"image,omitempty"`
	Prompt        string           `json:"prompt" validate:"required"`
	Seeds         []int            `json:"seeds,omitempty"`
	Sizes         []Size           `json:"sizes,omitempty"`
	VideoSettings *VideoSettings   `json:"videoSettings,omitempty"`
}
