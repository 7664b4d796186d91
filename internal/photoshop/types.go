// Package photoshop provides an HTTP client for the Photoshop imaging APIs:
// background removal, sensei cutout, and PSD product crop. Jobs are
// asynchronous and polled through the sensei or psdService status endpoints.
package photoshop

import "encoding/json"

// Submission is the job reference returned by the v2 background removal
// endpoint.
type Submission struct {
	JobID     string `json:"jobId"`
	StatusURL string `json:"statusUrl"`
	CancelURL string `json:"cancelUrl,omitempty"`

	// Raw is the unmodified submit response body.
	Raw json.RawMessage `json:"-"`
}

// JobRef is the job reference returned by the legacy endpoints, which answer
// with a _links.self.href job URL instead of a job ID.
type JobRef struct {
	ID   string
	Href string

	// Raw is the unmodified submit response body.
	Raw json.RawMessage
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

// MediaOutput names the media type of a produced asset.
type MediaOutput struct {
	MediaType string `json:"mediaType"`
}

// BackgroundColor is the fill color left behind a removed background.
type BackgroundColor struct {
	Red   int     `json:"red"`
	Green int     `json:"green"`
	Blue  int     `json:"blue"`
	Alpha float64 `json:"alpha"`
}

// RemoveBackgroundRequest is the payload for v2/remove-background. Unset
// optional fields are filled with the service defaults before submit.
type RemoveBackgroundRequest struct {
	Image                ImageInput       `json:"image"`
	Mode                 string           `json:"mode,omitempty" validate:"omitempty,oneof=cutout mask"`
	Output               *MediaOutput     `json:"output,omitempty"`
	Trim                 *bool            `json:"trim,omitempty"`
	BackgroundColor      *BackgroundColor `json:"backgroundColor,omitempty"`
	ColorDecontamination *int             `json:"colorDecontamination,omitempty"`
}

func (r RemoveBackgroundRequest) withDefaults() RemoveBackgroundRequest {
	if r.Mode == "" {
		r.Mode = "cutout"
	}
	if r.Output == nil {
		r.Output = &MediaOutput{MediaType: "image/jpeg"}
	}
	if r.Trim == nil {
		trim := false
		r.Trim = &trim
	}
	if r.BackgroundColor == nil {
		r.BackgroundColor = &BackgroundColor{Red: 255, Green: 255, Blue: 255, Alpha: 1}
	}
	if r.ColorDecontamination == nil {
		decontamination := 1
		r.ColorDecontamination = &decontamination
	}
	return r
}

// FileRef identifies an image in external storage by signed URL.
type FileRef struct {
	Href    string `json:"href" validate:"required,url"`
	Storage string `json:"storage,omitempty"`
	Type    string `json:"type,omitempty"`
}

// CutoutRequest is the payload for sensei/cutout. Input and output are
// signed URLs; the cutout is written to the output URL.
type CutoutRequest struct {
	Input  FileRef `json:"input"`
	Output FileRef `json:"output"`
}

// SizeOptions is the target crop size for a product crop.
type SizeOptions struct {
	Unit   string `json:"unit,omitempty"`
	Width  int    `json:"width" validate:"gt=0"`
	Height int    `json:"height" validate:"gt=0"`
}

// ProductCropRequest is the payload for pie/psdService/productCrop.
type ProductCropRequest struct {
	Inputs  []FileRef   `json:"inputs" validate:"min=1,dive"`
	Options SizeOptions `json:"options"`
	Outputs []FileRef   `json:"outputs" validate:"min=1,dive"`
}
