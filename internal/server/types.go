// Package server provides the HTTP surface of the creative gateway.
// It includes handlers, middleware, routes, and DTOs separated from domain
// types. Where an endpoint relays a vendor API verbatim the vendor client's
// request struct is the body; the types here cover the routes that reshape
// their input or output.
package server

import (
	"encoding/json"
	"time"
)

// GenerateImageRequest is the HTTP request body for text-to-image generation.
type GenerateImageRequest struct {
	// Prompt is the text prompt for the generation.
	Prompt string `json:"prompt" validate:"required"`
	// ReferenceImage is the signed URL of the style reference image.
	ReferenceImage string `json:"referenceImage,omitempty" validate:"omitempty,url"`
}

// ExpandImageRequest is the HTTP request body for expanding an uploaded image.
type ExpandImageRequest struct {
	// ImageID is the upload ID of the source image.
	ImageID string `json:"imageId" validate:"required"`
	// Width is the target width in pixels.
	Width int `json:"width" validate:"gt=0"`
	// Height is the target height in pixels.
	Height int `json:"height" validate:"gt=0"`
}

// ExpandAllSizesRequest is the HTTP request body for expanding an uploaded
// image into every supported size.
type ExpandAllSizesRequest struct {
	// ImageID is the upload ID of the source image.
	ImageID string `json:"imageId" validate:"required"`
}

// UploadResponse is the HTTP response after uploading an image.
type UploadResponse struct {
	// Filename is the name of the uploaded file.
	Filename string `json:"filename"`
	// FireflyResponse is the raw upload response from the image service.
	FireflyResponse json.RawMessage `json:"firefly_response"`
}

// PresignResponse is the HTTP response carrying a presigned object URL.
type PresignResponse struct {
	// URL is the presigned URL.
	URL string `json:"url"`
	// Key is the object key the URL addresses. Upload keys are prefixed, so
	// callers need this to find the object afterwards.
	Key string `json:"key"`
}

// ThumbnailEntry is one thumbnail in the gallery listing.
type ThumbnailEntry struct {
	// URL is the presigned download URL of the thumbnail.
	URL string `json:"url"`
	// Name is the object key with the thumbnail prefix stripped.
	Name string `json:"name"`
}

// ThumbnailRunResponse is the HTTP response after a thumbnail generation pass.
type ThumbnailRunResponse struct {
	// Generated is the number of thumbnails written.
	Generated int `json:"generated"`
}

// MaskRequest is the HTTP request body for rendering a placement mask.
// Without coverage percentages the mask is fully white; with them it is a
// centered white box on black. Percentages are fractions of the scene.
type MaskRequest struct {
	Width         int     `json:"width" validate:"omitempty,gt=0"`
	Height        int     `json:"height" validate:"omitempty,gt=0"`
	WidthPercent  float64 `json:"widthPercent" validate:"omitempty,gt=0,lte=1"`
	HeightPercent float64 `json:"heightPercent" validate:"omitempty,gt=0,lte=1"`
}

// CreateRunRequest is the HTTP request body for starting a product shot run.
type CreateRunRequest struct {
	// Bucket is the object storage bucket. Empty means the configured default.
	Bucket string `json:"bucket,omitempty"`
	// ProductKey is the object key of the source product photo.
	ProductKey string `json:"productKey" validate:"required"`
	// OutputKey is the object key the finished shot is written to.
	OutputKey string `json:"outputKey" validate:"required"`
	// Prompt describes the scene to place the product in.
	Prompt string `json:"prompt" validate:"required"`
	// StyleReferenceURL is an optional signed URL of a style image.
	StyleReferenceURL string `json:"styleReferenceUrl,omitempty" validate:"omitempty,url"`
}

// StepResponse is one pipeline stage in a run response.
type StepResponse struct {
	Name        string    `json:"name"`
	JobID       string    `json:"job_id,omitempty"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// RunResponse is the HTTP response for product shot run details.
type RunResponse struct {
	// ID is the unique identifier of the run.
	ID string `json:"id"`
	// Status is the current run status.
	Status string `json:"status"`
	// Error contains the failure message if the run failed.
	Error string `json:"error,omitempty"`
	// Bucket, ProductKey and OutputKey locate the source and final assets.
	Bucket     string `json:"bucket"`
	ProductKey string `json:"product_key"`
	OutputKey  string `json:"output_key"`
	// Prompt is the scene description the run was created with.
	Prompt string `json:"prompt"`
	// StyleReferenceURL is the style image, when one was given.
	StyleReferenceURL string `json:"style_reference_url,omitempty"`
	// ResultURL is the rendered composite, before auto tone.
	ResultURL string `json:"result_url,omitempty"`
	// Steps are the pipeline stages executed so far.
	Steps []StepResponse `json:"steps"`

	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
