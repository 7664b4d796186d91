package poll

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingStatus is returned when a status response carries no recognizable
// status field.
var ErrMissingStatus = errors.New("poll: response has no status field")

// Extractor locates the job status inside a raw status response body.
// Each vendor surface reports status in a different place.
type Extractor func(body []byte) (Status, error)

// TopLevelStatus reads {"status": "..."}. This is the shape used by the
// Firefly async endpoints, the Photoshop sensei service and the audio/video
// services.
func TopLevelStatus(body []byte) (Status, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("poll: decode status response: %w", err)
	}
	if resp.Status == "" {
		return "", ErrMissingStatus
	}
	return normalizeStatus(resp.Status), nil
}

// FirstOutputStatus reads {"outputs": [{"status": "..."}]}. This is the shape
// used by the Lightroom and psdService surfaces, which report per-output
// progress.
func FirstOutputStatus(body []byte) (Status, error) {
	var resp struct {
		Outputs []struct {
			Status string `json:"status"`
		} `json:"outputs"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("poll: decode status response: %w", err)
	}
	if len(resp.Outputs) == 0 || resp.Outputs[0].Status == "" {
		return "", ErrMissingStatus
	}
	return normalizeStatus(resp.Outputs[0].Status), nil
}

// AnyStatus tries the top-level field first and falls back to the first
// output. Used when the caller does not know which surface issued the
// status URL.
func AnyStatus(body []byte) (Status, error) {
	status, err := TopLevelStatus(body)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, ErrMissingStatus) {
		return "", err
	}
	return FirstOutputStatus(body)
}
