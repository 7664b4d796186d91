// Package workflow provides the Run aggregate for the automated product shot
// pipeline. A run chains three asynchronous services: background removal of the
// product image, an object composite render against a generated scene, and a
// final auto tone pass on the rendered output.
package workflow

import (
	"errors"
	"sync"
	"time"

	"github.com/mirovado/firefly-gateway/internal/workflow/id"
)

// Status represents the current state of a Run.
type Status string

const (
	// StatusInQueue indicates the run has been accepted but not started.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the pipeline is executing.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates every step finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates a step encountered an error.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("workflow: invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Step records the outcome of a single pipeline stage. Each stage submits a
// job to an upstream service and polls it to a terminal state.
type Step struct {
	// Name identifies the stage: cutout, composite, or autoTone.
	Name string
	// JobID is the identifier assigned by the upstream service.
	JobID string
	// Status is the terminal status reported by the upstream service.
	Status string
	// Attempts is the number of status polls the stage needed.
	Attempts int
	// Error contains any error message if the stage failed.
	Error string
	// StartedAt is when the stage was submitted.
	StartedAt time.Time
	// CompletedAt is when the stage reached a terminal state.
	CompletedAt time.Time
}

// Run represents one execution of the product shot pipeline.
type Run struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run.
	ID string
	// Status is the current run state.
	Status Status
	// Steps records each completed or attempted pipeline stage in order.
	Steps []Step
	// Error contains any error message if the run failed.
	Error string
	// Bucket is the object storage bucket holding the input and output.
	Bucket string
	// ProductKey is the object key of the source product image.
	ProductKey string
	// OutputKey is the object key the finished image is written to.
	OutputKey string
	// Prompt describes the scene to render the product into.
	Prompt string
	// StyleReferenceURL optionally points at an image whose style the
	// composite should match.
	StyleReferenceURL string
	// ResultURL is the rendered composite image URL returned by the image
	// service. The auto toned final lives at OutputKey in Bucket.
	ResultURL string
	// CreatedAt is when the run was created.
	CreatedAt time.Time
	// UpdatedAt is when the run was last updated.
	UpdatedAt time.Time
	// StartedAt is when execution started.
	StartedAt time.Time
	// CompletedAt is when execution finished.
	CompletedAt time.Time
}

// New creates a new Run with a generated ID and initial IN_QUEUE status.
func New() *Run {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Run with the specified ID and initial IN_QUEUE status.
// Useful for testing or when the ID needs to be externally generated.
func NewWithID(runID string) *Run {
	now := time.Now()
	return &Run{
		ID:        runID,
		Status:    StatusInQueue,
		Steps:     make([]Step, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the run status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Run) TransitionTo(status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.Status, status) {
		return ErrInvalidTransition
	}

	r.Status = status
	r.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		r.StartedAt = r.UpdatedAt
	case StatusCompleted, StatusFailed:
		r.CompletedAt = r.UpdatedAt
	}

	return nil
}

// Start transitions the run from IN_QUEUE to RUNNING.
func (r *Run) Start() error {
	return r.TransitionTo(StatusRunning)
}

// Complete transitions the run to COMPLETED state.
func (r *Run) Complete() error {
	return r.TransitionTo(StatusCompleted)
}

// Fail transitions the run to FAILED state with an error message.
func (r *Run) Fail(errMsg string) error {
	r.mu.Lock()
	r.Error = errMsg
	r.mu.Unlock()
	return r.TransitionTo(StatusFailed)
}

// AppendStep records the outcome of a pipeline stage.
func (r *Run) AppendStep(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps = append(r.Steps, step)
	r.UpdatedAt = time.Now()
}

// SetResultURL records the rendered composite image URL.
func (r *Run) SetResultURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResultURL = url
	r.UpdatedAt = time.Now()
}

// GetStatus returns the current run status (thread-safe).
func (r *Run) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// IsTerminal returns true if the run is in a terminal state.
func (r *Run) IsTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Clone creates a deep copy of the run for safe reads.
func (r *Run) Clone() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := make([]Step, len(r.Steps))
	copy(steps, r.Steps)

	return &Run{
		ID:                r.ID,
		Status:            r.Status,
		Steps:             steps,
		Error:             r.Error,
		Bucket:            r.Bucket,
		ProductKey:        r.ProductKey,
		OutputKey:         r.OutputKey,
		Prompt:            r.Prompt,
		StyleReferenceURL: r.StyleReferenceURL,
		ResultURL:         r.ResultURL,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
	}
}
