package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mirovado/firefly-gateway/internal/firefly"
	"github.com/mirovado/firefly-gateway/internal/ims"
	"github.com/mirovado/firefly-gateway/internal/lightroom"
	"github.com/mirovado/firefly-gateway/internal/photoshop"
	"github.com/mirovado/firefly-gateway/internal/storage"
)

// Step names recorded on runs, in pipeline order.
const (
	StepCutout    = "cutout"
	StepComposite = "composite"
	StepAutoTone  = "autoTone"
)

// cutoutKeyPrefix is where the intermediate background-removed image is
// written in the run's bucket.
const cutoutKeyPrefix = "cutouts/"

// compositeStyleStrength is applied when a run carries a style reference.
const compositeStyleStrength = 50

// Static errors for service operations.
var (
	// ErrDependencyRequired is returned by NewService when a dependency is missing.
	ErrDependencyRequired = errors.New("workflow: dependency required")
	// ErrInvalidRequest is returned when a product shot request is incomplete.
	ErrInvalidRequest = errors.New("workflow: invalid request")
)

// ServiceConfig carries the dependencies for a Service.
type ServiceConfig struct {
	// IMS exchanges client credentials for the access token used on every
	// upstream call.
	IMS ims.Client
	// Photoshop performs the background removal stage.
	Photoshop photoshop.Client
	// Firefly performs the object composite stage.
	Firefly firefly.Client
	// Lightroom performs the auto tone stage.
	Lightroom lightroom.Client
	// Runs persists run state.
	Runs Repository
	// Store presigns the object URLs the upstream services read and write.
	Store storage.Storage
	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// Service orchestrates the product shot pipeline: cutout, composite, auto
// tone. Each stage submits an asynchronous job and polls it to completion
// before the next stage starts.
type Service struct {
	ims       ims.Client
	photoshop photoshop.Client
	firefly   firefly.Client
	lightroom lightroom.Client
	runs      Repository
	store     storage.Storage
	logger    *slog.Logger
}

// NewService creates a Service after checking every dependency is present.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.IMS == nil {
		return nil, fmt.Errorf("%w: ims client", ErrDependencyRequired)
	}
	if cfg.Photoshop == nil {
		return nil, fmt.Errorf("%w: photoshop client", ErrDependencyRequired)
	}
	if cfg.Firefly == nil {
		return nil, fmt.Errorf("%w: firefly client", ErrDependencyRequired)
	}
	if cfg.Lightroom == nil {
		return nil, fmt.Errorf("%w: lightroom client", ErrDependencyRequired)
	}
	if cfg.Runs == nil {
		return nil, fmt.Errorf("%w: run repository", ErrDependencyRequired)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: object storage", ErrDependencyRequired)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		ims:       cfg.IMS,
		photoshop: cfg.Photoshop,
		firefly:   cfg.Firefly,
		lightroom: cfg.Lightroom,
		runs:      cfg.Runs,
		store:     cfg.Store,
		logger:    logger,
	}, nil
}

// ProductShotRequest describes a product shot to produce. The source image
// and the finished output both live in object storage; the service presigns
// the URLs the upstream services need.
type ProductShotRequest struct {
	// Bucket is the storage bucket holding the product image.
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
}

func (req ProductShotRequest) validate() error {
	if req.Bucket == "" {
		return fmt.Errorf("%w: bucket is required", ErrInvalidRequest)
	}
	if req.ProductKey == "" {
		return fmt.Errorf("%w: product key is required", ErrInvalidRequest)
	}
	if req.OutputKey == "" {
		return fmt.Errorf("%w: output key is required", ErrInvalidRequest)
	}
	if req.Prompt == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	return nil
}

// CreateRun validates the request and persists a new queued run.
func (s *Service) CreateRun(ctx context.Context, req ProductShotRequest) (*Run, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	run := New()
	run.Bucket = req.Bucket
	run.ProductKey = req.ProductKey
	run.OutputKey = req.OutputKey
	run.Prompt = req.Prompt
	run.StyleReferenceURL = req.StyleReferenceURL

	s.logger.Info("creating workflow run",
		slog.String("run_id", run.ID),
		slog.String("bucket", req.Bucket),
		slog.String("product_key", req.ProductKey),
		slog.String("output_key", req.OutputKey),
	)

	if err := s.runs.Save(ctx, run); err != nil {
		s.logger.Error("failed to save run",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Service) GetRun(ctx context.Context, id string) (*Run, error) {
	return s.runs.FindByID(ctx, id)
}

// ListRuns returns all runs.
func (s *Service) ListRuns(ctx context.Context) ([]*Run, error) {
	return s.runs.List(ctx)
}

// ExecuteRun drives a queued run through the pipeline to a terminal state.
// Upstream failures are recorded on the run rather than returned; the error
// return is reserved for unknown runs, invalid states, and persistence
// failures. Designed to be called on a background goroutine after CreateRun.
func (s *Service) ExecuteRun(ctx context.Context, runID string) (*Run, error) {
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err := run.Start(); err != nil {
		return nil, fmt.Errorf("start run %s: %w", runID, err)
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info("workflow run started",
		slog.String("run_id", run.ID),
		slog.String("bucket", run.Bucket),
		slog.String("product_key", run.ProductKey),
	)

	if execErr := s.executeSteps(ctx, run); execErr != nil {
		s.logger.Error("workflow run failed",
			slog.String("run_id", run.ID),
			slog.String("error", execErr.Error()),
		)
		if err := run.Fail(execErr.Error()); err != nil {
			return nil, err
		}
		if err := s.runs.Save(ctx, run); err != nil {
			return nil, err
		}
		return run, nil
	}

	if err := run.Complete(); err != nil {
		return nil, err
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info("workflow run completed",
		slog.String("run_id", run.ID),
		slog.String("output_key", run.OutputKey),
	)

	return run, nil
}

// executeSteps runs the three pipeline stages against run, appending a Step
// record for each stage attempted.
func (s *Service) executeSteps(ctx context.Context, run *Run) error {
	token, err := s.ims.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("exchange credentials: %w", err)
	}
	access := token.AccessToken

	// Every stage reads and writes through presigned URLs. The cutout lands
	// on an intermediate key so a failed run leaves the original untouched.
	productURL, err := s.store.PresignGet(ctx, run.Bucket, run.ProductKey)
	if err != nil {
		return fmt.Errorf("presign product image: %w", err)
	}
	cutoutKey := cutoutKeyPrefix + run.ID + ".png"
	cutoutPut, err := s.store.PresignPut(ctx, run.Bucket, cutoutKey)
	if err != nil {
		return fmt.Errorf("presign cutout upload: %w", err)
	}
	cutoutGet, err := s.store.PresignGet(ctx, run.Bucket, cutoutKey)
	if err != nil {
		return fmt.Errorf("presign cutout download: %w", err)
	}
	outputPut, err := s.store.PresignPut(ctx, run.Bucket, run.OutputKey)
	if err != nil {
		return fmt.Errorf("presign output upload: %w", err)
	}

	// Stage 1: remove the product background.
	step := Step{Name: StepCutout, StartedAt: time.Now()}
	cutRef, err := s.photoshop.Cutout(ctx, access, photoshop.CutoutRequest{
		Input:  photoshop.FileRef{Href: productURL},
		Output: photoshop.FileRef{Href: cutoutPut},
	})
	if err != nil {
		s.recordFailure(ctx, run, step, err)
		return fmt.Errorf("submit cutout: %w", err)
	}
	step.JobID = cutRef.ID
	res, err := s.photoshop.AwaitCutout(ctx, access, cutRef.ID)
	step.Status = string(res.Status)
	step.Attempts = res.Attempts
	if err != nil {
		s.recordFailure(ctx, run, step, err)
		return fmt.Errorf("cutout: %w", err)
	}
	s.recordSuccess(ctx, run, step)

	// Stage 2: composite the cutout into the prompted scene.
	step = Step{Name: StepComposite, StartedAt: time.Now()}
	compositeReq := firefly.ObjectCompositeRequest{
		ContentClass: "photo",
		Image:        firefly.ImageInput{Source: firefly.ImageSource{URL: cutoutGet}},
		Placement: &firefly.Placement{
			Alignment: firefly.Alignment{Horizontal: "center", Vertical: "center"},
		},
		Prompt: run.Prompt,
	}
	if run.StyleReferenceURL != "" {
		compositeReq.Style = &firefly.Style{
			Strength: compositeStyleStrength,
			ImageReference: &firefly.StyleReference{
				Source: &firefly.ImageSource{URL: run.StyleReferenceURL},
			},
		}
	}
	sub, err := s.firefly.GenerateObjectComposite(ctx, access, compositeReq)
	if err != nil {
		s.recordFailure(ctx, run, step, err)
		return fmt.Errorf("submit composite: %w", err)
	}
	step.JobID = sub.JobID
	res, err = s.firefly.AwaitJob(ctx, access, sub.StatusURL)
	step.Status = string(res.Status)
	step.Attempts = res.Attempts
	if err != nil {
		s.recordFailure(ctx, run, step, err)
		return fmt.Errorf("composite: %w", err)
	}
	compositeURL, err := firefly.ResultImageURL(res.Body)
	if err != nil {
		s.recordFailure(ctx, run, step, err)
		return fmt.Errorf("composite result: %w", err)
	}
	run.SetResultURL(compositeURL)
	s.recordSuccess(ctx, run, step)

	// Stage 3: auto tone the rendered composite into the output key.
	step = Step{Name: StepAutoTone, StartedAt: time.Now()}
	toneRef, err := s.lightroom.AutoTone(ctx, access, lightroom.AutoToneRequest{
		Inputs:  lightroom.FileRef{Href: compositeURL},
		Outputs: []lightroom.FileRef{{Href: outputPut}},
	})
	if err != nil {
		s.recordFailure(ctx, run, step, err)
		return fmt.Errorf("submit auto tone: %w", err)
	}
	step.JobID = toneRef.ID
	res, err = s.lightroom.AwaitJob(ctx, access, toneRef.ID)
	step.Status = string(res.Status)
	step.Attempts = res.Attempts
	if err != nil {
		s.recordFailure(ctx, run, step, err)
		return fmt.Errorf("auto tone: %w", err)
	}
	s.recordSuccess(ctx, run, step)

	return nil
}

// recordSuccess appends a finished step and checkpoints the run.
func (s *Service) recordSuccess(ctx context.Context, run *Run, step Step) {
	step.CompletedAt = time.Now()
	run.AppendStep(step)
	s.checkpoint(ctx, run)
	s.logger.Info("workflow step completed",
		slog.String("run_id", run.ID),
		slog.String("step", step.Name),
		slog.String("job_id", step.JobID),
		slog.Int("attempts", step.Attempts),
	)
}

// recordFailure appends a failed step. The run transition to FAILED happens
// in ExecuteRun once the pipeline error propagates up.
func (s *Service) recordFailure(ctx context.Context, run *Run, step Step, err error) {
	step.Error = err.Error()
	step.CompletedAt = time.Now()
	run.AppendStep(step)
	s.checkpoint(ctx, run)
}

// checkpoint persists intermediate progress. Failures are logged rather than
// returned; the terminal save in ExecuteRun is authoritative.
func (s *Service) checkpoint(ctx context.Context, run *Run) {
	if err := s.runs.Save(ctx, run); err != nil {
		s.logger.Error("failed to checkpoint run",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}
