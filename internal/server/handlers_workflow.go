package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mirovado/firefly-gateway/internal/workflow"
)

// CreateWorkflowRun handles POST /workflows/product-shot requests. The run
// is recorded first, then executed in the background with a detached context
// so it survives the request ending.
func (h *Handlers) CreateWorkflowRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	bucket := req.Bucket
	if bucket == "" {
		bucket = h.bucket
	}

	run, err := h.deps.Workflows.CreateRun(r.Context(), workflow.ProductShotRequest{
		Bucket:            bucket,
		ProductKey:        req.ProductKey,
		OutputKey:         req.OutputKey,
		Prompt:            req.Prompt,
		StyleReferenceURL: req.StyleReferenceURL,
	})
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
		h.logger.Error("failed to create run",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create run", "RUN_CREATION_FAILED")
		return
	}

	if h.asyncWorkflows {
		go func(ctx context.Context, runID string) {
			if _, execErr := h.deps.Workflows.ExecuteRun(ctx, runID); execErr != nil {
				h.logger.Error("background run execution failed",
					slog.String("run_id", runID),
					slog.String("error", execErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), run.ID)
	}

	h.logger.Info("product shot run created",
		slog.String("run_id", run.ID),
		slog.String("bucket", bucket),
		slog.String("product_key", req.ProductKey),
	)

	writeJSON(w, http.StatusAccepted, runResponse(run))
}

// GetWorkflowRun handles GET /workflows/{id} requests.
func (h *Handlers) GetWorkflowRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run ID is required", "MISSING_RUN_ID")
		return
	}

	run, err := h.deps.Workflows.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, workflow.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found", "RUN_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get run", "RUN_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, runResponse(run))
}

// ListWorkflowRuns handles GET /workflows requests.
func (h *Handlers) ListWorkflowRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.deps.Workflows.ListRuns(r.Context())
	if err != nil {
		h.logger.Error("failed to list runs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list runs", "RUN_LIST_FAILED")
		return
	}

	responses := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		responses = append(responses, runResponse(run))
	}

	writeJSON(w, http.StatusOK, responses)
}

// runResponse converts a run into its response shape.
func runResponse(run *workflow.Run) RunResponse {
	steps := make([]StepResponse, 0, len(run.Steps))
	for _, step := range run.Steps {
		steps = append(steps, StepResponse{
			Name:        step.Name,
			JobID:       step.JobID,
			Status:      step.Status,
			Attempts:    step.Attempts,
			Error:       step.Error,
			StartedAt:   step.StartedAt,
			CompletedAt: step.CompletedAt,
		})
	}

	return RunResponse{
		ID:                run.ID,
		Status:            string(run.Status),
		Error:             run.Error,
		Bucket:            run.Bucket,
		ProductKey:        run.ProductKey,
		OutputKey:         run.OutputKey,
		Prompt:            run.Prompt,
		StyleReferenceURL: run.StyleReferenceURL,
		ResultURL:         run.ResultURL,
		Steps:             steps,
		CreatedAt:         run.CreatedAt,
		UpdatedAt:         run.UpdatedAt,
		StartedAt:         run.StartedAt,
		CompletedAt:       run.CompletedAt,
	}
}
