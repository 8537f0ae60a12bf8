package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kwehner/focalpoint/internal/api/response"
	"github.com/kwehner/focalpoint/internal/jobs"
	"github.com/kwehner/focalpoint/internal/store"
	"github.com/kwehner/focalpoint/pkg/models"
)

// JobService defines the interface the job handlers depend on.
type JobService interface {
	Submit(ctx context.Context, params jobs.SubmitParams) (*models.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/jobs.
func NewSubmitHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Filename  string `json:"filename"`
			AdvisorID string `json:"advisor_id"`
			Mode      string `json:"mode"`
			EnableRAG bool   `json:"enable_rag"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Filename == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "filename is required", nil)
			return
		}
		if req.AdvisorID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "advisor_id is required", nil)
			return
		}
		if req.Mode == "" {
			req.Mode = models.ModeDefault
		}
		if !models.ValidMode(req.Mode) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"mode must be one of default, rag, adapter", nil)
			return
		}

		job, err := svc.Submit(r.Context(), jobs.SubmitParams{
			Filename:  req.Filename,
			AdvisorID: req.AdvisorID,
			Mode:      req.Mode,
			EnableRAG: req.EnableRAG,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create job", nil)
			return
		}

		response.Accepted(w, submitResponse{
			ID:        job.ID,
			Status:    job.Status,
			CreatedAt: job.CreatedAt,
		})
	}
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// The response always reflects the last committed state in the store.
func NewStatusHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job id", nil)
			return
		}

		job, err := svc.Get(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to fetch job", nil)
			return
		}

		response.JSON(w, jobResponse{
			ID:           job.ID,
			Status:       job.Status,
			LLMThinking:  job.LLMThinking,
			Result:       job.Result,
			Error:        job.ErrorMessage,
			RetryCount:   job.RetryCount,
			CreatedAt:    job.CreatedAt,
			LastActivity: job.LastActivity,
		})
	}
}

type submitResponse struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type jobResponse struct {
	ID           uuid.UUID              `json:"id"`
	Status       string                 `json:"status"`
	LLMThinking  *string                `json:"llm_thinking"`
	Result       *models.AnalysisReport `json:"result"`
	Error        *string                `json:"error"`
	RetryCount   int                    `json:"retry_count"`
	CreatedAt    time.Time              `json:"created_at"`
	LastActivity time.Time              `json:"last_activity"`
}
