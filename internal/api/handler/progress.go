package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kwehner/focalpoint/internal/api/response"
)

// ProgressReporter defines the interface the progress handler depends on.
type ProgressReporter interface {
	Report(ctx context.Context, id uuid.UUID, message string) (bool, error)
}

// NewProgressHandler returns an http.HandlerFunc for
// POST /api/v1/jobs/{jobID}/progress — the inbound relay the analysis service
// calls with interim status. A report for an absent or non-analyzing job is
// acknowledged without mutation; the caller has no business retrying it.
func NewProgressHandler(svc ProgressReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job id", nil)
			return
		}

		var req struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Message == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "message is required", nil)
			return
		}

		accepted, err := svc.Report(r.Context(), id, req.Message)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to record progress", nil)
			return
		}

		response.JSON(w, progressResponse{Accepted: accepted})
	}
}

type progressResponse struct {
	Accepted bool `json:"accepted"`
}
