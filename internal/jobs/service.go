// Package jobs is the orchestration engine: submission, status queries, the
// single-dispatcher worker loop, the stuck-job recovery scanner, and the
// inbound progress relay. All shared state lives in the store; every mutation
// goes through a status-guarded conditional update.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kwehner/focalpoint/internal/cache"
	"github.com/kwehner/focalpoint/internal/store"
	"github.com/kwehner/focalpoint/pkg/models"
)

// statusCacheTTL bounds how long the advisory status mirror outlives a job's
// last transition.
const statusCacheTTL = 30 * time.Minute

// SubmitParams holds validated parameters for a job submission.
type SubmitParams struct {
	Filename  string
	AdvisorID string
	Mode      string
	EnableRAG bool
}

// Service owns submission, status queries, and the progress relay.
type Service struct {
	store store.Store
	cache cache.Cache
}

// NewService creates a new job Service.
func NewService(st store.Store, ca cache.Cache) *Service {
	return &Service{store: st, cache: ca}
}

// Submit creates a job in pending and returns it immediately. The dispatcher
// picks it up on its next cycle; submission never blocks on analysis.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*models.Job, error) {
	if params.Filename == "" {
		return nil, fmt.Errorf("invalid submission: filename is required")
	}
	if params.AdvisorID == "" {
		return nil, fmt.Errorf("invalid submission: advisor_id is required")
	}
	if !models.ValidMode(params.Mode) {
		return nil, fmt.Errorf("invalid submission: unknown mode %q", params.Mode)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:           uuid.New(),
		Filename:     params.Filename,
		AdvisorID:    params.AdvisorID,
		Mode:         params.Mode,
		EnableRAG:    params.EnableRAG,
		Status:       models.JobStatusPending,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, statusCacheTTL)

	return job, nil
}

// Get returns the job's last committed state.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, id)
}

// Report is the inbound progress relay. It records the message and stamps
// last_activity only while the job is analyzing; anything else is
// acknowledged and ignored. Status, result, and error are never touched, so
// progress chatter cannot race the worker's terminal commit.
//
// The conditional update against the store is the sole authority here. The
// advisory mirror is deliberately not consulted: mirror writes are
// best-effort, and a stale entry must never cost a live job its progress
// messages or its last_activity stamps.
func (s *Service) Report(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	accepted, err := s.store.UpdateThinking(ctx, id, message)
	if err != nil {
		return false, fmt.Errorf("recording progress: %w", err)
	}
	return accepted, nil
}
