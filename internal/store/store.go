package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kwehner/focalpoint/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. All database operations go through here.
//
// Every job mutation is status-guarded: the conditional UPDATE is the single
// synchronization point between the worker, the recovery scanner, and the
// progress relay. Methods returning bool report whether the guard matched;
// false means another component moved the job first and nothing was written.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)

	// NextEligibleJob returns the oldest pending or queued job by created_at.
	// Returns ErrNotFound when the queue is empty.
	NextEligibleJob(ctx context.Context) (*models.Job, error)

	// ClaimJob transitions id from `from` to `to` and stamps last_activity,
	// only if the stored status still equals `from`.
	ClaimJob(ctx context.Context, id uuid.UUID, from, to string) (bool, error)

	// CompleteJob commits the terminal completed state with the report.
	// Succeeds only while the job is analyzing.
	CompleteJob(ctx context.Context, id uuid.UUID, result *models.AnalysisReport) (bool, error)

	// FailJob commits the terminal failed state with the error message and
	// increments retry_count. Succeeds only while the job is analyzing.
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) (bool, error)

	// UpdateThinking records a progress message and stamps last_activity.
	// Advisory only: succeeds only while the job is analyzing and never
	// touches status, result, or error.
	UpdateThinking(ctx context.Context, id uuid.UUID, message string) (bool, error)

	// ListRecoverable returns jobs in queued or analyzing with retry_count 0
	// whose last_activity is before cutoff, oldest submission first.
	ListRecoverable(ctx context.Context, cutoff time.Time) ([]*models.Job, error)

	// RecoverJob requeues a stalled job exactly once: back to queued with
	// retry_count incremented. Guarded on non-terminal status and
	// retry_count = 0, so a job is never auto-recovered twice and a job the
	// worker finished in the interim is left alone.
	RecoverJob(ctx context.Context, id uuid.UUID) (bool, error)

	// ListStalled returns non-terminal jobs that went stale again after the
	// one automatic recovery. These are alert material, never auto-healed.
	ListStalled(ctx context.Context, cutoff time.Time) ([]*models.Job, error)
}
