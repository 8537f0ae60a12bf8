package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kwehner/focalpoint/internal/analyzer"
	"github.com/kwehner/focalpoint/internal/cache"
	"github.com/kwehner/focalpoint/internal/store"
	"github.com/kwehner/focalpoint/pkg/models"
)

// Worker is the single dispatcher: it claims the oldest eligible job, calls
// the analysis service, and commits the terminal outcome before touching the
// next job. There are never two in-flight jobs from one worker.
type Worker struct {
	store        store.Store
	cache        cache.Cache
	analyzer     analyzer.Client
	callbackBase string
	pollInterval time.Duration
}

// NewWorker creates a Worker. callbackBase is the externally reachable base
// URL for the progress-relay endpoint.
func NewWorker(st store.Store, ca cache.Cache, an analyzer.Client, callbackBase string, pollInterval time.Duration) *Worker {
	return &Worker{
		store:        st,
		cache:        ca,
		analyzer:     an,
		callbackBase: callbackBase,
		pollInterval: pollInterval,
	}
}

// Run drives the dispatch loop until ctx is cancelled. After each processed
// job it immediately checks for the next one; it only sleeps when the queue
// is empty.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("worker started", "poll_interval", w.pollInterval)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped")
			return
		case <-ticker.C:
			for w.dispatchOnce(ctx) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// dispatchOnce processes at most one job and reports whether it found one.
// Every path out of an acquired claim ends in a terminal commit or a logged
// store error; a job may not be left in analyzing by anything but a crash.
func (w *Worker) dispatchOnce(ctx context.Context) bool {
	job, err := w.store.NextEligibleJob(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	if err != nil {
		slog.Error("selecting next job", "error", err)
		return false
	}

	// Claim discipline: pending -> queued -> analyzing, each step guarded on
	// the stored status. A lost claim means the scanner or a prior cycle got
	// there first; move on without mutating anything.
	if job.Status == models.JobStatusPending {
		claimed, err := w.store.ClaimJob(ctx, job.ID, models.JobStatusPending, models.JobStatusQueued)
		if err != nil {
			slog.Error("claiming job", "job_id", job.ID, "error", err)
			return false
		}
		if !claimed {
			return true
		}
		_ = w.cache.SetJobStatus(ctx, job.ID, models.JobStatusQueued, statusCacheTTL)
	}

	claimed, err := w.store.ClaimJob(ctx, job.ID, models.JobStatusQueued, models.JobStatusAnalyzing)
	if err != nil {
		slog.Error("claiming job", "job_id", job.ID, "error", err)
		return false
	}
	if !claimed {
		return true
	}
	_ = w.cache.SetJobStatus(ctx, job.ID, models.JobStatusAnalyzing, statusCacheTTL)

	w.process(ctx, job)
	return true
}

// process performs the blocking analysis call and commits the outcome.
// The analyzer client enforces the timeout ceiling; this is the one place the
// dispatcher yields for the length of a whole job.
func (w *Worker) process(ctx context.Context, job *models.Job) {
	// A claimed job runs to its terminal commit. Shutdown cancels the run
	// context, not the in-flight call: the client timeout stays the only
	// bound, and a cancelled analysis must not be committed as failed —
	// if the process dies first, the scanner requeues the job instead.
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	slog.Info("dispatching job",
		"job_id", job.ID,
		"advisor_id", job.AdvisorID,
		"mode", job.Mode,
		"retry_count", job.RetryCount,
	)

	report, err := w.analyzer.Analyze(ctx, analyzer.Request{
		ImageReference: job.Filename,
		AdvisorID:      job.AdvisorID,
		Mode:           job.Mode,
		EnableRAG:      job.EnableRAG,
		CallbackURL:    fmt.Sprintf("%s/api/v1/jobs/%s/progress", w.callbackBase, job.ID),
	})
	if err != nil {
		w.commitFailure(ctx, job, err, time.Since(start))
		return
	}

	committed, err := w.store.CompleteJob(ctx, job.ID, report)
	if err != nil {
		// Store failure: nothing was written, the job is still analyzing.
		// The recovery scanner will requeue it once it goes stale.
		slog.Error("committing completion", "job_id", job.ID, "error", err)
		return
	}
	if !committed {
		slog.Warn("completion lost claim", "job_id", job.ID)
		return
	}

	_ = w.cache.SetJobStatus(ctx, job.ID, models.JobStatusCompleted, statusCacheTTL)
	slog.Info("job completed",
		"job_id", job.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (w *Worker) commitFailure(ctx context.Context, job *models.Job, cause error, elapsed time.Duration) {
	committed, err := w.store.FailJob(ctx, job.ID, cause.Error())
	if err != nil {
		slog.Error("committing failure", "job_id", job.ID, "cause", cause, "error", err)
		return
	}
	if !committed {
		slog.Warn("failure commit lost claim", "job_id", job.ID, "cause", cause)
		return
	}

	_ = w.cache.SetJobStatus(ctx, job.ID, models.JobStatusFailed, statusCacheTTL)
	slog.Error("job failed",
		"job_id", job.ID,
		"error", cause,
		"transient", analyzer.IsTransient(cause),
		"duration_ms", elapsed.Milliseconds(),
	)
}
