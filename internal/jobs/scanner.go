package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/kwehner/focalpoint/internal/cache"
	"github.com/kwehner/focalpoint/internal/store"
	"github.com/kwehner/focalpoint/pkg/models"
)

// Scanner is the stuck-job watchdog. On each cycle it requeues jobs whose
// last_activity is older than the staleness threshold, at most once per job
// (retry_count gates the edge). Jobs that stall again after recovery are
// surfaced as warnings, never auto-healed a second time.
type Scanner struct {
	store     store.Store
	cache     cache.Cache
	interval  time.Duration
	threshold time.Duration
}

// NewScanner creates a Scanner with the given scan interval and staleness
// threshold.
func NewScanner(st store.Store, ca cache.Cache, interval, threshold time.Duration) *Scanner {
	return &Scanner{store: st, cache: ca, interval: interval, threshold: threshold}
}

// Run drives the scan loop until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	slog.Info("recovery scanner started", "interval", s.interval, "threshold", s.threshold)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("recovery scanner stopped")
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

// scanOnce recovers every eligible stalled job and returns how many it
// requeued. Each recovery re-checks eligibility under the store's guard, so
// a job the worker finished between the list and the update is untouched.
func (s *Scanner) scanOnce(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-s.threshold)

	stalled, err := s.store.ListRecoverable(ctx, cutoff)
	if err != nil {
		slog.Error("listing recoverable jobs", "error", err)
		return 0
	}

	recovered := 0
	for _, job := range stalled {
		ok, err := s.store.RecoverJob(ctx, job.ID)
		if err != nil {
			slog.Error("recovering job", "job_id", job.ID, "error", err)
			continue
		}
		if !ok {
			// Worker completed or failed it between list and update.
			continue
		}

		recovered++
		_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusQueued, statusCacheTTL)
		slog.Warn("recovered stuck job",
			"job_id", job.ID,
			"prior_status", job.Status,
			"idle", time.Since(job.LastActivity).Round(time.Second).String(),
		)
	}

	s.alertStalled(ctx, cutoff)
	return recovered
}

// alertStalled logs the standing alert for jobs still stale after their one
// automatic recovery.
func (s *Scanner) alertStalled(ctx context.Context, cutoff time.Time) {
	stalled, err := s.store.ListStalled(ctx, cutoff)
	if err != nil {
		slog.Error("listing stalled jobs", "error", err)
		return
	}
	for _, job := range stalled {
		slog.Warn("job stalled after recovery, manual intervention required",
			"job_id", job.ID,
			"status", job.Status,
			"retry_count", job.RetryCount,
			"idle", time.Since(job.LastActivity).Round(time.Second).String(),
		)
	}
}
