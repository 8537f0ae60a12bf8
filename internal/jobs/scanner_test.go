package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/kwehner/focalpoint/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(st *mockStore) *Scanner {
	return NewScanner(st, newMockCache(), time.Minute, 5*time.Minute)
}

func staleJob(status string, idle time.Duration) *models.Job {
	job := analyzingJob()
	job.Status = status
	job.CreatedAt = time.Now().UTC().Add(-idle - time.Minute)
	job.LastActivity = time.Now().UTC().Add(-idle)
	return job
}

func TestScanner_RequeuesStaleJobOnce(t *testing.T) {
	st := newMockStore()
	sc := newTestScanner(st)

	job := staleJob(models.JobStatusAnalyzing, 10*time.Minute)
	st.seed(job)

	assert.Equal(t, 1, sc.scanOnce(context.Background()))

	stored, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)

	// Second scan with no fresh activity: still queued, retry_count unchanged.
	st.mu.Lock()
	st.jobs[job.ID].LastActivity = time.Now().UTC().Add(-10 * time.Minute)
	st.mu.Unlock()

	assert.Equal(t, 0, sc.scanOnce(context.Background()))

	stored, err = st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
}

func TestScanner_IgnoresFreshJobs(t *testing.T) {
	st := newMockStore()
	sc := newTestScanner(st)

	st.seed(staleJob(models.JobStatusAnalyzing, time.Minute))

	assert.Equal(t, 0, sc.scanOnce(context.Background()))
}

func TestScanner_IgnoresTerminalJobs(t *testing.T) {
	st := newMockStore()
	sc := newTestScanner(st)

	done := staleJob(models.JobStatusCompleted, time.Hour)
	failed := staleJob(models.JobStatusFailed, time.Hour)
	st.seed(done)
	st.seed(failed)

	assert.Equal(t, 0, sc.scanOnce(context.Background()))
	assert.Equal(t, models.JobStatusCompleted, st.status(done.ID))
	assert.Equal(t, models.JobStatusFailed, st.status(failed.ID))
}

func TestScanner_IgnoresAlreadyRetriedJobs(t *testing.T) {
	st := newMockStore()
	sc := newTestScanner(st)

	job := staleJob(models.JobStatusQueued, time.Hour)
	job.RetryCount = 1
	st.seed(job)

	assert.Equal(t, 0, sc.scanOnce(context.Background()))
	assert.Equal(t, 1, st.jobs[job.ID].RetryCount)
}

func TestScanner_LosesRaceToWorkerCompletion(t *testing.T) {
	st := newMockStore()
	sc := newTestScanner(st)

	job := staleJob(models.JobStatusAnalyzing, 10*time.Minute)
	st.seed(job)

	// Worker commits between the scanner's list and its guarded update.
	committed, err := st.CompleteJob(context.Background(), job.ID, &models.AnalysisReport{
		Advisor: "ansel", Mode: models.ModeRAG, Critique: "done",
	})
	require.NoError(t, err)
	require.True(t, committed)

	assert.Equal(t, 0, sc.scanOnce(context.Background()))
	assert.Equal(t, models.JobStatusCompleted, st.status(job.ID))
}

func TestScanner_RecoveredJobKeepsSubmissionOrder(t *testing.T) {
	st := newMockStore()
	sc := newTestScanner(st)
	an := &mockAnalyzer{}
	w := newTestWorker(st, an)

	recovered := staleJob(models.JobStatusAnalyzing, 10*time.Minute)
	recovered.Filename = "old.jpg"
	st.seed(recovered)

	fresh := analyzingJob()
	fresh.Filename = "new.jpg"
	fresh.Status = models.JobStatusPending
	st.seed(fresh)

	require.Equal(t, 1, sc.scanOnce(context.Background()))

	// The recovered job competes by its original created_at and goes first.
	for w.dispatchOnce(context.Background()) {
	}
	require.Len(t, an.requests, 2)
	assert.Equal(t, "old.jpg", an.requests[0].ImageReference)
	assert.Equal(t, "new.jpg", an.requests[1].ImageReference)
}
