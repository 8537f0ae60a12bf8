package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kwehner/focalpoint/internal/analyzer"
	"github.com/kwehner/focalpoint/internal/store"
	"github.com/kwehner/focalpoint/pkg/models"
)

// mockStore is an in-memory Store with the same status-guard semantics as the
// Postgres implementation, so claim races behave identically.
type mockStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.Job

	createErr   error
	completeErr error
	failErr     error
	thinkingErr error
}

func newMockStore() *mockStore {
	return &mockStore{jobs: make(map[uuid.UUID]*models.Job)}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) CreateJob(_ context.Context, job *models.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *mockStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *mockStore) NextEligibleJob(_ context.Context) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *models.Job
	for _, job := range s.jobs {
		if job.Status != models.JobStatusPending && job.Status != models.JobStatusQueued {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, store.ErrNotFound
	}
	cp := *oldest
	return &cp, nil
}

func (s *mockStore) ClaimJob(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != from {
		return false, nil
	}
	job.Status = to
	job.LastActivity = time.Now().UTC()
	return true, nil
}

func (s *mockStore) CompleteJob(_ context.Context, id uuid.UUID, result *models.AnalysisReport) (bool, error) {
	if s.completeErr != nil {
		return false, s.completeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusAnalyzing {
		return false, nil
	}
	job.Status = models.JobStatusCompleted
	job.Result = result
	job.LastActivity = time.Now().UTC()
	return true, nil
}

func (s *mockStore) FailJob(_ context.Context, id uuid.UUID, errMsg string) (bool, error) {
	if s.failErr != nil {
		return false, s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusAnalyzing {
		return false, nil
	}
	job.Status = models.JobStatusFailed
	job.ErrorMessage = &errMsg
	job.RetryCount++
	job.LastActivity = time.Now().UTC()
	return true, nil
}

func (s *mockStore) UpdateThinking(_ context.Context, id uuid.UUID, message string) (bool, error) {
	if s.thinkingErr != nil {
		return false, s.thinkingErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusAnalyzing {
		return false, nil
	}
	job.LLMThinking = &message
	job.LastActivity = time.Now().UTC()
	return true, nil
}

func (s *mockStore) ListRecoverable(_ context.Context, cutoff time.Time) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, job := range s.jobs {
		if (job.Status == models.JobStatusQueued || job.Status == models.JobStatusAnalyzing) &&
			job.RetryCount == 0 && job.LastActivity.Before(cutoff) {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *mockStore) RecoverJob(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.RetryCount != 0 ||
		(job.Status != models.JobStatusQueued && job.Status != models.JobStatusAnalyzing) {
		return false, nil
	}
	job.Status = models.JobStatusQueued
	job.RetryCount++
	job.LastActivity = time.Now().UTC()
	return true, nil
}

func (s *mockStore) ListStalled(_ context.Context, cutoff time.Time) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, job := range s.jobs {
		if (job.Status == models.JobStatusQueued || job.Status == models.JobStatusAnalyzing) &&
			job.RetryCount > 0 && job.LastActivity.Before(cutoff) {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

// seed inserts a job directly, bypassing Submit.
func (s *mockStore) seed(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
}

func (s *mockStore) status(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id].Status
}

var _ store.Store = (*mockStore)(nil)

// --- cache mock ---

type mockCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
}

func newMockCache() *mockCache {
	return &mockCache{statuses: make(map[uuid.UUID]string)}
}

func (c *mockCache) Ping(_ context.Context) error { return nil }

func (c *mockCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID] = status
	return nil
}

func (c *mockCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID]
	return s, ok, nil
}

func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

// --- analyzer mock ---

type mockAnalyzer struct {
	mu       sync.Mutex
	requests []analyzer.Request
	fn       func(ctx context.Context, req analyzer.Request) (*models.AnalysisReport, error)
}

func (a *mockAnalyzer) Analyze(ctx context.Context, req analyzer.Request) (*models.AnalysisReport, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	if a.fn != nil {
		return a.fn(ctx, req)
	}
	return &models.AnalysisReport{
		Advisor:  req.AdvisorID,
		Mode:     req.Mode,
		Critique: "Strong leading lines, slightly underexposed foreground",
		Score:    0.8,
		Model:    "critic-v2",
	}, nil
}

var _ analyzer.Client = (*mockAnalyzer)(nil)
