package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kwehner/focalpoint/pkg/models"
)

const jobColumns = `id, filename, advisor_id, mode, enable_rag, status, retry_count,
	llm_thinking, result, error_message, created_at, last_activity`

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, filename, advisor_id, mode, enable_rag, status, retry_count, created_at, last_activity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.Filename, job.AdvisorID, job.Mode, job.EnableRAG,
		job.Status, job.RetryCount, job.CreatedAt, job.LastActivity)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) NextEligibleJob(ctx context.Context) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status IN ($1, $2)
		 ORDER BY created_at ASC
		 LIMIT 1`,
		models.JobStatusPending, models.JobStatusQueued)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("next eligible job: %w", err)
	}
	return job, nil
}

// ClaimJob is the mutual-exclusion primitive: a single conditional UPDATE that
// succeeds for at most one caller when worker and scanner race on the same job.
func (s *PostgresStore) ClaimJob(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $3, last_activity = NOW()
		 WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, fmt.Errorf("claim job %s -> %s: %w", from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, result *models.AnalysisReport) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, result = $3, last_activity = NOW()
		 WHERE id = $1 AND status = $4`,
		id, models.JobStatusCompleted, result, models.JobStatusAnalyzing)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, errMsg string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, error_message = $3,
		        retry_count = retry_count + 1, last_activity = NOW()
		 WHERE id = $1 AND status = $4`,
		id, models.JobStatusFailed, errMsg, models.JobStatusAnalyzing)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) UpdateThinking(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET llm_thinking = $2, last_activity = NOW()
		 WHERE id = $1 AND status = $3`,
		id, message, models.JobStatusAnalyzing)
	if err != nil {
		return false, fmt.Errorf("update thinking: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListRecoverable(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status IN ($1, $2) AND retry_count = 0 AND last_activity < $3
		 ORDER BY created_at ASC`,
		models.JobStatusQueued, models.JobStatusAnalyzing, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list recoverable jobs: %w", err)
	}
	return collectJobs(rows)
}

func (s *PostgresStore) RecoverJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, retry_count = retry_count + 1, last_activity = NOW()
		 WHERE id = $1 AND status IN ($3, $4) AND retry_count = 0`,
		id, models.JobStatusQueued, models.JobStatusQueued, models.JobStatusAnalyzing)
	if err != nil {
		return false, fmt.Errorf("recover job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListStalled(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status IN ($1, $2) AND retry_count > 0 AND last_activity < $3
		 ORDER BY created_at ASC`,
		models.JobStatusQueued, models.JobStatusAnalyzing, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stalled jobs: %w", err)
	}
	return collectJobs(rows)
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.Filename, &j.AdvisorID, &j.Mode, &j.EnableRAG,
		&j.Status, &j.RetryCount, &j.LLMThinking, &j.Result, &j.ErrorMessage,
		&j.CreatedAt, &j.LastActivity)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]*models.Job, error) {
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
