// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
)

// PoolConfig controls the Postgres connection pool.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// NewPool builds a pgx pool from config.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// JobStore persists crawl jobs in the crawl_jobs table. Update runs inside a
// transaction with a row lock, so concurrent mutators serialize and the
// running-state job lock is race-free.
type JobStore struct {
	pool dbPool
}

// NewJobStore creates a Postgres-backed JobStore.
func NewJobStore(ctx context.Context, cfg PoolConfig) (*JobStore, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &JobStore{pool: pool}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJobStoreWithPool(pool dbPool) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const jobColumns = `id, status, parameters, counters, error_log, created_at, updated_at, started_at, finished_at`

// Create inserts a new job row.
func (s *JobStore) Create(ctx context.Context, job regwatch.CrawlJob) error {
	params, counters, errLog, err := marshalJobFields(job)
	if err != nil {
		return err
	}
	query := `
INSERT INTO crawl_jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = s.pool.Exec(ctx, query,
		job.ID, string(job.Status), params, counters, errLog,
		job.CreatedAt, job.UpdatedAt, job.StartedAt, job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a job by ID.
func (s *JobStore) Get(ctx context.Context, jobID string) (regwatch.CrawlJob, error) {
	query := `SELECT ` + jobColumns + ` FROM crawl_jobs WHERE id = $1`
	job, err := scanJob(s.pool.QueryRow(ctx, query, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return regwatch.CrawlJob{}, regwatch.ErrNotFound
	}
	if err != nil {
		return regwatch.CrawlJob{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs newest-first, paginated with 1-based pages.
func (s *JobStore) List(ctx context.Context, page, limit int) ([]regwatch.CrawlJob, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	query := `
SELECT ` + jobColumns + `
FROM crawl_jobs
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`
	rows, err := s.pool.Query(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []regwatch.CrawlJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Update locks the row, applies the mutator, and writes the result back. A
// mutator error rolls back and is returned unchanged so callers can match
// sentinels like ErrJobRunning.
func (s *JobStore) Update(
	ctx context.Context,
	jobID string,
	mutate func(*regwatch.CrawlJob) error,
) (regwatch.CrawlJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return regwatch.CrawlJob{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + jobColumns + ` FROM crawl_jobs WHERE id = $1 FOR UPDATE`
	job, err := scanJob(tx.QueryRow(ctx, query, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return regwatch.CrawlJob{}, regwatch.ErrNotFound
	}
	if err != nil {
		return regwatch.CrawlJob{}, fmt.Errorf("lock job: %w", err)
	}

	if err := mutate(&job); err != nil {
		return regwatch.CrawlJob{}, err
	}
	job.UpdatedAt = time.Now().UTC()

	params, counters, errLog, err := marshalJobFields(job)
	if err != nil {
		return regwatch.CrawlJob{}, err
	}
	update := `
UPDATE crawl_jobs
SET status = $2, parameters = $3, counters = $4, error_log = $5,
    updated_at = $6, started_at = $7, finished_at = $8
WHERE id = $1`
	if _, err := tx.Exec(ctx, update,
		job.ID, string(job.Status), params, counters, errLog,
		job.UpdatedAt, job.StartedAt, job.FinishedAt,
	); err != nil {
		return regwatch.CrawlJob{}, fmt.Errorf("update job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return regwatch.CrawlJob{}, fmt.Errorf("commit update: %w", err)
	}
	return job, nil
}

func marshalJobFields(job regwatch.CrawlJob) (params, counters, errLog []byte, err error) {
	if params, err = json.Marshal(job.Parameters); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal parameters: %w", err)
	}
	if counters, err = json.Marshal(job.Counters); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal counters: %w", err)
	}
	log := job.ErrorLog
	if log == nil {
		log = []regwatch.JobError{}
	}
	if errLog, err = json.Marshal(log); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal error log: %w", err)
	}
	return params, counters, errLog, nil
}

func scanJob(row pgx.Row) (regwatch.CrawlJob, error) {
	var (
		job     regwatch.CrawlJob
		status  string
		params  []byte
		count   []byte
		errLog  []byte
		started *time.Time
		done    *time.Time
	)
	err := row.Scan(&job.ID, &status, &params, &count, &errLog,
		&job.CreatedAt, &job.UpdatedAt, &started, &done)
	if err != nil {
		return regwatch.CrawlJob{}, err
	}
	job.Status = regwatch.JobStatus(status)
	job.StartedAt = started
	job.FinishedAt = done
	if err := json.Unmarshal(params, &job.Parameters); err != nil {
		return regwatch.CrawlJob{}, fmt.Errorf("unmarshal parameters: %w", err)
	}
	if err := json.Unmarshal(count, &job.Counters); err != nil {
		return regwatch.CrawlJob{}, fmt.Errorf("unmarshal counters: %w", err)
	}
	if len(errLog) > 0 {
		if err := json.Unmarshal(errLog, &job.ErrorLog); err != nil {
			return regwatch.CrawlJob{}, fmt.Errorf("unmarshal error log: %w", err)
		}
	}
	if len(job.ErrorLog) == 0 {
		job.ErrorLog = nil
	}
	return job, nil
}
