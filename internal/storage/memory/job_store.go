// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
)

// JobStore keeps crawl jobs in a map. Update applies its mutator under the
// store lock, which gives the same atomicity the Postgres store gets from a
// row lock.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]regwatch.CrawlJob
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]regwatch.CrawlJob)}
}

// Create stores a new job.
func (s *JobStore) Create(_ context.Context, job regwatch.CrawlJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return regwatch.ErrJobExists
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get fetches a job by ID.
func (s *JobStore) Get(_ context.Context, jobID string) (regwatch.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return regwatch.CrawlJob{}, regwatch.ErrNotFound
	}
	return cloneJob(job), nil
}

// List returns jobs newest-first, paginated with 1-based pages.
func (s *JobStore) List(_ context.Context, page, limit int) ([]regwatch.CrawlJob, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	s.mu.RLock()
	all := make([]regwatch.CrawlJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		all = append(all, cloneJob(job))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	start := (page - 1) * limit
	if start >= len(all) {
		return []regwatch.CrawlJob{}, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

// Update applies the mutator atomically. A mutator error aborts the update
// and is returned unchanged.
func (s *JobStore) Update(
	_ context.Context,
	jobID string,
	mutate func(*regwatch.CrawlJob) error,
) (regwatch.CrawlJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return regwatch.CrawlJob{}, regwatch.ErrNotFound
	}
	next := cloneJob(job)
	if err := mutate(&next); err != nil {
		return regwatch.CrawlJob{}, err
	}
	next.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = cloneJob(next)
	return next, nil
}

func cloneJob(job regwatch.CrawlJob) regwatch.CrawlJob {
	out := job
	if job.ErrorLog != nil {
		out.ErrorLog = make([]regwatch.JobError, len(job.ErrorLog))
		copy(out.ErrorLog, job.ErrorLog)
	}
	if job.Parameters.Years != nil {
		out.Parameters.Years = append([]int(nil), job.Parameters.Years...)
	}
	if job.Parameters.JenisIDs != nil {
		out.Parameters.JenisIDs = append([]int(nil), job.Parameters.JenisIDs...)
	}
	if job.StartedAt != nil {
		ts := *job.StartedAt
		out.StartedAt = &ts
	}
	if job.FinishedAt != nil {
		ts := *job.FinishedAt
		out.FinishedAt = &ts
	}
	return out
}
