package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryJobStore implements JobStore in process memory (fallback when no
// database is configured).
type InMemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
	now  func() time.Time
}

// NewInMemoryJobStore creates an empty in-memory journal.
func NewInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{
		jobs: make(map[string]Job),
		now:  time.Now,
	}
}

func (s *InMemoryJobStore) SaveJob(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *InMemoryJobStore) GetJob(ctx context.Context, id string) (Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false, nil
	}
	return cloneJob(job), true, nil
}

func (s *InMemoryJobStore) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	s.mu.RLock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, cloneJob(j))
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *InMemoryJobStore) CleanupOldJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, j := range s.jobs {
		if j.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op for in-memory storage
func (s *InMemoryJobStore) Close() error {
	return nil
}

func cloneJob(j Job) Job {
	if j.EntityCounts != nil {
		counts := make(map[string]int, len(j.EntityCounts))
		for k, v := range j.EntityCounts {
			counts[k] = v
		}
		j.EntityCounts = counts
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	return j
}
