// Package store keeps a journal of processed documents. Only metadata is
// recorded: file names, counts per entity type and the artifact name, never
// detected values.
package store

import (
	"context"
	"time"
)

// Job statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job is one processed document.
type Job struct {
	ID           string         `json:"id"`
	FileName     string         `json:"file_name"`
	FileType     string         `json:"file_type"`
	Status       string         `json:"status"`
	FindingCount int            `json:"finding_count"`
	EntityCounts map[string]int `json:"entity_counts,omitempty"`
	MaskedFile   string         `json:"masked_file,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// JobStore defines the journal operations.
type JobStore interface {
	// SaveJob inserts the job or replaces the stored job with the same ID.
	SaveJob(ctx context.Context, job Job) error

	// GetJob returns the job with the given ID.
	GetJob(ctx context.Context, id string) (Job, bool, error)

	// ListJobs returns up to limit jobs, newest first.
	ListJobs(ctx context.Context, limit int) ([]Job, error)

	// CleanupOldJobs removes jobs created before now minus olderThan.
	CleanupOldJobs(ctx context.Context, olderThan time.Duration) (int64, error)

	Close() error
}
