package store

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryJobStore_SaveAndGet(t *testing.T) {
	s := NewInMemoryJobStore()
	ctx := context.Background()

	job := Job{
		ID:           "a",
		FileName:     "people.csv",
		FileType:     "csv",
		Status:       StatusRunning,
		EntityCounts: map[string]int{"EMAIL_ADDRESS": 2},
		CreatedAt:    time.Now(),
	}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// mutations of the caller's copy must not leak into the store
	job.EntityCounts["EMAIL_ADDRESS"] = 99

	got, ok, err := s.GetJob(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Expected job, got ok=%v err=%v", ok, err)
	}
	if got.EntityCounts["EMAIL_ADDRESS"] != 2 {
		t.Errorf("Expected 2, got %d", got.EntityCounts["EMAIL_ADDRESS"])
	}

	done := time.Now()
	got.Status = StatusCompleted
	got.CompletedAt = &done
	if err := s.SaveJob(ctx, got); err != nil {
		t.Fatal(err)
	}
	updated, _, _ := s.GetJob(ctx, "a")
	if updated.Status != StatusCompleted || updated.CompletedAt == nil {
		t.Errorf("Expected completed job, got %+v", updated)
	}

	if _, ok, _ := s.GetJob(ctx, "missing"); ok {
		t.Error("Expected missing job not to be found")
	}
}

func TestInMemoryJobStore_ListNewestFirst(t *testing.T) {
	s := NewInMemoryJobStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		_ = s.SaveJob(ctx, Job{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}

	jobs, err := s.ListJobs(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].ID != "new" || jobs[1].ID != "mid" {
		t.Errorf("Expected [new mid], got %+v", jobs)
	}

	all, _ := s.ListJobs(ctx, 0)
	if len(all) != 3 {
		t.Errorf("Expected 3 jobs, got %d", len(all))
	}
}

func TestInMemoryJobStore_Cleanup(t *testing.T) {
	s := NewInMemoryJobStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.SaveJob(ctx, Job{ID: "stale", CreatedAt: now.Add(-48 * time.Hour)})
	_ = s.SaveJob(ctx, Job{ID: "fresh", CreatedAt: now.Add(-time.Hour)})

	n, err := s.CleanupOldJobs(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected 1 removed, got %d", n)
	}
	if _, ok, _ := s.GetJob(ctx, "fresh"); !ok {
		t.Error("Expected fresh job to remain")
	}
}
