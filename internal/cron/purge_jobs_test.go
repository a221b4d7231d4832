package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePurger struct {
	cutoff time.Time
	rows   int64
	err    error
	calls  int
}

func (f *fakePurger) purge(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.rows, f.err
}

func (f *fakePurger) PurgeReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return f.purge(ctx, cutoff)
}

func (f *fakePurger) PurgePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return f.purge(ctx, cutoff)
}

func TestNotificationCleanupJobUsesRetentionWindow(t *testing.T) {
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	repo := &fakePurger{rows: 42}
	job, err := NewNotificationCleanupJob(repo, 0)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.(*purgeJob).now = func() time.Time { return now }

	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := now.Add(-defaultNotificationRetentionDays * 24 * time.Hour)
	if !repo.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.cutoff)
	}
	if result.Purged != 42 || repo.calls != 1 {
		t.Fatalf("unexpected result %+v calls=%d", result, repo.calls)
	}
	if job.Name() != "notification-cleanup" {
		t.Fatalf("unexpected name %q", job.Name())
	}
}

func TestOutboxRetentionJobCustomRetention(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	repo := &fakePurger{rows: 7}
	job, err := NewOutboxRetentionJob(repo, 3)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.(*purgeJob).now = func() time.Time { return now }

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := now.Add(-72 * time.Hour); !repo.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.cutoff)
	}
}

func TestPurgeJobWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	job, err := NewOutboxRetentionJob(&fakePurger{err: boom}, 1)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if _, err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestPurgeJobsRequireRepository(t *testing.T) {
	if _, err := NewNotificationCleanupJob(nil, 1); err == nil {
		t.Fatal("expected error for nil notifications repo")
	}
	if _, err := NewOutboxRetentionJob(nil, 1); err == nil {
		t.Fatal("expected error for nil outbox repo")
	}
}
