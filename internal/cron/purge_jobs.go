package cron

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultNotificationRetentionDays = 30
	defaultOutboxRetentionDays       = 14
)

type readNotificationPurger interface {
	PurgeReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type publishedEventPurger interface {
	PurgePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// purgeJob deletes rows older than a retention window through a single repository call.
type purgeJob struct {
	name      string
	retention int
	purge     func(ctx context.Context, cutoff time.Time) (int64, error)
	now       func() time.Time
}

// NewNotificationCleanupJob drops notifications that were read more than retentionDays ago.
// Unread notifications are never removed.
func NewNotificationCleanupJob(repo readNotificationPurger, retentionDays int) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if retentionDays <= 0 {
		retentionDays = defaultNotificationRetentionDays
	}
	return &purgeJob{
		name:      "notification-cleanup",
		retention: retentionDays,
		purge:     repo.PurgeReadBefore,
		now:       time.Now,
	}, nil
}

// NewOutboxRetentionJob drops published outbox rows. Pending and failed rows stay.
func NewOutboxRetentionJob(repo publishedEventPurger, retentionDays int) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if retentionDays <= 0 {
		retentionDays = defaultOutboxRetentionDays
	}
	return &purgeJob{
		name:      "outbox-retention",
		retention: retentionDays,
		purge:     repo.PurgePublishedBefore,
		now:       time.Now,
	}, nil
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) cutoff() time.Time {
	return j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
}

func (j *purgeJob) Run(ctx context.Context) (Result, error) {
	rows, err := j.purge(ctx, j.cutoff())
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", j.name, err)
	}
	return Result{Purged: rows}, nil
}
