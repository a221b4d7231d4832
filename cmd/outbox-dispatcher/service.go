package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/metrics"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultSinkTimeout = 5 * time.Second
	defaultMaxAttempts = 10
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

var (
	jitterMu     sync.Mutex
	jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForDispatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending(maxAttempts int) (int64, error)
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// deliveryGuard remembers which sinks already received an event so a retry
// only re-runs the sinks that failed.
type deliveryGuard interface {
	Claim(ctx context.Context, sink string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, sink string, eventID uuid.UUID) error
}

type ServiceParams struct {
	Config        config.OutboxConfig
	Logger        *logger.Logger
	DB            dbClient
	Repository    outboxRepository
	DLQRepository dlqRepository
	Registry      registryResolver
	Sinks         []sink
	Guard         deliveryGuard
	Metrics       *metrics.DispatcherMetrics
}

// Service drains outbox_events and fans each row out to its sinks.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	dlq          dlqRepository
	registry     registryResolver
	sinks        map[registry.Sink]sink
	guard        deliveryGuard
	metrics      *metrics.DispatcherMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	sinkTimeout  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.DLQRepository == nil {
		return nil, errors.New("dlq repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}

	sinks := make(map[registry.Sink]sink, len(params.Sinks))
	for _, s := range params.Sinks {
		if s != nil {
			sinks[s.Name()] = s
		}
	}
	if len(sinks) == 0 {
		return nil, errors.New("at least one sink is required")
	}

	cfg := params.Config
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := cfg.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	sinkTimeout := cfg.SinkTimeout
	if sinkTimeout <= 0 {
		sinkTimeout = defaultSinkTimeout
	}

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		dlq:          params.DLQRepository,
		registry:     params.Registry,
		sinks:        sinks,
		guard:        params.Guard,
		metrics:      params.Metrics,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
		sinkTimeout:  sinkTimeout,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox dispatcher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox dispatcher batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval
		if processed {
			continue
		}
		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	start := time.Now()
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForDispatch(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		processed = true
		for _, event := range events {
			if err := s.dispatchOne(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if processed {
		s.metrics.ObserveBatch(time.Since(start))
		if pending, countErr := s.repo.CountPending(s.maxAttempts); countErr == nil {
			s.metrics.SetPending(pending)
		}
	}
	return processed, err
}

// dispatchOne returns an error only when bookkeeping fails; delivery errors
// are recorded on the row.
func (s *Service) dispatchOne(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, nil)
	}

	fields := s.eventFields(event, resolved.Envelope)
	err = s.deliver(ctx, event, resolved)
	if err == nil {
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event dispatched")
		return nil
	}

	if allNonRetryable(err) {
		return s.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}

	nextAttempt := event.AttemptCount + 1
	fields["attempt_count"] = nextAttempt
	if nextAttempt >= s.maxAttempts {
		fields["terminal_reason"] = "max_attempts"
		terminalErr := fmt.Errorf("max dispatch attempts reached: %w", err)
		return s.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, terminalErr, fields)
	}

	ctxWithFields := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error())
	s.logg.Warn(ctxWithFields, "outbox dispatch failed")
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return nil
}

// deliver runs every configured sink for the event concurrently, each under
// its own timeout. Sinks that are not configured are skipped.
func (s *Service) deliver(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	targets := make([]sink, 0, len(resolved.Descriptor.Sinks))
	for _, name := range resolved.Descriptor.Sinks {
		if target, ok := s.sinks[name]; ok {
			targets = append(targets, target)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	errs := make([]error, len(targets))
	var g errgroup.Group
	for i, target := range targets {
		g.Go(func() error {
			name := string(target.Name())
			if s.alreadyDelivered(ctx, name, event.ID) {
				return nil
			}
			sinkCtx, cancel := context.WithTimeout(ctx, s.sinkTimeout)
			defer cancel()
			if err := target.Deliver(sinkCtx, event, resolved); err != nil {
				s.forgetDelivery(ctx, name, event.ID)
				s.metrics.IncFailed(name, string(event.EventType))
				errs[i] = fmt.Errorf("%s: %w", target.Name(), err)
				return nil
			}
			s.metrics.IncDelivered(name, string(event.EventType))
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

// alreadyDelivered claims the (sink, event) pair. Guard errors fall back to
// delivering again.
func (s *Service) alreadyDelivered(ctx context.Context, sinkName string, eventID uuid.UUID) bool {
	if s.guard == nil {
		return false
	}
	first, err := s.guard.Claim(ctx, sinkName, eventID)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"sink": sinkName, "outbox_id": eventID.String(), "error": err.Error()}), "outbox delivery guard unavailable")
		return false
	}
	return !first
}

func (s *Service) forgetDelivery(ctx context.Context, sinkName string, eventID uuid.UUID) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(ctx, sinkName, eventID); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"sink": sinkName, "outbox_id": eventID.String(), "error": err.Error()}), "outbox delivery guard release failed")
	}
}

func allNonRetryable(err error) bool {
	errs := multierr.Errors(err)
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		var nonRetry registry.NonRetryableError
		if !errors.As(e, &nonRetry) {
			return false
		}
	}
	return true
}

func (s *Service) handleTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, err error, fields map[string]any) error {
	if fields == nil {
		fields = s.eventFields(event, outbox.PayloadEnvelope{})
	}
	fields["error_reason"] = reason
	ctxWithFields := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error())
	s.logg.Warn(ctxWithFields, "outbox event will not be retried")

	msg := err.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if dlqErr := s.dlq.InsertTx(tx, entry); dlqErr != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, dlqErr)
	}
	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	s.metrics.IncDeadLettered(string(event.EventType), string(reason))
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitterMu.Lock()
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	jitterMu.Unlock()
	return d + jitter
}
