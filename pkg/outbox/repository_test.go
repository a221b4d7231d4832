package outbox_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox"
)

type orderPayload struct {
	OrderNumber string `json:"orderNumber"`
}

func TestEmitAndDispatchLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := outbox.NewRepository(db)
	svc := outbox.NewService(repo, logger.Nop())
	ctx := context.Background()
	aggregateID := uuid.New()
	actorID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   aggregateID,
			Actor:         &outbox.ActorRef{Kind: enums.PrincipalAdmin, ID: actorID},
			Data:          orderPayload{OrderNumber: "ORD-1"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var fetchErr error
		rows, fetchErr = repo.FetchUnpublishedForDispatch(tx, 10, 3)
		return fetchErr
	}))
	require.Len(t, rows, 1)
	assert.Equal(t, aggregateID, rows[0].AggregateID)
	assert.Contains(t, string(rows[0].Payload), `"orderNumber":"ORD-1"`)
	assert.Contains(t, string(rows[0].Payload), actorID.String())

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.MarkFailedTx(tx, rows[0].ID, errors.New("sink down"))
	}))
	pending, err := repo.CountPending(3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.MarkPublishedTx(tx, rows[0].ID)
	}))
	pending, err = repo.CountPending(3)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending)
}

func TestEmitRequiresTransactionAndKnownType(t *testing.T) {
	db := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(db), nil)

	err := svc.Emit(context.Background(), nil, outbox.DomainEvent{EventType: enums.EventOrderCreated})
	require.Error(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{EventType: "orders:exploded"})
	})
	require.Error(t, err)
}

func TestTerminalRowsAreNotRefetched(t *testing.T) {
	db := dbtest.Open(t)
	repo := outbox.NewRepository(db)
	dlq := outbox.NewDLQRepository(db)
	svc := outbox.NewService(repo, nil)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventDemandReport,
			AggregateType: enums.AggregateDemand,
			AggregateID:   uuid.New(),
			Data:          map[string]int{"pending": 2},
		})
	}))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)

	msg := "whatsapp rejected"
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       row.ID,
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			Payload:       row.Payload,
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &msg,
		}); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, row.ID, errors.New(msg), 3)
	}))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForDispatch(tx, 10, 3)
		require.Empty(t, rows)
		return err
	}))

	entry, err := dlq.FindByEventID(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestActorFromNilPrincipal(t *testing.T) {
	assert.Nil(t, outbox.ActorFrom(nil))
}

func deadLetter(t *testing.T, db *gorm.DB, svc *outbox.Service, repo *outbox.Repository, dlq *outbox.DLQRepository) models.OutboxEvent {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderUpdated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          orderPayload{OrderNumber: "ORD-9"},
		})
	}))
	var row models.OutboxEvent
	require.NoError(t, db.Where("attempt_count = 0").First(&row).Error)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       row.ID,
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			Payload:       row.Payload,
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		}); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, row.ID, errors.New("sink down"), 3)
	}))
	return row
}

func TestRequeueDeadLetter(t *testing.T) {
	db := dbtest.Open(t)
	repo := outbox.NewRepository(db)
	dlq := outbox.NewDLQRepository(db)
	svc := outbox.NewService(repo, nil)
	ctx := context.Background()

	row := deadLetter(t, db, svc, repo, dlq)
	listed, err := dlq.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, dlq.Requeue(ctx, row.ID))

	pending, err := repo.CountPending(3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	var reloaded models.OutboxEvent
	require.NoError(t, db.First(&reloaded, "id = ?", row.ID).Error)
	assert.Zero(t, reloaded.AttemptCount)
	assert.Nil(t, reloaded.LastError)

	entry, err := dlq.FindByEventID(ctx, row.ID)
	require.NoError(t, err)
	assert.Nil(t, entry)

	err = dlq.Requeue(ctx, row.ID)
	assert.ErrorIs(t, err, outbox.ErrNotDeadLettered)
}

func TestRequeueAll(t *testing.T) {
	db := dbtest.Open(t)
	repo := outbox.NewRepository(db)
	dlq := outbox.NewDLQRepository(db)
	svc := outbox.NewService(repo, nil)

	deadLetter(t, db, svc, repo, dlq)
	deadLetter(t, db, svc, repo, dlq)

	moved, err := dlq.RequeueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	pending, err := repo.CountPending(3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)
}

func TestEmitRejectsMissingAggregate(t *testing.T) {
	db := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
		})
	})
	require.ErrorContains(t, err, "aggregate id is required")

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: "invoice",
			AggregateID:   uuid.New(),
		})
	})
	require.ErrorContains(t, err, "unknown aggregate type")
}
