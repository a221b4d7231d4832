package demands

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/internal/notifications"
	product "github.com/angelmondragon/vendorcrm-backend/internal/products"
	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox"
)

var staff = auth.AdminPrincipal{UserID: uuid.New(), Role: enums.UserRoleAdmin}

type harness struct {
	conn    *gorm.DB
	svc     Service
	client  models.User
	product models.Product
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	notifier, err := notifications.NewService(notifications.NewRepository(conn), emitter)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), product.NewRepository(conn), db.Wrap(conn), emitter, notifier, logger.Nop())
	require.NoError(t, err)

	h := &harness{conn: conn, svc: svc}
	h.client = models.User{Username: "corner.store", DisplayName: "Corner Store", PasswordHash: "h", Role: enums.UserRoleClient, IsActive: true}
	require.NoError(t, conn.Create(&h.client).Error)
	h.product = models.Product{ItemNumber: "ITEM-1", Name: "Widget", IsVisible: true, IsActive: true}
	require.NoError(t, conn.Create(&h.product).Error)
	return h
}

func (h *harness) principal() auth.ClientPrincipal {
	return auth.ClientPrincipal{UserID: h.client.ID}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestCreateDemandByProductID(t *testing.T) {
	h := newHarness(t)
	notes := "  before friday "
	dto, err := h.svc.CreateDemand(context.Background(), h.principal(), CreateDemandInput{
		ProductID: &h.product.ID,
		Quantity:  4,
		Notes:     &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, "ITEM-1", dto.ItemNumber)
	assert.Equal(t, "Widget", dto.ProductName)
	assert.Equal(t, enums.DemandStatusPending, dto.Status)
	require.NotNil(t, dto.Notes)
	assert.Equal(t, "before friday", *dto.Notes)
	assert.Equal(t, int64(1), countEvents(t, h.conn, enums.EventDemandCreated))

	var list []models.Notification
	require.NoError(t, h.conn.Find(&list).Error)
	require.Len(t, list, 1)
	assert.Equal(t, enums.AudienceAdmins, list[0].Audience)
	assert.Equal(t, enums.NotificationDemandCreated, list[0].Type)
	assert.Contains(t, list[0].Message, "Corner Store")
}

func TestCreateDemandResolvesItemNumber(t *testing.T) {
	h := newHarness(t)
	dto, err := h.svc.CreateDemand(context.Background(), h.principal(), CreateDemandInput{ItemNumber: " ITEM-1 ", Quantity: 2})
	require.NoError(t, err)
	require.NotNil(t, dto.ProductID)
	assert.Equal(t, h.product.ID, *dto.ProductID)
	assert.Equal(t, "Widget", dto.ProductName)
}

func TestCreateDemandFreeTextItem(t *testing.T) {
	h := newHarness(t)
	dto, err := h.svc.CreateDemand(context.Background(), h.principal(), CreateDemandInput{ItemNumber: "NEW-9", Quantity: 1})
	require.NoError(t, err)
	assert.Nil(t, dto.ProductID)
	assert.Equal(t, "NEW-9", dto.ProductName)
}

func TestCreateDemandValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateDemand(ctx, h.principal(), CreateDemandInput{ItemNumber: "ITEM-1"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.CreateDemand(ctx, h.principal(), CreateDemandInput{Quantity: 1})
	requireCode(t, err, pkgerrors.CodeValidation)

	missing := uuid.New()
	_, err = h.svc.CreateDemand(ctx, h.principal(), CreateDemandInput{ProductID: &missing, Quantity: 1})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.CreateDemand(ctx, staff, CreateDemandInput{ItemNumber: "ITEM-1", Quantity: 1})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestListDemandsScoping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	other := models.User{Username: "other", DisplayName: "Other", PasswordHash: "h", Role: enums.UserRoleClient, IsActive: true}
	require.NoError(t, h.conn.Create(&other).Error)

	_, err := h.svc.CreateDemand(ctx, h.principal(), CreateDemandInput{ItemNumber: "ITEM-1", Quantity: 1})
	require.NoError(t, err)
	_, err = h.svc.CreateDemand(ctx, auth.ClientPrincipal{UserID: other.ID}, CreateDemandInput{ItemNumber: "ITEM-1", Quantity: 3})
	require.NoError(t, err)

	mine, err := h.svc.ListDemands(ctx, h.principal(), ListDemandsInput{})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, h.client.ID, mine.Items[0].ClientID)

	all, err := h.svc.ListDemands(ctx, staff, ListDemandsInput{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	_, err = h.svc.ListDemands(ctx, auth.VendorPrincipal{VendorID: uuid.New()}, ListDemandsInput{})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestUpdateStatusNotifiesClient(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.CreateDemand(ctx, h.principal(), CreateDemandInput{ItemNumber: "ITEM-1", Quantity: 1})
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(ctx, h.principal(), created.ID, enums.DemandStatusConfirmed)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = h.svc.UpdateStatus(ctx, staff, created.ID, enums.DemandStatusPending)
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = h.svc.UpdateStatus(ctx, staff, uuid.New(), enums.DemandStatusRejected)
	requireCode(t, err, pkgerrors.CodeNotFound)

	updated, err := h.svc.UpdateStatus(ctx, staff, created.ID, enums.DemandStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, enums.DemandStatusConfirmed, updated.Status)
	require.NotNil(t, updated.DecidedBy)
	assert.Equal(t, staff.UserID, *updated.DecidedBy)
	assert.NotNil(t, updated.DecidedAt)
	assert.Equal(t, int64(1), countEvents(t, h.conn, enums.EventDemandUpdated))

	var note models.Notification
	require.NoError(t, h.conn.Where("type = ?", enums.NotificationDemandUpdated).First(&note).Error)
	assert.Equal(t, enums.AudienceClient, note.Audience)
	require.NotNil(t, note.RecipientID)
	assert.Equal(t, h.client.ID, *note.RecipientID)

	confirmed := enums.DemandStatusConfirmed
	filtered, err := h.svc.ListDemands(ctx, staff, ListDemandsInput{Status: &confirmed})
	require.NoError(t, err)
	assert.Len(t, filtered.Items, 1)
}

func TestReportAggregatesPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, in := range []CreateDemandInput{
		{ItemNumber: "ITEM-1", Quantity: 2},
		{ItemNumber: "ITEM-1", Quantity: 5},
		{ItemNumber: "NEW-9", Quantity: 3},
	} {
		_, err := h.svc.CreateDemand(ctx, h.principal(), in)
		require.NoError(t, err)
	}
	rejected, err := h.svc.CreateDemand(ctx, h.principal(), CreateDemandInput{ItemNumber: "NEW-9", Quantity: 40})
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(ctx, staff, rejected.ID, enums.DemandStatusRejected)
	require.NoError(t, err)

	_, err = h.svc.Report(ctx, h.principal())
	requireCode(t, err, pkgerrors.CodeForbidden)

	report, err := h.svc.Report(ctx, staff)
	require.NoError(t, err)
	require.Len(t, report.Lines, 2)
	assert.Equal(t, "ITEM-1", report.Lines[0].ItemNumber)
	assert.Equal(t, 7, report.Lines[0].Quantity)
	assert.Equal(t, 2, report.Lines[0].Requests)
	assert.Equal(t, 3, report.Lines[1].Quantity)
	assert.Equal(t, 10, report.TotalQuantity)
	assert.Equal(t, int64(1), countEvents(t, h.conn, enums.EventDemandReport))
}
