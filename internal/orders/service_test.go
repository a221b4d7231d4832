package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/internal/notifications"
	product "github.com/angelmondragon/vendorcrm-backend/internal/products"
	"github.com/angelmondragon/vendorcrm-backend/internal/stock"
	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox"
)

var admin = auth.AdminPrincipal{UserID: uuid.New(), Role: enums.UserRoleAdmin}

type harness struct {
	conn    *gorm.DB
	svc     Service
	vendor  models.Vendor
	product models.Product
}

func newHarness(t *testing.T, stockLevel int) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	dbClient := db.Wrap(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	notifier, err := notifications.NewService(notifications.NewRepository(conn), emitter)
	require.NoError(t, err)
	catalog, err := product.NewService(product.NewRepository(conn), dbClient, emitter, notifier, logger.Nop())
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), dbClient, emitter, stock.NewReconciler(logger.Nop()), catalog, notifier, logger.Nop())
	require.NoError(t, err)

	h := &harness{conn: conn, svc: svc}
	h.vendor = models.Vendor{Name: "Acme", Username: "acme.k3x9", PasswordHash: "h", Status: enums.VendorStatusActive, IsActive: true}
	require.NoError(t, conn.Create(&h.vendor).Error)
	h.product = models.Product{ItemNumber: "ITEM-1", Name: "Widget", Stock: stockLevel, IsVisible: true, IsActive: true}
	require.NoError(t, conn.Create(&h.product).Error)
	return h
}

func (h *harness) vendorPrincipal() auth.VendorPrincipal {
	return auth.VendorPrincipal{VendorID: h.vendor.ID}
}

func (h *harness) stock(t *testing.T) int {
	t.Helper()
	var p models.Product
	require.NoError(t, h.conn.First(&p, "id = ?", h.product.ID).Error)
	return p.Stock
}

func (h *harness) purchases(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.ProductPurchase{}).Count(&count).Error)
	return count
}

func (h *harness) supplyOrder(t *testing.T, quantity int) *OrderDTO {
	t.Helper()
	vendorID := h.vendor.ID
	dto, err := h.svc.CreateOrder(context.Background(), admin, CreateOrderInput{
		VendorID: &vendorID,
		Items:    []CreateItemInput{{ProductID: &h.product.ID, Quantity: quantity}},
	})
	require.NoError(t, err)
	return dto
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func statusPtr(s enums.OrderStatus) *enums.OrderStatus { return &s }

func TestCreateOrderAdminSupply(t *testing.T) {
	h := newHarness(t, 10)
	dto := h.supplyOrder(t, 5)

	assert.Regexp(t, orderNumberPattern, dto.OrderNumber)
	assert.Equal(t, enums.OrderFlowSupply, dto.Flow)
	assert.Equal(t, enums.OrderStatusPending, dto.Status)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, "ITEM-1", dto.Items[0].ItemNumber)
	assert.Equal(t, 10, h.stock(t))

	var events int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCreated).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	var notes []models.Notification
	require.NoError(t, h.conn.Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, enums.AudienceVendor, notes[0].Audience)
}

func TestCreateOrderRequiresVendorForAdmin(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.svc.CreateOrder(context.Background(), admin, CreateOrderInput{
		Items: []CreateItemInput{{ProductID: &h.product.ID, Quantity: 1}},
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateOrderRejectsInactiveVendor(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.conn.Model(&h.vendor).Update("status", enums.VendorStatusInactive).Error)
	vendorID := h.vendor.ID
	_, err := h.svc.CreateOrder(context.Background(), admin, CreateOrderInput{
		VendorID: &vendorID,
		Items:    []CreateItemInput{{ProductID: &h.product.ID, Quantity: 1}},
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateOrderVendorCannotActForAnotherVendor(t *testing.T) {
	h := newHarness(t, 0)
	other := uuid.New()
	_, err := h.svc.CreateOrder(context.Background(), h.vendorPrincipal(), CreateOrderInput{
		VendorID: &other,
		Items:    []CreateItemInput{{ProductID: &h.product.ID, Quantity: 1}},
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestCreateOrderDuplicateNumber(t *testing.T) {
	h := newHarness(t, 0)
	vendorID := h.vendor.ID
	input := CreateOrderInput{
		OrderNumber: "PO-1",
		VendorID:    &vendorID,
		Items:       []CreateItemInput{{ProductID: &h.product.ID, Quantity: 1}},
	}
	_, err := h.svc.CreateOrder(context.Background(), admin, input)
	require.NoError(t, err)
	_, err = h.svc.CreateOrder(context.Background(), admin, input)
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestCreateOrderByItemNumberCreatesPlaceholder(t *testing.T) {
	h := newHarness(t, 0)
	client := auth.ClientPrincipal{UserID: uuid.New()}
	dto, err := h.svc.CreateOrder(context.Background(), client, CreateOrderInput{
		Items: []CreateItemInput{
			{ItemNumber: "ITEM-1", Quantity: 1},
			{ItemNumber: "NEW-9", ProductName: "Gadget", Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderFlowFulfillment, dto.Flow)
	require.Len(t, dto.Items, 2)
	assert.Equal(t, h.product.ID, dto.Items[0].ProductID)

	var placeholder models.Product
	require.NoError(t, h.conn.First(&placeholder, "item_number = ?", "NEW-9").Error)
	assert.False(t, placeholder.IsVisible)
	assert.Equal(t, placeholder.ID, dto.Items[1].ProductID)
}

func TestConfirmSupplyThenRevert(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	order := h.supplyOrder(t, 5)

	confirmed, err := h.svc.UpdateOrder(ctx, admin, order.ID, UpdateOrderInput{Status: statusPtr(enums.OrderStatusConfirmed)})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, confirmed.Status)
	assert.Equal(t, 15, h.stock(t))
	assert.Equal(t, int64(1), h.purchases(t))

	_, err = h.svc.UpdateOrder(ctx, admin, order.ID, UpdateOrderInput{Status: statusPtr(enums.OrderStatusConfirmed)})
	require.NoError(t, err)
	assert.Equal(t, 15, h.stock(t), "reconfirming must not move stock twice")

	_, err = h.svc.UpdateOrder(ctx, admin, order.ID, UpdateOrderInput{Status: statusPtr(enums.OrderStatusPending)})
	require.NoError(t, err)
	assert.Equal(t, 10, h.stock(t))
	assert.Equal(t, int64(0), h.purchases(t))
}

func TestConfirmFulfillmentDecrementsStock(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	client := auth.ClientPrincipal{UserID: uuid.New()}
	order, err := h.svc.CreateOrder(ctx, client, CreateOrderInput{
		Items: []CreateItemInput{{ProductID: &h.product.ID, Quantity: 5}},
	})
	require.NoError(t, err)

	_, err = h.svc.ConfirmItem(ctx, admin, order.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, h.stock(t))
}

func TestConcurrentConfirmMovesStockOnce(t *testing.T) {
	h := newHarness(t, 10)
	order := h.supplyOrder(t, 5)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.svc.ConfirmItem(context.Background(), admin, order.ID, 0)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	require.Positive(t, succeeded, "every confirm failed: %v", errs)
	assert.Equal(t, 15, h.stock(t))
	assert.Equal(t, int64(1), h.purchases(t))
}

func TestConfirmItemBesideCancelledSibling(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	vendorID := h.vendor.ID
	order, err := h.svc.CreateOrder(ctx, admin, CreateOrderInput{
		VendorID: &vendorID,
		Items: []CreateItemInput{
			{ProductID: &h.product.ID, Quantity: 5},
			{ProductID: &h.product.ID, Quantity: 3},
		},
	})
	require.NoError(t, err)

	sibling := 1
	cancelled, err := h.svc.UpdateOrder(ctx, admin, order.ID, UpdateOrderInput{
		ItemIndex: &sibling,
		Item:      &ItemPatch{Status: statusPtr(enums.OrderStatusCancelled)},
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)

	confirmed, err := h.svc.ConfirmItem(ctx, admin, order.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, confirmed.Items[0].Status)
	assert.Equal(t, 15, h.stock(t))
	assert.Equal(t, int64(1), h.purchases(t))

	var purchase models.ProductPurchase
	require.NoError(t, h.conn.First(&purchase).Error)
	assert.Equal(t, confirmed.Items[0].ID, purchase.OrderItemID)
	assert.Equal(t, 5, purchase.Quantity)
}

func TestQuantityChangeWhileConfirmedReapplies(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	order := h.supplyOrder(t, 5)
	_, err := h.svc.ConfirmItem(ctx, admin, order.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 15, h.stock(t))

	index := 0
	qty := 8
	_, err = h.svc.UpdateOrder(ctx, admin, order.ID, UpdateOrderInput{ItemIndex: &index, Item: &ItemPatch{Quantity: &qty}})
	require.NoError(t, err)
	assert.Equal(t, 18, h.stock(t))
	assert.Equal(t, int64(1), h.purchases(t))
}

func TestUpdateRejectsItemsWithItemIndex(t *testing.T) {
	h := newHarness(t, 0)
	order := h.supplyOrder(t, 1)
	index := 0
	_, err := h.svc.UpdateOrder(context.Background(), admin, order.ID, UpdateOrderInput{
		ItemIndex: &index,
		Item:      &ItemPatch{},
		Items:     []ItemInput{{ID: &order.Items[0].ID}},
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateOwnershipAndClientLimits(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	order := h.supplyOrder(t, 1)

	stranger := auth.VendorPrincipal{VendorID: uuid.New()}
	_, err := h.svc.GetOrder(ctx, stranger, order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.svc.GetOrder(ctx, h.vendorPrincipal(), order.ID)
	require.NoError(t, err)

	client := auth.ClientPrincipal{UserID: uuid.New()}
	own, err := h.svc.CreateOrder(ctx, client, CreateOrderInput{Items: []CreateItemInput{{ProductID: &h.product.ID, Quantity: 1}}})
	require.NoError(t, err)

	_, err = h.svc.UpdateOrder(ctx, client, own.ID, UpdateOrderInput{Status: statusPtr(enums.OrderStatusConfirmed)})
	requireCode(t, err, pkgerrors.CodeForbidden)

	cancelled, err := h.svc.UpdateOrder(ctx, client, own.ID, UpdateOrderInput{Status: statusPtr(enums.OrderStatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Items[0].Status)
}

func TestPriceApprovalIsAdminOnly(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	order := h.supplyOrder(t, 2)
	index := 0
	approved := enums.PriceApprovalApproved

	_, err := h.svc.UpdateOrder(ctx, h.vendorPrincipal(), order.ID, UpdateOrderInput{
		ItemIndex: &index,
		Item:      &ItemPatch{PriceApprovalStatus: &approved},
	})
	requireCode(t, err, pkgerrors.CodeForbidden)

	price := decimal.RequireFromString("4.25")
	updated, err := h.svc.UpdateOrder(ctx, admin, order.ID, UpdateOrderInput{
		ItemIndex: &index,
		Item:      &ItemPatch{PriceApprovalStatus: &approved, UnitPrice: &price},
	})
	require.NoError(t, err)
	item := updated.Items[0]
	assert.Equal(t, enums.PriceApprovalApproved, item.PriceApprovalStatus)
	require.NotNil(t, item.ConfirmationDate)
	assert.Equal(t, enums.PriceApprovalApproved, updated.PriceApprovalStatus)
	assert.True(t, updated.TotalAmount.Equal(decimal.RequireFromString("8.50")))

	repriced := decimal.RequireFromString("5.00")
	updated, err = h.svc.UpdateOrder(ctx, h.vendorPrincipal(), order.ID, UpdateOrderInput{
		ItemIndex: &index,
		Item:      &ItemPatch{UnitPrice: &repriced},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PriceApprovalPending, updated.Items[0].PriceApprovalStatus)
}

func TestBulkItemsReplacementReversesRemovedStock(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	order := h.supplyOrder(t, 5)
	_, err := h.svc.ConfirmItem(ctx, admin, order.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 15, h.stock(t))

	qty := 3
	updated, err := h.svc.UpdateOrder(ctx, admin, order.ID, UpdateOrderInput{
		Items: []ItemInput{{ItemNumber: "OTHER-1", ProductName: "Other", ItemPatch: ItemPatch{Quantity: &qty}}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "OTHER-1", updated.Items[0].ItemNumber)
	assert.Equal(t, 10, h.stock(t))
	// the order is still confirmed, so the added item moves its own product
	assert.Equal(t, int64(1), h.purchases(t))
	var other models.Product
	require.NoError(t, h.conn.First(&other, "item_number = ?", "OTHER-1").Error)
	assert.Equal(t, 3, other.Stock)

	_, err = h.svc.UpdateOrder(ctx, admin, order.ID, UpdateOrderInput{Items: []ItemInput{}})
	requireCode(t, err, pkgerrors.CodeValidation)

	unknown := uuid.New()
	_, err = h.svc.UpdateOrder(ctx, admin, order.ID, UpdateOrderInput{Items: []ItemInput{{ID: &unknown}}})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestDeleteOrderReversesStock(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	order := h.supplyOrder(t, 4)
	_, err := h.svc.ConfirmItem(ctx, admin, order.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 14, h.stock(t))

	require.NoError(t, h.svc.DeleteOrder(ctx, admin, order.ID))
	assert.Equal(t, 10, h.stock(t))

	_, err = h.svc.GetOrder(ctx, admin, order.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestTransferItem(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	order := h.supplyOrder(t, 5)

	index := 0
	price := decimal.RequireFromString("4.25")
	notes := "ship the split half first"
	_, err := h.svc.UpdateOrder(ctx, h.vendorPrincipal(), order.ID, UpdateOrderInput{
		ItemIndex: &index,
		Item:      &ItemPatch{UnitPrice: &price, Notes: &notes},
	})
	require.NoError(t, err)

	result, err := h.svc.TransferItem(ctx, h.vendorPrincipal(), order.ID, 0, 2)
	require.NoError(t, err)
	require.NotNil(t, result.Source)
	assert.Equal(t, 3, result.Source.Items[0].Quantity)
	assert.True(t, result.Source.TotalAmount.Equal(decimal.RequireFromString("12.75")))
	require.Len(t, result.Target.Items, 1)
	moved := result.Target.Items[0]
	assert.Equal(t, 2, moved.Quantity)
	require.NotNil(t, moved.UnitPrice)
	assert.True(t, moved.UnitPrice.Equal(price))
	require.NotNil(t, moved.Notes)
	assert.Equal(t, notes, *moved.Notes)
	assert.True(t, moved.TotalPrice.Equal(decimal.RequireFromString("8.50")))
	assert.True(t, result.Target.TotalAmount.Equal(price.Mul(decimal.NewFromInt(2))))
	assert.Equal(t, order.VendorID, result.Target.VendorID)
	assert.NotEqual(t, order.OrderNumber, result.Target.OrderNumber)

	result, err = h.svc.TransferItem(ctx, h.vendorPrincipal(), order.ID, 0, 3)
	require.NoError(t, err)
	assert.Nil(t, result.Source)
	_, err = h.svc.GetOrder(ctx, admin, order.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	var deleted int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventOrderDeleted, order.ID).
		Count(&deleted).Error)
	assert.Equal(t, int64(1), deleted)
}

func TestTransferItemRules(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	order := h.supplyOrder(t, 5)

	_, err := h.svc.TransferItem(ctx, admin, order.ID, 0, 1)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.svc.TransferItem(ctx, h.vendorPrincipal(), order.ID, 0, 6)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.TransferItem(ctx, h.vendorPrincipal(), order.ID, 3, 1)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.TransferItem(ctx, h.vendorPrincipal(), order.ID, 0, 0)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestTransferConfirmedItemReappliesRemainder(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	order := h.supplyOrder(t, 5)
	_, err := h.svc.ConfirmItem(ctx, admin, order.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 15, h.stock(t))

	result, err := h.svc.TransferItem(ctx, h.vendorPrincipal(), order.ID, 0, 2)
	require.NoError(t, err)
	require.NotNil(t, result.Source)
	assert.Equal(t, 3, result.Source.Items[0].Quantity)
	assert.Equal(t, enums.OrderStatusConfirmed, result.Source.Items[0].Status)
	assert.Equal(t, enums.OrderStatusPending, result.Target.Status)
	assert.Equal(t, enums.OrderStatusPending, result.Target.Items[0].Status)
	assert.Equal(t, 13, h.stock(t))

	var purchases []models.ProductPurchase
	require.NoError(t, h.conn.Find(&purchases).Error)
	require.Len(t, purchases, 1)
	assert.Equal(t, result.Source.Items[0].ID, purchases[0].OrderItemID)
	assert.Equal(t, 3, purchases[0].Quantity)

	_, err = h.svc.ConfirmItem(ctx, admin, result.Target.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 15, h.stock(t))
	assert.Equal(t, int64(2), h.purchases(t))
}

func TestTransferWholeConfirmedItemReversesIt(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	vendorID := h.vendor.ID
	order, err := h.svc.CreateOrder(ctx, admin, CreateOrderInput{
		VendorID: &vendorID,
		Items: []CreateItemInput{
			{ProductID: &h.product.ID, Quantity: 4},
			{ProductID: &h.product.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	_, err = h.svc.ConfirmItem(ctx, admin, order.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 14, h.stock(t))

	result, err := h.svc.TransferItem(ctx, h.vendorPrincipal(), order.ID, 0, 4)
	require.NoError(t, err)
	require.NotNil(t, result.Source)
	require.Len(t, result.Source.Items, 1)
	assert.Equal(t, 1, result.Source.Items[0].Quantity)
	assert.Equal(t, 10, h.stock(t))
	assert.Equal(t, int64(0), h.purchases(t))
}

func TestListOrdersSearchMatchesWildcardsLiterally(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	vendorID := h.vendor.ID
	for _, number := range []string{"ORD_1", "ORDX1", "50%OFF", "500FF"} {
		_, err := h.svc.CreateOrder(ctx, admin, CreateOrderInput{
			OrderNumber: number,
			VendorID:    &vendorID,
			Items:       []CreateItemInput{{ProductID: &h.product.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	cases := map[string][]string{
		"ord_1": {"ORD_1"},
		"50%":   {"50%OFF"},
		"ord":   {"ORDX1", "ORD_1"},
	}
	for term, want := range cases {
		page, err := h.svc.ListOrders(ctx, admin, ListOrdersInput{Search: term})
		require.NoError(t, err)
		got := make([]string, 0, len(page.Items))
		for _, order := range page.Items {
			got = append(got, order.OrderNumber)
		}
		assert.ElementsMatch(t, want, got, term)
	}
}

func TestListOrdersScopesByPrincipal(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	h.supplyOrder(t, 1)
	h.supplyOrder(t, 2)
	client := auth.ClientPrincipal{UserID: uuid.New()}
	_, err := h.svc.CreateOrder(ctx, client, CreateOrderInput{Items: []CreateItemInput{{ProductID: &h.product.ID, Quantity: 1}}})
	require.NoError(t, err)

	all, err := h.svc.ListOrders(ctx, admin, ListOrdersInput{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 3)

	mine, err := h.svc.ListOrders(ctx, h.vendorPrincipal(), ListOrdersInput{})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 2)

	theirs, err := h.svc.ListOrders(ctx, client, ListOrdersInput{})
	require.NoError(t, err)
	assert.Len(t, theirs.Items, 1)

	_, err = h.svc.ListVendorOrders(ctx, auth.VendorPrincipal{VendorID: uuid.New()}, h.vendor.ID, ListOrdersInput{})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestAttachImageSyncsProductGallery(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	order := h.supplyOrder(t, 1)
	index := 0

	updated, err := h.svc.AttachImage(ctx, h.vendorPrincipal(), order.ID, &index, "/uploads/a.png")
	require.NoError(t, err)
	require.NotNil(t, updated.Items[0].Image)
	assert.Equal(t, "/uploads/a.png", *updated.Items[0].Image)

	var p models.Product
	require.NoError(t, h.conn.First(&p, "id = ?", h.product.ID).Error)
	assert.Equal(t, []string{"/uploads/a.png"}, []string(p.Images))
}
