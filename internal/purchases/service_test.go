package purchases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

var staff = auth.AdminPrincipal{UserID: uuid.New(), Role: enums.UserRoleAdmin}

func seedPurchase(t *testing.T, conn *gorm.DB, productID uuid.UUID, vendorID *uuid.UUID, at time.Time) models.ProductPurchase {
	t.Helper()
	p := models.ProductPurchase{
		ID:          uuid.New(),
		ProductID:   productID,
		OrderID:     uuid.New(),
		OrderItemID: uuid.New(),
		OrderNumber: "ORD-20250301-0001",
		ItemNumber:  "ITEM-1",
		ProductName: "Widget",
		VendorID:    vendorID,
		Flow:        enums.OrderFlowSupply,
		Quantity:    2,
		UnitPrice:   decimal.NewNullDecimal(decimal.RequireFromString("3.50")),
		TotalPrice:  decimal.RequireFromString("7.00"),
		PurchasedAt: at,
	}
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func newService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return svc, conn
}

func TestListPurchasesFiltersAndPages(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	productID := uuid.New()
	vendorID := uuid.New()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	newest := seedPurchase(t, conn, productID, &vendorID, base.Add(2*time.Hour))
	seedPurchase(t, conn, productID, nil, base.Add(time.Hour))
	seedPurchase(t, conn, uuid.New(), &vendorID, base)

	page, err := svc.ListPurchases(ctx, staff, ListPurchasesInput{Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, newest.ID, page.Items[0].ID)
	require.NotNil(t, page.Items[0].UnitPrice)
	assert.Equal(t, "3.5", page.Items[0].UnitPrice.String())
	require.NotEmpty(t, page.NextCursor)

	rest, err := svc.ListPurchases(ctx, staff, ListPurchasesInput{Pagination: pagination.Params{Limit: 2, Cursor: page.NextCursor}})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextCursor)

	byVendor, err := svc.ListPurchases(ctx, staff, ListPurchasesInput{VendorID: &vendorID})
	require.NoError(t, err)
	assert.Len(t, byVendor.Items, 2)
}

func TestListPurchasesStaffOnly(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ListPurchases(context.Background(), auth.VendorPrincipal{VendorID: uuid.New()}, ListPurchasesInput{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestListProductPurchases(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	product := models.Product{ItemNumber: "ITEM-1", Name: "Widget", IsActive: true}
	require.NoError(t, conn.Create(&product).Error)
	seedPurchase(t, conn, product.ID, nil, time.Now().UTC())
	seedPurchase(t, conn, uuid.New(), nil, time.Now().UTC())

	page, err := svc.ListProductPurchases(ctx, staff, product.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, product.ID, page.Items[0].ProductID)

	_, err = svc.ListProductPurchases(ctx, staff, uuid.New(), pagination.Params{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
