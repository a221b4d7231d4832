package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

func itemsWith(statuses ...enums.OrderStatus) []models.OrderItem {
	items := make([]models.OrderItem, len(statuses))
	for i, status := range statuses {
		items[i] = models.OrderItem{Status: status, Quantity: 1}
	}
	return items
}

func TestDeriveOrderStatus(t *testing.T) {
	cases := []struct {
		name    string
		items   []models.OrderItem
		current enums.OrderStatus
		want    enums.OrderStatus
	}{
		{"no items keeps current", nil, enums.OrderStatusShipped, enums.OrderStatusShipped},
		{"all delivered", itemsWith(enums.OrderStatusDelivered, enums.OrderStatusDelivered), enums.OrderStatusPending, enums.OrderStatusDelivered},
		{"all shipped", itemsWith(enums.OrderStatusShipped, enums.OrderStatusShipped), enums.OrderStatusConfirmed, enums.OrderStatusShipped},
		{"all confirmed", itemsWith(enums.OrderStatusConfirmed), enums.OrderStatusPending, enums.OrderStatusConfirmed},
		{"any cancelled", itemsWith(enums.OrderStatusConfirmed, enums.OrderStatusCancelled), enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
		{"mixed keeps current", itemsWith(enums.OrderStatusConfirmed, enums.OrderStatusShipped), enums.OrderStatusConfirmed, enums.OrderStatusConfirmed},
		{"mixed pending keeps current", itemsWith(enums.OrderStatusPending, enums.OrderStatusConfirmed), enums.OrderStatusPending, enums.OrderStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveOrderStatus(tc.items, tc.current))
		})
	}
}

func TestDerivePriceApproval(t *testing.T) {
	items := itemsWith(enums.OrderStatusPending, enums.OrderStatusPending, enums.OrderStatusCancelled)
	items[0].PriceApprovalStatus = enums.PriceApprovalApproved
	items[1].PriceApprovalStatus = enums.PriceApprovalPending
	items[2].PriceApprovalStatus = enums.PriceApprovalRejected
	assert.Equal(t, enums.PriceApprovalPending, DerivePriceApproval(items))

	items[1].PriceApprovalStatus = enums.PriceApprovalApproved
	assert.Equal(t, enums.PriceApprovalApproved, DerivePriceApproval(items), "cancelled items do not count")

	items[0].PriceApprovalStatus = enums.PriceApprovalRejected
	assert.Equal(t, enums.PriceApprovalRejected, DerivePriceApproval(items))
}

func TestRecomputeTotalsSkipsCancelledItems(t *testing.T) {
	order := &models.Order{Items: []models.OrderItem{
		{Quantity: 3, Status: enums.OrderStatusPending, UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("2.50"))},
		{Quantity: 2, Status: enums.OrderStatusCancelled, UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("10"))},
		{Quantity: 4, Status: enums.OrderStatusConfirmed},
	}}
	recomputeTotals(order)

	assert.True(t, order.Items[0].TotalPrice.Equal(decimal.RequireFromString("7.50")))
	assert.True(t, order.Items[1].TotalPrice.Equal(decimal.NewFromInt(20)))
	assert.True(t, order.Items[2].TotalPrice.IsZero())
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("7.50")))
}

func TestHoldsStock(t *testing.T) {
	assert.True(t, holdsStock(enums.OrderStatusConfirmed, enums.OrderStatusPending))
	assert.True(t, holdsStock(enums.OrderStatusPending, enums.OrderStatusShipped))
	assert.False(t, holdsStock(enums.OrderStatusConfirmed, enums.OrderStatusCancelled))
	assert.True(t, holdsStock(enums.OrderStatusCancelled, enums.OrderStatusConfirmed))
	assert.True(t, holdsStock(enums.OrderStatusCancelled, enums.OrderStatusDelivered))
	assert.False(t, holdsStock(enums.OrderStatusCancelled, enums.OrderStatusPending))
	assert.False(t, holdsStock(enums.OrderStatusCancelled, enums.OrderStatusCancelled))
	assert.False(t, holdsStock(enums.OrderStatusPending, enums.OrderStatusPending))
}
