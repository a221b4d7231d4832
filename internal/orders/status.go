package orders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

// DeriveOrderStatus computes the order status from its items. Priority:
// all delivered, all shipped, all confirmed, any cancelled; otherwise current
// is kept. An order without items keeps current.
func DeriveOrderStatus(items []models.OrderItem, current enums.OrderStatus) enums.OrderStatus {
	if len(items) == 0 {
		return current
	}
	for _, candidate := range []enums.OrderStatus{
		enums.OrderStatusDelivered,
		enums.OrderStatusShipped,
		enums.OrderStatusConfirmed,
	} {
		if allItems(items, candidate) {
			return candidate
		}
	}
	for _, item := range items {
		if item.Status == enums.OrderStatusCancelled {
			return enums.OrderStatusCancelled
		}
	}
	return current
}

func allItems(items []models.OrderItem, status enums.OrderStatus) bool {
	for _, item := range items {
		if item.Status != status {
			return false
		}
	}
	return true
}

// DerivePriceApproval aggregates the item approvals of non-cancelled items:
// any rejection rejects the order, unanimous approval approves it.
func DerivePriceApproval(items []models.OrderItem) enums.PriceApprovalStatus {
	active := 0
	approved := 0
	for _, item := range items {
		if item.Status == enums.OrderStatusCancelled {
			continue
		}
		active++
		switch item.PriceApprovalStatus {
		case enums.PriceApprovalRejected:
			return enums.PriceApprovalRejected
		case enums.PriceApprovalApproved:
			approved++
		}
	}
	if active > 0 && approved == active {
		return enums.PriceApprovalApproved
	}
	return enums.PriceApprovalPending
}

// holdsStock says whether an item should have moved stock given both its own
// status and the order status. An item's own confirmation wins over an order
// that derived cancelled from a sibling.
func holdsStock(orderStatus, itemStatus enums.OrderStatus) bool {
	if itemStatus == enums.OrderStatusCancelled {
		return false
	}
	return itemStatus.HoldsStock() || orderStatus.HoldsStock()
}

// recomputeTotals refreshes every item total and the order total. Cancelled
// items keep their own total but do not count towards the order.
func recomputeTotals(order *models.Order) {
	total := decimal.Zero
	for i := range order.Items {
		item := &order.Items[i]
		item.TotalPrice = itemTotal(*item)
		if item.Status != enums.OrderStatusCancelled {
			total = total.Add(item.TotalPrice)
		}
	}
	order.TotalAmount = total.Round(2)
}

func itemTotal(item models.OrderItem) decimal.Decimal {
	if !item.UnitPrice.Valid {
		return decimal.Zero
	}
	return item.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
}

// resync applies the derivations every write path ends with.
func resync(order *models.Order) {
	for i := range order.Items {
		order.Items[i].Position = i
	}
	recomputeTotals(order)
	order.Status = DeriveOrderStatus(order.Items, order.Status)
	order.PriceApprovalStatus = DerivePriceApproval(order.Items)
}
