// Package stock moves product stock when orders enter or leave the holding
// statuses. Every movement is guarded by a conditional flag flip so it is
// applied at most once per line item, no matter how many callers race.
package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

// ErrOrderNotFound is returned when the scope points at a missing order or item.
var ErrOrderNotFound = errors.New("order not found")

// Scope selects what a reconciliation covers: a whole order or one item.
type Scope struct {
	OrderID uuid.UUID
	ItemID  *uuid.UUID
}

func OrderScope(orderID uuid.UUID) Scope {
	return Scope{OrderID: orderID}
}

func ItemScope(orderID, itemID uuid.UUID) Scope {
	return Scope{OrderID: orderID, ItemID: &itemID}
}

func (s Scope) IsItem() bool { return s.ItemID != nil }

// Movement is one stock delta applied to a product.
type Movement struct {
	ProductID uuid.UUID
	ItemID    uuid.UUID
	Delta     int
}

// Result lists the movements a call actually performed. An empty result
// means another caller got there first or there was nothing to move.
type Result struct {
	Movements []Movement
}

// Changed reports whether any stock moved.
func (r Result) Changed() bool { return len(r.Movements) > 0 }

// ProductIDs returns the distinct products touched.
func (r Result) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(r.Movements))
	ids := make([]uuid.UUID, 0, len(r.Movements))
	for _, m := range r.Movements {
		if _, ok := seen[m.ProductID]; ok {
			continue
		}
		seen[m.ProductID] = struct{}{}
		ids = append(ids, m.ProductID)
	}
	return ids
}

type Reconciler struct {
	logg *logger.Logger
	now  func() time.Time
}

func NewReconciler(logg *logger.Logger) *Reconciler {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Reconciler{logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

// Apply moves stock for the scope in the direction of the order flow and
// records one purchase row per moved item. It must run inside tx.
func (r *Reconciler) Apply(ctx context.Context, tx *gorm.DB, scope Scope) (Result, error) {
	if tx == nil {
		return Result{}, errors.New("transaction required")
	}
	order, items, err := r.load(ctx, tx, scope)
	if err != nil {
		return Result{}, err
	}

	if !scope.IsItem() {
		if _, err := flipFlag(ctx, tx, "orders", order.ID, false); err != nil {
			return Result{}, fmt.Errorf("flag order %s: %w", order.ID, err)
		}
	}

	vendorName, err := r.vendorName(ctx, tx, order.VendorID)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for i := range items {
		item := &items[i]
		if !scope.IsItem() && item.Status == enums.OrderStatusCancelled {
			continue
		}
		won, err := flipFlag(ctx, tx, "order_items", item.ID, false)
		if err != nil {
			return Result{}, fmt.Errorf("flag item %s: %w", item.ID, err)
		}
		if !won {
			continue
		}
		delta := order.Flow.Sign() * item.Quantity
		if err := moveStock(ctx, tx, item.ProductID, delta, r.now()); err != nil {
			return Result{}, err
		}
		if err := tx.WithContext(ctx).Create(r.purchaseFor(order, item, vendorName)).Error; err != nil {
			return Result{}, fmt.Errorf("record purchase for item %s: %w", item.ID, err)
		}
		result.Movements = append(result.Movements, Movement{ProductID: item.ProductID, ItemID: item.ID, Delta: delta})
	}

	r.log(ctx, "stock applied", scope, result)
	return result, nil
}

// Reverse undoes the stock effect of every adjusted item in the scope,
// deletes their purchase rows and clears the flags. It must run inside tx.
func (r *Reconciler) Reverse(ctx context.Context, tx *gorm.DB, scope Scope) (Result, error) {
	if tx == nil {
		return Result{}, errors.New("transaction required")
	}
	order, items, err := r.load(ctx, tx, scope)
	if err != nil {
		return Result{}, err
	}

	if !scope.IsItem() {
		if _, err := flipFlag(ctx, tx, "orders", order.ID, true); err != nil {
			return Result{}, fmt.Errorf("unflag order %s: %w", order.ID, err)
		}
	}

	var result Result
	for i := range items {
		item := &items[i]
		won, err := flipFlag(ctx, tx, "order_items", item.ID, true)
		if err != nil {
			return Result{}, fmt.Errorf("unflag item %s: %w", item.ID, err)
		}
		if !won {
			continue
		}
		applied, err := appliedQuantity(ctx, tx, item, order.Flow)
		if err != nil {
			return Result{}, err
		}
		delta := -order.Flow.Sign() * applied
		if err := moveStock(ctx, tx, item.ProductID, delta, r.now()); err != nil {
			return Result{}, err
		}
		if err := tx.WithContext(ctx).
			Where("order_item_id = ?", item.ID).
			Delete(&models.ProductPurchase{}).Error; err != nil {
			return Result{}, fmt.Errorf("delete purchases for item %s: %w", item.ID, err)
		}
		result.Movements = append(result.Movements, Movement{ProductID: item.ProductID, ItemID: item.ID, Delta: delta})
	}

	r.log(ctx, "stock reversed", scope, result)
	return result, nil
}

func (r *Reconciler) load(ctx context.Context, tx *gorm.DB, scope Scope) (*models.Order, []models.OrderItem, error) {
	var order models.Order
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", scope.OrderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, fmt.Errorf("load order %s: %w", scope.OrderID, err)
	}

	query := tx.WithContext(ctx).Where("order_id = ?", order.ID).Order("position ASC")
	if scope.IsItem() {
		query = query.Where("id = ?", *scope.ItemID)
	}
	var items []models.OrderItem
	if err := query.Find(&items).Error; err != nil {
		return nil, nil, fmt.Errorf("load items of order %s: %w", order.ID, err)
	}
	if scope.IsItem() && len(items) == 0 {
		return nil, nil, ErrOrderNotFound
	}
	return &order, items, nil
}

func (r *Reconciler) vendorName(ctx context.Context, tx *gorm.DB, vendorID *uuid.UUID) (*string, error) {
	if vendorID == nil {
		return nil, nil
	}
	var names []string
	if err := tx.WithContext(ctx).Model(&models.Vendor{}).
		Where("id = ?", *vendorID).
		Limit(1).
		Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("load vendor name: %w", err)
	}
	if len(names) == 0 {
		return nil, nil
	}
	return &names[0], nil
}

func (r *Reconciler) purchaseFor(order *models.Order, item *models.OrderItem, vendorName *string) *models.ProductPurchase {
	return &models.ProductPurchase{
		ProductID:   item.ProductID,
		OrderID:     order.ID,
		OrderItemID: item.ID,
		OrderNumber: order.OrderNumber,
		ItemNumber:  item.ItemNumber,
		ProductName: item.ProductName,
		VendorID:    order.VendorID,
		VendorName:  vendorName,
		Flow:        order.Flow,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		TotalPrice:  item.TotalPrice,
		PurchasedAt: r.now(),
	}
}

func (r *Reconciler) log(ctx context.Context, msg string, scope Scope, result Result) {
	if !result.Changed() {
		return
	}
	fields := map[string]any{
		"order_id":  scope.OrderID.String(),
		"movements": len(result.Movements),
	}
	if scope.IsItem() {
		fields["item_id"] = scope.ItemID.String()
	}
	r.logg.Debug(r.logg.WithFields(ctx, fields), msg)
}

// flipFlag sets stock_adjusted to !from only when it currently equals from,
// and reports whether this caller performed the flip.
func flipFlag(ctx context.Context, tx *gorm.DB, table string, id uuid.UUID, from bool) (bool, error) {
	res := tx.WithContext(ctx).
		Table(table).
		Where("id = ? AND stock_adjusted = ?", id, from).
		UpdateColumn("stock_adjusted", !from)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func moveStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int, now time.Time) error {
	if delta == 0 {
		return nil
	}
	err := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock + ?", delta),
			"updated_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("move stock of product %s by %d: %w", productID, delta, err)
	}
	return nil
}

// appliedQuantity prefers the recorded purchases so a quantity edited after
// confirmation still reverses exactly what was applied.
func appliedQuantity(ctx context.Context, tx *gorm.DB, item *models.OrderItem, flow enums.OrderFlow) (int, error) {
	var rows []models.ProductPurchase
	if err := tx.WithContext(ctx).
		Select("quantity").
		Where("order_item_id = ? AND flow = ?", item.ID, flow).
		Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("load purchases for item %s: %w", item.ID, err)
	}
	if len(rows) == 0 {
		return item.Quantity, nil
	}
	total := 0
	for _, row := range rows {
		total += row.Quantity
	}
	return total, nil
}
