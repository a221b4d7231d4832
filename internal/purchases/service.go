package purchases

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

// Service lists purchase history for staff.
type Service interface {
	ListPurchases(ctx context.Context, principal auth.Principal, input ListPurchasesInput) (*PurchaseListResult, error)
	ListProductPurchases(ctx context.Context, principal auth.Principal, productID uuid.UUID, params pagination.Params) (*PurchaseListResult, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListPurchases(ctx context.Context, principal auth.Principal, input ListPurchasesInput) (*PurchaseListResult, error) {
	if _, ok := principal.(auth.AdminPrincipal); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "purchase history is staff only")
	}
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, purchaseListQuery{
		ProductID: input.ProductID,
		VendorID:  input.VendorID,
		OrderID:   input.OrderID,
		Cursor:    cursor,
		Limit:     input.Pagination.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchases")
	}
	page := pagination.Build(rows, input.Pagination.Limit, func(p models.ProductPurchase) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.PurchasedAt, ID: p.ID}
	})
	result := &PurchaseListResult{Items: make([]PurchaseDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, p := range page.Items {
		result.Items = append(result.Items, toDTO(p))
	}
	return result, nil
}

// ListProductPurchases 404s for unknown products rather than returning an empty page.
func (s *service) ListProductPurchases(ctx context.Context, principal auth.Principal, productID uuid.UUID, params pagination.Params) (*PurchaseListResult, error) {
	if _, ok := principal.(auth.AdminPrincipal); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "purchase history is staff only")
	}
	exists, err := s.repo.ProductExists(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.ListPurchases(ctx, principal, ListPurchasesInput{ProductID: &productID, Pagination: params})
}
