package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

// ProductDTO is the catalog payload returned to every principal.
type ProductDTO struct {
	ID           uuid.UUID        `json:"id"`
	ItemNumber   string           `json:"itemNumber"`
	Name         string           `json:"name"`
	Description  *string          `json:"description,omitempty"`
	Images       []string         `json:"images"`
	SellingPrice *decimal.Decimal `json:"sellingPrice,omitempty"`
	Stock        int              `json:"stock"`
	ReorderLevel int              `json:"reorderLevel"`
	LowStock     bool             `json:"lowStock"`
	IsVisible    bool             `json:"isVisible"`
	IsActive     bool             `json:"isActive"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// ProductListResult is one page of products.
type ProductListResult = pagination.Page[ProductDTO]

// ListProductsInput captures browse filters and pagination.
type ListProductsInput struct {
	Query           string
	LowStockOnly    bool
	IncludeInactive bool
	Pagination      pagination.Params
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	ItemNumber   string
	Name         string
	Description  *string
	SellingPrice *decimal.Decimal
	Stock        int
	ReorderLevel int
	IsVisible    bool
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	ItemNumber        *string
	Name              *string
	Description       *string
	SellingPrice      *decimal.Decimal
	ClearSellingPrice bool
	ReorderLevel      *int
	IsVisible         *bool
}

// ItemRef identifies the product an order line refers to.
type ItemRef struct {
	ProductID  *uuid.UUID
	ItemNumber string
	Name       string
}

func toDTO(p models.Product) ProductDTO {
	images := []string(p.Images)
	if images == nil {
		images = []string{}
	}
	dto := ProductDTO{
		ID:           p.ID,
		ItemNumber:   p.ItemNumber,
		Name:         p.Name,
		Description:  p.Description,
		Images:       images,
		Stock:        p.Stock,
		ReorderLevel: p.ReorderLevel,
		LowStock:     p.Stock <= p.ReorderLevel,
		IsVisible:    p.IsVisible,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.SellingPrice.Valid {
		price := p.SellingPrice.Decimal
		dto.SellingPrice = &price
	}
	return dto
}
