package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	"github.com/angelmondragon/vendorcrm-backend/api/validators"
	"github.com/angelmondragon/vendorcrm-backend/internal/media"
	product "github.com/angelmondragon/vendorcrm-backend/internal/products"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

type createProductRequest struct {
	ItemNumber   string           `json:"itemNumber" validate:"required,max=64"`
	Name         string           `json:"name" validate:"required,max=255"`
	Description  *string          `json:"description"`
	SellingPrice *decimal.Decimal `json:"sellingPrice"`
	Stock        int              `json:"stock" validate:"gte=0"`
	ReorderLevel int              `json:"reorderLevel" validate:"gte=0"`
	IsVisible    *bool            `json:"isVisible"`
}

type updateProductRequest struct {
	ItemNumber        *string          `json:"itemNumber" validate:"omitempty,min=1,max=64"`
	Name              *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description       *string          `json:"description"`
	SellingPrice      *decimal.Decimal `json:"sellingPrice"`
	ClearSellingPrice bool             `json:"clearSellingPrice"`
	ReorderLevel      *int             `json:"reorderLevel" validate:"omitempty,gte=0"`
	IsVisible         *bool            `json:"isVisible"`
}

func ListProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		input := product.ListProductsInput{
			Query:      validators.SanitizeString(query.Get("q"), 128),
			Pagination: params,
		}
		if input.LowStockOnly, err = parseBoolQuery(query.Get("lowStock"), "lowStock"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.IncludeInactive, err = parseBoolQuery(query.Get("includeInactive"), "includeInactive"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListProducts(r.Context(), principal, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.GetProduct(r.Context(), principal, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func CreateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := product.CreateProductInput{
			ItemNumber:   strings.TrimSpace(body.ItemNumber),
			Name:         strings.TrimSpace(body.Name),
			Description:  body.Description,
			SellingPrice: body.SellingPrice,
			Stock:        body.Stock,
			ReorderLevel: body.ReorderLevel,
			IsVisible:    body.IsVisible == nil || *body.IsVisible,
		}
		dto, err := svc.CreateProduct(r.Context(), principal, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

func UpdateProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.UpdateProduct(r.Context(), principal, productID, product.UpdateProductInput{
			ItemNumber:        body.ItemNumber,
			Name:              body.Name,
			Description:       body.Description,
			SellingPrice:      body.SellingPrice,
			ClearSellingPrice: body.ClearSellingPrice,
			ReorderLevel:      body.ReorderLevel,
			IsVisible:         body.IsVisible,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func DeleteProduct(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		principal, err := principalFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), principal, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "product deleted")
	}
}

func LowStockProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		items, err := svc.LowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// UploadProductImage stores a gallery image and prepends it to the product.
func UploadProductImage(svc product.Service, store ImageStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		upload, err := receiveImage(w, r, store, media.FolderProducts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.AddImage(r.Context(), productID, upload.Path)
		if err != nil {
			discardUpload(r.Context(), store, upload, logg)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func parseBoolQuery(raw, field string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.Validation("invalid query parameter", pkgerrors.FieldError{Field: field, Message: "must be true or false"})
	}
	return value, nil
}
