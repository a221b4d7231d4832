package demands

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

type DemandDTO struct {
	ID          uuid.UUID          `json:"id"`
	ClientID    uuid.UUID          `json:"clientId"`
	ProductID   *uuid.UUID         `json:"productId,omitempty"`
	ItemNumber  string             `json:"itemNumber"`
	ProductName string             `json:"productName"`
	Quantity    int                `json:"quantity"`
	Notes       *string            `json:"notes,omitempty"`
	Status      enums.DemandStatus `json:"status"`
	DecidedBy   *uuid.UUID         `json:"decidedBy,omitempty"`
	DecidedAt   *time.Time         `json:"decidedAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type DemandListResult = pagination.Page[DemandDTO]

type CreateDemandInput struct {
	ProductID   *uuid.UUID
	ItemNumber  string
	ProductName string
	Quantity    int
	Notes       *string
}

type ListDemandsInput struct {
	Status     *enums.DemandStatus
	Pagination pagination.Params
}

// Report is the pending demand summary returned to the caller and queued for
// WhatsApp delivery.
type Report = payloads.DemandReportEvent

func toDTO(d models.Demand) DemandDTO {
	return DemandDTO{
		ID:          d.ID,
		ClientID:    d.ClientID,
		ProductID:   d.ProductID,
		ItemNumber:  d.ItemNumber,
		ProductName: d.ProductName,
		Quantity:    d.Quantity,
		Notes:       d.Notes,
		Status:      d.Status,
		DecidedBy:   d.DecidedBy,
		DecidedAt:   d.DecidedAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
