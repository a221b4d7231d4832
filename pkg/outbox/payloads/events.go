package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

// Route says which principals may see an event on the real-time stream.
// Staff always see everything; VendorID and ClientID widen the audience.
type Route struct {
	VendorID *uuid.UUID `json:"vendorId,omitempty"`
	ClientID *uuid.UUID `json:"clientId,omitempty"`
}

// Routable is implemented by every payload the dispatcher fans out.
type Routable interface {
	EventRoute() Route
}

// OrderEvent backs orders:created, orders:updated and orders:deleted.
type OrderEvent struct {
	OrderID     uuid.UUID         `json:"orderId"`
	OrderNumber string            `json:"orderNumber"`
	VendorID    *uuid.UUID        `json:"vendorId,omitempty"`
	ClientID    *uuid.UUID        `json:"clientId,omitempty"`
	Flow        enums.OrderFlow   `json:"flow"`
	Status      enums.OrderStatus `json:"status"`
	TotalAmount string            `json:"totalAmount"`
	ItemCount   int               `json:"itemCount"`
}

func (e OrderEvent) EventRoute() Route {
	return Route{VendorID: e.VendorID, ClientID: e.ClientID}
}

// ProductUpdatedEvent announces stock or catalog changes.
type ProductUpdatedEvent struct {
	ProductID    uuid.UUID `json:"productId"`
	ItemNumber   string    `json:"itemNumber"`
	Name         string    `json:"name"`
	Stock        int       `json:"stock"`
	ReorderLevel int       `json:"reorderLevel"`
}

func (ProductUpdatedEvent) EventRoute() Route { return Route{} }

// LowStock reports whether the product sits at or below its reorder level.
func (e ProductUpdatedEvent) LowStock() bool {
	return e.Stock <= e.ReorderLevel
}

// DemandEvent backs demands:created and demands:updated.
type DemandEvent struct {
	DemandID    uuid.UUID          `json:"demandId"`
	ClientID    uuid.UUID          `json:"clientId"`
	ClientName  string             `json:"clientName,omitempty"`
	ItemNumber  string             `json:"itemNumber"`
	ProductName string             `json:"productName"`
	Quantity    int                `json:"quantity"`
	Notes       string             `json:"notes,omitempty"`
	Status      enums.DemandStatus `json:"status"`
}

func (e DemandEvent) EventRoute() Route {
	clientID := e.ClientID
	return Route{ClientID: &clientID}
}

// DemandReportLine aggregates pending demand per item number.
type DemandReportLine struct {
	ItemNumber  string `json:"itemNumber"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Requests    int    `json:"requests"`
}

// DemandReportEvent is the pending-demand summary sent to WhatsApp.
type DemandReportEvent struct {
	GeneratedAt   time.Time          `json:"generatedAt"`
	Lines         []DemandReportLine `json:"lines"`
	TotalQuantity int                `json:"totalQuantity"`
}

func (DemandReportEvent) EventRoute() Route { return Route{} }

// NotificationPushEvent mirrors a persisted notification for live delivery.
type NotificationPushEvent struct {
	NotificationID uuid.UUID                  `json:"notificationId"`
	Audience       enums.NotificationAudience `json:"audience"`
	RecipientID    *uuid.UUID                 `json:"recipientId,omitempty"`
	Type           enums.NotificationType     `json:"type"`
	Title          string                     `json:"title"`
	Message        string                     `json:"message"`
	Link           *string                    `json:"link,omitempty"`
}

func (e NotificationPushEvent) EventRoute() Route {
	switch e.Audience {
	case enums.AudienceVendor:
		return Route{VendorID: e.RecipientID}
	case enums.AudienceClient:
		return Route{ClientID: e.RecipientID}
	}
	return Route{}
}
