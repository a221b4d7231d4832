package realtime

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/payloads"
)

// Message is what travels over the Redis channel and out of the SSE stream.
type Message struct {
	ID         string                `json:"id"`
	Type       enums.OutboxEventType `json:"type"`
	OccurredAt time.Time             `json:"occurredAt"`
	Route      payloads.Route        `json:"route"`
	Data       json.RawMessage       `json:"data"`
}

// VisibleTo reports whether principal may receive m. Staff see every event;
// vendors and clients only see events routed to them.
func (m Message) VisibleTo(principal auth.Principal) bool {
	switch p := principal.(type) {
	case auth.AdminPrincipal:
		return true
	case auth.VendorPrincipal:
		return m.Route.VendorID != nil && *m.Route.VendorID == p.VendorID
	case auth.ClientPrincipal:
		return m.Route.ClientID != nil && *m.Route.ClientID == p.UserID
	}
	return false
}
