package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	Kind enums.PrincipalKind `json:"kind"`
	ID   uuid.UUID           `json:"id"`
}

// ActorFrom converts the request principal into an ActorRef. A nil principal
// yields nil so system-originated events carry no actor.
func ActorFrom(p auth.Principal) *ActorRef {
	if p == nil {
		return nil
	}
	return &ActorRef{Kind: p.Kind(), ID: p.ActorID()}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
