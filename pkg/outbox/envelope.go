package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/pkg/enums"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events
// and published verbatim as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int                   `json:"version"`
	EventID    string                `json:"eventId"`
	EventType  enums.OutboxEventType `json:"eventType"`
	OccurredAt time.Time             `json:"occurredAt"`
	Actor      *ActorRef             `json:"actor,omitempty"`
	Data       json.RawMessage       `json:"data"`
}

// DecodeEnvelope parses a message body and unmarshals its data into out.
func DecodeEnvelope(body []byte, out any) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return env, err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env, err
		}
	}
	return env, nil
}
