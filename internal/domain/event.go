package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination mocks/mock_event_repository.go -package mocks github.com/mailcannon/mailcannon/internal/domain EventRepository

// EventType is the normalized type of a provider webhook event.
type EventType string

const (
	EventTypeDelivered  EventType = "delivered"
	EventTypeBounced    EventType = "bounced"
	EventTypeComplained EventType = "complained"
	EventTypeOpened     EventType = "opened"
	EventTypeClicked    EventType = "clicked"
	EventTypeOther      EventType = "other"
)

// ParseProviderEventType maps a Resend envelope type (e.g. "email.delivered")
// to the normalized event type. Unknown types map to EventTypeOther.
func ParseProviderEventType(envelope string) EventType {
	switch envelope {
	case "email.delivered":
		return EventTypeDelivered
	case "email.bounced":
		return EventTypeBounced
	case "email.complained":
		return EventTypeComplained
	case "email.opened":
		return EventTypeOpened
	case "email.clicked":
		return EventTypeClicked
	default:
		return EventTypeOther
	}
}

// DeliveryTransition returns the delivery status this event type drives a
// `sent` attempt to, and whether such a transition exists. Opens, clicks and
// unknown events are stored but never move the delivery row.
func (t EventType) DeliveryTransition() (DeliveryStatus, bool) {
	switch t {
	case EventTypeDelivered:
		return DeliveryStatusDelivered, true
	case EventTypeBounced:
		return DeliveryStatusBounced, true
	case EventTypeComplained:
		return DeliveryStatusComplained, true
	}
	return "", false
}

// MaxEventPayloadBytes bounds the verbatim payload stored per event.
const MaxEventPayloadBytes = 64 * 1024

// Event is one provider callback, stored verbatim for audit. Events with an
// invalid signature are stored too, flagged, and never touch deliveries.
type Event struct {
	ID                string    `json:"id"`
	Provider          string    `json:"provider"`
	Type              EventType `json:"event_type"`
	ProviderMessageID string    `json:"provider_message_id"`
	Recipient         string    `json:"recipient"`
	PayloadJSON       string    `json:"payload_json"`
	SignatureValid    bool      `json:"signature_valid"`
	ReceivedAt        time.Time `json:"received_at"`
}

// EventRepository persists webhook events append-only.
type EventRepository interface {
	// Save stores the event. The payload is clipped to MaxEventPayloadBytes.
	Save(ctx context.Context, event *Event) error

	// Recent returns the most recent events, newest first.
	Recent(ctx context.Context, limit int) ([]*Event, error)
}
