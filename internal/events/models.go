package events

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// ActivityEvent mirrors an activity log entry once its transaction has committed.
type ActivityEvent struct {
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	FromStatus string         `json:"from_status,omitempty"`
	ToStatus   string         `json:"to_status,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// KindFor returns the event type used for activity on resource.
func KindFor(resource string) string {
	switch resource {
	case "document":
		return DocumentMessageKind
	case "account", "profile":
		return AccountMessageKind
	case "payment_proof":
		return PaymentMessageKind
	case "subscription":
		return SubscriptionMessageKind
	default:
		return ActivityMessageKind
	}
}

// Publish enqueues an activity event. It never blocks on delivery.
func (ep *EventProducer) Publish(ctx context.Context, ev ActivityEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ep.Write(ctx, KindFor(ev.Resource), ev.ResourceID, bytes.NewReader(data))
}
