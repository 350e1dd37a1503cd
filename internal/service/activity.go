package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/paperlane/paperlane/internal/auth"
	"github.com/paperlane/paperlane/internal/events"
	"github.com/paperlane/paperlane/internal/store"
	"github.com/paperlane/paperlane/internal/store/model"
	"go.uber.org/zap"
)

const (
	ActionDocumentUploaded     = "DOCUMENT_UPLOADED"
	ActionDocumentAnalyzed     = "DOCUMENT_ANALYZED"
	ActionDocumentSubmitted    = "DOCUMENT_SUBMITTED"
	ActionDocumentSubmitFailed = "DOCUMENT_SUBMIT_FAILED"
	ActionDocumentCompleted    = "DOCUMENT_COMPLETED"
	ActionDocumentFailed       = "DOCUMENT_FAILED"
	ActionDocumentRetried      = "DOCUMENT_RETRIED"
	ActionUserRegistered       = "USER_REGISTERED"
	ActionProfileCompleted     = "PROFILE_COMPLETED"
	ActionPaymentUploaded      = "PAYMENT_PROOF_UPLOADED"
	ActionPaymentVerified      = "PAYMENT_VERIFIED"
	ActionPaymentRejected      = "PAYMENT_REJECTED"
	ActionSubscriptionExpired  = "SUBSCRIPTION_EXPIRED"
	ActionAccountSuspended     = "ACCOUNT_SUSPENDED"
	ActionAccountReinstated    = "ACCOUNT_REINSTATED"

	ResourceDocument     = "document"
	ResourceAccount      = "account"
	ResourcePaymentProof = "payment_proof"
	ResourceSubscription = "subscription"
)

type ActivityEntry struct {
	Actor      auth.User
	Action     string
	Resource   string
	ResourceID string
	FromStatus string
	ToStatus   string
	Details    map[string]any
}

// ActivityRecorder appends audit entries inside the caller's transaction.
// Events for the recorded entries are published only once the caller has committed.
type ActivityRecorder struct {
	store    store.Store
	producer *events.EventProducer
}

func NewActivityRecorder(s store.Store, producer *events.EventProducer) *ActivityRecorder {
	return &ActivityRecorder{store: s, producer: producer}
}

func (r *ActivityRecorder) Record(ctx context.Context, entry ActivityEntry) (*model.Activity, error) {
	var details []byte
	if len(entry.Details) > 0 {
		d, err := json.Marshal(entry.Details)
		if err != nil {
			return nil, err
		}
		details = d
	}

	return r.store.Activity().Append(ctx, model.Activity{
		ActorID:    entry.Actor.ID,
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		Details:    details,
	})
}

// Publish forwards committed activities to the event producer. Delivery failures are logged, never returned.
func (r *ActivityRecorder) Publish(ctx context.Context, activities ...*model.Activity) {
	if r.producer == nil {
		return
	}
	for _, a := range activities {
		if a == nil {
			continue
		}
		ev := events.ActivityEvent{
			ActorID:    a.ActorID,
			Action:     a.Action,
			Resource:   a.Resource,
			ResourceID: a.ResourceID,
			FromStatus: a.FromStatus,
			ToStatus:   a.ToStatus,
			Timestamp:  a.CreatedAt,
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now().UTC()
		}
		if len(a.Details) > 0 {
			_ = json.Unmarshal(a.Details, &ev.Details)
		}
		if err := r.producer.Publish(ctx, ev); err != nil {
			zap.S().Named("activity_recorder").Errorw("failed to publish activity", "error", err, "action", a.Action, "resource_id", a.ResourceID)
		}
	}
}
