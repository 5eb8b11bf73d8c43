package notifications

import (
	"roombook/pkg/model"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindCreated           Kind = "reservation.created"
	KindApproved          Kind = "reservation.approved"
	KindRejected          Kind = "reservation.rejected"
	KindCancelled         Kind = "reservation.cancelled"
	KindAdminCancelled    Kind = "reservation.admin_cancelled"
	KindCompleted         Kind = "reservation.completed"
	KindAutoRejected      Kind = "reservation.auto_rejected"
	KindDuplicateRejected Kind = "reservation.duplicate_rejected"
)

// Notification is the payload handed to a sink after a transition commits.
type Notification struct {
	EventID        string                  `json:"event_id"`
	Kind           Kind                    `json:"kind"`
	RecipientID    string                  `json:"recipient_id"`
	ActorID        string                  `json:"actor_id,omitempty"`
	ReservationID  string                  `json:"reservation_id"`
	ResourceID     string                  `json:"resource_id"`
	ResourceOrgID  string                  `json:"resource_org_id"`
	RequesterOrgID string                  `json:"requester_org_id"`
	Status         model.ReservationStatus `json:"status"`
	StartTime      time.Time               `json:"start_time"`
	EndTime        time.Time               `json:"end_time"`
	Reason         string                  `json:"reason,omitempty"`
	OccurredAt     time.Time               `json:"occurred_at"`
}

// ForReservation builds a notification addressed to the reservation's
// requester. actorID is empty for system transitions.
func ForReservation(kind Kind, r *model.Reservation, actorID string, at time.Time) Notification {
	return Notification{
		EventID:        uuid.NewString(),
		Kind:           kind,
		RecipientID:    r.RequesterID,
		ActorID:        actorID,
		ReservationID:  r.ID,
		ResourceID:     r.ResourceID,
		ResourceOrgID:  r.ResourceOrgID,
		RequesterOrgID: r.RequesterOrgID,
		Status:         r.Status,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Reason:         r.RejectionReason,
		OccurredAt:     at,
	}
}
