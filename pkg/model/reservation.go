package model

import (
	"time"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusApproved  ReservationStatus = "APPROVED"
	StatusRejected  ReservationStatus = "REJECTED"
	StatusCancelled ReservationStatus = "CANCELLED"
	StatusCompleted ReservationStatus = "COMPLETED"
)

// OccupyingStatuses are the statuses that contend for a resource's time window.
var OccupyingStatuses = []ReservationStatus{StatusPending, StatusApproved}

const RejectionReasonDuplicate = "duplicate"

type Reservation struct {
	ID              string            `json:"id,omitempty" bson:"_id,omitempty"`
	RequesterID     string            `json:"requester_id" bson:"requester_id"`
	RequesterOrgID  string            `json:"requester_org_id" bson:"requester_org_id"`
	ResourceID      string            `json:"resource_id" bson:"resource_id"`
	ResourceOrgID   string            `json:"resource_org_id" bson:"resource_org_id"`
	ApproverID      string            `json:"approver_id,omitempty" bson:"approver_id,omitempty"`
	StartTime       time.Time         `json:"start_time" bson:"start_time"`
	EndTime         time.Time         `json:"end_time" bson:"end_time"`
	Status          ReservationStatus `json:"status" bson:"status"`
	IsActive        bool              `json:"is_active" bson:"is_active"`
	Purpose         string            `json:"purpose" bson:"purpose"`
	Notes           string            `json:"notes,omitempty" bson:"notes,omitempty"`
	AttendeeCount   int               `json:"attendee_count" bson:"attendee_count"`
	Recurrence      *Recurrence       `json:"recurrence,omitempty" bson:"recurrence,omitempty"`
	SeriesID        string            `json:"series_id,omitempty" bson:"series_id,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" bson:"updated_at"`
}

// Overlaps applies the half-open interval test [start, end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return Overlaps(r.StartTime, r.EndTime, start, end)
}

func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}

type ReservationRequest struct {
	ResourceID    string    `json:"resource_id" validate:"required,mongodb"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Purpose       string    `json:"purpose" validate:"required,min=2,max=200"`
	Notes         string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
	AttendeeCount int       `json:"attendee_count" validate:"min=1,max=500"`
}

type RecurringRequest struct {
	ReservationRequest
	Pattern       string    `json:"pattern" validate:"required,recurrence_pattern"`
	SeriesEndDate time.Time `json:"series_end_date"`
}

// SkippedOccurrence records a series occurrence that could not be admitted.
type SkippedOccurrence struct {
	StartTime time.Time `json:"start_time"`
	Code      string    `json:"code"`
	Reason    string    `json:"reason"`
}

type RecurringResult struct {
	SeriesID string              `json:"series_id"`
	Created  []*Reservation      `json:"created"`
	Skipped  []SkippedOccurrence `json:"skipped,omitempty"`
}
