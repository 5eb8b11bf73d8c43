package model

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("invalid reservation status transition")

var transitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusCancelled},
}

func (s ReservationStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (r *Reservation) transition(next ReservationStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	r.UpdatedAt = now
	if next != StatusApproved {
		r.IsActive = false
	}
	return nil
}

func (r *Reservation) Approve(approverID string, now time.Time) error {
	if err := r.transition(StatusApproved, now); err != nil {
		return err
	}
	r.ApproverID = approverID
	return nil
}

func (r *Reservation) Reject(approverID, reason string, now time.Time) error {
	if err := r.transition(StatusRejected, now); err != nil {
		return err
	}
	r.ApproverID = approverID
	r.RejectionReason = reason
	return nil
}

// Cancel is the owner's self-cancellation. Only PENDING reservations qualify;
// approved reservations can only be withdrawn through AdminCancel.
func (r *Reservation) Cancel(now time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: %s cannot be cancelled by its requester", ErrInvalidTransition, r.Status)
	}
	return r.transition(StatusCancelled, now)
}

// AdminCancel reports changed=false without error when the reservation is
// already CANCELLED or COMPLETED.
func (r *Reservation) AdminCancel(by string, now time.Time) (changed bool, err error) {
	if r.Status == StatusCancelled || r.Status == StatusCompleted {
		return false, nil
	}
	if err := r.transition(StatusCancelled, now); err != nil {
		return false, err
	}
	r.ApproverID = by
	return true, nil
}

func (r *Reservation) Complete(now time.Time) error {
	if r.Status != StatusApproved {
		return fmt.Errorf("%w: only approved reservations complete", ErrInvalidTransition)
	}
	if now.Before(r.EndTime) {
		return fmt.Errorf("%w: reservation ends at %s", ErrInvalidTransition, r.EndTime.Format(time.RFC3339))
	}
	return r.transition(StatusCompleted, now)
}

// AutoReject rejects a PENDING reservation whose start time is at or before
// cutoff. The expired sweep passes cutoff=now, the imminent sweep passes a
// short horizon past now.
func (r *Reservation) AutoReject(reason string, cutoff, now time.Time) error {
	if r.StartTime.After(cutoff) {
		return fmt.Errorf("%w: approval window still open until %s", ErrInvalidTransition, r.StartTime.Format(time.RFC3339))
	}
	return r.Reject("", reason, now)
}
