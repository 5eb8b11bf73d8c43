package service

import (
	"context"
	"errors"
	"roombook/internal/notifications"
	reservationserrors "roombook/internal/reservations/errors"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
	"time"
)

// transition describes one actor-driven status change.
type transition struct {
	name   string
	kind   notifications.Kind
	guard  func(actor model.Actor, r *model.Reservation) error
	mutate func(r *model.Reservation, now time.Time) (changed bool, err error)
}

func (s *reservationService) Approve(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	return s.apply(ctx, actor, id, transition{
		name:  "approve",
		kind:  notifications.KindApproved,
		guard: requireManager("approve"),
		mutate: func(r *model.Reservation, now time.Time) (bool, error) {
			return true, r.Approve(actor.ID, now)
		},
	})
}

func (s *reservationService) Reject(ctx context.Context, actor model.Actor, id, reason string) (*model.Reservation, error) {
	reason = sanitizer.TrimAndNormalize(reason)
	return s.apply(ctx, actor, id, transition{
		name:  "reject",
		kind:  notifications.KindRejected,
		guard: requireManager("reject"),
		mutate: func(r *model.Reservation, now time.Time) (bool, error) {
			return true, r.Reject(actor.ID, reason, now)
		},
	})
}

// Cancel is the requester withdrawing a reservation that is still pending.
func (s *reservationService) Cancel(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	return s.apply(ctx, actor, id, transition{
		name: "cancel",
		kind: notifications.KindCancelled,
		guard: func(actor model.Actor, r *model.Reservation) error {
			if r.RequesterID != actor.ID {
				return apperrors.Unauthorized("Only the requester can cancel this reservation")
			}
			return nil
		},
		mutate: func(r *model.Reservation, now time.Time) (bool, error) {
			return true, r.Cancel(now)
		},
	})
}

// AdminCancel is idempotent: cancelling an already cancelled reservation
// returns it unchanged and emits nothing.
func (s *reservationService) AdminCancel(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	return s.apply(ctx, actor, id, transition{
		name:  "admin_cancel",
		kind:  notifications.KindAdminCancelled,
		guard: requireManager("cancel"),
		mutate: func(r *model.Reservation, now time.Time) (bool, error) {
			return r.AdminCancel(actor.ID, now)
		},
	})
}

func (s *reservationService) apply(ctx context.Context, actor model.Actor, id string, t transition) (*model.Reservation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	reservation, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.guard(actor, reservation); err != nil {
		s.cfg.Log.Warn("Reservation transition denied",
			"transition", t.name,
			"id", id,
			"actor_id", actor.ID,
		)
		return nil, err
	}

	from := reservation.Status
	changed, err := t.mutate(reservation, s.clock.Now())
	if err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			return nil, apperrors.InvalidTransition(err.Error())
		}
		return nil, apperrors.Internal("Failed to apply transition", err)
	}
	if !changed {
		return reservation, nil
	}

	if err := s.repo.UpdateStatus(ctx, reservation, from); err != nil {
		if errors.Is(err, reservationserrors.ErrStatusPrecondition) {
			return nil, apperrors.InvalidTransition("Reservation status changed concurrently, reload and retry")
		}
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		s.cfg.Log.Error("Failed to update reservation status",
			"transition", t.name,
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to update reservation", err)
	}

	s.notify(t.kind, reservation, actor.ID)
	s.cfg.Log.Info("Reservation transitioned",
		"transition", t.name,
		"id", reservation.ID,
		"from", from,
		"to", reservation.Status,
		"actor_id", actor.ID,
	)
	return reservation, nil
}

func requireManager(action string) func(actor model.Actor, r *model.Reservation) error {
	return func(actor model.Actor, r *model.Reservation) error {
		if !actor.CanManage(r.ResourceOrgID) {
			return apperrors.Unauthorized("Not allowed to " + action + " reservations on this resource")
		}
		return nil
	}
}
