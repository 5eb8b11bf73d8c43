package service

import (
	"context"
	"errors"
	"roombook/internal/notifications"
	reservationserrors "roombook/internal/reservations/errors"
	"roombook/internal/reservations/repository"
	"roombook/pkg/clock"
	"roombook/pkg/logger"
	"roombook/pkg/model"
	"time"
)

const (
	reasonApprovalWindowClosed = "not approved before the approval window closed"
	reasonStartPassed          = "start time passed without approval"
)

// Sweeper runs the periodic maintenance passes. Every row is moved with a
// status-guarded update, so a sweep racing an approver or another replica
// never overwrites a decision that already happened. A failing row is logged
// and the pass continues with the next one.
type Sweeper struct {
	repo     repository.ReservationRepository
	notifier Notifier
	clock    clock.Clock
	horizon  time.Duration
	log      *logger.Logger

	batchSize int
}

func NewSweeper(repo repository.ReservationRepository, notifier Notifier, clk clock.Clock, horizon time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		horizon:  horizon,
		log:      log,

		batchSize: repository.SweepBatchSize,
	}
}

// RejectImminent auto-rejects pending reservations starting within the
// horizon.
func (s *Sweeper) RejectImminent(ctx context.Context) (int, error) {
	now := s.clock.Now()
	return s.autoReject(ctx, now.Add(s.horizon), now, reasonApprovalWindowClosed)
}

// RejectExpired auto-rejects pending reservations whose start has passed.
func (s *Sweeper) RejectExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	return s.autoReject(ctx, now, now, reasonStartPassed)
}

func (s *Sweeper) autoReject(ctx context.Context, cutoff, now time.Time, reason string) (int, error) {
	return s.eachPage(ctx,
		func(ctx context.Context, afterID string) ([]*model.Reservation, error) {
			return s.repo.FindPendingStartingBy(ctx, cutoff, afterID, s.batchSize)
		},
		func(r *model.Reservation) bool {
			if err := r.AutoReject(reason, cutoff, now); err != nil {
				s.log.Debug("Skipping reservation", "id", r.ID, "error", err)
				return false
			}
			return s.commit(ctx, r, model.StatusPending, notifications.KindAutoRejected)
		},
	)
}

// CompleteElapsed marks approved reservations whose end has passed as
// completed.
func (s *Sweeper) CompleteElapsed(ctx context.Context) (int, error) {
	now := s.clock.Now()
	return s.eachPage(ctx,
		func(ctx context.Context, afterID string) ([]*model.Reservation, error) {
			return s.repo.FindApprovedEndedBy(ctx, now, afterID, s.batchSize)
		},
		func(r *model.Reservation) bool {
			if err := r.Complete(now); err != nil {
				s.log.Debug("Skipping reservation", "id", r.ID, "error", err)
				return false
			}
			return s.commit(ctx, r, model.StatusApproved, notifications.KindCompleted)
		},
	)
}

// eachPage feeds every row find returns to apply, one page at a time. A page
// resumes after the last id of the previous one, so rows that keep failing do
// not hold back the rows behind them.
func (s *Sweeper) eachPage(
	ctx context.Context,
	find func(ctx context.Context, afterID string) ([]*model.Reservation, error),
	apply func(r *model.Reservation) bool,
) (int, error) {
	processed := 0
	afterID := ""
	for {
		page, err := find(ctx, afterID)
		if err != nil {
			return processed, err
		}
		for _, r := range page {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
			if apply(r) {
				processed++
			}
		}
		if len(page) < s.batchSize {
			return processed, nil
		}
		afterID = page[len(page)-1].ID
	}
}

// RejectDuplicates keeps the earliest submission of every group of identical
// pending reservations and rejects the rest.
func (s *Sweeper) RejectDuplicates(ctx context.Context) (int, error) {
	groups, err := s.repo.FindDuplicatePendingGroups(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, group := range groups {
		if len(group.IDs) < 2 {
			continue
		}
		for _, id := range group.IDs[1:] {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
			r, err := s.repo.FindByID(ctx, id)
			if err != nil {
				s.log.Warn("Failed to load duplicate reservation", "id", id, "error", err)
				continue
			}
			if err := r.Reject("", model.RejectionReasonDuplicate, s.clock.Now()); err != nil {
				s.log.Debug("Skipping reservation", "id", id, "error", err)
				continue
			}
			if s.commit(ctx, r, model.StatusPending, notifications.KindDuplicateRejected) {
				processed++
			}
		}
	}
	return processed, nil
}

func (s *Sweeper) commit(ctx context.Context, r *model.Reservation, from model.ReservationStatus, kind notifications.Kind) bool {
	if err := s.repo.UpdateStatus(ctx, r, from); err != nil {
		if errors.Is(err, reservationserrors.ErrStatusPrecondition) {
			s.log.Debug("Reservation changed before sweep", "id", r.ID, "expected", from)
			return false
		}
		s.log.Error("Failed to update reservation during sweep", "id", r.ID, "error", err)
		return false
	}

	if !s.notifier.Enqueue(notifications.ForReservation(kind, r, "", s.clock.Now())) {
		s.log.Warn("Notification dropped", "kind", kind, "reservation_id", r.ID)
	}
	s.log.Info("Reservation swept",
		"id", r.ID,
		"from", from,
		"to", r.Status,
		"reason", r.RejectionReason,
	)
	return true
}
