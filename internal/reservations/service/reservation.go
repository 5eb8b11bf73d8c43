package service

import (
	"context"
	"errors"
	"fmt"
	"roombook/internal/notifications"
	reservationserrors "roombook/internal/reservations/errors"
	"roombook/internal/reservations/repository"
	"roombook/internal/reservations/validator"
	"roombook/pkg/clock"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
	"time"

	"golang.org/x/sync/errgroup"
)

// Notifier accepts notifications after the transition that produced them has
// committed. Implementations must not block.
type Notifier interface {
	Enqueue(n notifications.Notification) bool
}

type Repositories struct {
	Reservations repository.ReservationRepository
	Resources    repository.ResourceRepository
	Visibility   repository.VisibilityRepository
	Locks        repository.ResourceLockRepository
}

type ReservationService interface {
	Create(ctx context.Context, actor model.Actor, req *model.ReservationRequest) (*model.Reservation, error)
	CreateRecurring(ctx context.Context, actor model.Actor, req *model.RecurringRequest) (*model.RecurringResult, error)
	GetByID(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error)
	ListMine(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Reservation, int64, error)
	ListPendingForOrganization(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Reservation, int64, error)

	Approve(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error)
	Reject(ctx context.Context, actor model.Actor, id, reason string) (*model.Reservation, error)
	Cancel(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error)
	AdminCancel(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error)

	Availability(ctx context.Context, actor model.Actor, start, end time.Time) ([]*model.Resource, error)
	ReplaceVisibility(ctx context.Context, actor model.Actor, orgID, date string, req *model.VisibilityReplaceRequest) error
}

type reservationService struct {
	repo       repository.ReservationRepository
	resources  repository.ResourceRepository
	visibility repository.VisibilityRepository
	locker     *ResourceLocker
	detector   *Detector
	validator  *validator.RequestValidator
	rules      validator.Rules
	notifier   Notifier
	clock      clock.Clock
	cfg        *config.Config
}

func NewReservationService(
	repos Repositories,
	validator *validator.RequestValidator,
	rules validator.Rules,
	notifier Notifier,
	clk clock.Clock,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:       repos.Reservations,
		resources:  repos.Resources,
		visibility: repos.Visibility,
		locker: NewResourceLocker(
			repos.Locks,
			clk,
			cfg.ResourceLockTTL,
			cfg.ResourceLockWait,
			cfg.ResourceLockRetry,
			cfg.Log.Component("resource_lock"),
		),
		detector:  NewDetector(repos.Reservations, cfg.BookingRateLimitWindow),
		validator: validator,
		rules:     rules,
		notifier:  notifier,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *reservationService) Create(ctx context.Context, actor model.Actor, req *model.ReservationRequest) (*model.Reservation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	s.sanitize(req)
	if err := s.validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := s.rules.CheckWindow(req.StartTime, req.EndTime, s.clock.Now()); err != nil {
		return nil, err
	}

	resource, err := s.bookableResource(ctx, req.ResourceID, req.AttendeeCount)
	if err != nil {
		return nil, err
	}

	var created *model.Reservation
	err = s.locker.WithLock(ctx, resource.ID, func(ctx context.Context) error {
		var admitErr error
		created, admitErr = s.admitOccurrence(ctx, actor, resource, req, req.StartTime, req.EndTime, nil)
		return admitErr
	})
	if err != nil {
		s.logRejection(actor, req.ResourceID, err)
		return nil, err
	}

	s.notify(notifications.KindCreated, created, actor.ID)
	s.cfg.Log.Info("Reservation created successfully",
		"id", created.ID,
		"requester_id", created.RequesterID,
		"resource_id", created.ResourceID,
		"start_time", created.StartTime,
		"end_time", created.EndTime,
	)
	return created, nil
}

// series carries the fields shared by every instance of a recurring request.
type series struct {
	id         string
	recurrence model.Recurrence
}

// admitOccurrence runs the window rules, the visibility gate and the detector
// for one window and persists the reservation. The caller holds the resource
// lock.
func (s *reservationService) admitOccurrence(
	ctx context.Context,
	actor model.Actor,
	resource *model.Resource,
	req *model.ReservationRequest,
	start, end time.Time,
	ser *series,
) (*model.Reservation, error) {
	// now is re-read under the lock since waiting for it may have consumed
	// part of the lead time.
	now := s.clock.Now()
	// Stored times carry millisecond precision; match it so the exact
	// duplicate scan compares like with like.
	start, end = start.UTC().Truncate(time.Millisecond), end.UTC().Truncate(time.Millisecond)
	if err := s.rules.CheckWindow(start, end, now); err != nil {
		return nil, err
	}
	if err := s.checkGate(ctx, actor, resource.ID, start); err != nil {
		return nil, err
	}

	var created *model.Reservation
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		candidate := Candidate{
			RequesterID: actor.ID,
			ResourceID:  resource.ID,
			StartTime:   start,
			EndTime:     end,
			Purpose:     req.Purpose,
		}
		if err := s.detector.Check(txCtx, candidate, now, ser != nil); err != nil {
			return err
		}
		if err := s.locker.Confirm(txCtx); err != nil {
			return err
		}

		// Built inside the closure so a retried transaction starts clean.
		reservation := &model.Reservation{
			RequesterID:    actor.ID,
			RequesterOrgID: actor.OrganizationID,
			ResourceID:     resource.ID,
			ResourceOrgID:  resource.OrganizationID,
			StartTime:      start,
			EndTime:        end,
			Status:         model.StatusPending,
			IsActive:       true,
			Purpose:        req.Purpose,
			Notes:          req.Notes,
			AttendeeCount:  req.AttendeeCount,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if ser != nil {
			recurrence := ser.recurrence
			reservation.Recurrence = &recurrence
			reservation.SeriesID = ser.id
		}

		if err := s.repo.Create(txCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		created = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// bookableResource resolves a resource that exists, is active and can seat
// the requested attendees.
func (s *reservationService) bookableResource(ctx context.Context, resourceID string, attendees int) (*model.Resource, error) {
	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrResourceNotFound) || errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Resource", resourceID)
		}
		return nil, apperrors.Internal("Failed to retrieve resource", err)
	}
	if !resource.IsActive {
		return nil, apperrors.NotFoundWithID("Resource", resourceID)
	}
	if resource.Capacity > 0 && attendees > resource.Capacity {
		return nil, apperrors.Validation(
			fmt.Sprintf("attendee_count %d exceeds resource capacity %d", attendees, resource.Capacity),
			map[string]any{"AttendeeCount": fmt.Sprintf("must be at most %d", resource.Capacity)},
		)
	}
	return resource, nil
}

// checkGate denies by default: the resource must be listed for the actor's
// organization on the local date of start.
func (s *reservationService) checkGate(ctx context.Context, actor model.Actor, resourceID string, start time.Time) error {
	date := s.rules.LocalDate(start)
	visible, err := s.visibility.FindResourceIDs(ctx, actor.OrganizationID, date)
	if err != nil {
		return apperrors.Internal("Failed to resolve resource visibility", err)
	}
	for _, id := range visible {
		if id == resourceID {
			return nil
		}
	}
	return apperrors.NotFound("Resource").WithDetails(map[string]any{
		"resource_id": resourceID,
		"date":        date,
	})
}

func (s *reservationService) GetByID(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	reservation, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.RequesterID != actor.ID && !actor.CanManage(reservation.ResourceOrgID) {
		return nil, apperrors.NotFoundWithID("Reservation", id)
	}
	return reservation, nil
}

func (s *reservationService) ListMine(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Reservation, error) {
			return s.repo.FindByRequester(ctx, actor.ID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountByRequester(ctx, actor.ID)
		},
	)
}

// ListPendingForOrganization returns the approval queue of the actor's
// organization. A super admin without an organization sees every queue.
func (s *reservationService) ListPendingForOrganization(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	switch actor.Authority {
	case model.AuthoritySuperAdmin:
	case model.AuthorityOrgAdmin:
		if actor.OrganizationID == "" {
			return nil, 0, apperrors.Unauthorized("Organization admin has no organization")
		}
	default:
		return nil, 0, apperrors.Unauthorized("Only organization admins can view pending approvals")
	}

	orgID := actor.OrganizationID
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Reservation, error) {
			return s.repo.FindPendingByOrganization(ctx, orgID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountPendingByOrganization(ctx, orgID)
		},
	)
}

// list runs the page query and the count concurrently.
func (s *reservationService) list(
	ctx context.Context,
	find func(ctx context.Context) ([]*model.Reservation, error),
	count func(ctx context.Context) (int64, error),
) ([]*model.Reservation, int64, error) {
	var reservations []*model.Reservation
	var total int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := count(gctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", err)
			return apperrors.Internal("Failed to count reservations", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		found, err := find(gctx)
		if err != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", err)
			return apperrors.Internal("Failed to retrieve reservations", err)
		}
		reservations = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if reservations == nil {
		reservations = []*model.Reservation{}
	}
	return reservations, total, nil
}

func (s *reservationService) load(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}
	return reservation, nil
}

func (s *reservationService) sanitize(req *model.ReservationRequest) {
	req.ResourceID = sanitizer.NormalizeID(req.ResourceID)
	req.Purpose = sanitizer.NormalizePurpose(req.Purpose)
	req.Notes = sanitizer.NormalizeNotes(req.Notes)
}

func (s *reservationService) notify(kind notifications.Kind, r *model.Reservation, actorID string) {
	if !s.notifier.Enqueue(notifications.ForReservation(kind, r, actorID, s.clock.Now())) {
		s.cfg.Log.Warn("Notification dropped",
			"kind", kind,
			"reservation_id", r.ID,
		)
	}
}

func (s *reservationService) logRejection(actor model.Actor, resourceID string, err error) {
	appErr := apperrors.AsAppError(err)
	if appErr.Code == apperrors.CodeInternal {
		s.cfg.Log.Error("Failed to create reservation",
			"requester_id", actor.ID,
			"resource_id", resourceID,
			"error", err,
		)
		return
	}
	s.cfg.Log.Warn("Reservation rejected",
		"requester_id", actor.ID,
		"resource_id", resourceID,
		"code", appErr.Code,
		"reason", appErr.Message,
	)
}

func requireActor(actor model.Actor) error {
	if actor.ID == "" {
		return apperrors.Unauthorized("Missing actor identity")
	}
	return nil
}
