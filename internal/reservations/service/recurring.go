package service

import (
	"context"
	"roombook/internal/notifications"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"

	"github.com/google/uuid"
)

// CreateRecurring expands the request into one occurrence per matching local
// date up to and including the series end date. Each occurrence is admitted on
// its own; a rejected occurrence is reported as skipped and the rest of the
// series continues. The rate limit applies once to the series as a whole.
func (s *reservationService) CreateRecurring(ctx context.Context, actor model.Actor, req *model.RecurringRequest) (*model.RecurringResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	s.sanitize(&req.ReservationRequest)
	if err := s.validator.ValidateRecurring(req); err != nil {
		return nil, err
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() || !req.EndTime.After(req.StartTime) {
		return nil, apperrors.InvalidWindow("end_time must be after start_time")
	}

	rule, err := model.ParseRecurrence(req.Pattern)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	resource, err := s.bookableResource(ctx, req.ResourceID, req.AttendeeCount)
	if err != nil {
		return nil, err
	}

	ser := &series{
		id: uuid.NewString(),
		recurrence: model.Recurrence{
			Pattern: req.Pattern,
			EndDate: req.SeriesEndDate.UTC(),
		},
	}
	result := &model.RecurringResult{
		SeriesID: ser.id,
		Created:  []*model.Reservation{},
	}

	duration := req.EndTime.Sub(req.StartTime)
	lastDate := s.rules.LocalDate(req.SeriesEndDate)

	err = s.locker.WithLock(ctx, resource.ID, func(ctx context.Context) error {
		if err := s.detector.CheckRateLimit(ctx, Candidate{RequesterID: actor.ID, ResourceID: resource.ID}, s.clock.Now()); err != nil {
			return err
		}

		occurrences := 0
		// The cursor walks local wall-clock time so DST changes keep the
		// occurrence at the same local hour.
		for cursor := s.rules.Local(req.StartTime); s.rules.LocalDate(cursor) <= lastDate; cursor = rule.Next(cursor) {
			if ctx.Err() != nil {
				s.cfg.Log.Warn("Recurring series interrupted",
					"series_id", ser.id,
					"created", len(result.Created),
					"error", context.Cause(ctx),
				)
				break
			}
			if !rule.Includes(cursor) {
				continue
			}
			if occurrences >= s.cfg.MaxRecurringOccurrences {
				s.cfg.Log.Warn("Recurring series truncated",
					"series_id", ser.id,
					"max_occurrences", s.cfg.MaxRecurringOccurrences,
				)
				break
			}
			occurrences++

			start, end := cursor, cursor.Add(duration)
			created, err := s.admitOccurrence(ctx, actor, resource, &req.ReservationRequest, start, end, ser)
			if err != nil {
				appErr := apperrors.AsAppError(err)
				if appErr.Code == apperrors.CodeInternal {
					s.cfg.Log.Error("Failed to admit series occurrence",
						"series_id", ser.id,
						"start_time", start,
						"error", err,
					)
				}
				result.Skipped = append(result.Skipped, model.SkippedOccurrence{
					StartTime: start.UTC(),
					Code:      appErr.Code,
					Reason:    appErr.Message,
				})
				continue
			}
			result.Created = append(result.Created, created)
		}
		return nil
	})
	if err != nil {
		s.logRejection(actor, req.ResourceID, err)
		return nil, err
	}

	for _, r := range result.Created {
		s.notify(notifications.KindCreated, r, actor.ID)
	}

	s.cfg.Log.Info("Recurring series processed",
		"series_id", ser.id,
		"requester_id", actor.ID,
		"resource_id", resource.ID,
		"created", len(result.Created),
		"skipped", len(result.Skipped),
	)
	return result, nil
}
