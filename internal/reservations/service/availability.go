package service

import (
	"context"
	"fmt"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
	"strings"
	"time"
)

// Availability lists the resources visible to the actor's organization on the
// local date of start that are active and free for the whole window.
func (s *reservationService) Availability(ctx context.Context, actor model.Actor, start, end time.Time) ([]*model.Resource, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return nil, apperrors.InvalidWindow("end must be after start")
	}

	visible, err := s.visibility.FindResourceIDs(ctx, actor.OrganizationID, s.rules.LocalDate(start))
	if err != nil {
		return nil, apperrors.Internal("Failed to resolve resource visibility", err)
	}
	if len(visible) == 0 {
		return []*model.Resource{}, nil
	}

	resources, err := s.resources.FindByIDs(ctx, visible)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve resources", err)
	}

	activeIDs := make([]string, 0, len(resources))
	for _, r := range resources {
		if r.IsActive {
			activeIDs = append(activeIDs, r.ID)
		}
	}
	if len(activeIDs) == 0 {
		return []*model.Resource{}, nil
	}

	busyIDs, err := s.repo.FindBusyResourceIDs(ctx, activeIDs, start, end)
	if err != nil {
		return nil, apperrors.Internal("Failed to scan reservations", err)
	}
	busy := make(map[string]struct{}, len(busyIDs))
	for _, id := range busyIDs {
		busy[id] = struct{}{}
	}

	free := make([]*model.Resource, 0, len(activeIDs))
	for _, r := range resources {
		if !r.IsActive {
			continue
		}
		if _, taken := busy[r.ID]; taken {
			continue
		}
		free = append(free, r)
	}
	return free, nil
}

// ReplaceVisibility overwrites the set of resources offered to orgID on date.
// An empty list withdraws every resource for that date. Resources owned by
// other organizations may be listed.
func (s *reservationService) ReplaceVisibility(ctx context.Context, actor model.Actor, orgID, date string, req *model.VisibilityReplaceRequest) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return apperrors.InvalidInput("Organization ID cannot be empty")
	}
	if !actor.CanManage(orgID) {
		return apperrors.Unauthorized("Not allowed to manage resource visibility for this organization")
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("date must use the %s layout", model.DateLayout))
	}

	req.ResourceIDs = sanitizer.NormalizeIDs(req.ResourceIDs)
	if err := s.validator.ValidateVisibility(req); err != nil {
		return err
	}

	if len(req.ResourceIDs) > 0 {
		found, err := s.resources.FindByIDs(ctx, req.ResourceIDs)
		if err != nil {
			return apperrors.Internal("Failed to retrieve resources", err)
		}
		if missing := missingIDs(req.ResourceIDs, found); len(missing) > 0 {
			return apperrors.NotFound("Resource").WithDetails(map[string]any{"missing": missing})
		}
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		return s.visibility.Replace(txCtx, orgID, date, req.ResourceIDs, s.clock.Now())
	})
	if err != nil {
		s.cfg.Log.Error("Failed to replace resource visibility",
			"organization_id", orgID,
			"date", date,
			"error", err,
		)
		return apperrors.Internal("Failed to replace resource visibility", err)
	}

	s.cfg.Log.Info("Resource visibility replaced",
		"organization_id", orgID,
		"date", date,
		"resources", len(req.ResourceIDs),
	)
	return nil
}

func missingIDs(want []string, found []*model.Resource) []string {
	seen := make(map[string]struct{}, len(found))
	for _, r := range found {
		seen[r.ID] = struct{}{}
	}
	var missing []string
	for _, id := range want {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
