package service

import (
	"context"
	"fmt"
	"roombook/internal/reservations/repository"
	apperrors "roombook/pkg/errors"
	"time"
)

// Candidate is a validated window a requester wants to occupy.
type Candidate struct {
	RequesterID string
	ResourceID  string
	StartTime   time.Time
	EndTime     time.Time
	Purpose     string
}

// Detector runs the overlap, exact-duplicate and rate-limit scans against one
// resource's reservation set.
type Detector struct {
	repo            repository.ReservationRepository
	rateLimitWindow time.Duration
}

func NewDetector(repo repository.ReservationRepository, rateLimitWindow time.Duration) *Detector {
	return &Detector{repo: repo, rateLimitWindow: rateLimitWindow}
}

// Check returns the first scan that blocks c. The rate-limit scan is skipped
// when skipRateLimit is set, which the series expander does after checking it
// once for the whole series.
func (d *Detector) Check(ctx context.Context, c Candidate, now time.Time, skipRateLimit bool) error {
	if err := d.checkOverlap(ctx, c); err != nil {
		return err
	}
	if err := d.checkDuplicate(ctx, c); err != nil {
		return err
	}
	if skipRateLimit {
		return nil
	}
	return d.CheckRateLimit(ctx, c, now)
}

func (d *Detector) checkOverlap(ctx context.Context, c Candidate) error {
	overlapping, err := d.repo.FindOverlapping(ctx, c.ResourceID, c.StartTime, c.EndTime)
	if err != nil {
		return apperrors.Internal("Failed to scan overlapping reservations", err)
	}
	if len(overlapping) == 0 {
		return nil
	}

	for _, existing := range overlapping {
		if existing.RequesterID == c.RequesterID {
			return apperrors.SelfOverlap(existing.StartTime, existing.EndTime)
		}
	}

	blocking := overlapping[0]
	return apperrors.ResourceConflict(
		blocking.ID,
		blocking.RequesterID,
		blocking.RequesterOrgID,
		blocking.StartTime,
		blocking.EndTime,
	)
}

func (d *Detector) checkDuplicate(ctx context.Context, c Candidate) error {
	duplicates, err := d.repo.FindExactDuplicates(ctx, c.RequesterID, c.ResourceID, c.StartTime, c.EndTime, c.Purpose)
	if err != nil {
		return apperrors.Internal("Failed to scan duplicate reservations", err)
	}
	if len(duplicates) > 0 {
		return apperrors.DuplicateSubmission("An identical reservation request already exists")
	}
	return nil
}

func (d *Detector) CheckRateLimit(ctx context.Context, c Candidate, now time.Time) error {
	recent, err := d.repo.CountRecentByRequester(ctx, c.RequesterID, c.ResourceID, now.Add(-d.rateLimitWindow))
	if err != nil {
		return apperrors.Internal("Failed to scan recent reservations", err)
	}
	if recent > 0 {
		return apperrors.RateLimited(fmt.Sprintf("Too many attempts on this resource, retry after %s", d.rateLimitWindow))
	}
	return nil
}
