package service

import (
	"context"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) recurring(pattern string, start, end, seriesEnd time.Time) *model.RecurringRequest {
	return &model.RecurringRequest{
		ReservationRequest: *f.request(start, end),
		Pattern:            pattern,
		SeriesEndDate:      seriesEnd,
	}
}

func startDays(rs []*model.Reservation) []int {
	days := make([]int, 0, len(rs))
	for _, r := range rs {
		days = append(days, r.StartTime.Day())
	}
	return days
}

func TestCreateRecurring_DailySkipsWeekendsAndFailures(t *testing.T) {
	f := newFixture(t)
	// Every weekday from Tue 20 to Fri 30 except Thu 22.
	f.offer(f.room, orgA, 20, 21, 23, 26, 27, 28, 29, 30)
	f.seed(bob, model.StatusApproved, at(27, 10, 30), at(27, 11, 30))

	req := f.recurring("DAILY", at(20, 10, 0), at(20, 11, 0), at(30, 0, 0))
	result, err := f.svc.CreateRecurring(context.Background(), alice, req)
	require.NoError(t, err)

	assert.NotEmpty(t, result.SeriesID)
	assert.Equal(t, []int{20, 21, 23, 26, 28, 29, 30}, startDays(result.Created))

	require.Len(t, result.Skipped, 2)
	assert.Equal(t, at(22, 10, 0), result.Skipped[0].StartTime)
	assert.Equal(t, apperrors.CodeNotFound, result.Skipped[0].Code)
	assert.Equal(t, at(27, 10, 0), result.Skipped[1].StartTime)
	assert.Equal(t, apperrors.CodeResourceConflict, result.Skipped[1].Code)

	for _, r := range result.Created {
		assert.Equal(t, result.SeriesID, r.SeriesID)
		require.NotNil(t, r.Recurrence)
		assert.Equal(t, "DAILY", r.Recurrence.Pattern)
		assert.Equal(t, time.Hour, r.EndTime.Sub(r.StartTime))
		assert.Equal(t, model.StatusPending, r.Status)
	}
	assert.Len(t, f.notifier.kinds(), len(result.Created))
}

func TestCreateRecurring_Patterns(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		seriesEnd time.Time
		want      []int
	}{
		{name: "weekly", pattern: "WEEKLY", seriesEnd: at(30, 0, 0), want: []int{20, 27}},
		{name: "custom weekdays", pattern: "CUSTOM:MON,WED", seriesEnd: at(30, 0, 0), want: []int{21, 26, 28}},
		{name: "end date is inclusive", pattern: "DAILY", seriesEnd: at(23, 0, 0), want: []int{20, 21, 22, 23}},
		{name: "single day series", pattern: "DAILY", seriesEnd: at(20, 23, 59), want: []int{20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.offer(f.room, orgA, 20, 21, 22, 23, 26, 27, 28, 29, 30)

			result, err := f.svc.CreateRecurring(context.Background(), alice, f.recurring(tt.pattern, at(20, 10, 0), at(20, 11, 0), tt.seriesEnd))
			require.NoError(t, err)
			assert.Equal(t, tt.want, startDays(result.Created))
			assert.Empty(t, result.Skipped)
		})
	}
}

func TestCreateRecurring_WeeklyRoundTrip(t *testing.T) {
	f := newFixture(t)
	// Day 34 of October normalizes to Tue 3 November.
	f.offer(f.room, orgA, 20, 27, 34)

	seriesEnd := at(20, 0, 0).AddDate(0, 0, 14)
	result, err := f.svc.CreateRecurring(context.Background(), alice, f.recurring("WEEKLY", at(20, 10, 0), at(20, 11, 0), seriesEnd))
	require.NoError(t, err)
	assert.Empty(t, result.Skipped)
	require.Len(t, result.Created, 3)

	persisted := make([]*model.Reservation, 0, len(f.repo.rows))
	for _, r := range f.repo.rows {
		persisted = append(persisted, r)
	}
	require.Len(t, persisted, 3)
	sort.Slice(persisted, func(i, j int) bool { return persisted[i].StartTime.Before(persisted[j].StartTime) })

	assert.Equal(t, at(20, 10, 0), persisted[0].StartTime)
	for i, r := range persisted {
		assert.Equal(t, model.StatusPending, r.Status)
		assert.True(t, r.IsActive)
		assert.Equal(t, result.SeriesID, r.SeriesID)
		if i > 0 {
			assert.Equal(t, 7*24*time.Hour, r.StartTime.Sub(persisted[i-1].StartTime))
		}
	}
}

func TestCreateRecurring_OccurrenceCap(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.MaxRecurringOccurrences = 3 })
	f.offer(f.room, orgA, 20, 21, 22, 23, 26)

	result, err := f.svc.CreateRecurring(context.Background(), alice, f.recurring("DAILY", at(20, 10, 0), at(20, 11, 0), at(26, 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, []int{20, 21, 22}, startDays(result.Created))
}

func TestCreateRecurring_BeyondAdvanceWindowIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.offer(f.room, orgA, 20)

	// Four weeks after Tue 20 10:00 is past the advance window from Mon 19 08:00.
	seriesEnd := at(20, 0, 0).AddDate(0, 0, 28)
	result, err := f.svc.CreateRecurring(context.Background(), alice, f.recurring("WEEKLY", at(20, 10, 0), at(20, 11, 0), seriesEnd))
	require.NoError(t, err)

	require.Len(t, result.Created, 1)
	var codes []string
	for _, s := range result.Skipped {
		codes = append(codes, s.Code)
	}
	assert.Equal(t, []string{
		apperrors.CodeNotFound,
		apperrors.CodeNotFound,
		apperrors.CodeNotFound,
		apperrors.CodeOutsideAdvanceWindow,
	}, codes)
}

func TestCreateRecurring_RateLimitAppliesOncePerSeries(t *testing.T) {
	f := newFixture(t)
	f.offer(f.room, orgA, 20, 21, 22)
	ctx := context.Background()

	result, err := f.svc.CreateRecurring(ctx, alice, f.recurring("DAILY", at(20, 10, 0), at(20, 11, 0), at(22, 0, 0)))
	require.NoError(t, err)
	assert.Len(t, result.Created, 3, "instances of one series do not rate limit each other")

	_, err = f.svc.CreateRecurring(ctx, alice, f.recurring("DAILY", at(20, 13, 0), at(20, 14, 0), at(22, 0, 0)))
	requireCode(t, err, apperrors.CodeRateLimited)
}

func TestCreateRecurring_InvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(req *model.RecurringRequest)
		code   string
	}{
		{name: "unknown pattern", mutate: func(req *model.RecurringRequest) { req.Pattern = "MONTHLY" }, code: apperrors.CodeValidation},
		{name: "missing series end", mutate: func(req *model.RecurringRequest) { req.SeriesEndDate = time.Time{} }, code: apperrors.CodeValidation},
		{name: "series end before start", mutate: func(req *model.RecurringRequest) { req.SeriesEndDate = at(19, 0, 0) }, code: apperrors.CodeValidation},
		{name: "inverted window", mutate: func(req *model.RecurringRequest) { req.EndTime = req.StartTime.Add(-time.Hour) }, code: apperrors.CodeInvalidWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.offer(f.room, orgA, 20, 21)
			req := f.recurring("DAILY", at(20, 10, 0), at(20, 11, 0), at(21, 0, 0))
			tt.mutate(req)

			_, err := f.svc.CreateRecurring(context.Background(), alice, req)
			requireCode(t, err, tt.code)
			assert.Empty(t, f.repo.rows)
		})
	}
}

func TestCreateRecurring_HoldsOneLockForTheSeries(t *testing.T) {
	f := newFixture(t)
	f.offer(f.room, orgA, 20, 21, 22)

	_, err := f.svc.CreateRecurring(context.Background(), alice, f.recurring("DAILY", at(20, 10, 0), at(20, 11, 0), at(22, 0, 0)))
	require.NoError(t, err)
	assert.Equal(t, 1, f.locks.acquired)
	assert.False(t, f.locks.held(lockIDPrefix+f.room.ID))
}
