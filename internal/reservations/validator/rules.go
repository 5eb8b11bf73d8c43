package validator

import (
	"fmt"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"time"
)

// Rules holds the temporal admission rules. CheckWindow is pure; callers pass
// the request time explicitly.
type Rules struct {
	Location    *time.Location
	MinLead     time.Duration
	MinDuration time.Duration
	MaxDuration time.Duration
	MaxAdvance  time.Duration
	// DayStart and DayEnd are offsets from local midnight.
	DayStart time.Duration
	DayEnd   time.Duration
}

func DefaultRules() Rules {
	return Rules{
		Location:    time.UTC,
		MinLead:     config.DefaultBookingMinLead,
		MinDuration: config.DefaultBookingMinDuration,
		MaxDuration: config.DefaultBookingMaxDuration,
		MaxAdvance:  config.DefaultBookingMaxAdvance,
		DayStart:    7 * time.Hour,
		DayEnd:      17 * time.Hour,
	}
}

func RulesFromConfig(cfg *config.Config) (Rules, error) {
	dayStart, err := config.ParseTimeOfDay(cfg.BusinessDayStart)
	if err != nil {
		return Rules{}, err
	}
	dayEnd, err := config.ParseTimeOfDay(cfg.BusinessDayEnd)
	if err != nil {
		return Rules{}, err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return Rules{
		Location:    loc,
		MinLead:     cfg.BookingMinLead,
		MinDuration: cfg.BookingMinDuration,
		MaxDuration: cfg.BookingMaxDuration,
		MaxAdvance:  cfg.BookingMaxAdvance,
		DayStart:    dayStart,
		DayEnd:      dayEnd,
	}, nil
}

// CheckWindow validates [start, end) requested at now. Rules run in a fixed
// order and the first violation is returned.
func (r Rules) CheckWindow(start, end, now time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperrors.InvalidWindow("start_time and end_time are required")
	}
	if !end.After(start) {
		return apperrors.InvalidWindow("end_time must be after start_time")
	}

	if start.Before(now) || end.Before(now) {
		return apperrors.PastOrImminentStart("reservation cannot start or end in the past")
	}
	if start.Before(now.Add(r.MinLead)) {
		return apperrors.PastOrImminentStart(fmt.Sprintf("reservation must start at least %s from now", r.MinLead))
	}

	if d := end.Sub(start); d < r.MinDuration || d > r.MaxDuration {
		return apperrors.DurationOutOfRange(fmt.Sprintf("duration %s must be between %s and %s", d, r.MinDuration, r.MaxDuration))
	}

	if start.After(now.Add(r.MaxAdvance)) {
		return apperrors.OutsideAdvanceWindow(fmt.Sprintf("reservation cannot start more than %s in advance", r.MaxAdvance))
	}

	localStart := start.In(r.location())
	localEnd := end.In(r.location())

	if !isWeekday(localStart) || !isWeekday(localEnd) {
		return apperrors.NonBusinessDay("reservations are only accepted Monday through Friday")
	}

	if !sameDate(localStart, localEnd) {
		return apperrors.OutsideBusinessHours("reservation must start and end on the same day")
	}
	startOffset := sinceMidnight(localStart)
	endOffset := sinceMidnight(localEnd)
	if startOffset < r.DayStart || startOffset >= r.DayEnd || endOffset <= r.DayStart || endOffset > r.DayEnd {
		return apperrors.OutsideBusinessHours(fmt.Sprintf("reservation must fall between %s and %s", formatOffset(r.DayStart), formatOffset(r.DayEnd)))
	}

	return nil
}

// LocalDate returns the calendar date of t in the booking time zone, in the
// layout used by visibility entries.
func (r Rules) LocalDate(t time.Time) string {
	return t.In(r.location()).Format(model.DateLayout)
}

// Local returns t in the booking time zone.
func (r Rules) Local(t time.Time) time.Time {
	return t.In(r.location())
}

func (r Rules) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

func formatOffset(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
