package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RecurrenceKind string

const (
	RecurrenceDaily  RecurrenceKind = "DAILY"
	RecurrenceWeekly RecurrenceKind = "WEEKLY"
	RecurrenceCustom RecurrenceKind = "CUSTOM"
)

var ErrInvalidRecurrence = errors.New("invalid recurrence pattern")

// Recurrence is the descriptor stored on every instance of a series.
type Recurrence struct {
	Pattern string    `json:"pattern" bson:"pattern"`
	EndDate time.Time `json:"end_date" bson:"end_date"`
}

type RecurrenceRule struct {
	Kind     RecurrenceKind
	Weekdays map[time.Weekday]bool
}

var weekdayNames = map[string]time.Weekday{
	"SUN": time.Sunday, "SUNDAY": time.Sunday,
	"MON": time.Monday, "MONDAY": time.Monday,
	"TUE": time.Tuesday, "TUESDAY": time.Tuesday,
	"WED": time.Wednesday, "WEDNESDAY": time.Wednesday,
	"THU": time.Thursday, "THURSDAY": time.Thursday,
	"FRI": time.Friday, "FRIDAY": time.Friday,
	"SAT": time.Saturday, "SATURDAY": time.Saturday,
}

// ParseRecurrence accepts DAILY, WEEKLY or CUSTOM:<days>, where days is a
// comma separated list of English weekday names (MON or MONDAY), case-insensitive.
func ParseRecurrence(pattern string) (RecurrenceRule, error) {
	p := strings.ToUpper(strings.TrimSpace(pattern))

	switch RecurrenceKind(p) {
	case RecurrenceDaily:
		return RecurrenceRule{Kind: RecurrenceDaily}, nil
	case RecurrenceWeekly:
		return RecurrenceRule{Kind: RecurrenceWeekly}, nil
	}

	days, ok := strings.CutPrefix(p, string(RecurrenceCustom)+":")
	if !ok {
		return RecurrenceRule{}, fmt.Errorf("%w: %q", ErrInvalidRecurrence, pattern)
	}

	rule := RecurrenceRule{Kind: RecurrenceCustom, Weekdays: map[time.Weekday]bool{}}
	for _, name := range strings.Split(days, ",") {
		day, ok := weekdayNames[strings.TrimSpace(name)]
		if !ok {
			return RecurrenceRule{}, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRecurrence, name)
		}
		rule.Weekdays[day] = true
	}
	return rule, nil
}

// Includes decides whether the occurrence at t is materialized.
func (r RecurrenceRule) Includes(t time.Time) bool {
	switch r.Kind {
	case RecurrenceDaily:
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	case RecurrenceWeekly:
		return true
	case RecurrenceCustom:
		return r.Weekdays[t.Weekday()]
	}
	return false
}

// Next advances the cursor by one day, or one week for WEEKLY.
func (r RecurrenceRule) Next(t time.Time) time.Time {
	if r.Kind == RecurrenceWeekly {
		return t.AddDate(0, 0, 7)
	}
	return t.AddDate(0, 0, 1)
}
