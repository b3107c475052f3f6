// Package availability computes bookable start times for a
// professional's day. The generator is a pure function over a snapshot
// of the day's state, so it is safe to call concurrently and trivial
// to test; all persistence stays in the database package.
package availability

import (
	"fmt"
	"sort"
	"time"

	"agendo/internal/models"
)

// Slot is one bookable start, both as minutes from midnight and as a
// wall-clock label for API responses.
type Slot struct {
	StartMin int    `json:"start_min"`
	EndMin   int    `json:"end_min"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// NewSlot builds a Slot for a start time and service duration.
func NewSlot(startMin, durationMin int) Slot {
	return Slot{
		StartMin: startMin,
		EndMin:   startMin + durationMin,
		Start:    Clock(startMin),
		End:      Clock(startMin + durationMin),
	}
}

// Clock renders minutes from midnight as HH:MM.
func Clock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// ParseClock converts an HH:MM label to minutes from midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

// DaySnapshot is everything the generator needs to know about one
// professional-day. Busy carries the raw windows of non-canceled
// appointments and active holds; BookedCount is their number, for the
// day-level cap.
type DaySnapshot struct {
	Date        time.Time // midnight in the professional's location
	Hours       models.WorkingHours
	Exceptions  []models.AvailabilityException
	Busy        []models.Interval
	BookedCount int
}

// Slots returns candidate start times, in minutes from midnight, at
// which a service of durationMin can begin on the snapshot's day.
// Results are deduplicated and ascending. A day over its appointment
// cap yields no slots regardless of free time.
func Slots(now time.Time, day DaySnapshot, durationMin int, set models.AdvancedSettings) []int {
	if durationMin <= 0 {
		return nil
	}
	if set.MaxAppointmentsPerDay > 0 && day.BookedCount >= set.MaxAppointmentsPerDay {
		return nil
	}
	if !withinNotice(now, day.Date, set) {
		return nil
	}

	unavailable := make([]models.Interval, 0, len(day.Busy)+len(day.Exceptions))
	for _, w := range day.Busy {
		unavailable = append(unavailable, set.Expand(w))
	}
	for _, exc := range day.Exceptions {
		if exc.Kind == models.ExceptionBlocked {
			// Blocked time is absolute: no buffer expansion.
			unavailable = append(unavailable, exc.Interval)
		}
	}

	base := baseIntervals(day)

	// Earliest acceptable start, as minutes into this day. Negative
	// means the whole day is already past the notice cutoff... clamp
	// to zero; beyond the day's end no interval will produce a slot.
	earliest := minutesIntoDay(now.Add(time.Duration(set.MinNoticeHours)*time.Hour), day.Date)

	var starts []int
	for _, iv := range base {
		if !iv.Valid() {
			continue
		}
		for start := roundUp(iv.StartMin, models.SlotGranularityMin); start+durationMin <= iv.EndMin; start += models.SlotGranularityMin {
			if start < earliest {
				continue
			}
			candidate := set.Expand(models.Interval{StartMin: start, EndMin: start + durationMin})
			if overlapsAny(candidate, unavailable) {
				continue
			}
			starts = append(starts, start)
		}
	}

	return dedupe(starts)
}

// withinNotice applies the day-level notice window: a day entirely
// before the minimum notice or starting after the maximum horizon
// produces no slots.
func withinNotice(now, date time.Time, set models.AdvancedSettings) bool {
	dayEnd := date.AddDate(0, 0, 1)
	if !dayEnd.After(now.Add(time.Duration(set.MinNoticeHours) * time.Hour)) {
		return false
	}
	if set.MaxNoticeDays > 0 && date.After(now.AddDate(0, 0, set.MaxNoticeDays)) {
		return false
	}
	return true
}

func baseIntervals(day DaySnapshot) []models.Interval {
	var base []models.Interval
	if day.Hours.Enabled {
		base = append(base, day.Hours.Intervals...)
	}
	for _, exc := range day.Exceptions {
		if exc.Kind == models.ExceptionExtra {
			base = append(base, exc.Interval)
		}
	}
	return base
}

// minutesIntoDay converts an instant to minutes from the day's
// midnight, clamped to [0, MinutesPerDay]. Both times must share a
// location.
func minutesIntoDay(t, dayStart time.Time) int {
	m := int(t.Sub(dayStart) / time.Minute)
	if m < 0 {
		return 0
	}
	if m > models.MinutesPerDay {
		return models.MinutesPerDay
	}
	return m
}

func roundUp(min, step int) int {
	if r := min % step; r != 0 {
		return min + step - r
	}
	return min
}

func overlapsAny(candidate models.Interval, set []models.Interval) bool {
	for _, iv := range set {
		if candidate.Overlaps(iv) {
			return true
		}
	}
	return false
}

func dedupe(starts []int) []int {
	if len(starts) < 2 {
		return starts
	}
	sort.Ints(starts)
	out := starts[:1]
	for _, s := range starts[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
