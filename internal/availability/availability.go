// Package availability decides whether a proposed time slot collides with
// existing bookings. It is pure: no clock, no stores, no network.
package availability

import (
	"fmt"
	"time"

	"booker/pkg/model"
)

const slotLayout = "2006-01-02T15:04"

// Slot is the half-open interval [Start, End) a booking occupies.
type Slot struct {
	Start time.Time
	End   time.Time
}

// SlotFor builds the slot for a date (YYYY-MM-DD), wall-clock time (HH:MM)
// and duration in minutes. Dates carry no timezone; everything is parsed in
// a fixed location so comparisons stay consistent.
func SlotFor(date, clock string, duration int) (Slot, error) {
	start, err := time.ParseInLocation(slotLayout, date+"T"+clock, time.UTC)
	if err != nil {
		return Slot{}, fmt.Errorf("invalid date/time %q %q: %w", date, clock, err)
	}
	return Slot{
		Start: start,
		End:   start.Add(time.Duration(duration) * time.Minute),
	}, nil
}

// Overlaps applies the half-open interval rule: [s1,e1) and [s2,e2) collide
// iff s1 < e2 && s2 < e1. Touching intervals (end == other start) are free.
func Overlaps(a, b Slot) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// IsAvailable reports whether candidate fits between the existing bookings.
// A booking whose ID equals excludeID is skipped, so an edit never conflicts
// with its own unmodified interval. Cancelled bookings do not block a slot.
// Bookings with malformed date/time are skipped: format is validated before
// anything reaches a store.
func IsAvailable(candidate Slot, existing []model.Booking, excludeID string) bool {
	for _, b := range existing {
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if b.Status == model.StatusCancelled {
			continue
		}
		slot, err := SlotFor(b.Date, b.Time, b.Duration)
		if err != nil {
			continue
		}
		if Overlaps(candidate, slot) {
			return false
		}
	}
	return true
}
