package domain

import "time"

// BusinessHours describes the bookable window of a single calendar day.
// Open and Close are offsets from midnight; SlotSize is the grid step;
// VisitLength is the duration assigned to a new booking.
type BusinessHours struct {
	Open        time.Duration
	Close       time.Duration
	SlotSize    time.Duration
	VisitLength time.Duration
}

// EnumerateSlots lists every candidate start time t on the given day with
// open <= t < close, stepping by the slot size. Ascending, deterministic,
// no hidden state. A non-positive slot size yields nil.
func EnumerateSlots(day time.Time, hours BusinessHours) []time.Time {
	if hours.SlotSize <= 0 {
		return nil
	}
	dayStart := DayStart(day)
	var out []time.Time
	for off := hours.Open; off < hours.Close; off += hours.SlotSize {
		out = append(out, dayStart.Add(off))
	}
	return out
}

// SlotEnd computes an appointment end time from its start and duration.
func SlotEnd(start time.Time, duration time.Duration) time.Time {
	return start.Add(duration)
}

// Overlaps reports whether two half-open intervals share any time.
// Touching intervals (aEnd == bStart) do not overlap. This predicate is the
// single source of truth for conflict detection; the feasibility pre-check
// and the availability partition both go through it so they cannot disagree.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// WithinBusinessHours reports whether a start time falls inside the bookable
// window of its day. A start exactly at close is outside.
func WithinBusinessHours(start time.Time, hours BusinessHours) bool {
	off := start.Sub(DayStart(start))
	return off >= hours.Open && off < hours.Close
}

// PartitionSlots splits the day's candidate grid into starts that are free
// and starts that would collide with an existing appointment. Each existing
// interval is compared with its recorded end time, so appointments that do
// not align with the grid still block the right candidates.
func PartitionSlots(day time.Time, hours BusinessHours, existing []Appointment) (available, taken []time.Time) {
	for _, slot := range EnumerateSlots(day, hours) {
		slotEnd := SlotEnd(slot, hours.VisitLength)
		free := true
		for _, appt := range existing {
			if Overlaps(slot, slotEnd, appt.StartTime, appt.EndTime) {
				free = false
				break
			}
		}
		if free {
			available = append(available, slot)
		} else {
			taken = append(taken, slot)
		}
	}
	return available, taken
}

// DayStart truncates a time to midnight of its UTC day.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayEnd is the exclusive upper bound of the UTC day containing t.
func DayEnd(t time.Time) time.Time {
	return DayStart(t).Add(24 * time.Hour)
}
