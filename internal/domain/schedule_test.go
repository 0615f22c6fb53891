package domain

import (
	"testing"
	"time"
)

var testHours = BusinessHours{
	Open:        8 * time.Hour,
	Close:       18 * time.Hour,
	SlotSize:    30 * time.Minute,
	VisitLength: 30 * time.Minute,
}

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
}

func TestEnumerateSlots(t *testing.T) {
	slots := EnumerateSlots(day(t), testHours)

	if len(slots) != 20 {
		t.Fatalf("len(slots) = %d, want 20", len(slots))
	}
	first := day(t).Add(8 * time.Hour)
	if !slots[0].Equal(first) {
		t.Fatalf("first slot = %v, want %v", slots[0], first)
	}
	last := day(t).Add(17*time.Hour + 30*time.Minute)
	if !slots[len(slots)-1].Equal(last) {
		t.Fatalf("last slot = %v, want %v", slots[len(slots)-1], last)
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].After(slots[i-1]) {
			t.Fatalf("slots not ascending at %d: %v then %v", i, slots[i-1], slots[i])
		}
	}
}

func TestEnumerateSlots_IgnoresTimeOfDayInput(t *testing.T) {
	noon := day(t).Add(12 * time.Hour)
	if got, want := len(EnumerateSlots(noon, testHours)), 20; got != want {
		t.Fatalf("len(slots) = %d, want %d", got, want)
	}
}

func TestEnumerateSlots_InvalidSlotSize(t *testing.T) {
	h := testHours
	h.SlotSize = 0
	if slots := EnumerateSlots(day(t), h); slots != nil {
		t.Fatalf("slots = %v, want nil", slots)
	}
}

func TestOverlaps(t *testing.T) {
	base := day(t).Add(9 * time.Hour)
	half := 30 * time.Minute

	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"identical", base, base.Add(half), base, base.Add(half), true},
		{"contained", base, base.Add(time.Hour), base.Add(15 * time.Minute), base.Add(45 * time.Minute), true},
		{"partial", base, base.Add(half), base.Add(15 * time.Minute), base.Add(45 * time.Minute), true},
		{"touching is not overlapping", base, base.Add(half), base.Add(half), base.Add(time.Hour), false},
		{"touching reversed", base.Add(half), base.Add(time.Hour), base, base.Add(half), false},
		{"disjoint", base, base.Add(half), base.Add(2 * time.Hour), base.Add(3 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			// symmetric
			if got := Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Fatalf("Overlaps reversed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWithinBusinessHours(t *testing.T) {
	cases := []struct {
		name string
		off  time.Duration
		want bool
	}{
		{"before open", 7*time.Hour + 30*time.Minute, false},
		{"at open", 8 * time.Hour, true},
		{"mid day", 12 * time.Hour, true},
		{"last slot", 17*time.Hour + 30*time.Minute, true},
		{"at close", 18 * time.Hour, false},
		{"after close", 19 * time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start := day(t).Add(tc.off)
			if got := WithinBusinessHours(start, testHours); got != tc.want {
				t.Fatalf("WithinBusinessHours(%v) = %v, want %v", start, got, tc.want)
			}
		})
	}
}

func TestPartitionSlots(t *testing.T) {
	nine := day(t).Add(9 * time.Hour)

	existing := []Appointment{
		{StartTime: nine, EndTime: nine.Add(30 * time.Minute)},
	}

	available, taken := PartitionSlots(day(t), testHours, existing)
	if len(taken) != 1 {
		t.Fatalf("len(taken) = %d, want 1", len(taken))
	}
	if !taken[0].Equal(nine) {
		t.Fatalf("taken[0] = %v, want %v", taken[0], nine)
	}
	if len(available) != 19 {
		t.Fatalf("len(available) = %d, want 19", len(available))
	}
	for _, s := range available {
		if s.Equal(nine) {
			t.Fatalf("booked slot %v listed as available", nine)
		}
	}
}

func TestPartitionSlots_RespectsRecordedEndTimes(t *testing.T) {
	// a 09:15-10:00 appointment off the grid blocks the two candidates it
	// spans; the 10:00 candidate only touches its end and stays free
	start := day(t).Add(9*time.Hour + 15*time.Minute)
	existing := []Appointment{
		{StartTime: start, EndTime: start.Add(45 * time.Minute)},
	}

	available, taken := PartitionSlots(day(t), testHours, existing)
	if len(taken) != 2 {
		t.Fatalf("len(taken) = %d, want 2 (%v)", len(taken), taken)
	}
	wantTaken := []time.Duration{9 * time.Hour, 9*time.Hour + 30*time.Minute}
	for i, off := range wantTaken {
		if want := day(t).Add(off); !taken[i].Equal(want) {
			t.Fatalf("taken[%d] = %v, want %v", i, taken[i], want)
		}
	}
	for _, s := range available {
		if s.Equal(day(t).Add(10 * time.Hour)) {
			return
		}
	}
	t.Fatal("10:00 candidate missing from available")
}

func TestPartitionSlots_EmptyDayAllAvailable(t *testing.T) {
	available, taken := PartitionSlots(day(t), testHours, nil)
	if len(taken) != 0 {
		t.Fatalf("len(taken) = %d, want 0", len(taken))
	}
	if len(available) != 20 {
		t.Fatalf("len(available) = %d, want 20", len(available))
	}
}
