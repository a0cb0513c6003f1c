package schedule

import (
	"reflect"
	"testing"
	"time"
)

func mustLoadLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func mustRange(t *testing.T, start, end string) Interval {
	t.Helper()
	r, err := ParseRange(start, end)
	if err != nil {
		t.Fatalf("ParseRange(%s, %s): %v", start, end, err)
	}
	return r
}

func contains(slots []string, s string) bool {
	for _, v := range slots {
		if v == s {
			return true
		}
	}
	return false
}

func TestAvailableSlotsHectorMonday(t *testing.T) {
	day := Day{
		Windows: []Interval{mustRange(t, "09:00", "19:00")},
		Booked:  []Interval{mustRange(t, "10:00", "10:30")},
	}
	slots, err := AvailableSlots(day, 30, DefaultStepMinutes)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	for _, excluded := range []string{"09:45", "10:00", "10:15"} {
		if contains(slots, excluded) {
			t.Fatalf("expected %s to be excluded: %v", excluded, slots)
		}
	}
	for _, included := range []string{"09:00", "09:30", "10:30", "18:30"} {
		if !contains(slots, included) {
			t.Fatalf("expected %s to be included: %v", included, slots)
		}
	}
	if contains(slots, "18:45") {
		t.Fatalf("18:45 + 30 overflows the window: %v", slots)
	}
	if slots[0] != "09:00" || slots[len(slots)-1] != "18:30" {
		t.Fatalf("unexpected boundary slots: %v", slots)
	}
}

func TestAvailableSlotsNoWindowsIsEmpty(t *testing.T) {
	slots, err := AvailableSlots(Day{}, 30, DefaultStepMinutes)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slots, got %#v", slots)
	}
}

func TestAvailableSlotsClosedDayIsEmpty(t *testing.T) {
	day := Day{Windows: []Interval{mustRange(t, "09:00", "19:00")}, Closed: true}
	slots, err := AvailableSlots(day, 15, DefaultStepMinutes)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected 0 slots, got %v", slots)
	}
}

func TestAvailableSlotsPartialDayOff(t *testing.T) {
	day := Day{
		Windows: []Interval{mustRange(t, "09:00", "12:00")},
		Off:     []Interval{mustRange(t, "10:00", "11:10")},
	}
	slots, err := AvailableSlots(day, 30, DefaultStepMinutes)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	want := []string{"09:00", "09:15", "09:30", "11:15", "11:30"}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
}

func TestAvailableSlotsSplitShiftsAreMergedAndSorted(t *testing.T) {
	day := Day{
		Windows: []Interval{mustRange(t, "15:00", "16:00"), mustRange(t, "09:00", "09:30"), mustRange(t, "09:00", "09:45")},
	}
	slots, err := AvailableSlots(day, 30, DefaultStepMinutes)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	want := []string{"09:00", "09:15", "15:00", "15:15", "15:30"}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
}

func TestAvailableSlotsInvalidDuration(t *testing.T) {
	if _, err := AvailableSlots(Day{}, 0, DefaultStepMinutes); err != ErrInvalidDuration {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := AvailableSlots(Day{}, 30, 0); err != ErrInvalidStep {
		t.Fatalf("expected ErrInvalidStep, got %v", err)
	}
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	a := Interval{Start: 600, End: 630}
	if Overlaps(a, Interval{Start: 630, End: 660}) {
		t.Fatalf("back-to-back intervals must not overlap")
	}
	if !Overlaps(a, Interval{Start: 615, End: 645}) {
		t.Fatalf("expected overlap")
	}
}

func TestSubtract(t *testing.T) {
	got := Subtract([]Interval{{Start: 540, End: 720}}, []Interval{{Start: 600, End: 660}, {Start: 0, End: 545}})
	want := []Interval{{Start: 545, End: 600}, {Start: 660, End: 720}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFits(t *testing.T) {
	day := Day{Windows: []Interval{mustRange(t, "09:00", "12:00")}}
	ok, err := Fits(day, 9*60+15, 30, DefaultStepMinutes)
	if err != nil || !ok {
		t.Fatalf("expected 09:15 to fit: %v %v", ok, err)
	}
	ok, _ = Fits(day, 9*60+10, 30, DefaultStepMinutes)
	if ok {
		t.Fatalf("off-grid start must not fit")
	}
	ok, _ = Fits(day, 11*60+45, 30, DefaultStepMinutes)
	if ok {
		t.Fatalf("overflowing start must not fit")
	}
}

func TestIsDatePast(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 10, 0, 0, 0, loc)
	past, err := IsDatePast("2026-02-03", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if !past {
		t.Fatalf("expected date to be past")
	}

	past, err = IsDatePast("2026-02-04", loc, now)
	if err != nil {
		t.Fatalf("IsDatePast error: %v", err)
	}
	if past {
		t.Fatalf("expected date to be not past")
	}
}

func TestFilterPastSlots(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 10, 0, 0, 0, loc)
	got, err := FilterPastSlots("2026-02-04", []string{"09:45", "10:00", "10:15"}, loc, now)
	if err != nil {
		t.Fatalf("FilterPastSlots error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"10:15"}) {
		t.Fatalf("unexpected slots: %v", got)
	}
}

func TestIsToday(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2026, 2, 4, 23, 30, 0, 0, loc)
	if !IsToday("2026-02-04", loc, now) {
		t.Fatalf("expected today")
	}
	if IsToday("2026-02-05", loc, now) {
		t.Fatalf("expected not today")
	}
}

func TestParseDateTimeRejectsBadClock(t *testing.T) {
	loc := mustLoadLoc(t)
	if _, err := ParseDateTime("2026-02-04", "25:00", loc); err != ErrInvalidTime {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
	if _, err := ParseDateTime("2026-13-04", "10:00", loc); err != ErrInvalidDate {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
