package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const DefaultStepMinutes = 15

var (
	ErrInvalidDate     = errors.New("invalid date format")
	ErrInvalidTime     = errors.New("invalid time format")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidStep     = errors.New("invalid slot step")
)

// Interval is a half-open [Start, End) range in minutes after midnight.
type Interval struct {
	Start int
	End   int
}

func (i Interval) Empty() bool {
	return i.End <= i.Start
}

func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// Day is everything needed to compute one specialist's free slots on one date.
type Day struct {
	Windows []Interval
	Off     []Interval
	Closed  bool
	Booked  []Interval
}

func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

func ParseDateTime(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	if _, err := time.Parse("15:04", timeStr); err != nil {
		return time.Time{}, ErrInvalidTime
	}
	if _, err := ParseDate(dateStr, loc); err != nil {
		return time.Time{}, err
	}
	parsed, err := time.ParseInLocation("2006-01-02 15:04", dateStr+" "+timeStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}
	return parsed, nil
}

func ParseClockToMinutes(timeStr string) (int, error) {
	tm, err := time.Parse("15:04", timeStr)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return tm.Hour()*60 + tm.Minute(), nil
}

func MinutesToClock(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// ParseRange turns a pair of HH:MM clocks into an interval. "24:00" is not a
// valid clock, so a window ending at midnight is written as 23:59.
func ParseRange(start, end string) (Interval, error) {
	s, err := ParseClockToMinutes(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClockToMinutes(end)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: s, End: e}, nil
}

func IsDatePast(dateStr string, loc *time.Location, now time.Time) (bool, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return false, err
	}
	local := now.In(loc)
	startToday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return date.Before(startToday), nil
}

func IsToday(dateStr string, loc *time.Location, now time.Time) bool {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return false
	}
	local := now.In(loc)
	return date.Year() == local.Year() && date.YearDay() == local.YearDay()
}

func IsSlotPast(dateStr, timeStr string, loc *time.Location, now time.Time) (bool, error) {
	slot, err := ParseDateTime(dateStr, timeStr, loc)
	if err != nil {
		return false, err
	}
	return !slot.After(now.In(loc)), nil
}

// Subtract removes every cut from every window and returns the remaining
// pieces in ascending order.
func Subtract(windows, cuts []Interval) []Interval {
	remaining := make([]Interval, 0, len(windows))
	for _, w := range windows {
		if w.Empty() {
			continue
		}
		remaining = append(remaining, w)
	}
	for _, c := range cuts {
		if c.Empty() {
			continue
		}
		next := make([]Interval, 0, len(remaining))
		for _, w := range remaining {
			if !Overlaps(w, c) {
				next = append(next, w)
				continue
			}
			if w.Start < c.Start {
				next = append(next, Interval{Start: w.Start, End: c.Start})
			}
			if c.End < w.End {
				next = append(next, Interval{Start: c.End, End: w.End})
			}
		}
		remaining = next
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Start < remaining[j].Start })
	return remaining
}

// Candidates lists start times on the step grid (aligned to midnight) where a
// service of the given duration fits entirely inside a window.
func Candidates(windows []Interval, duration, step int) ([]int, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if step <= 0 {
		return nil, ErrInvalidStep
	}
	seen := make(map[int]bool)
	starts := make([]int, 0)
	for _, w := range windows {
		first := w.Start
		if rem := first % step; rem != 0 {
			first += step - rem
		}
		for cursor := first; cursor+duration <= w.End; cursor += step {
			if !seen[cursor] {
				seen[cursor] = true
				starts = append(starts, cursor)
			}
		}
	}
	sort.Ints(starts)
	return starts, nil
}

func FilterOverlapping(starts []int, duration int, reserved []Interval) []int {
	filtered := make([]int, 0, len(starts))
	for _, s := range starts {
		current := Interval{Start: s, End: s + duration}
		overlap := false
		for _, r := range reserved {
			if Overlaps(current, r) {
				overlap = true
				break
			}
		}
		if !overlap {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// AvailableMinutes runs the full availability pipeline over an already loaded day.
func AvailableMinutes(day Day, duration, step int) ([]int, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if step <= 0 {
		return nil, ErrInvalidStep
	}
	if day.Closed || len(day.Windows) == 0 {
		return []int{}, nil
	}
	open := Subtract(day.Windows, day.Off)
	starts, err := Candidates(open, duration, step)
	if err != nil {
		return nil, err
	}
	return FilterOverlapping(starts, duration, day.Booked), nil
}

func AvailableSlots(day Day, duration, step int) ([]string, error) {
	minutes, err := AvailableMinutes(day, duration, step)
	if err != nil {
		return nil, err
	}
	slots := make([]string, 0, len(minutes))
	for _, m := range minutes {
		slots = append(slots, MinutesToClock(m))
	}
	return slots, nil
}

// Fits reports whether [start, start+duration) is a grid slot inside the open
// hours of the day, ignoring existing bookings.
func Fits(day Day, start, duration, step int) (bool, error) {
	if day.Closed || len(day.Windows) == 0 {
		return false, nil
	}
	starts, err := Candidates(Subtract(day.Windows, day.Off), duration, step)
	if err != nil {
		return false, err
	}
	idx := sort.SearchInts(starts, start)
	return idx < len(starts) && starts[idx] == start, nil
}

func FilterPastSlots(dateStr string, slots []string, loc *time.Location, now time.Time) ([]string, error) {
	filtered := make([]string, 0, len(slots))
	for _, s := range slots {
		past, err := IsSlotPast(dateStr, s, loc, now)
		if err != nil {
			return nil, err
		}
		if !past {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}
