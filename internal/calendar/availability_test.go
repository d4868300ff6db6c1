package calendar

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/booking-core/internal/model"
)

// понедельник
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func weekdayHours(openHour, closeHour int) []model.OperatingHour {
	var hours []model.OperatingHour
	for d := time.Sunday; d <= time.Saturday; d++ {
		h := model.OperatingHour{DayOfWeek: d}
		if d == time.Sunday {
			h.IsClosed = true
		} else {
			h.OpenTime = model.ClockTime(openHour, 0)
			h.CloseTime = model.ClockTime(closeHour, 0)
		}
		hours = append(hours, h)
	}
	return hours
}

func newStaff(t *testing.T, start, end int) model.Staff {
	t.Helper()
	s := model.Staff{ID: uuid.New(), FirstName: "Anna", LastName: "Ivanova", IsActive: true}
	for d := time.Monday; d <= time.Friday; d++ {
		if err := s.SetSchedule(d, true, model.ClockTime(start, 0), model.ClockTime(end, 0)); err != nil {
			t.Fatalf("SetSchedule: %v", err)
		}
	}
	return s
}

func TestValidateOperatingHours(t *testing.T) {
	if err := ValidateOperatingHours(weekdayHours(9, 18)); err != nil {
		t.Fatalf("expected valid hours, got %v", err)
	}

	bad := weekdayHours(9, 18)
	bad[1].OpenTime = model.ClockTime(18, 0)
	bad[1].CloseTime = model.ClockTime(9, 0)
	if err := ValidateOperatingHours(bad); err != ErrInvalidOperatingHours {
		t.Fatalf("expected ErrInvalidOperatingHours for open >= close, got %v", err)
	}

	dup := append(weekdayHours(9, 18), model.OperatingHour{DayOfWeek: time.Monday, IsClosed: true})
	if err := ValidateOperatingHours(dup); err != ErrInvalidOperatingHours {
		t.Fatalf("expected ErrInvalidOperatingHours for duplicate day, got %v", err)
	}
}

func TestResolveWorkingWindow_Intersection(t *testing.T) {
	staff := newStaff(t, 8, 16)

	window, ok := ResolveWorkingWindow(monday, weekdayHours(9, 18), staff)
	if !ok {
		t.Fatalf("expected working day")
	}
	if !window.Start.Equal(monday.Add(9*time.Hour)) || !window.End.Equal(monday.Add(16*time.Hour)) {
		t.Fatalf("expected 09:00-16:00, got %v-%v", window.Start, window.End)
	}
}

func TestResolveWorkingWindow_BusinessClosed(t *testing.T) {
	staff := newStaff(t, 9, 17)
	if err := staff.SetSchedule(time.Sunday, true, model.ClockTime(10, 0), model.ClockTime(14, 0)); err != nil {
		t.Fatalf("SetSchedule: %v", err)
	}

	sunday := monday.AddDate(0, 0, -1)
	if _, ok := ResolveWorkingWindow(sunday, weekdayHours(9, 18), staff); ok {
		t.Fatalf("closed business day must not yield a window")
	}
}

func TestResolveWorkingWindow_NoSchedule(t *testing.T) {
	staff := newStaff(t, 9, 17)
	saturday := monday.AddDate(0, 0, 5)

	if _, ok := ResolveWorkingWindow(saturday, weekdayHours(9, 18), staff); ok {
		t.Fatalf("staff without schedule for the day must not work")
	}
}

func TestResolveWorkingWindow_NoIntersection(t *testing.T) {
	staff := newStaff(t, 6, 9)

	if _, ok := ResolveWorkingWindow(monday, weekdayHours(9, 18), staff); ok {
		t.Fatalf("touching hours must not yield a window")
	}
}

func TestResolveWorkingWindow_WholeDayUnavailable(t *testing.T) {
	staff := newStaff(t, 9, 17)
	if err := staff.AddOverride(model.AvailabilityOverride{
		Date: model.DateOf(monday),
		Type: model.AvailabilityUnavailable,
	}); err != nil {
		t.Fatalf("AddOverride: %v", err)
	}

	if _, ok := ResolveWorkingWindow(monday, weekdayHours(9, 18), staff); ok {
		t.Fatalf("whole-day unavailable override must close the day")
	}
	// на следующий день исключение не действует
	if _, ok := ResolveWorkingWindow(monday.AddDate(0, 0, 1), weekdayHours(9, 18), staff); !ok {
		t.Fatalf("override must affect only its own date")
	}
}

func TestResolveWorkingWindow_AvailableOverrideReplaces(t *testing.T) {
	staff := newStaff(t, 9, 17)
	saturday := monday.AddDate(0, 0, 5)
	if err := staff.AddOverride(model.AvailabilityOverride{
		Date:      model.DateOf(saturday),
		Type:      model.AvailabilityAvailableOverride,
		StartTime: model.ClockTime(10, 0),
		EndTime:   model.ClockTime(14, 0),
	}); err != nil {
		t.Fatalf("AddOverride: %v", err)
	}

	window, ok := ResolveWorkingWindow(saturday, weekdayHours(9, 18), staff)
	if !ok {
		t.Fatalf("available override must open the day")
	}
	if !window.Start.Equal(saturday.Add(10*time.Hour)) || !window.End.Equal(saturday.Add(14*time.Hour)) {
		t.Fatalf("expected 10:00-14:00, got %v-%v", window.Start, window.End)
	}
}

func TestResolveWorkingWindow_UnavailableBeatsAvailable(t *testing.T) {
	staff := newStaff(t, 9, 17)
	if err := staff.AddOverride(model.AvailabilityOverride{
		Date:      model.DateOf(monday),
		Type:      model.AvailabilityAvailableOverride,
		StartTime: model.ClockTime(7, 0),
		EndTime:   model.ClockTime(20, 0),
	}); err != nil {
		t.Fatalf("AddOverride: %v", err)
	}
	if err := staff.AddOverride(model.AvailabilityOverride{
		Date: model.DateOf(monday),
		Type: model.AvailabilityUnavailable,
	}); err != nil {
		t.Fatalf("AddOverride: %v", err)
	}

	if _, ok := ResolveWorkingWindow(monday, weekdayHours(9, 18), staff); ok {
		t.Fatalf("whole-day unavailable must win over available override")
	}
}

func TestBlockedIntervals_Partial(t *testing.T) {
	staff := newStaff(t, 9, 17)
	if err := staff.AddOverride(model.AvailabilityOverride{
		Date:      model.DateOf(monday),
		Type:      model.AvailabilityUnavailable,
		StartTime: model.ClockTime(12, 0),
		EndTime:   model.ClockTime(13, 0),
	}); err != nil {
		t.Fatalf("AddOverride: %v", err)
	}

	if _, ok := ResolveWorkingWindow(monday, weekdayHours(9, 18), staff); !ok {
		t.Fatalf("partial unavailability must not close the day")
	}
	blocked := BlockedIntervals(monday, staff)
	if len(blocked) != 1 {
		t.Fatalf("expected 1 blocked interval, got %d", len(blocked))
	}
	if !blocked[0].Start.Equal(monday.Add(12*time.Hour)) || !blocked[0].End.Equal(monday.Add(13*time.Hour)) {
		t.Fatalf("unexpected blocked interval %v-%v", blocked[0].Start, blocked[0].End)
	}
}

func TestBlacked(t *testing.T) {
	staff := newStaff(t, 9, 17)
	tuesday := monday.AddDate(0, 0, 1)
	if err := staff.AddOverride(model.AvailabilityOverride{
		Date:      model.DateOf(monday),
		Type:      model.AvailabilityUnavailable,
		StartTime: model.ClockTime(15, 0),
		EndTime:   model.ClockTime(16, 0),
	}); err != nil {
		t.Fatalf("AddOverride: %v", err)
	}
	if err := staff.AddOverride(model.AvailabilityOverride{
		Date: model.DateOf(tuesday),
		Type: model.AvailabilityUnavailable,
	}); err != nil {
		t.Fatalf("AddOverride: %v", err)
	}
	if err := staff.AddOverride(model.AvailabilityOverride{
		Date:      model.DateOf(monday.AddDate(0, 0, 5)),
		Type:      model.AvailabilityAvailableOverride,
		StartTime: model.ClockTime(10, 0),
		EndTime:   model.ClockTime(14, 0),
	}); err != nil {
		t.Fatalf("AddOverride: %v", err)
	}

	at := func(day time.Time, hour, minute, minutes int) TimeRange {
		start := day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
		return TimeRange{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
	}
	tests := []struct {
		name string
		r    TimeRange
		want bool
	}{
		{"inside partial", at(monday, 15, 0, 30), true},
		{"crosses partial start", at(monday, 14, 45, 30), true},
		{"ends at partial start", at(monday, 14, 30, 30), false},
		{"starts at partial end", at(monday, 16, 0, 30), false},
		{"whole day", at(tuesday, 10, 0, 30), true},
		{"across midnight into whole day", at(monday, 23, 45, 30), true},
		{"available override is not a blackout", at(monday.AddDate(0, 0, 5), 10, 0, 30), false},
		{"empty range", TimeRange{Start: monday.Add(15 * time.Hour), End: monday.Add(15 * time.Hour)}, false},
	}
	for _, tt := range tests {
		if got := Blacked(staff, tt.r); got != tt.want {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestAddOverride_Duplicate(t *testing.T) {
	staff := newStaff(t, 9, 17)
	o := model.AvailabilityOverride{Date: model.DateOf(monday), Type: model.AvailabilityUnavailable}
	if err := staff.AddOverride(o); err != nil {
		t.Fatalf("AddOverride: %v", err)
	}
	if err := staff.AddOverride(o); err != model.ErrDuplicateOverride {
		t.Fatalf("expected ErrDuplicateOverride, got %v", err)
	}
}
