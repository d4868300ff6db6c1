package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Leganyst/booking-core/internal/calendar"
	"github.com/Leganyst/booking-core/internal/model"
)

func dayQuery(f *fixture, day time.Time, serviceIDs ...uuid.UUID) SlotQuery {
	return SlotQuery{
		BusinessID: f.business.ID,
		ServiceIDs: serviceIDs,
		From:       day,
		To:         day.Add(23*time.Hour + 59*time.Minute),
	}
}

func hasStart(slots []calendar.Slot, at time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(at) {
			return true
		}
	}
	return false
}

func TestFindSlots_ClosedSunday(t *testing.T) {
	f := newFixture(t)
	sunday := nextMonday.AddDate(0, 0, -1)

	res, err := f.slots.FindSlots(f.ctx, dayQuery(f, sunday, f.haircut.ID))
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if len(res.Slots) != 0 {
		t.Fatalf("expected no slots on Sunday, got %d", len(res.Slots))
	}
}

func TestFindSlots_FullWorkingDay(t *testing.T) {
	f := newFixture(t)

	res, err := f.slots.FindSlots(f.ctx, dayQuery(f, nextMonday, f.haircut.ID))
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if res.RequiredDurationMinutes != 30 {
		t.Fatalf("expected 30 min, got %d", res.RequiredDurationMinutes)
	}
	// 09:00..16:30 с шагом 15 минут
	if len(res.Slots) != 31 {
		t.Fatalf("expected 31 slots, got %d", len(res.Slots))
	}
	if !res.Slots[0].Start.Equal(nextMonday.Add(9 * time.Hour)) {
		t.Fatalf("first slot must start at 09:00, got %v", res.Slots[0].Start)
	}
	last := res.Slots[len(res.Slots)-1]
	if !last.End.Equal(nextMonday.Add(17 * time.Hour)) {
		t.Fatalf("last slot must end at 17:00, got %v", last.End)
	}
	if last.StaffName != "Anna Ivanova" {
		t.Fatalf("unexpected staff name %q", last.StaffName)
	}
}

func TestFindSlots_AvailableOverrideOnSaturday(t *testing.T) {
	f := newFixture(t)
	saturday := nextMonday.AddDate(0, 0, -2)
	f.addOverride(f.staff, model.AvailabilityOverride{
		Date:      model.DateOf(saturday),
		Type:      model.AvailabilityAvailableOverride,
		StartTime: model.ClockTime(10, 0),
		EndTime:   model.ClockTime(14, 0),
	})

	res, err := f.slots.FindSlots(f.ctx, dayQuery(f, saturday, f.haircut.ID))
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if len(res.Slots) != 15 {
		t.Fatalf("expected 15 slots (10:00..13:30), got %d", len(res.Slots))
	}
	for _, s := range res.Slots {
		if s.Start.Before(saturday.Add(10*time.Hour)) || s.End.After(saturday.Add(14*time.Hour)) {
			t.Fatalf("slot %v-%v outside override window", s.Start, s.End)
		}
	}
}

func TestFindSlots_ExistingAppointmentBoundaries(t *testing.T) {
	f := newFixture(t)
	f.insertAppointment(f.staff.ID, uuid.New(), nextMonday.Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	res, err := f.slots.FindSlots(f.ctx, dayQuery(f, nextMonday, f.haircut.ID))
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}

	for _, want := range []time.Duration{9*time.Hour + 30*time.Minute, 10*time.Hour + 30*time.Minute} {
		if !hasStart(res.Slots, nextMonday.Add(want)) {
			t.Fatalf("expected slot at %v", nextMonday.Add(want))
		}
	}
	for _, banned := range []time.Duration{9*time.Hour + 45*time.Minute, 10 * time.Hour, 10*time.Hour + 15*time.Minute} {
		if hasStart(res.Slots, nextMonday.Add(banned)) {
			t.Fatalf("slot at %v overlaps existing appointment", nextMonday.Add(banned))
		}
	}
}

func TestFindSlots_CancelledAppointmentDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.insertAppointment(f.staff.ID, uuid.New(), nextMonday.Add(10*time.Hour), 30, model.AppointmentStatusCancelled)
	f.insertAppointment(f.staff.ID, uuid.New(), nextMonday.Add(11*time.Hour), 30, model.AppointmentStatusNoShow)

	res, err := f.slots.FindSlots(f.ctx, dayQuery(f, nextMonday, f.haircut.ID))
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if !hasStart(res.Slots, nextMonday.Add(10*time.Hour)) || !hasStart(res.Slots, nextMonday.Add(11*time.Hour)) {
		t.Fatalf("cancelled and no-show appointments must not block slots")
	}
}

func TestFindSlots_Soundness(t *testing.T) {
	f := newFixture(t)
	f.insertAppointment(f.staff.ID, uuid.New(), nextMonday.Add(9*time.Hour+20*time.Minute), 40, model.AppointmentStatusConfirmed)
	f.insertAppointment(f.staff.ID, uuid.New(), nextMonday.Add(13*time.Hour), 75, model.AppointmentStatusScheduled)
	f.addOverride(f.staff, model.AvailabilityOverride{
		Date:      model.DateOf(nextMonday),
		Type:      model.AvailabilityUnavailable,
		StartTime: model.ClockTime(15, 0),
		EndTime:   model.ClockTime(16, 0),
	})

	res, err := f.slots.FindSlots(f.ctx, dayQuery(f, nextMonday, f.coloring.ID))
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if res.RequiredDurationMinutes != 75 {
		t.Fatalf("buffer must count toward duration, got %d", res.RequiredDurationMinutes)
	}
	if len(res.Slots) == 0 {
		t.Fatalf("expected some slots")
	}

	existing, err := f.store.Appointments.ListActiveByStaffRange(f.ctx, []uuid.UUID{f.staff.ID}, nextMonday, nextMonday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListActiveByStaffRange: %v", err)
	}
	occupancy := make([]calendar.Occupancy, 0, len(existing))
	for _, a := range existing {
		occupancy = append(occupancy, calendar.OccupancyOf(a))
	}
	window := calendar.TimeRange{Start: nextMonday.Add(9 * time.Hour), End: nextMonday.Add(17 * time.Hour)}
	blocked := calendar.TimeRange{Start: nextMonday.Add(15 * time.Hour), End: nextMonday.Add(16 * time.Hour)}

	for _, s := range res.Slots {
		if calendar.HasConflict(s.StaffID, s.TimeRange, occupancy, uuid.Nil) {
			t.Fatalf("slot %v-%v conflicts with an appointment", s.Start, s.End)
		}
		if !window.Contains(s.TimeRange) {
			t.Fatalf("slot %v-%v outside working window", s.Start, s.End)
		}
		if s.Overlaps(blocked) {
			t.Fatalf("slot %v-%v overlaps partial unavailable override", s.Start, s.End)
		}
		if s.Duration() != 75*time.Minute {
			t.Fatalf("slot must last 75 minutes, got %v", s.Duration())
		}
	}
}

func TestFindSlots_SkipsPast(t *testing.T) {
	f := newFixture(t)
	f.setNow(nextMonday.Add(12*time.Hour + 5*time.Minute))

	res, err := f.slots.FindSlots(f.ctx, dayQuery(f, nextMonday, f.haircut.ID))
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if len(res.Slots) == 0 {
		t.Fatalf("expected afternoon slots")
	}
	if !res.Slots[0].Start.Equal(nextMonday.Add(12*time.Hour + 15*time.Minute)) {
		t.Fatalf("first slot must be the next step after now, got %v", res.Slots[0].Start)
	}
}

func TestFindSlots_PreferredStaff(t *testing.T) {
	f := newFixture(t)
	boris := f.addStaff("Boris", "Petrov", f.haircut.ID)

	all, err := f.slots.FindSlots(f.ctx, dayQuery(f, nextMonday, f.haircut.ID))
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if len(all.Slots) != 62 {
		t.Fatalf("expected slots of both staff, got %d", len(all.Slots))
	}
	for i := 1; i < len(all.Slots); i++ {
		if all.Slots[i].Start.Before(all.Slots[i-1].Start) {
			t.Fatalf("slots must be sorted by start")
		}
	}

	q := dayQuery(f, nextMonday, f.haircut.ID)
	q.PreferredStaffID = &boris.ID
	only, err := f.slots.FindSlots(f.ctx, q)
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	for _, s := range only.Slots {
		if s.StaffID != boris.ID {
			t.Fatalf("expected only preferred staff slots, got %s", s.StaffName)
		}
	}

	// Борис не умеет окрашивание: поиск идёт по всем подходящим
	q = dayQuery(f, nextMonday, f.haircut.ID, f.coloring.ID)
	q.PreferredStaffID = &boris.ID
	fallback, err := f.slots.FindSlots(f.ctx, q)
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if len(fallback.Slots) == 0 || fallback.Slots[0].StaffID != f.staff.ID {
		t.Fatalf("expected fallback to capable staff")
	}
}

func TestFindSlots_Errors(t *testing.T) {
	f := newFixture(t)
	other := model.Service{BusinessID: uuid.New(), Name: "Orphan", Price: 100, DurationMin: 30, IsActive: true}
	if err := f.store.Services.Create(f.ctx, &other); err != nil {
		t.Fatalf("create service: %v", err)
	}
	lonely := f.addService("Massage", 5000, 60, 0)

	cases := []struct {
		name string
		q    SlotQuery
		want *Error
	}{
		{"no services", dayQuery(f, nextMonday), ErrServicesRequired},
		{"unknown service", dayQuery(f, nextMonday, uuid.New()), ErrSomeServicesNotFound},
		{"no capable staff", dayQuery(f, nextMonday, lonely.ID), ErrNoEligibleStaff},
		{"inverted range", SlotQuery{BusinessID: f.business.ID, ServiceIDs: []uuid.UUID{f.haircut.ID}, From: nextMonday, To: nextMonday}, ErrInvalidDateRange},
		{"range too long", SlotQuery{BusinessID: f.business.ID, ServiceIDs: []uuid.UUID{f.haircut.ID}, From: nextMonday, To: nextMonday.AddDate(0, 0, 31)}, ErrInvalidDateRange},
		{"unknown business", SlotQuery{BusinessID: other.BusinessID, ServiceIDs: []uuid.UUID{other.ID}, From: nextMonday, To: nextMonday.Add(time.Hour)}, ErrBusinessNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.slots.FindSlots(f.ctx, tc.q)
			expectCode(t, err, tc.want)
		})
	}
}

func TestFindSlots_InactiveServiceNotFound(t *testing.T) {
	f := newFixture(t)
	if err := f.store.DB().Model(&model.Service{}).Where("id = ?", f.haircut.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := f.slots.FindSlots(f.ctx, dayQuery(f, nextMonday, f.haircut.ID))
	expectCode(t, err, ErrSomeServicesNotFound)
}

func TestFindSlots_CacheHitAndInvalidate(t *testing.T) {
	f := newFixture(t)
	q := dayQuery(f, nextMonday, f.haircut.ID)

	first, err := f.slots.FindSlots(f.ctx, q)
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	second, err := f.slots.FindSlots(f.ctx, q)
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if f.cache.hits != 1 {
		t.Fatalf("expected cache hit, got %d", f.cache.hits)
	}
	if len(first.Slots) != len(second.Slots) {
		t.Fatalf("cached result differs: %d vs %d", len(first.Slots), len(second.Slots))
	}

	f.book(uuid.New(), nextMonday.Add(9*time.Hour), f.haircut.ID)
	if f.cache.invalidated != 1 {
		t.Fatalf("booking must invalidate slot cache")
	}

	third, err := f.slots.FindSlots(f.ctx, q)
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if hasStart(third.Slots, nextMonday.Add(9*time.Hour)) {
		t.Fatalf("booked slot must disappear after invalidation")
	}
}

// bookingDuringSetCache коммитит запись между расчётом слотов и записью в кеш.
type bookingDuringSetCache struct {
	*memCache
	beforeSet func()
}

func (c *bookingDuringSetCache) Set(ctx context.Context, businessID uuid.UUID, gen int64, key string, value []byte) error {
	if c.beforeSet != nil {
		c.beforeSet()
		c.beforeSet = nil
	}
	return c.memCache.Set(ctx, businessID, gen, key, value)
}

func TestFindSlots_StaleResultNotServedAfterConcurrentBooking(t *testing.T) {
	f := newFixture(t)
	q := dayQuery(f, nextMonday, f.haircut.ID)
	booked := nextMonday.Add(9 * time.Hour)

	racing := &bookingDuringSetCache{memCache: f.cache}
	racing.beforeSet = func() { f.book(uuid.New(), booked, f.haircut.ID) }
	slots := NewSlotService(f.store, racing, DefaultPolicy(), zap.NewNop()).WithClock(f.clock)

	first, err := slots.FindSlots(f.ctx, q)
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if !hasStart(first.Slots, booked) {
		t.Fatalf("first result is computed before the booking and must offer 09:00")
	}

	second, err := slots.FindSlots(f.ctx, q)
	if err != nil {
		t.Fatalf("FindSlots: %v", err)
	}
	if f.cache.hits != 0 {
		t.Fatalf("result computed before the booking must not be served, hits=%d", f.cache.hits)
	}
	if hasStart(second.Slots, booked) {
		t.Fatalf("09:00 is booked and must not be offered")
	}
}
