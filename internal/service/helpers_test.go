package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Leganyst/booking-core/internal/db"
	"github.com/Leganyst/booking-core/internal/identity"
	"github.com/Leganyst/booking-core/internal/lock"
	"github.com/Leganyst/booking-core/internal/model"
	"github.com/Leganyst/booking-core/internal/repository"
)

// понедельник, 06:00 UTC
var testNow = time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)

// следующий понедельник, полночь
var nextMonday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *repository.Store

	business model.Business
	staff    model.Staff
	haircut  model.Service
	coloring model.Service

	publisher *memPublisher
	cache     *memCache

	mu  sync.Mutex
	now time.Time

	slots    *SlotService
	booking  *BookingService
	calendar *CalendarService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		store:     repository.NewStore(gdb),
		publisher: &memPublisher{},
		cache:     newMemCache(),
		now:       testNow,
	}

	f.business = model.Business{Name: "Barbershop", OperatingHours: openMonSat(9, 18)}
	if err := f.store.Businesses.Create(f.ctx, &f.business); err != nil {
		t.Fatalf("create business: %v", err)
	}

	f.haircut = f.addService("Haircut", 2500, 30, 0)
	f.coloring = f.addService("Coloring", 6000, 60, 15)
	f.staff = f.addStaff("Anna", "Ivanova", f.haircut.ID, f.coloring.ID)

	policy := DefaultPolicy()
	logger := zap.NewNop()
	f.slots = NewSlotService(f.store, f.cache, policy, logger).WithClock(f.clock)
	f.booking = NewBookingService(f.store, lock.NewLocalLocker(), f.publisher, f.cache, policy, logger).WithClock(f.clock)
	f.calendar = NewCalendarService(f.store, policy).WithClock(f.clock)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) setNow(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func openMonSat(openHour, closeHour int) []model.OperatingHour {
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

func (f *fixture) addService(name string, price int64, duration, buffer int) model.Service {
	f.t.Helper()
	svc := model.Service{
		BusinessID:  f.business.ID,
		Name:        name,
		Price:       price,
		DurationMin: duration,
		BufferMin:   buffer,
		IsActive:    true,
	}
	if err := f.store.Services.Create(f.ctx, &svc); err != nil {
		f.t.Fatalf("create service: %v", err)
	}
	return svc
}

// addStaff — мастер, работающий пн–пт 09:00–17:00.
func (f *fixture) addStaff(first, last string, serviceIDs ...uuid.UUID) model.Staff {
	f.t.Helper()
	staff := model.Staff{BusinessID: f.business.ID, FirstName: first, LastName: last, IsActive: true}
	for d := time.Monday; d <= time.Friday; d++ {
		if err := staff.SetSchedule(d, true, model.ClockTime(9, 0), model.ClockTime(17, 0)); err != nil {
			f.t.Fatalf("SetSchedule: %v", err)
		}
	}
	for _, id := range serviceIDs {
		staff.AssignService(id)
	}
	if err := f.store.Staff.Create(f.ctx, &staff); err != nil {
		f.t.Fatalf("create staff: %v", err)
	}
	return staff
}

func (f *fixture) addOverride(staff model.Staff, o model.AvailabilityOverride) {
	f.t.Helper()
	if err := o.Validate(); err != nil {
		f.t.Fatalf("override: %v", err)
	}
	o.StaffID = staff.ID
	if err := f.store.DB().WithContext(f.ctx).Create(&o).Error; err != nil {
		f.t.Fatalf("create override: %v", err)
	}
}

// insertAppointment пишет запись напрямую, минуя проверки.
func (f *fixture) insertAppointment(staffID, customerID uuid.UUID, start time.Time, minutes int, status model.AppointmentStatus) model.Appointment {
	f.t.Helper()
	a := model.Appointment{
		BusinessID:   f.business.ID,
		CustomerID:   customerID,
		StaffID:      staffID,
		StartTimeUTC: start,
		EndTimeUTC:   start.Add(time.Duration(minutes) * time.Minute),
		TotalPrice:   f.haircut.Price,
		Status:       status,
		Services: []model.AppointmentService{
			{ServiceID: f.haircut.ID, Price: f.haircut.Price, DurationMin: minutes},
		},
	}
	if err := f.store.Appointments.Create(f.ctx, &a); err != nil {
		f.t.Fatalf("insert appointment: %v", err)
	}
	return a
}

func (f *fixture) book(customerID uuid.UUID, start time.Time, serviceIDs ...uuid.UUID) *AppointmentView {
	f.t.Helper()
	view, err := f.booking.CreateAppointment(f.ctx, CreateRequest{
		BusinessID: f.business.ID,
		CustomerID: customerID,
		StaffID:    f.staff.ID,
		Start:      start,
		ServiceIDs: serviceIDs,
	})
	if err != nil {
		f.t.Fatalf("CreateAppointment: %v", err)
	}
	return view
}

func (f *fixture) reload(id uuid.UUID) *model.Appointment {
	f.t.Helper()
	a, err := f.store.Appointments.GetByID(f.ctx, id, false)
	if err != nil {
		f.t.Fatalf("reload appointment: %v", err)
	}
	return a
}

func admin() identity.Caller {
	return identity.Caller{UserID: uuid.New(), Roles: []identity.Role{identity.RoleAdmin}}
}

func customer(id uuid.UUID) identity.Caller {
	return identity.Caller{UserID: id, Roles: []identity.Role{identity.RoleCustomer}}
}

func expectCode(t *testing.T, err error, want *Error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want.Code)
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected %s, got %v", want.Code, err)
	}
}

type memPublisher struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (p *memPublisher) Publish(_ context.Context, events []model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *memPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}

type memCache struct {
	mu          sync.Mutex
	gen         int64
	data        map[string][]byte
	hits        int
	invalidated int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) key(businessID uuid.UUID, gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", businessID, gen, key)
}

func (c *memCache) Get(_ context.Context, businessID uuid.UUID, key string) ([]byte, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[c.key(businessID, c.gen, key)]
	if ok {
		c.hits++
	}
	return v, c.gen, ok, nil
}

func (c *memCache) Set(_ context.Context, businessID uuid.UUID, gen int64, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[c.key(businessID, gen, key)] = value
	return nil
}

func (c *memCache) Invalidate(_ context.Context, _ uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.invalidated++
	return nil
}
