package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-core/internal/calendar"
	"github.com/Leganyst/booking-core/internal/repository"
)

// CustomerQuery — запрос списка записей клиента.
type CustomerQuery struct {
	CustomerID  uuid.UUID
	IncludePast bool
	Page        int
	PageSize    int
}

// CalendarQuery — календарь бизнеса за период.
type CalendarQuery struct {
	BusinessID uuid.UUID
	From       time.Time
	To         time.Time
	// Пусто — все мастера.
	StaffIDs []uuid.UUID
}

// CalendarService — чтение записей: список клиента и календарь бизнеса.
type CalendarService struct {
	store  *repository.Store
	policy Policy
	now    func() time.Time
}

func NewCalendarService(store *repository.Store, policy Policy) *CalendarService {
	return &CalendarService{
		store:  store,
		policy: policy.withDefaults(),
		now:    time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *CalendarService) WithClock(now func() time.Time) *CalendarService {
	s.now = now
	return s
}

// ListCustomerAppointments отдаёт записи клиента по времени начала. Без IncludePast
// только предстоящие.
func (s *CalendarService) ListCustomerAppointments(ctx context.Context, q CustomerQuery) (calendar.Page[AppointmentView], error) {
	ctx, span := tracer.Start(ctx, "CalendarService.ListCustomerAppointments", trace.WithAttributes(
		attribute.String("customer.id", q.CustomerID.String()),
	))
	defer span.End()

	page, pageSize, offset := calendar.NormalizePage(q.Page, q.PageSize)

	var since *time.Time
	if !q.IncludePast {
		now := s.now().UTC()
		since = &now
	}

	rows, total, err := s.store.Appointments.ListByCustomer(ctx, q.CustomerID, since, pageSize, offset)
	if err != nil {
		span.RecordError(err)
		return calendar.Page[AppointmentView]{}, fmt.Errorf("list customer appointments: %w", err)
	}

	items := make([]AppointmentView, 0, len(rows))
	for _, r := range rows {
		items = append(items, viewOf(r))
	}
	return calendar.NewPage(items, page, pageSize, int(total)), nil
}

// GetCalendar отдаёт записи, начинающиеся в [From, To], и активных мастеров бизнеса.
func (s *CalendarService) GetCalendar(ctx context.Context, q CalendarQuery) (*CalendarView, error) {
	ctx, span := tracer.Start(ctx, "CalendarService.GetCalendar", trace.WithAttributes(
		attribute.String("business.id", q.BusinessID.String()),
	))
	defer span.End()

	view, err := s.getCalendar(ctx, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("appointments.count", len(view.Appointments)))
	return view, nil
}

func (s *CalendarService) getCalendar(ctx context.Context, q CalendarQuery) (*CalendarView, error) {
	from, to := q.From.UTC(), q.To.UTC()
	if !to.After(from) {
		return nil, newError(CodeInvalidDateRange, "end date must be after start date")
	}
	if to.Sub(from) > time.Duration(s.policy.MaxCalendarDays)*24*time.Hour {
		return nil, newError(CodeDateRangeTooLarge, "date range cannot exceed %d days", s.policy.MaxCalendarDays)
	}

	if _, err := s.store.Businesses.GetWithHours(ctx, q.BusinessID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(CodeBusinessNotFound, "business %s not found", q.BusinessID)
		}
		return nil, fmt.Errorf("get business: %w", err)
	}

	rows, err := s.store.Appointments.ListByBusinessRange(ctx, q.BusinessID, uniqueIDs(q.StaffIDs), from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	staff, err := s.store.Staff.ListActive(ctx, q.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}

	view := &CalendarView{
		From:         from,
		To:           to,
		Appointments: make([]AppointmentView, 0, len(rows)),
		Staff:        make([]StaffInfo, 0, len(staff)),
	}
	for _, r := range rows {
		view.Appointments = append(view.Appointments, viewOf(r))
	}
	for _, st := range staff {
		view.Staff = append(view.Staff, StaffInfo{ID: st.ID, Name: st.FullName()})
	}
	return view, nil
}

// GetAppointment отдаёт одну запись. Клиент видит только свои записи.
func (s *CalendarService) GetAppointment(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) (*AppointmentView, error) {
	row, err := s.store.Appointments.GetDetailed(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(CodeAppointmentNotFound, "appointment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if customerID != nil && row.CustomerID != *customerID {
		return nil, newError(CodeUnauthorizedAccess, "appointment belongs to another customer")
	}
	view := viewOf(*row)
	return &view, nil
}

// History отдаёт события записи в порядке появления. Клиент видит
// историю только своих записей.
func (s *CalendarService) History(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) ([]EventView, error) {
	ctx, span := tracer.Start(ctx, "CalendarService.History", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
	))
	defer span.End()

	row, err := s.store.Appointments.GetByID(ctx, id, false)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(CodeAppointmentNotFound, "appointment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if customerID != nil && row.CustomerID != *customerID {
		return nil, newError(CodeUnauthorizedAccess, "appointment belongs to another customer")
	}

	events, err := s.store.Events.ListByAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		out = append(out, eventViewOf(ev))
	}
	return out, nil
}
