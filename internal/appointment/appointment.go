// Package appointment — агрегат записи: позиции услуг, расписание и жизненный цикл статусов.
package appointment

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Leganyst/booking-core/internal/calendar"
	"github.com/Leganyst/booking-core/internal/model"
)

const MaxNotesLength = 500

// LineItem — снимок услуги на момент бронирования.
type LineItem struct {
	ServiceID uuid.UUID
	Price     int64
	Duration  time.Duration // длительность вместе с буфером
}

// Event — доменное событие, порождённое переходом.
type Event struct {
	Type          model.EventType
	AppointmentID uuid.UUID
	ActorID       *uuid.UUID
	OccurredAt    time.Time
	Data          map[string]any
}

// NewParams — входные данные для новой записи.
type NewParams struct {
	BusinessID uuid.UUID
	CustomerID uuid.UUID
	StaffID    uuid.UUID
	Start      time.Time
	Notes      string
	Items      []LineItem
}

// Appointment — запись клиента к мастеру. Поля закрыты: менять состояние
// можно только через методы, которые держат инварианты.
type Appointment struct {
	id         uuid.UUID
	businessID uuid.UUID
	customerID uuid.UUID
	staffID    uuid.UUID

	start time.Time
	end   time.Time

	totalPrice int64
	notes      string
	status     model.AppointmentStatus

	cancellationReason string
	cancelledAt        *time.Time
	cancelledBy        *uuid.UUID

	items []LineItem

	createdAt time.Time
	updatedAt time.Time
}

// New создаёт запись в статусе scheduled. Конец вычисляется как начало плюс
// сумма длительностей, итоговая цена как сумма цен позиций.
// Отрицательная цена позиции означает ошибку вызывающего кода и приводит к панике.
func New(p NewParams, actor uuid.UUID, now time.Time) (*Appointment, []Event, error) {
	if len(p.Items) == 0 {
		return nil, nil, ErrNoServices
	}
	if utf8.RuneCountInString(p.Notes) > MaxNotesLength {
		return nil, nil, ErrNotesTooLong
	}

	a := &Appointment{
		id:         uuid.New(),
		businessID: p.BusinessID,
		customerID: p.CustomerID,
		staffID:    p.StaffID,
		start:      p.Start.UTC(),
		notes:      p.Notes,
		status:     model.AppointmentStatusScheduled,
		createdAt:  now.UTC(),
		updatedAt:  now.UTC(),
	}

	seen := make(map[uuid.UUID]struct{}, len(p.Items))
	var total time.Duration
	for _, it := range p.Items {
		if it.Price < 0 {
			panic(fmt.Sprintf("appointment: negative price %d for service %s", it.Price, it.ServiceID))
		}
		if _, dup := seen[it.ServiceID]; dup {
			continue
		}
		seen[it.ServiceID] = struct{}{}
		a.items = append(a.items, it)
		a.totalPrice += it.Price
		total += it.Duration
	}
	a.end = a.start.Add(total)
	if !a.end.After(a.start) {
		return nil, nil, ErrInvalidSchedule
	}

	ev := a.event(model.EventTypeAppointmentCreated, &actor, now, map[string]any{
		"staff_id":    a.staffID.String(),
		"customer_id": a.customerID.String(),
		"start_time":  a.start.Format(time.RFC3339),
		"end_time":    a.end.Format(time.RFC3339),
		"total_price": a.totalPrice,
	})
	return a, []Event{ev}, nil
}

func (a *Appointment) ID() uuid.UUID                   { return a.id }
func (a *Appointment) BusinessID() uuid.UUID           { return a.businessID }
func (a *Appointment) CustomerID() uuid.UUID           { return a.customerID }
func (a *Appointment) StaffID() uuid.UUID              { return a.staffID }
func (a *Appointment) Start() time.Time                { return a.start }
func (a *Appointment) End() time.Time                  { return a.end }
func (a *Appointment) TotalPrice() int64               { return a.totalPrice }
func (a *Appointment) Notes() string                   { return a.notes }
func (a *Appointment) Status() model.AppointmentStatus { return a.status }
func (a *Appointment) CancellationReason() string      { return a.cancellationReason }
func (a *Appointment) CancelledAt() *time.Time         { return a.cancelledAt }
func (a *Appointment) CancelledBy() *uuid.UUID         { return a.cancelledBy }

// Range возвращает интервал, который запись занимает у мастера.
func (a *Appointment) Range() calendar.TimeRange {
	return calendar.TimeRange{Start: a.start, End: a.end}
}

// Items возвращает копию позиций.
func (a *Appointment) Items() []LineItem {
	out := make([]LineItem, len(a.items))
	copy(out, a.items)
	return out
}

// Confirm переводит запись в confirmed.
func (a *Appointment) Confirm(actor uuid.UUID, now time.Time) ([]Event, error) {
	return a.apply(TransitionConfirm, actor, now)
}

// StartService переводит запись в in_progress.
func (a *Appointment) StartService(actor uuid.UUID, now time.Time) ([]Event, error) {
	return a.apply(TransitionStartService, actor, now)
}

// Complete переводит запись из in_progress в completed.
func (a *Appointment) Complete(actor uuid.UUID, now time.Time) ([]Event, error) {
	return a.apply(TransitionComplete, actor, now)
}

// MarkNoShow фиксирует неявку клиента.
func (a *Appointment) MarkNoShow(actor uuid.UUID, now time.Time) ([]Event, error) {
	return a.apply(TransitionMarkNoShow, actor, now)
}

func (a *Appointment) apply(t Transition, actor uuid.UUID, now time.Time) ([]Event, error) {
	if !CanTransition(a.status, t) {
		return nil, &TransitionError{From: a.status, Transition: t}
	}
	from := a.status
	a.status = targetStatus[t]
	a.updatedAt = now.UTC()
	ev := a.event(transitionEvent[t], &actor, now, map[string]any{
		"from_status": string(from),
		"to_status":   string(a.status),
	})
	return []Event{ev}, nil
}

// Cancel отменяет запись. Повторная отмена ничего не меняет и событий не порождает.
func (a *Appointment) Cancel(reason string, by uuid.UUID, now time.Time) ([]Event, error) {
	switch a.status {
	case model.AppointmentStatusCancelled:
		return nil, nil
	case model.AppointmentStatusCompleted:
		return nil, ErrCannotCancelCompleted
	}
	if utf8.RuneCountInString(reason) > MaxNotesLength {
		return nil, ErrNotesTooLong
	}

	from := a.status
	at := now.UTC()
	a.status = model.AppointmentStatusCancelled
	a.cancellationReason = reason
	a.cancelledAt = &at
	a.cancelledBy = &by
	a.updatedAt = at

	ev := a.event(model.EventTypeAppointmentCancelled, &by, now, map[string]any{
		"from_status": string(from),
		"reason":      reason,
	})
	return []Event{ev}, nil
}

// UpdateSchedule переносит запись на новый интервал и/или к другому мастеру.
// occupancy — записи, с которыми нужно сверить новый интервал; сама запись
// из проверки исключается. Если запись уже не в scheduled, статус меняется
// на rescheduled.
func (a *Appointment) UpdateSchedule(staffID uuid.UUID, start, end time.Time, occupancy []calendar.Occupancy, actor uuid.UUID, now time.Time) ([]Event, error) {
	switch a.status {
	case model.AppointmentStatusCompleted:
		return nil, ErrCannotUpdateCompleted
	case model.AppointmentStatusCancelled:
		return nil, ErrCannotUpdateCancelled
	}

	tr, err := calendar.NewTimeRange(start, end)
	if err != nil {
		return nil, ErrInvalidSchedule
	}

	staffChanged := staffID != a.staffID
	timeChanged := !tr.Start.Equal(a.start) || !tr.End.Equal(a.end)
	if !staffChanged && !timeChanged {
		return nil, nil
	}

	if calendar.HasConflict(staffID, tr, occupancy, a.id) {
		return nil, ErrTimeSlotNotAvailable
	}

	var events []Event
	if staffChanged {
		events = append(events, a.event(model.EventTypeAppointmentStaffChanged, &actor, now, map[string]any{
			"old_staff_id": a.staffID.String(),
			"new_staff_id": staffID.String(),
		}))
	}
	if timeChanged {
		events = append(events, a.event(model.EventTypeAppointmentRescheduled, &actor, now, map[string]any{
			"old_start_time": a.start.Format(time.RFC3339),
			"old_end_time":   a.end.Format(time.RFC3339),
			"new_start_time": tr.Start.Format(time.RFC3339),
			"new_end_time":   tr.End.Format(time.RFC3339),
		}))
	}

	a.staffID = staffID
	a.start = tr.Start
	a.end = tr.End
	if a.status != model.AppointmentStatusScheduled {
		a.status = model.AppointmentStatusRescheduled
	}
	a.updatedAt = now.UTC()
	return events, nil
}

// UpdateNotes меняет заметки. Событий не порождает.
func (a *Appointment) UpdateNotes(notes string, now time.Time) error {
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	a.notes = notes
	a.updatedAt = now.UTC()
	return nil
}

// UpdateTotalPrice задаёт итоговую цену (например, после скидки).
// Отрицательная цена означает ошибку вызывающего кода.
func (a *Appointment) UpdateTotalPrice(price int64, now time.Time) {
	if price < 0 {
		panic(fmt.Sprintf("appointment: negative total price %d", price))
	}
	a.totalPrice = price
	a.updatedAt = now.UTC()
}

// AddService добавляет позицию. Повтор услуги игнорируется.
// Итоговая цена пересчитывается, расписание не меняется: длительность
// фиксируется при создании, а перенос делает UpdateSchedule.
func (a *Appointment) AddService(it LineItem, now time.Time) error {
	if IsTerminal(a.status) {
		return &TransitionError{From: a.status, Transition: TransitionModifyServices}
	}
	if it.Price < 0 {
		panic(fmt.Sprintf("appointment: negative price %d for service %s", it.Price, it.ServiceID))
	}
	for _, existing := range a.items {
		if existing.ServiceID == it.ServiceID {
			return nil
		}
	}
	a.items = append(a.items, it)
	a.totalPrice += it.Price
	a.updatedAt = now.UTC()
	return nil
}

// RemoveService убирает позицию. Последнюю позицию убрать нельзя.
func (a *Appointment) RemoveService(serviceID uuid.UUID, now time.Time) error {
	if IsTerminal(a.status) {
		return &TransitionError{From: a.status, Transition: TransitionModifyServices}
	}
	for i, it := range a.items {
		if it.ServiceID != serviceID {
			continue
		}
		if len(a.items) == 1 {
			return ErrNoServices
		}
		a.items = append(a.items[:i:i], a.items[i+1:]...)
		a.totalPrice -= it.Price
		a.updatedAt = now.UTC()
		return nil
	}
	return nil
}

func (a *Appointment) event(t model.EventType, actor *uuid.UUID, now time.Time, data map[string]any) Event {
	return Event{
		Type:          t,
		AppointmentID: a.id,
		ActorID:       actor,
		OccurredAt:    now.UTC(),
		Data:          data,
	}
}
