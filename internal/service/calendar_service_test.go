package service

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/booking-core/internal/model"
)

func TestListCustomerAppointments_UpcomingOnly(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	f.insertAppointment(f.staff.ID, customerID, testNow.Add(-48*time.Hour), 30, model.AppointmentStatusCompleted)
	later := f.book(customerID, nextMonday.Add(14*time.Hour), f.haircut.ID)
	sooner := f.book(customerID, nextMonday.Add(10*time.Hour), f.haircut.ID)
	f.book(uuid.New(), nextMonday.Add(12*time.Hour), f.haircut.ID)

	page, err := f.calendar.ListCustomerAppointments(f.ctx, CustomerQuery{CustomerID: customerID})
	if err != nil {
		t.Fatalf("ListCustomerAppointments: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected 2 upcoming appointments, got total=%d items=%d", page.Total, len(page.Items))
	}
	if page.Items[0].ID != sooner.ID || page.Items[1].ID != later.ID {
		t.Fatalf("appointments must be ordered by start")
	}
	if page.Items[0].StaffName != "Anna Ivanova" || page.Items[0].Services[0].Name != "Haircut" {
		t.Fatalf("names must be loaded: %+v", page.Items[0])
	}

	all, err := f.calendar.ListCustomerAppointments(f.ctx, CustomerQuery{CustomerID: customerID, IncludePast: true})
	if err != nil {
		t.Fatalf("ListCustomerAppointments: %v", err)
	}
	if all.Total != 3 {
		t.Fatalf("expected 3 appointments with past, got %d", all.Total)
	}
}

func TestListCustomerAppointments_Paging(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	for i := 0; i < 5; i++ {
		f.book(customerID, nextMonday.Add(time.Duration(9+i)*time.Hour), f.haircut.ID)
	}

	page, err := f.calendar.ListCustomerAppointments(f.ctx, CustomerQuery{CustomerID: customerID, Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("ListCustomerAppointments: %v", err)
	}
	if len(page.Items) != 2 || page.Total != 5 || !page.HasNext || !page.HasPrev {
		t.Fatalf("unexpected page: %+v", page)
	}
	if !page.Items[0].Start.Equal(nextMonday.Add(11 * time.Hour)) {
		t.Fatalf("page 2 must start with the third appointment, got %v", page.Items[0].Start)
	}

	last, err := f.calendar.ListCustomerAppointments(f.ctx, CustomerQuery{CustomerID: customerID, Page: 3, PageSize: 2})
	if err != nil {
		t.Fatalf("ListCustomerAppointments: %v", err)
	}
	if len(last.Items) != 1 || last.HasNext {
		t.Fatalf("unexpected last page: %+v", last)
	}
}

func TestGetCalendar(t *testing.T) {
	f := newFixture(t)
	boris := f.addStaff("Boris", "Petrov", f.haircut.ID)
	inactive := model.Staff{BusinessID: f.business.ID, FirstName: "Old", LastName: "Timer"}
	if err := f.store.Staff.Create(f.ctx, &inactive); err != nil {
		t.Fatalf("create staff: %v", err)
	}

	f.book(uuid.New(), nextMonday.Add(10*time.Hour), f.haircut.ID)
	f.insertAppointment(boris.ID, uuid.New(), nextMonday.Add(11*time.Hour), 30, model.AppointmentStatusCancelled)
	f.insertAppointment(boris.ID, uuid.New(), nextMonday.AddDate(0, 0, 3).Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	view, err := f.calendar.GetCalendar(f.ctx, CalendarQuery{
		BusinessID: f.business.ID,
		From:       nextMonday,
		To:         nextMonday.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("GetCalendar: %v", err)
	}
	if len(view.Appointments) != 2 {
		t.Fatalf("expected 2 appointments in range (cancelled included), got %d", len(view.Appointments))
	}
	if len(view.Staff) != 2 || view.Staff[0].Name != "Anna Ivanova" || view.Staff[1].Name != "Boris Petrov" {
		t.Fatalf("expected active staff only, got %+v", view.Staff)
	}

	filtered, err := f.calendar.GetCalendar(f.ctx, CalendarQuery{
		BusinessID: f.business.ID,
		From:       nextMonday,
		To:         nextMonday.Add(24 * time.Hour),
		StaffIDs:   []uuid.UUID{f.staff.ID},
	})
	if err != nil {
		t.Fatalf("GetCalendar: %v", err)
	}
	if len(filtered.Appointments) != 1 || filtered.Appointments[0].StaffID != f.staff.ID {
		t.Fatalf("staff filter not applied: %+v", filtered.Appointments)
	}
}

func TestGetCalendar_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.calendar.GetCalendar(f.ctx, CalendarQuery{BusinessID: f.business.ID, From: nextMonday, To: nextMonday})
	expectCode(t, err, ErrInvalidDateRange)

	_, err = f.calendar.GetCalendar(f.ctx, CalendarQuery{BusinessID: f.business.ID, From: nextMonday, To: nextMonday.AddDate(0, 0, 91)})
	expectCode(t, err, ErrDateRangeTooLarge)

	_, err = f.calendar.GetCalendar(f.ctx, CalendarQuery{BusinessID: uuid.New(), From: nextMonday, To: nextMonday.AddDate(0, 0, 1)})
	expectCode(t, err, ErrBusinessNotFound)
}

func TestGetAppointment(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	view := f.book(customerID, nextMonday.Add(10*time.Hour), f.haircut.ID)

	got, err := f.calendar.GetAppointment(f.ctx, view.ID, &customerID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.ID != view.ID || got.StaffName != "Anna Ivanova" {
		t.Fatalf("unexpected view: %+v", got)
	}

	stranger := uuid.New()
	_, err = f.calendar.GetAppointment(f.ctx, view.ID, &stranger)
	expectCode(t, err, ErrUnauthorizedAccess)

	_, err = f.calendar.GetAppointment(f.ctx, uuid.New(), nil)
	expectCode(t, err, ErrAppointmentNotFound)

}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	view := f.book(customerID, nextMonday.Add(10*time.Hour), f.haircut.ID)
	f.setNow(testNow.Add(time.Hour))
	if err := f.booking.CancelAppointment(f.ctx, CancelRequest{AppointmentID: view.ID, Caller: customer(customerID), Reason: "sick"}); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}

	history, err := f.calendar.History(f.ctx, view.ID, &customerID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 events, got %+v", history)
	}
	if history[0].Type != model.EventTypeAppointmentCreated || history[1].Type != model.EventTypeAppointmentCancelled {
		t.Fatalf("unexpected order: %s, %s", history[0].Type, history[1].Type)
	}
	if history[1].ActorID == nil || *history[1].ActorID != customerID {
		t.Fatalf("cancel must be attributed to the customer, got %v", history[1].ActorID)
	}

	stranger := uuid.New()
	_, err = f.calendar.History(f.ctx, view.ID, &stranger)
	expectCode(t, err, ErrUnauthorizedAccess)

	_, err = f.calendar.History(f.ctx, uuid.New(), nil)
	expectCode(t, err, ErrAppointmentNotFound)
}
