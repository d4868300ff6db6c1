package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/booking-core/internal/model"
)

// ServiceLine — позиция записи для ответа.
type ServiceLine struct {
	ServiceID   uuid.UUID `json:"service_id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	DurationMin int       `json:"duration_min"`
}

// AppointmentView — запись в том виде, в каком её отдают наружу.
type AppointmentView struct {
	ID                 uuid.UUID               `json:"id"`
	BusinessID         uuid.UUID               `json:"business_id"`
	CustomerID         uuid.UUID               `json:"customer_id"`
	StaffID            uuid.UUID               `json:"staff_id"`
	StaffName          string                  `json:"staff_name"`
	Start              time.Time               `json:"start"`
	End                time.Time               `json:"end"`
	TotalPrice         int64                   `json:"total_price"`
	Status             model.AppointmentStatus `json:"status"`
	Notes              string                  `json:"notes,omitempty"`
	CancellationReason string                  `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time              `json:"cancelled_at,omitempty"`
	Services           []ServiceLine           `json:"services"`
}

// StaffInfo — мастер в календаре бизнеса.
type StaffInfo struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// CalendarView — записи бизнеса за период и активные мастера.
type CalendarView struct {
	From         time.Time         `json:"from"`
	To           time.Time         `json:"to"`
	Appointments []AppointmentView `json:"appointments"`
	Staff        []StaffInfo       `json:"staff"`
}

// EventView — событие из истории записи.
type EventView struct {
	ID        uuid.UUID       `json:"id"`
	Type      model.EventType `json:"type"`
	ActorID   *uuid.UUID      `json:"actor_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func eventViewOf(ev model.Event) EventView {
	v := EventView{ID: ev.ID, Type: ev.EventType, ActorID: ev.ActorID, CreatedAt: ev.CreatedAt.UTC()}
	if len(ev.Payload) > 0 {
		v.Payload = json.RawMessage(ev.Payload)
	}
	return v
}

const unknownName = "Unknown"

// viewOf собирает ответ из строки. Staff и Services.Service должны быть подгружены,
// иначе имена будут пустыми.
func viewOf(a model.Appointment) AppointmentView {
	v := AppointmentView{
		ID:                 a.ID,
		BusinessID:         a.BusinessID,
		CustomerID:         a.CustomerID,
		StaffID:            a.StaffID,
		StaffName:          unknownName,
		Start:              a.StartTimeUTC.UTC(),
		End:                a.EndTimeUTC.UTC(),
		TotalPrice:         a.TotalPrice,
		Status:             a.Status,
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		CancelledAt:        a.CancelledAt,
		Services:           make([]ServiceLine, 0, len(a.Services)),
	}
	if a.Staff != nil {
		v.StaffName = a.Staff.FullName()
	}
	for _, s := range a.Services {
		line := ServiceLine{
			ServiceID:   s.ServiceID,
			Name:        unknownName,
			Price:       s.Price,
			DurationMin: s.DurationMin,
		}
		if s.Service != nil {
			line.Name = s.Service.Name
		}
		v.Services = append(v.Services, line)
	}
	return v
}
