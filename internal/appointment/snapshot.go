package appointment

import (
	"time"

	"github.com/Leganyst/booking-core/internal/model"
)

// FromModel восстанавливает агрегат из сохранённой строки.
func FromModel(m model.Appointment) *Appointment {
	a := &Appointment{
		id:                 m.ID,
		businessID:         m.BusinessID,
		customerID:         m.CustomerID,
		staffID:            m.StaffID,
		start:              m.StartTimeUTC.UTC(),
		end:                m.EndTimeUTC.UTC(),
		totalPrice:         m.TotalPrice,
		notes:              m.Notes,
		status:             m.Status,
		cancellationReason: m.CancellationReason,
		cancelledBy:        m.CancelledBy,
		createdAt:          m.CreatedAt,
		updatedAt:          m.UpdatedAt,
	}
	if m.CancelledAt != nil {
		at := m.CancelledAt.UTC()
		a.cancelledAt = &at
	}
	for _, s := range m.Services {
		a.items = append(a.items, LineItem{
			ServiceID: s.ServiceID,
			Price:     s.Price,
			Duration:  time.Duration(s.DurationMin) * time.Minute,
		})
	}
	return a
}

// ToModel собирает строку для сохранения.
func (a *Appointment) ToModel() model.Appointment {
	m := model.Appointment{
		ID:                 a.id,
		BusinessID:         a.businessID,
		CustomerID:         a.customerID,
		StaffID:            a.staffID,
		StartTimeUTC:       a.start,
		EndTimeUTC:         a.end,
		TotalPrice:         a.totalPrice,
		Notes:              a.notes,
		Status:             a.status,
		CancellationReason: a.cancellationReason,
		CancelledAt:        a.cancelledAt,
		CancelledBy:        a.cancelledBy,
		CreatedAt:          a.createdAt,
		UpdatedAt:          a.updatedAt,
	}
	for _, it := range a.items {
		m.Services = append(m.Services, model.AppointmentService{
			AppointmentID: a.id,
			ServiceID:     it.ServiceID,
			Price:         it.Price,
			DurationMin:   int(it.Duration / time.Minute),
		})
	}
	return m
}
