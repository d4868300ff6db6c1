package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Статус записи.
type AppointmentStatus string

const (
	AppointmentStatusScheduled   AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed   AppointmentStatus = "confirmed"
	AppointmentStatusInProgress  AppointmentStatus = "in_progress"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
	AppointmentStatusNoShow      AppointmentStatus = "no_show"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
)

// InactiveAppointmentStatuses — статусы, которые не занимают время мастера.
var InactiveAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusCancelled,
	AppointmentStatusNoShow,
}

// Occupies сообщает, блокирует ли запись в этом статусе время мастера.
func (s AppointmentStatus) Occupies() bool {
	return s != AppointmentStatusCancelled && s != AppointmentStatusNoShow
}

// ParseAppointmentStatus разбирает статус из внешнего ввода.
func ParseAppointmentStatus(v string) (AppointmentStatus, bool) {
	switch st := AppointmentStatus(v); st {
	case AppointmentStatusScheduled,
		AppointmentStatusConfirmed,
		AppointmentStatusInProgress,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow,
		AppointmentStatusRescheduled:
		return st, true
	default:
		return "", false
	}
}

// appointments
type Appointment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	StaffID    uuid.UUID `gorm:"type:uuid;not null;index:ix_appointments_staff_time,priority:1"`

	StartTimeUTC time.Time `gorm:"column:start_time_utc;not null;index:ix_appointments_staff_time,priority:2"`
	EndTimeUTC   time.Time `gorm:"column:end_time_utc;not null"`

	TotalPrice int64  `gorm:"not null"` // в копейках/центах
	Notes      string `gorm:"type:varchar(500)"`

	Status AppointmentStatus `gorm:"type:varchar(32);not null;index"`

	CancellationReason string `gorm:"type:varchar(500)"`
	CancelledAt        *time.Time
	CancelledBy        *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Services []AppointmentService `gorm:"foreignKey:AppointmentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	Staff *Staff `gorm:"foreignKey:StaffID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (a *Appointment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// appointment_services — позиции записи со снимком цены и длительности на момент бронирования.
type AppointmentService struct {
	AppointmentID uuid.UUID `gorm:"type:uuid;primaryKey"`
	ServiceID     uuid.UUID `gorm:"type:uuid;primaryKey"`

	Price       int64 `gorm:"not null"`
	DurationMin int   `gorm:"not null"` // длительность вместе с буфером

	Service *Service `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
