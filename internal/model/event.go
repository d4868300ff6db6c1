package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип доменного события записи.
type EventType string

const (
	EventTypeAppointmentCreated      EventType = "appointment_created"
	EventTypeAppointmentConfirmed    EventType = "appointment_confirmed"
	EventTypeAppointmentStarted      EventType = "appointment_started"
	EventTypeAppointmentCompleted    EventType = "appointment_completed"
	EventTypeAppointmentCancelled    EventType = "appointment_cancelled"
	EventTypeAppointmentNoShow       EventType = "appointment_no_show"
	EventTypeAppointmentRescheduled  EventType = "appointment_rescheduled"
	EventTypeAppointmentStaffChanged EventType = "appointment_staff_changed"
)

// events — журнал доменных событий. Пишется в той же транзакции, что и запись,
// поэтому событие не теряется, даже если брокер недоступен.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	ActorID       *uuid.UUID `gorm:"type:uuid;index"`
	AppointmentID *uuid.UUID `gorm:"type:uuid;index"`

	Payload datatypes.JSON `gorm:"type:jsonb"`

	// Проставляется после успешной отправки в брокер.
	PublishedAt *time.Time `gorm:"index"`
	// Неудачные попытки отправки. После лимита релея событие больше не выбирается.
	PublishAttempts  int    `gorm:"not null;default:0"`
	LastPublishError string `gorm:"type:text"`

	// Навигационные поля
	Appointment *Appointment `gorm:"foreignKey:AppointmentID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
