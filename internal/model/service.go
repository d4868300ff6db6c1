package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// service_categories
type ServiceCategory struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index"`

	Name        string `gorm:"type:varchar(120);not null"`
	Description string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (c *ServiceCategory) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// services
type Service struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BusinessID uuid.UUID  `gorm:"type:uuid;not null;index"`
	CategoryID *uuid.UUID `gorm:"type:uuid;index"`

	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`

	Price int64 `gorm:"not null"` // в копейках/центах

	DurationMin int `gorm:"not null"`
	// Время после услуги (уборка, подготовка): занимает мастера, но не оплачивается.
	BufferMin int `gorm:"not null;default:0"`

	IsActive bool `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Category *ServiceCategory `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (s *Service) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// OccupiedDuration считает время мастера, занятое услугой вместе с буфером.
func (s Service) OccupiedDuration() time.Duration {
	return time.Duration(s.DurationMin+s.BufferMin) * time.Minute
}

// staff_services — кастомная join-таблица многие-ко-многим.
type StaffService struct {
	StaffID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	ServiceID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Staff   *Staff   `gorm:"foreignKey:StaffID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Service *Service `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
