package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Address — необязательный адрес бизнеса, хранится в колонках address_*.
type Address struct {
	Street     string `gorm:"type:varchar(255)"`
	City       string `gorm:"type:varchar(128)"`
	State      string `gorm:"type:varchar(128)"`
	PostalCode string `gorm:"type:varchar(32)"`
	Country    string `gorm:"type:varchar(64)"`
}

// businesses
type Business struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name        string `gorm:"type:varchar(200);not null"`
	Description string `gorm:"type:text"`
	Email       string `gorm:"type:varchar(255)"`
	PhoneNumber string `gorm:"type:varchar(32)"`
	WebsiteURL  string `gorm:"type:varchar(255)"`

	Address Address `gorm:"embedded;embeddedPrefix:address_"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	OperatingHours []OperatingHour `gorm:"foreignKey:BusinessID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (b *Business) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// business_operating_hours — не больше одной записи на день недели (составной PK).
type OperatingHour struct {
	BusinessID uuid.UUID    `gorm:"type:uuid;primaryKey"`
	DayOfWeek  time.Weekday `gorm:"primaryKey;autoIncrement:false"`

	IsClosed bool `gorm:"not null;default:false"`

	// Для закрытого дня оба поля NULL.
	OpenTime  *datatypes.Time `gorm:"type:time"`
	CloseTime *datatypes.Time `gorm:"type:time"`
}

func (OperatingHour) TableName() string {
	return "business_operating_hours"
}

// Window возвращает часы работы как смещения от полуночи.
// ok=false, если день закрыт или часы не заданы.
func (h OperatingHour) Window() (openAt, closeAt time.Duration, ok bool) {
	if h.IsClosed || h.OpenTime == nil || h.CloseTime == nil {
		return 0, 0, false
	}
	return time.Duration(*h.OpenTime), time.Duration(*h.CloseTime), true
}

// ClockTime собирает datatypes.Time из часов и минут.
func ClockTime(hour, minute int) *datatypes.Time {
	t := datatypes.NewTime(hour, minute, 0, 0)
	return &t
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
