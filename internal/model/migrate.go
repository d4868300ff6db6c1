package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей ядра записи.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Business{},
		&OperatingHour{},
		&ServiceCategory{},
		&Service{},
		&Staff{},
		&StaffSchedule{},
		&AvailabilityOverride{},
		&StaffService{},
		&Appointment{},
		&AppointmentService{},
		&Event{},
	)
}
