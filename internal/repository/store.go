package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store собирает репозитории над одним *gorm.DB. Внутри Transaction
// все репозитории работают через транзакцию.
type Store struct {
	db *gorm.DB

	Businesses   BusinessRepository
	Staff        StaffRepository
	Services     ServiceRepository
	Appointments AppointmentRepository
	Events       EventRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Businesses:   NewGormBusinessRepository(db),
		Staff:        NewGormStaffRepository(db),
		Services:     NewGormServiceRepository(db),
		Appointments: NewGormAppointmentRepository(db),
		Events:       NewGormEventRepository(db),
	}
}

// DB возвращает соединение (или транзакцию), на котором построен Store.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction выполняет fn в одной транзакции. Ошибка из fn откатывает всё.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
