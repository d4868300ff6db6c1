package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/booking-core/internal/model"
)

type AppointmentRepository interface {
	// Создать запись вместе с позициями.
	Create(ctx context.Context, a *model.Appointment) error
	// Получить запись по ID. forUpdate — взять строку под блокировку (в транзакции).
	GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*model.Appointment, error)
	// Запись с мастером и услугами для ответа.
	GetDetailed(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// Сохранить запись и заменить позиции.
	Save(ctx context.Context, a *model.Appointment) error
	// Активные записи мастеров, пересекающие [from, to).
	ListActiveByStaffRange(ctx context.Context, staffIDs []uuid.UUID, from, to time.Time) ([]model.Appointment, error)
	// Записи клиента с пагинацией. since != nil — только начинающиеся не раньше since.
	ListByCustomer(ctx context.Context, customerID uuid.UUID, since *time.Time, limit, offset int) ([]model.Appointment, int64, error)
	// Календарь бизнеса: записи, начинающиеся в [from, to], опционально по набору мастеров.
	ListByBusinessRange(ctx context.Context, businessID uuid.UUID, staffIDs []uuid.UUID, from, to time.Time) ([]model.Appointment, error)
}

// Реализация на GORM.
type GormAppointmentRepository struct {
	db *gorm.DB
}

func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

func (r *GormAppointmentRepository) Create(ctx context.Context, a *model.Appointment) error {
	return r.db.WithContext(ctx).Omit("Staff").Create(a).Error
}

func (r *GormAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*model.Appointment, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		// на sqlite клауза игнорируется драйвером
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var a model.Appointment
	if err := q.First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("appointment_id = ?", a.ID).Find(&a.Services).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAppointmentRepository) GetDetailed(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var a model.Appointment
	err := r.db.WithContext(ctx).
		Preload("Staff").
		Preload("Services.Service").
		First(&a, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAppointmentRepository) Save(ctx context.Context, a *model.Appointment) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(a).Error; err != nil {
		return err
	}
	if err := db.Where("appointment_id = ?", a.ID).Delete(&model.AppointmentService{}).Error; err != nil {
		return err
	}
	if len(a.Services) == 0 {
		return nil
	}
	return db.Omit("Service").Create(&a.Services).Error
}

func (r *GormAppointmentRepository) ListActiveByStaffRange(
	ctx context.Context,
	staffIDs []uuid.UUID,
	from, to time.Time,
) ([]model.Appointment, error) {
	if len(staffIDs) == 0 {
		return []model.Appointment{}, nil
	}
	var appointments []model.Appointment
	err := r.db.WithContext(ctx).
		Where("staff_id IN ?", staffIDs).
		Where("status NOT IN ?", model.InactiveAppointmentStatuses).
		Where("start_time_utc < ? AND end_time_utc > ?", to.UTC(), from.UTC()).
		Order("start_time_utc ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *GormAppointmentRepository) ListByCustomer(
	ctx context.Context,
	customerID uuid.UUID,
	since *time.Time,
	limit, offset int,
) ([]model.Appointment, int64, error) {
	var (
		appointments []model.Appointment
		total        int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("customer_id = ?", customerID)
	if since != nil {
		q = q.Where("start_time_utc >= ?", since.UTC())
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	err := q.
		Preload("Staff").
		Preload("Services.Service").
		Order("start_time_utc ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, 0, err
	}

	return appointments, total, nil
}

func (r *GormAppointmentRepository) ListByBusinessRange(
	ctx context.Context,
	businessID uuid.UUID,
	staffIDs []uuid.UUID,
	from, to time.Time,
) ([]model.Appointment, error) {
	q := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Where("start_time_utc >= ? AND start_time_utc <= ?", from.UTC(), to.UTC())
	if len(staffIDs) > 0 {
		q = q.Where("staff_id IN ?", staffIDs)
	}

	var appointments []model.Appointment
	err := q.
		Preload("Staff").
		Preload("Services.Service").
		Order("start_time_utc ASC, staff_id ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}
