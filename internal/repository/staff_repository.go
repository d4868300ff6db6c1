package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-core/internal/model"
)

type StaffRepository interface {
	// Мастер с расписанием и набором услуг. Исключения подгружаются на [from, to].
	GetByID(ctx context.Context, id uuid.UUID, from, to time.Time) (*model.Staff, error)
	// Активные мастера бизнеса, умеющие все услуги, в порядке имени и id.
	ListCapable(ctx context.Context, businessID uuid.UUID, serviceIDs []uuid.UUID, from, to time.Time) ([]model.Staff, error)
	// Активные мастера бизнеса без календаря.
	ListActive(ctx context.Context, businessID uuid.UUID) ([]model.Staff, error)
	Create(ctx context.Context, staff *model.Staff) error
}

type GormStaffRepository struct {
	db *gorm.DB
}

func NewGormStaffRepository(db *gorm.DB) *GormStaffRepository {
	return &GormStaffRepository{db: db}
}

func (r *GormStaffRepository) GetByID(ctx context.Context, id uuid.UUID, from, to time.Time) (*model.Staff, error) {
	var s model.Staff
	if err := r.withCalendar(r.db.WithContext(ctx), from, to).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormStaffRepository) ListCapable(
	ctx context.Context,
	businessID uuid.UUID,
	serviceIDs []uuid.UUID,
	from, to time.Time,
) ([]model.Staff, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Staff{}).
		Where("business_id = ?", businessID).
		Where("is_active = ?", true)

	if len(serviceIDs) > 0 {
		// пересечение: мастер должен уметь каждую из услуг
		capable := r.db.
			Model(&model.StaffService{}).
			Select("staff_id").
			Where("service_id IN ?", serviceIDs).
			Group("staff_id").
			Having("COUNT(DISTINCT service_id) = ?", len(serviceIDs))
		q = q.Where("id IN (?)", capable)
	}

	var staff []model.Staff
	err := r.withCalendar(q, from, to).
		Order("first_name ASC, last_name ASC, id ASC").
		Find(&staff).Error
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func (r *GormStaffRepository) ListActive(ctx context.Context, businessID uuid.UUID) ([]model.Staff, error) {
	var staff []model.Staff
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Order("first_name ASC, last_name ASC, id ASC").
		Find(&staff).Error
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func (r *GormStaffRepository) Create(ctx context.Context, staff *model.Staff) error {
	return r.db.WithContext(ctx).Create(staff).Error
}

func (r *GormStaffRepository) withCalendar(q *gorm.DB, from, to time.Time) *gorm.DB {
	return q.
		Preload("Schedules").
		Preload("Capabilities").
		Preload("Overrides", "date >= ? AND date <= ?", model.DateOf(from), model.DateOf(to))
}
