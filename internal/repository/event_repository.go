package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-core/internal/model"
)

type EventRepository interface {
	// Записать события (в той же транзакции, что и изменение записи).
	CreateBatch(ctx context.Context, events []model.Event) error
	// Отметить события отправленными в брокер.
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
	// Ещё не отправленные события, старые первыми. maxAttempts > 0 отсекает
	// события, которые брокер отклонил maxAttempts раз и больше.
	ListUnpublished(ctx context.Context, limit, maxAttempts int) ([]model.Event, error)
	// Учесть неудачную попытку отправки.
	RecordPublishFailure(ctx context.Context, id uuid.UUID, reason string) error
	// События записи в порядке появления.
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) CreateBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Appointment").Create(&events).Error
}

func (r *GormEventRepository) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("id IN ?", ids).
		Update("published_at", at.UTC()).
		Error
}

func (r *GormEventRepository) ListUnpublished(ctx context.Context, limit, maxAttempts int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("publish_attempts < ?", maxAttempts)
	}

	var events []model.Event
	err := q.
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *GormEventRepository) RecordPublishFailure(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"publish_attempts":   gorm.Expr("publish_attempts + 1"),
			"last_publish_error": reason,
		}).
		Error
}

func (r *GormEventRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
