package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/Leganyst/booking-core/internal/model"
)

var tracer = otel.Tracer("github.com/Leganyst/booking-core/internal/service")

// EventPublisher отправляет наружу события уже закоммиченных изменений.
type EventPublisher interface {
	Publish(ctx context.Context, events []model.Event) error
}

// SlotCache хранит готовые ответы FindSlots. Invalidate сбрасывает
// всё, что закешировано для бизнеса, сдвигая поколение. Get возвращает
// поколение, прочитанное до расчёта; Set пишет ответ именно в него, чтобы
// результат, посчитанный до чужой записи, не попал в новое поколение.
type SlotCache interface {
	Get(ctx context.Context, businessID uuid.UUID, key string) (value []byte, gen int64, ok bool, err error)
	Set(ctx context.Context, businessID uuid.UUID, gen int64, key string, value []byte) error
	Invalidate(ctx context.Context, businessID uuid.UUID) error
}

// Policy — правила бронирования.
type Policy struct {
	// Минимальный срок до начала, когда клиент ещё может отменить запись.
	CancellationNotice time.Duration
	// Шаг перебора слотов.
	SlotStep time.Duration
	// Максимальная длина диапазона поиска слотов.
	MaxSearchDays int
	// Максимальная длина диапазона календаря.
	MaxCalendarDays int
}

func DefaultPolicy() Policy {
	return Policy{
		CancellationNotice: 24 * time.Hour,
		SlotStep:           15 * time.Minute,
		MaxSearchDays:      30,
		MaxCalendarDays:    90,
	}
}

// withDefaults подставляет значения по умолчанию вместо нулевых.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.CancellationNotice <= 0 {
		p.CancellationNotice = def.CancellationNotice
	}
	if p.SlotStep <= 0 {
		p.SlotStep = def.SlotStep
	}
	if p.MaxSearchDays <= 0 {
		p.MaxSearchDays = def.MaxSearchDays
	}
	if p.MaxCalendarDays <= 0 {
		p.MaxCalendarDays = def.MaxCalendarDays
	}
	return p
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
