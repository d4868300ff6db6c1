package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/Leganyst/booking-core/internal/model"
)

// LogPublisher только пишет события в лог. Используется, когда брокер
// не настроен.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, events []model.Event) error {
	for _, ev := range events {
		fields := []zap.Field{
			zap.String("event_id", ev.ID.String()),
			zap.String("event_type", string(ev.EventType)),
			zap.Time("occurred_at", ev.CreatedAt),
		}
		if ev.AppointmentID != nil {
			fields = append(fields, zap.String("appointment_id", ev.AppointmentID.String()))
		}
		p.logger.Info("appointment event", fields...)
	}
	return nil
}
