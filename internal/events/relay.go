package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Leganyst/booking-core/internal/model"
	"github.com/Leganyst/booking-core/internal/repository"
)

// Publisher — получатель событий.
type Publisher interface {
	Publish(ctx context.Context, events []model.Event) error
}

type RelayConfig struct {
	PollEvery time.Duration
	BatchSize int
	// Сколько раз событие можно безуспешно отправить, прежде чем релей
	// перестанет его выбирать.
	MaxAttempts int
}

// Relay дотправляет события, которые не ушли сразу после commit
// (брокер был недоступен или процесс упал).
type Relay struct {
	events    repository.EventRepository
	publisher Publisher
	logger    *zap.Logger
	pollEvery   time.Duration
	batchSize   int
	maxAttempts int
}

func NewRelay(events repository.EventRepository, publisher Publisher, logger *zap.Logger, cfg RelayConfig) *Relay {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &Relay{
		events:      events,
		publisher:   publisher,
		logger:      logger,
		pollEvery:   cfg.PollEvery,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Run крутится до отмены ctx.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil {
				r.logger.Error("event relay failed", zap.Error(err))
			}
		}
	}
}

// Flush отправляет одну пачку неотправленных событий по одному и возвращает
// число отправленных. Событие, которое брокер отклоняет, не задерживает
// остальные: ему засчитывается попытка, и после maxAttempts оно больше не
// выбирается.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	pending, err := r.events.ListUnpublished(ctx, r.batchSize, r.maxAttempts)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var (
		published []uuid.UUID
		failed    []error
	)
	for _, ev := range pending {
		if err := r.publisher.Publish(ctx, []model.Event{ev}); err != nil {
			if ctx.Err() != nil {
				break
			}
			failed = append(failed, fmt.Errorf("publish event %s: %w", ev.ID, err))
			r.recordFailure(ctx, ev, err)
			continue
		}
		published = append(published, ev.ID)
	}

	if err := r.events.MarkPublished(ctx, published, time.Now()); err != nil {
		return 0, err
	}
	return len(published), errors.Join(failed...)
}

func (r *Relay) recordFailure(ctx context.Context, ev model.Event, cause error) {
	if err := r.events.RecordPublishFailure(ctx, ev.ID, cause.Error()); err != nil {
		r.logger.Warn("record publish failure", zap.String("event_id", ev.ID.String()), zap.Error(err))
		return
	}
	if ev.PublishAttempts+1 >= r.maxAttempts {
		r.logger.Error("event parked after repeated publish failures",
			zap.String("event_id", ev.ID.String()),
			zap.String("event_type", string(ev.EventType)),
			zap.Int("attempts", ev.PublishAttempts+1),
			zap.Error(cause))
	}
}
