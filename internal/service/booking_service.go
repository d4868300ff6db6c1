package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-core/internal/appointment"
	"github.com/Leganyst/booking-core/internal/calendar"
	"github.com/Leganyst/booking-core/internal/identity"
	"github.com/Leganyst/booking-core/internal/lock"
	"github.com/Leganyst/booking-core/internal/model"
	"github.com/Leganyst/booking-core/internal/repository"
)

// SQLSTATE exclusion_violation: сработал appointments_no_overlap.
const pgExclusionViolation = "23P01"

// CreateRequest — новая запись.
type CreateRequest struct {
	BusinessID uuid.UUID
	CustomerID uuid.UUID
	StaffID    uuid.UUID
	Start      time.Time
	ServiceIDs []uuid.UUID
	Notes      string
}

// CancelRequest — отмена записи клиентом.
type CancelRequest struct {
	AppointmentID uuid.UUID
	Caller        identity.Caller
	Reason        string
}

// UpdateRequest — изменение записи администратором. nil-поля не меняются.
type UpdateRequest struct {
	AppointmentID uuid.UUID
	Caller        identity.Caller
	NewStart      *time.Time
	NewEnd        *time.Time
	NewStaffID    *uuid.UUID
	Notes         *string
	Status        *model.AppointmentStatus
	// Причина, если статус меняется на cancelled.
	Reason string
}

// BookingService — запись, перенос и отмена. Каждая операция — одна транзакция;
// проверка конфликтов идёт под блокировкой мастера.
type BookingService struct {
	store     *repository.Store
	locker    lock.StaffLocker
	publisher EventPublisher
	cache     SlotCache
	policy    Policy
	logger    *zap.Logger
	now       func() time.Time
}

func NewBookingService(
	store *repository.Store,
	locker lock.StaffLocker,
	publisher EventPublisher,
	cache SlotCache,
	policy Policy,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		cache:     cache,
		policy:    policy.withDefaults(),
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// CreateAppointment бронирует время у мастера.
func (s *BookingService) CreateAppointment(ctx context.Context, req CreateRequest) (*AppointmentView, error) {
	ctx, span := tracer.Start(ctx, "BookingService.CreateAppointment", trace.WithAttributes(
		attribute.String("business.id", req.BusinessID.String()),
		attribute.String("staff.id", req.StaffID.String()),
	))
	defer span.End()

	serviceIDs := uniqueIDs(req.ServiceIDs)
	if len(serviceIDs) == 0 {
		return nil, newError(CodeServicesRequired, "at least one service must be selected")
	}
	if utf8.RuneCountInString(req.Notes) > appointment.MaxNotesLength {
		return nil, newError(CodeNotesTooLong, "notes cannot exceed %d characters", appointment.MaxNotesLength)
	}
	now := s.now().UTC()
	start := req.Start.UTC()
	if !start.After(now) {
		return nil, newError(CodeStartTimeInPast, "start time must be in the future")
	}

	var (
		view   AppointmentView
		events []model.Event
	)
	err := s.transact(ctx, func(tx *repository.Store, hold holdFunc) error {
		if err := hold(req.StaffID); err != nil {
			return err
		}

		services, err := tx.Services.ListActiveByIDs(ctx, req.BusinessID, serviceIDs)
		if err != nil {
			return fmt.Errorf("list services: %w", err)
		}
		if len(services) != len(serviceIDs) {
			return newError(CodeSomeServicesNotFound, "some services were not found or are inactive")
		}

		end := start
		for _, svc := range services {
			end = end.Add(svc.OccupiedDuration())
		}
		staff, err := tx.Staff.GetByID(ctx, req.StaffID, start, end)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(CodeStaffNotFound, "staff %s not found", req.StaffID)
		}
		if err != nil {
			return fmt.Errorf("get staff: %w", err)
		}
		if !staff.IsActive || staff.BusinessID != req.BusinessID {
			return newError(CodeStaffNotFound, "staff %s not found", req.StaffID)
		}
		if !staff.CanPerformAll(serviceIDs) {
			return newError(CodeStaffCannotPerformAllServices, "staff cannot perform all selected services")
		}

		byID := make(map[uuid.UUID]model.Service, len(services))
		for _, svc := range services {
			byID[svc.ID] = svc
		}
		items := make([]appointment.LineItem, 0, len(serviceIDs))
		for _, id := range serviceIDs {
			svc := byID[id]
			items = append(items, appointment.LineItem{
				ServiceID: svc.ID,
				Price:     svc.Price,
				Duration:  svc.OccupiedDuration(),
			})
		}

		appt, emitted, err := appointment.New(appointment.NewParams{
			BusinessID: req.BusinessID,
			CustomerID: req.CustomerID,
			StaffID:    req.StaffID,
			Start:      start,
			Notes:      req.Notes,
			Items:      items,
		}, req.CustomerID, now)
		if err != nil {
			return fromDomain(err)
		}

		occupancy, err := s.occupancy(ctx, tx, appt.StaffID(), appt.Start(), appt.End())
		if err != nil {
			return err
		}
		if calendar.HasConflict(appt.StaffID(), appt.Range(), occupancy, uuid.Nil) {
			return newError(CodeTimeSlotNotAvailable, "staff is busy at the requested time")
		}
		if calendar.Blacked(*staff, appt.Range()) {
			return newError(CodeTimeSlotNotAvailable, "staff is unavailable at the requested time")
		}

		row := appt.ToModel()
		if err := tx.Appointments.Create(ctx, &row); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		if events, err = s.saveEvents(ctx, tx, emitted); err != nil {
			return err
		}

		row.Staff = staff
		for i := range row.Services {
			svc := byID[row.Services[i].ServiceID]
			row.Services[i].Service = &svc
		}
		view = viewOf(row)
		return nil
	})
	if err != nil {
		err = translateStoreError(err)
		span.RecordError(err)
		return nil, err
	}

	s.afterCommit(ctx, req.BusinessID, events)
	s.logger.Info("appointment created",
		zap.String("appointment_id", view.ID.String()),
		zap.String("staff_id", view.StaffID.String()),
		zap.Time("start", view.Start))
	return &view, nil
}

// CancelAppointment отменяет запись по просьбе клиента.
func (s *BookingService) CancelAppointment(ctx context.Context, req CancelRequest) error {
	ctx, span := tracer.Start(ctx, "BookingService.CancelAppointment", trace.WithAttributes(
		attribute.String("appointment.id", req.AppointmentID.String()),
	))
	defer span.End()

	now := s.now().UTC()
	var (
		businessID uuid.UUID
		events     []model.Event
	)
	err := s.transact(ctx, func(tx *repository.Store, _ holdFunc) error {
		row, err := tx.Appointments.GetByID(ctx, req.AppointmentID, true)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(CodeAppointmentNotFound, "appointment %s not found", req.AppointmentID)
		}
		if err != nil {
			return fmt.Errorf("get appointment: %w", err)
		}
		if !req.Caller.Is(row.CustomerID) {
			return newError(CodeUnauthorizedAccess, "only the customer can cancel the appointment")
		}

		switch row.Status {
		case model.AppointmentStatusCompleted:
			return newError(CodeCannotCancelCompletedAppointment, "appointment is completed")
		case model.AppointmentStatusCancelled:
			return newError(CodeAppointmentAlreadyCancelled, "appointment is already cancelled")
		}
		if row.StartTimeUTC.Sub(now) < s.policy.CancellationNotice {
			return newError(CodeCancellationTooLate, "appointments can be cancelled at least %s before start", s.policy.CancellationNotice)
		}

		appt := appointment.FromModel(*row)
		emitted, err := appt.Cancel(req.Reason, req.Caller.UserID, now)
		if err != nil {
			return fromDomain(err)
		}

		updated := appt.ToModel()
		if err := tx.Appointments.Save(ctx, &updated); err != nil {
			return fmt.Errorf("save appointment: %w", err)
		}
		if events, err = s.saveEvents(ctx, tx, emitted); err != nil {
			return err
		}
		businessID = row.BusinessID
		return nil
	})
	if err != nil {
		err = translateStoreError(err)
		span.RecordError(err)
		return err
	}

	s.afterCommit(ctx, businessID, events)
	s.logger.Info("appointment cancelled", zap.String("appointment_id", req.AppointmentID.String()))
	return nil
}

// UpdateAppointment применяет изменения администратора. Либо применяются
// все изменения, либо ни одно.
func (s *BookingService) UpdateAppointment(ctx context.Context, req UpdateRequest) (*AppointmentView, error) {
	ctx, span := tracer.Start(ctx, "BookingService.UpdateAppointment", trace.WithAttributes(
		attribute.String("appointment.id", req.AppointmentID.String()),
	))
	defer span.End()

	if !req.Caller.IsAdmin() {
		err := newError(CodeUnauthorizedAccess, "only administrators can update appointments")
		span.RecordError(err)
		return nil, err
	}

	now := s.now().UTC()
	actor := req.Caller.UserID
	var (
		businessID uuid.UUID
		events     []model.Event
		updatedID  uuid.UUID
	)
	err := s.transact(ctx, func(tx *repository.Store, hold holdFunc) error {
		row, err := tx.Appointments.GetByID(ctx, req.AppointmentID, true)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(CodeAppointmentNotFound, "appointment %s not found", req.AppointmentID)
		}
		if err != nil {
			return fmt.Errorf("get appointment: %w", err)
		}
		switch row.Status {
		case model.AppointmentStatusCompleted:
			return newError(CodeCannotUpdateCompletedAppointment, "appointment is completed")
		case model.AppointmentStatusCancelled:
			return newError(CodeCannotUpdateCancelledAppointment, "appointment is cancelled")
		}

		appt := appointment.FromModel(*row)
		var emitted []appointment.Event

		targetStaff := appt.StaffID()
		if req.NewStaffID != nil {
			targetStaff = *req.NewStaffID
		}
		staffChanged := targetStaff != appt.StaffID()

		if req.NewStart != nil || req.NewEnd != nil || staffChanged {
			start, end := appt.Start(), appt.End()
			switch {
			case req.NewStart != nil && req.NewEnd != nil:
				start, end = req.NewStart.UTC(), req.NewEnd.UTC()
			case req.NewStart != nil:
				// длительность сохраняется
				end = req.NewStart.UTC().Add(end.Sub(start))
				start = req.NewStart.UTC()
			case req.NewEnd != nil:
				end = req.NewEnd.UTC()
			}

			if err := hold(appt.StaffID(), targetStaff); err != nil {
				return err
			}

			var staff *model.Staff
			if staffChanged {
				staff, err = s.checkNewStaff(ctx, tx, targetStaff, row.BusinessID, appt.Items(), start, end)
			} else if staff, err = tx.Staff.GetByID(ctx, targetStaff, start, end); err != nil {
				err = fmt.Errorf("get staff: %w", err)
			}
			if err != nil {
				return err
			}

			occupancy, err := s.occupancy(ctx, tx, targetStaff, start, end)
			if err != nil {
				return err
			}
			ev, err := appt.UpdateSchedule(targetStaff, start, end, occupancy, actor, now)
			if errors.Is(err, appointment.ErrTimeSlotNotAvailable) && staffChanged {
				return newError(CodeNewStaffNotAvailableAtRequestedTime, "new staff is busy at the requested time")
			}
			if err != nil {
				return fromDomain(err)
			}
			if calendar.Blacked(*staff, appt.Range()) {
				if staffChanged {
					return newError(CodeNewStaffNotAvailableAtRequestedTime, "new staff is unavailable at the requested time")
				}
				return newError(CodeTimeSlotNotAvailable, "staff is unavailable at the requested time")
			}
			emitted = append(emitted, ev...)
		}

		if req.Notes != nil {
			if err := appt.UpdateNotes(*req.Notes, now); err != nil {
				return fromDomain(err)
			}
		}

		if req.Status != nil && *req.Status != appt.Status() {
			ev, err := applyStatus(appt, *req.Status, req.Reason, actor, now)
			if err != nil {
				return err
			}
			emitted = append(emitted, ev...)
		}

		updated := appt.ToModel()
		if err := tx.Appointments.Save(ctx, &updated); err != nil {
			return fmt.Errorf("save appointment: %w", err)
		}
		if events, err = s.saveEvents(ctx, tx, emitted); err != nil {
			return err
		}
		businessID = row.BusinessID
		updatedID = updated.ID
		return nil
	})
	if err != nil {
		err = translateStoreError(err)
		span.RecordError(err)
		return nil, err
	}

	s.afterCommit(ctx, businessID, events)

	row, err := s.store.Appointments.GetDetailed(ctx, updatedID)
	if err != nil {
		return nil, fmt.Errorf("reload appointment: %w", err)
	}
	view := viewOf(*row)
	s.logger.Info("appointment updated",
		zap.String("appointment_id", updatedID.String()),
		zap.String("status", string(view.Status)))
	return &view, nil
}

func applyStatus(appt *appointment.Appointment, status model.AppointmentStatus, reason string, actor uuid.UUID, now time.Time) ([]appointment.Event, error) {
	tr, ok := appointment.TransitionForStatus(status)
	if !ok {
		return nil, newError(CodeInvalidStatusTransition, "status %s cannot be set directly", status)
	}

	var (
		ev  []appointment.Event
		err error
	)
	switch tr {
	case appointment.TransitionConfirm:
		ev, err = appt.Confirm(actor, now)
	case appointment.TransitionStartService:
		ev, err = appt.StartService(actor, now)
	case appointment.TransitionComplete:
		ev, err = appt.Complete(actor, now)
	case appointment.TransitionMarkNoShow:
		ev, err = appt.MarkNoShow(actor, now)
	case appointment.TransitionCancel:
		ev, err = appt.Cancel(reason, actor, now)
	}
	if err != nil {
		return nil, fromDomain(err)
	}
	return ev, nil
}

func (s *BookingService) checkNewStaff(
	ctx context.Context,
	tx *repository.Store,
	staffID, businessID uuid.UUID,
	items []appointment.LineItem,
	start, end time.Time,
) (*model.Staff, error) {
	staff, err := tx.Staff.GetByID(ctx, staffID, start, end)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(CodeStaffNotFound, "staff %s not found", staffID)
	}
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}
	if !staff.IsActive || staff.BusinessID != businessID {
		return nil, newError(CodeStaffNotFound, "staff %s not found", staffID)
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ServiceID)
	}
	if !staff.CanPerformAll(ids) {
		return nil, newError(CodeStaffCannotPerformAllServices, "new staff cannot perform all services of the appointment")
	}
	return staff, nil
}

func (s *BookingService) occupancy(ctx context.Context, tx *repository.Store, staffID uuid.UUID, start, end time.Time) ([]calendar.Occupancy, error) {
	existing, err := tx.Appointments.ListActiveByStaffRange(ctx, []uuid.UUID{staffID}, start, end)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	out := make([]calendar.Occupancy, 0, len(existing))
	for _, a := range existing {
		out = append(out, calendar.OccupancyOf(a))
	}
	return out, nil
}

type holdFunc func(staffIDs ...uuid.UUID) error

// transact выполняет fn в транзакции. Блокировки, взятые через hold,
// отпускаются после commit/rollback.
func (s *BookingService) transact(ctx context.Context, fn func(tx *repository.Store, hold holdFunc) error) error {
	var releases []func()
	defer func() {
		for _, release := range releases {
			release()
		}
	}()

	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		hold := func(staffIDs ...uuid.UUID) error {
			release, err := s.locker.Hold(ctx, tx.DB(), staffIDs...)
			if err != nil {
				return fmt.Errorf("lock staff: %w", err)
			}
			releases = append(releases, release)
			return nil
		}
		return fn(tx, hold)
	})
}

func (s *BookingService) saveEvents(ctx context.Context, tx *repository.Store, emitted []appointment.Event) ([]model.Event, error) {
	rows, err := toEventRows(emitted)
	if err != nil {
		return nil, err
	}
	if err := tx.Events.CreateBatch(ctx, rows); err != nil {
		return nil, fmt.Errorf("save events: %w", err)
	}
	return rows, nil
}

func toEventRows(emitted []appointment.Event) ([]model.Event, error) {
	rows := make([]model.Event, 0, len(emitted))
	for _, ev := range emitted {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal event %s: %w", ev.Type, err)
		}
		appointmentID := ev.AppointmentID
		rows = append(rows, model.Event{
			ID:            uuid.New(),
			EventType:     ev.Type,
			CreatedAt:     ev.OccurredAt,
			ActorID:       ev.ActorID,
			AppointmentID: &appointmentID,
			Payload:       datatypes.JSON(payload),
		})
	}
	return rows, nil
}

// afterCommit отправляет события и сбрасывает кеш слотов. Ошибки только
// логируются: события уже сохранены в events.
func (s *BookingService) afterCommit(ctx context.Context, businessID uuid.UUID, events []model.Event) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, businessID); err != nil {
			s.logger.Warn("slot cache invalidate failed", zap.String("business_id", businessID.String()), zap.Error(err))
		}
	}
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events); err != nil {
		s.logger.Warn("publish events failed", zap.Int("events", len(events)), zap.Error(err))
		return
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	if err := s.store.Events.MarkPublished(ctx, ids, s.now()); err != nil {
		s.logger.Warn("mark events published failed", zap.Error(err))
	}
}

// translateStoreError: нарушение exclusion-ограничения означает, что
// параллельная транзакция успела занять это время.
func translateStoreError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return newError(CodeTimeSlotNotAvailable, "staff is busy at the requested time")
	}
	return err
}
