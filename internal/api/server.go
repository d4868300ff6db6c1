package api

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/booking-core/internal/identity"
	"github.com/Leganyst/booking-core/internal/model"
	"github.com/Leganyst/booking-core/internal/service"
)

type SchedulingServer struct {
	slots    *service.SlotService
	booking  *service.BookingService
	calendar *service.CalendarService
	logger   *zap.Logger
}

func NewSchedulingServer(
	slots *service.SlotService,
	booking *service.BookingService,
	calendar *service.CalendarService,
	logger *zap.Logger,
) *SchedulingServer {
	return &SchedulingServer{
		slots:    slots,
		booking:  booking,
		calendar: calendar,
		logger:   logger,
	}
}

var _ SchedulingHandler = (*SchedulingServer)(nil)

// FindSlots доступен без вызывающего: свободное время публично.
func (s *SchedulingServer) FindSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req findSlotsRequest
	if err := decode(in, &req); err != nil {
		return nil, invalidArgument(err)
	}

	res, err := s.slots.FindSlots(ctx, service.SlotQuery{
		BusinessID:       req.BusinessID,
		ServiceIDs:       req.ServiceIDs,
		PreferredStaffID: req.PreferredStaffID,
		From:             req.From,
		To:               req.To,
	})
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return s.reply(ctx, res)
}

func (s *SchedulingServer) CreateAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req createAppointmentRequest
	if err := decode(in, &req); err != nil {
		return nil, invalidArgument(err)
	}

	view, err := s.booking.CreateAppointment(ctx, service.CreateRequest{
		BusinessID: req.BusinessID,
		CustomerID: caller.UserID,
		StaffID:    req.StaffID,
		Start:      req.Start,
		ServiceIDs: req.ServiceIDs,
		Notes:      req.Notes,
	})
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return s.reply(ctx, view)
}

func (s *SchedulingServer) UpdateAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req updateAppointmentRequest
	if err := decode(in, &req); err != nil {
		return nil, invalidArgument(err)
	}

	update := service.UpdateRequest{
		AppointmentID: req.AppointmentID,
		Caller:        caller,
		NewStart:      req.NewStart,
		NewEnd:        req.NewEnd,
		NewStaffID:    req.NewStaffID,
		Notes:         req.Notes,
		Reason:        req.Reason,
	}
	if req.Status != nil {
		st, ok := model.ParseAppointmentStatus(*req.Status)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown status %q", *req.Status)
		}
		update.Status = &st
	}

	view, err := s.booking.UpdateAppointment(ctx, update)
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return s.reply(ctx, view)
}

func (s *SchedulingServer) CancelAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req cancelAppointmentRequest
	if err := decode(in, &req); err != nil {
		return nil, invalidArgument(err)
	}

	err = s.booking.CancelAppointment(ctx, service.CancelRequest{
		AppointmentID: req.AppointmentID,
		Caller:        caller,
		Reason:        req.Reason,
	})
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return &structpb.Struct{}, nil
}

func (s *SchedulingServer) GetAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req getAppointmentRequest
	if err := decode(in, &req); err != nil {
		return nil, invalidArgument(err)
	}

	view, err := s.calendar.GetAppointment(ctx, req.AppointmentID, ownerFilter(caller))
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return s.reply(ctx, view)
}

// GetAppointmentHistory отдаёт журнал событий записи с теми же правами, что GetAppointment.
func (s *SchedulingServer) GetAppointmentHistory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req getAppointmentRequest
	if err := decode(in, &req); err != nil {
		return nil, invalidArgument(err)
	}

	events, err := s.calendar.History(ctx, req.AppointmentID, ownerFilter(caller))
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return s.reply(ctx, appointmentHistoryResponse{AppointmentID: req.AppointmentID, Events: events})
}

func (s *SchedulingServer) ListCustomerAppointments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var req listCustomerAppointmentsRequest
	if err := decode(in, &req); err != nil {
		return nil, invalidArgument(err)
	}

	customerID := caller.UserID
	if req.CustomerID != nil && *req.CustomerID != caller.UserID {
		if !caller.IsAdmin() {
			return nil, toStatus(ctx, s.logger, service.ErrUnauthorizedAccess)
		}
		customerID = *req.CustomerID
	}

	page, err := s.calendar.ListCustomerAppointments(ctx, service.CustomerQuery{
		CustomerID:  customerID,
		IncludePast: req.IncludePast,
		Page:        req.Page,
		PageSize:    req.PageSize,
	})
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return s.reply(ctx, page)
}

// GetCalendar доступен администраторам и мастерам.
func (s *SchedulingServer) GetCalendar(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.HasRole(identity.RoleStaff) {
		return nil, toStatus(ctx, s.logger, service.ErrUnauthorizedAccess)
	}
	var req getCalendarRequest
	if err := decode(in, &req); err != nil {
		return nil, invalidArgument(err)
	}

	view, err := s.calendar.GetCalendar(ctx, service.CalendarQuery{
		BusinessID: req.BusinessID,
		From:       req.From,
		To:         req.To,
		StaffIDs:   req.StaffIDs,
	})
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return s.reply(ctx, view)
}

// ownerFilter: клиент видит только свои записи, администратор и мастер любые.
func ownerFilter(caller identity.Caller) *uuid.UUID {
	if caller.IsAdmin() || caller.HasRole(identity.RoleStaff) {
		return nil
	}
	return &caller.UserID
}

func (s *SchedulingServer) reply(ctx context.Context, v any) (*structpb.Struct, error) {
	out, err := encode(v)
	if err != nil {
		return nil, toStatus(ctx, s.logger, err)
	}
	return out, nil
}
