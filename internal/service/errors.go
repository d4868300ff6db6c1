package service

import (
	"errors"
	"fmt"

	"github.com/Leganyst/booking-core/internal/appointment"
)

// Code — машинно-читаемый код бизнес-ошибки.
type Code string

const (
	CodeServicesRequired                    Code = "ServicesRequired"
	CodeInvalidDateRange                    Code = "InvalidDateRange"
	CodeDateRangeTooLarge                   Code = "DateRangeTooLarge"
	CodeSomeServicesNotFound                Code = "SomeServicesNotFound"
	CodeInvalidOperatingHours               Code = "InvalidOperatingHours"
	CodeNoEligibleStaff                     Code = "NoEligibleStaff"
	CodeStaffCannotPerformAllServices       Code = "StaffCannotPerformAllServices"
	CodeStaffNotFound                       Code = "StaffNotFound"
	CodeBusinessNotFound                    Code = "BusinessNotFound"
	CodeTimeSlotNotAvailable                Code = "TimeSlotNotAvailable"
	CodeNewStaffNotAvailableAtRequestedTime Code = "NewStaffNotAvailableAtRequestedTime"
	CodeAppointmentNotFound                 Code = "AppointmentNotFound"
	CodeCannotCancelCompletedAppointment    Code = "CannotCancelCompletedAppointment"
	CodeAppointmentAlreadyCancelled         Code = "AppointmentAlreadyCancelled"
	CodeCancellationTooLate                 Code = "CancellationTooLate"
	CodeCannotUpdateCompletedAppointment    Code = "CannotUpdateCompletedAppointment"
	CodeCannotUpdateCancelledAppointment    Code = "CannotUpdateCancelledAppointment"
	CodeUnauthorizedAccess                  Code = "UnauthorizedAccess"
	CodeInvalidStatusTransition             Code = "InvalidStatusTransition"
	CodeNotesTooLong                        Code = "NotesTooLong"
	CodeStartTimeInPast                     Code = "StartTimeInPast"
	CodeInvalidArgument                     Code = "InvalidArgument"
)

// Error — бизнес-ошибка с кодом. errors.Is сравнивает коды.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Эталонные ошибки для errors.Is.
var (
	ErrServicesRequired                    = &Error{Code: CodeServicesRequired}
	ErrInvalidDateRange                    = &Error{Code: CodeInvalidDateRange}
	ErrDateRangeTooLarge                   = &Error{Code: CodeDateRangeTooLarge}
	ErrSomeServicesNotFound                = &Error{Code: CodeSomeServicesNotFound}
	ErrInvalidOperatingHours               = &Error{Code: CodeInvalidOperatingHours}
	ErrNoEligibleStaff                     = &Error{Code: CodeNoEligibleStaff}
	ErrStaffCannotPerformAllServices       = &Error{Code: CodeStaffCannotPerformAllServices}
	ErrStaffNotFound                       = &Error{Code: CodeStaffNotFound}
	ErrBusinessNotFound                    = &Error{Code: CodeBusinessNotFound}
	ErrTimeSlotNotAvailable                = &Error{Code: CodeTimeSlotNotAvailable}
	ErrNewStaffNotAvailableAtRequestedTime = &Error{Code: CodeNewStaffNotAvailableAtRequestedTime}
	ErrAppointmentNotFound                 = &Error{Code: CodeAppointmentNotFound}
	ErrCannotCancelCompletedAppointment    = &Error{Code: CodeCannotCancelCompletedAppointment}
	ErrAppointmentAlreadyCancelled         = &Error{Code: CodeAppointmentAlreadyCancelled}
	ErrCancellationTooLate                 = &Error{Code: CodeCancellationTooLate}
	ErrCannotUpdateCompletedAppointment    = &Error{Code: CodeCannotUpdateCompletedAppointment}
	ErrCannotUpdateCancelledAppointment    = &Error{Code: CodeCannotUpdateCancelledAppointment}
	ErrUnauthorizedAccess                  = &Error{Code: CodeUnauthorizedAccess}
	ErrInvalidStatusTransition             = &Error{Code: CodeInvalidStatusTransition}
	ErrNotesTooLong                        = &Error{Code: CodeNotesTooLong}
	ErrStartTimeInPast                     = &Error{Code: CodeStartTimeInPast}
	ErrInvalidArgument                     = &Error{Code: CodeInvalidArgument}
)

// CodeOf достаёт код бизнес-ошибки. ok=false для инфраструктурных ошибок.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// fromDomain переводит ошибки агрегата в коды сервиса.
func fromDomain(err error) error {
	var te *appointment.TransitionError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &te):
		return newError(CodeInvalidStatusTransition, "%v", te)
	case errors.Is(err, appointment.ErrTimeSlotNotAvailable):
		return newError(CodeTimeSlotNotAvailable, "staff is busy at the requested time")
	case errors.Is(err, appointment.ErrCannotCancelCompleted):
		return newError(CodeCannotCancelCompletedAppointment, "appointment is completed")
	case errors.Is(err, appointment.ErrCannotUpdateCompleted):
		return newError(CodeCannotUpdateCompletedAppointment, "appointment is completed")
	case errors.Is(err, appointment.ErrCannotUpdateCancelled):
		return newError(CodeCannotUpdateCancelledAppointment, "appointment is cancelled")
	case errors.Is(err, appointment.ErrNotesTooLong):
		return newError(CodeNotesTooLong, "notes cannot exceed %d characters", appointment.MaxNotesLength)
	case errors.Is(err, appointment.ErrInvalidSchedule):
		return newError(CodeInvalidDateRange, "start must be before end")
	case errors.Is(err, appointment.ErrNoServices):
		return newError(CodeServicesRequired, "at least one service is required")
	default:
		return err
	}
}
