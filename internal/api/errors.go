package api

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/booking-core/internal/service"
)

const errorDomain = "booking-core"

var grpcCodes = map[service.Code]codes.Code{
	service.CodeServicesRequired:                    codes.InvalidArgument,
	service.CodeInvalidDateRange:                    codes.InvalidArgument,
	service.CodeDateRangeTooLarge:                   codes.InvalidArgument,
	service.CodeNotesTooLong:                        codes.InvalidArgument,
	service.CodeStartTimeInPast:                     codes.InvalidArgument,
	service.CodeInvalidArgument:                     codes.InvalidArgument,
	service.CodeSomeServicesNotFound:                codes.NotFound,
	service.CodeStaffNotFound:                       codes.NotFound,
	service.CodeBusinessNotFound:                    codes.NotFound,
	service.CodeAppointmentNotFound:                 codes.NotFound,
	service.CodeTimeSlotNotAvailable:                codes.AlreadyExists,
	service.CodeNewStaffNotAvailableAtRequestedTime: codes.AlreadyExists,
	service.CodeUnauthorizedAccess:                  codes.PermissionDenied,
	service.CodeInvalidOperatingHours:               codes.FailedPrecondition,
	service.CodeNoEligibleStaff:                     codes.FailedPrecondition,
	service.CodeStaffCannotPerformAllServices:       codes.FailedPrecondition,
	service.CodeCannotCancelCompletedAppointment:    codes.FailedPrecondition,
	service.CodeAppointmentAlreadyCancelled:         codes.FailedPrecondition,
	service.CodeCancellationTooLate:                 codes.FailedPrecondition,
	service.CodeCannotUpdateCompletedAppointment:    codes.FailedPrecondition,
	service.CodeCannotUpdateCancelledAppointment:    codes.FailedPrecondition,
	service.CodeInvalidStatusTransition:             codes.FailedPrecondition,
}

// toStatus переводит ошибку сервиса в gRPC-статус. Код бизнес-ошибки
// кладётся в ErrorInfo.Reason. Инфраструктурные ошибки наружу не отдаются.
func toStatus(ctx context.Context, logger *zap.Logger, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	code, ok := service.CodeOf(err)
	if !ok {
		logger.Error("internal error", zap.String("request_id", RequestIDFromContext(ctx)), zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}

	grpcCode, known := grpcCodes[code]
	if !known {
		grpcCode = codes.Unknown
	}
	st := status.New(grpcCode, err.Error())
	if detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: string(code), Domain: errorDomain}); derr == nil {
		st = detailed
	}
	return st.Err()
}

// ReasonOf достаёт код бизнес-ошибки из gRPC-статуса.
func ReasonOf(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == errorDomain {
			return info.Reason
		}
	}
	return ""
}

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}
