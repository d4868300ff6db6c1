// Package api — gRPC-транспорт ядра записи. Сообщения — google.protobuf.Struct,
// поля запросов и ответов описаны DTO в messages.go.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "scheduling.v1.SchedulingService"

// SchedulingHandler — методы сервиса записи.
type SchedulingHandler interface {
	FindSlots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAppointmentHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCustomerAppointments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCalendar(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method func(SchedulingHandler, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call method) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := srv.(SchedulingHandler)
			if interceptor == nil {
				return call(h, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(h, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingHandler)(nil),
	Methods: []grpc.MethodDesc{
		unary("FindSlots", SchedulingHandler.FindSlots),
		unary("CreateAppointment", SchedulingHandler.CreateAppointment),
		unary("UpdateAppointment", SchedulingHandler.UpdateAppointment),
		unary("CancelAppointment", SchedulingHandler.CancelAppointment),
		unary("GetAppointment", SchedulingHandler.GetAppointment),
		unary("GetAppointmentHistory", SchedulingHandler.GetAppointmentHistory),
		unary("ListCustomerAppointments", SchedulingHandler.ListCustomerAppointments),
		unary("GetCalendar", SchedulingHandler.GetCalendar),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "scheduling/v1/scheduling.proto",
}

// Register регистрирует сервис на gRPC-сервере.
func Register(s grpc.ServiceRegistrar, h SchedulingHandler) {
	s.RegisterService(&ServiceDesc, h)
}
