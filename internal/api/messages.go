package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/booking-core/internal/service"
)

type findSlotsRequest struct {
	BusinessID       uuid.UUID   `json:"business_id"`
	ServiceIDs       []uuid.UUID `json:"service_ids"`
	PreferredStaffID *uuid.UUID  `json:"preferred_staff_id"`
	From             time.Time   `json:"from"`
	To               time.Time   `json:"to"`
}

type createAppointmentRequest struct {
	BusinessID uuid.UUID   `json:"business_id"`
	StaffID    uuid.UUID   `json:"staff_id"`
	Start      time.Time   `json:"start"`
	ServiceIDs []uuid.UUID `json:"service_ids"`
	Notes      string      `json:"notes"`
}

type updateAppointmentRequest struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	NewStart      *time.Time `json:"new_start"`
	NewEnd        *time.Time `json:"new_end"`
	NewStaffID    *uuid.UUID `json:"new_staff_id"`
	Notes         *string    `json:"notes"`
	Status        *string    `json:"status"`
	Reason        string     `json:"reason"`
}

type cancelAppointmentRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Reason        string    `json:"reason"`
}

type getAppointmentRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

type appointmentHistoryResponse struct {
	AppointmentID uuid.UUID           `json:"appointment_id"`
	Events        []service.EventView `json:"events"`
}

type listCustomerAppointmentsRequest struct {
	// Только для администратора; клиент видит свои записи.
	CustomerID  *uuid.UUID `json:"customer_id"`
	IncludePast bool       `json:"include_past"`
	Page        int        `json:"page"`
	PageSize    int        `json:"page_size"`
}

type getCalendarRequest struct {
	BusinessID uuid.UUID   `json:"business_id"`
	From       time.Time   `json:"from"`
	To         time.Time   `json:"to"`
	StaffIDs   []uuid.UUID `json:"staff_ids"`
}

// decode переводит Struct в DTO через JSON.
func decode(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// encode переводит ответ в Struct через JSON.
func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}
