package appointment

import (
	"errors"
	"fmt"

	"github.com/Leganyst/booking-core/internal/model"
)

var (
	ErrNoServices              = errors.New("appointment must contain at least one service")
	ErrInvalidSchedule         = errors.New("appointment start must be before end")
	ErrNotesTooLong            = errors.New("notes cannot exceed 500 characters")
	ErrTimeSlotNotAvailable    = errors.New("time slot not available")
	ErrCannotCancelCompleted   = errors.New("cannot cancel a completed appointment")
	ErrCannotUpdateCompleted   = errors.New("cannot update a completed appointment")
	ErrCannotUpdateCancelled   = errors.New("cannot update a cancelled appointment")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// TransitionError — недопустимый переход из текущего статуса.
type TransitionError struct {
	From       model.AppointmentStatus
	Transition Transition
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s appointment with status %s", e.Transition, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStatusTransition
}
