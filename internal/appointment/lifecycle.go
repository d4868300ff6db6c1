package appointment

import "github.com/Leganyst/booking-core/internal/model"

// Transition — именованный переход жизненного цикла записи.
type Transition string

const (
	TransitionConfirm        Transition = "confirm"
	TransitionStartService   Transition = "start_service"
	TransitionComplete       Transition = "complete"
	TransitionCancel         Transition = "cancel"
	TransitionMarkNoShow     Transition = "mark_no_show"
	TransitionReschedule     Transition = "update_schedule"
	TransitionModifyServices Transition = "modify_services"
)

// Таблица допустимых исходных статусов. Перенесённую запись (rescheduled)
// можно только подтвердить заново, отменить или перенести ещё раз.
// Cancel и UpdateSchedule проверяются отдельно: у них свои ошибки
// для завершённых и отменённых записей.
var allowedFrom = map[Transition][]model.AppointmentStatus{
	TransitionConfirm: {
		model.AppointmentStatusScheduled,
		model.AppointmentStatusRescheduled,
	},
	TransitionStartService: {
		model.AppointmentStatusScheduled,
		model.AppointmentStatusConfirmed,
	},
	TransitionComplete: {
		model.AppointmentStatusInProgress,
	},
	TransitionMarkNoShow: {
		model.AppointmentStatusScheduled,
		model.AppointmentStatusConfirmed,
	},
}

// targetStatus возвращает статус, в который ведёт переход.
var targetStatus = map[Transition]model.AppointmentStatus{
	TransitionConfirm:      model.AppointmentStatusConfirmed,
	TransitionStartService: model.AppointmentStatusInProgress,
	TransitionComplete:     model.AppointmentStatusCompleted,
	TransitionMarkNoShow:   model.AppointmentStatusNoShow,
}

var transitionEvent = map[Transition]model.EventType{
	TransitionConfirm:      model.EventTypeAppointmentConfirmed,
	TransitionStartService: model.EventTypeAppointmentStarted,
	TransitionComplete:     model.EventTypeAppointmentCompleted,
	TransitionMarkNoShow:   model.EventTypeAppointmentNoShow,
}

// CanTransition сообщает, разрешён ли табличный переход из статуса from.
func CanTransition(from model.AppointmentStatus, t Transition) bool {
	for _, s := range allowedFrom[t] {
		if s == from {
			return true
		}
	}
	return false
}

// IsTerminal: из статуса нет переходов, кроме идемпотентной повторной отмены.
func IsTerminal(s model.AppointmentStatus) bool {
	switch s {
	case model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow:
		return true
	default:
		return false
	}
}

// TransitionForStatus подбирает переход, который приводит запись в status.
func TransitionForStatus(status model.AppointmentStatus) (Transition, bool) {
	switch status {
	case model.AppointmentStatusConfirmed:
		return TransitionConfirm, true
	case model.AppointmentStatusInProgress:
		return TransitionStartService, true
	case model.AppointmentStatusCompleted:
		return TransitionComplete, true
	case model.AppointmentStatusNoShow:
		return TransitionMarkNoShow, true
	case model.AppointmentStatusCancelled:
		return TransitionCancel, true
	default:
		return "", false
	}
}
