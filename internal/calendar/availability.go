package calendar

import (
	"errors"
	"time"

	"github.com/Leganyst/booking-core/internal/model"
)

var ErrInvalidOperatingHours = errors.New("invalid operating hours")

// ValidateOperatingHours проверяет часы работы бизнеса:
// не больше одной записи на день недели, у открытого дня open < close.
func ValidateOperatingHours(hours []model.OperatingHour) error {
	seen := make(map[time.Weekday]struct{}, len(hours))
	for _, h := range hours {
		if h.DayOfWeek < time.Sunday || h.DayOfWeek > time.Saturday {
			return ErrInvalidOperatingHours
		}
		if _, dup := seen[h.DayOfWeek]; dup {
			return ErrInvalidOperatingHours
		}
		seen[h.DayOfWeek] = struct{}{}

		if h.IsClosed {
			continue
		}
		openAt, closeAt, ok := h.Window()
		if !ok || openAt >= closeAt {
			return ErrInvalidOperatingHours
		}
	}
	return nil
}

// ResolveWorkingWindow сводит часы бизнеса, недельное расписание мастера
// и исключения на дату в одно рабочее окно. ok=false, если мастер в этот день не работает.
//
// Порядок:
//   - целодневное unavailable закрывает день;
//   - available_override заменяет окно целиком, игнорируя бизнес и расписание;
//   - иначе окно = пересечение часов бизнеса и расписания мастера.
//
// Частичные unavailable окно не меняют: их учитывает BlockedIntervals.
func ResolveWorkingWindow(date time.Time, businessHours []model.OperatingHour, staff model.Staff) (TimeRange, bool) {
	day := DateOnly(date)

	var custom *model.AvailabilityOverride
	for _, o := range staff.OverridesOn(day) {
		switch o.Type {
		case model.AvailabilityUnavailable:
			if o.WholeDay() {
				return TimeRange{}, false
			}
		case model.AvailabilityAvailableOverride:
			custom = &o
		}
	}
	if custom != nil {
		start, end, ok := custom.Window()
		if !ok || start >= end {
			return TimeRange{}, false
		}
		return TimeRange{Start: At(day, start), End: At(day, end)}, true
	}

	openAt, closeAt, ok := businessWindow(businessHours, day.Weekday())
	if !ok {
		return TimeRange{}, false
	}

	schedule, found := staff.ScheduleFor(day.Weekday())
	if !found {
		return TimeRange{}, false
	}
	staffStart, staffEnd, ok := schedule.Window()
	if !ok {
		return TimeRange{}, false
	}

	start := max(openAt, staffStart)
	end := min(closeAt, staffEnd)
	if start >= end {
		return TimeRange{}, false
	}

	return TimeRange{Start: At(day, start), End: At(day, end)}, true
}

// BlockedIntervals возвращает частичные unavailable-интервалы мастера на дату.
// Они работают как дополнительные занятые интервалы при подборе слотов.
func BlockedIntervals(date time.Time, staff model.Staff) []TimeRange {
	day := DateOnly(date)

	var blocked []TimeRange
	for _, o := range staff.OverridesOn(day) {
		if o.Type != model.AvailabilityUnavailable {
			continue
		}
		start, end, ok := o.Window()
		if !ok {
			continue
		}
		blocked = append(blocked, TimeRange{Start: At(day, start), End: At(day, end)})
	}
	return blocked
}

// Blacked сообщает, задевает ли r unavailable-исключение мастера: весь
// день или частичный интервал. Пустой интервал ничего не задевает.
func Blacked(staff model.Staff, r TimeRange) bool {
	if !r.Start.Before(r.End) {
		return false
	}
	for day := DateOnly(r.Start); day.Before(r.End); day = day.AddDate(0, 0, 1) {
		for _, o := range staff.OverridesOn(day) {
			if o.Type != model.AvailabilityUnavailable {
				continue
			}
			blocked := TimeRange{Start: day, End: day.AddDate(0, 0, 1)}
			if start, end, ok := o.Window(); ok {
				blocked = TimeRange{Start: At(day, start), End: At(day, end)}
			}
			if r.Overlaps(blocked) {
				return true
			}
		}
	}
	return false
}

func businessWindow(hours []model.OperatingHour, day time.Weekday) (time.Duration, time.Duration, bool) {
	for _, h := range hours {
		if h.DayOfWeek == day {
			return h.Window()
		}
	}
	return 0, 0, false
}
