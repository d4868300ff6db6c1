package calendar

import (
	"github.com/google/uuid"

	"github.com/Leganyst/booking-core/internal/model"
)

// Occupancy — существующая запись, которая может занимать время мастера.
type Occupancy struct {
	AppointmentID uuid.UUID
	StaffID       uuid.UUID
	Range         TimeRange
	Status        model.AppointmentStatus
}

// OccupancyOf строит Occupancy из сохранённой записи.
func OccupancyOf(a model.Appointment) Occupancy {
	return Occupancy{
		AppointmentID: a.ID,
		StaffID:       a.StaffID,
		Range:         TimeRange{Start: a.StartTimeUTC.UTC(), End: a.EndTimeUTC.UTC()},
		Status:        a.Status,
	}
}

// HasConflict сообщает, пересекается ли candidate с активной записью мастера staffID.
// Отменённые и no-show записи время не занимают. exclude — запись, которую
// переносят (uuid.Nil, если исключать нечего).
func HasConflict(staffID uuid.UUID, candidate TimeRange, existing []Occupancy, exclude uuid.UUID) bool {
	for _, o := range existing {
		if o.StaffID != staffID || !o.Status.Occupies() {
			continue
		}
		if exclude != uuid.Nil && o.AppointmentID == exclude {
			continue
		}
		if candidate.Overlaps(o.Range) {
			return true
		}
	}
	return false
}

// BusyRanges собирает интервалы активных записей мастера.
func BusyRanges(staffID uuid.UUID, existing []Occupancy) []TimeRange {
	var busy []TimeRange
	for _, o := range existing {
		if o.StaffID == staffID && o.Status.Occupies() {
			busy = append(busy, o.Range)
		}
	}
	return busy
}
