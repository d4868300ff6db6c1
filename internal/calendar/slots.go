package calendar

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultSlotStep — шаг перебора кандидатов.
const DefaultSlotStep = 15 * time.Minute

// Slot — свободное время у конкретного мастера.
type Slot struct {
	TimeRange
	StaffID   uuid.UUID `json:"staff_id"`
	StaffName string    `json:"staff_name"`
}

// CandidateStarts перебирает начала внутри window с шагом step, пока
// start+duration <= window.End, и отбрасывает пересекающиеся с busy.
// Кандидаты раньше notBefore пропускаются (нулевое значение — без ограничения).
func CandidateStarts(window TimeRange, duration, step time.Duration, busy []TimeRange, notBefore time.Time) []TimeRange {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !window.End.After(window.Start) {
		return nil
	}

	var out []TimeRange
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
		if !notBefore.IsZero() && t.Before(notBefore) {
			continue
		}
		candidate := TimeRange{Start: t, End: t.Add(duration)}
		if overlap, _ := HasOverlap(candidate, busy); overlap {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

// SortSlots упорядочивает слоты по началу. Сортировка стабильная:
// при равном времени сохраняется порядок перебора мастеров.
func SortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
}
