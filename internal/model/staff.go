package model

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidWorkingHours = errors.New("working hours: start must be before end")
	ErrDuplicateOverride   = errors.New("availability override already exists for date and type")
)

// staff — мастер/сотрудник бизнеса.
type Staff struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BusinessID uuid.UUID  `gorm:"type:uuid;not null;index"`
	UserID     *uuid.UUID `gorm:"type:uuid;index"`

	FirstName   string `gorm:"type:varchar(100);not null"`
	LastName    string `gorm:"type:varchar(100);not null"`
	Email       string `gorm:"type:varchar(255)"`
	PhoneNumber string `gorm:"type:varchar(32)"`
	Title       string `gorm:"type:varchar(100)"`

	IsActive     bool `gorm:"not null;index"`
	HiredAt      *time.Time
	TerminatedAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Schedules    []StaffSchedule        `gorm:"foreignKey:StaffID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Overrides    []AvailabilityOverride `gorm:"foreignKey:StaffID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Capabilities []StaffService         `gorm:"foreignKey:StaffID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Staff) TableName() string {
	return "staff"
}

func (s *Staff) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// FullName склеивает имя и фамилию, пропуская пустые части.
func (s Staff) FullName() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{s.FirstName, s.LastName} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, " ")
}

// SetSchedule заменяет расписание на день недели (одна запись на день).
func (s *Staff) SetSchedule(day time.Weekday, isWorking bool, start, end *datatypes.Time) error {
	if isWorking {
		if start == nil || end == nil || time.Duration(*start) >= time.Duration(*end) {
			return ErrInvalidWorkingHours
		}
	} else {
		start, end = nil, nil
	}

	entry := StaffSchedule{StaffID: s.ID, DayOfWeek: day, IsWorking: isWorking, StartTime: start, EndTime: end}
	for i := range s.Schedules {
		if s.Schedules[i].DayOfWeek == day {
			entry.ID = s.Schedules[i].ID
			s.Schedules[i] = entry
			return nil
		}
	}
	s.Schedules = append(s.Schedules, entry)
	sort.Slice(s.Schedules, func(i, j int) bool { return s.Schedules[i].DayOfWeek < s.Schedules[j].DayOfWeek })
	return nil
}

// ScheduleFor возвращает расписание на день недели, если оно есть.
func (s Staff) ScheduleFor(day time.Weekday) (StaffSchedule, bool) {
	for _, sc := range s.Schedules {
		if sc.DayOfWeek == day {
			return sc, true
		}
	}
	return StaffSchedule{}, false
}

// AddOverride добавляет исключение на дату. Пара (дата, тип) уникальна.
func (s *Staff) AddOverride(o AvailabilityOverride) error {
	if err := o.Validate(); err != nil {
		return err
	}
	for _, existing := range s.Overrides {
		if sameDate(existing.Day(), o.Day()) && existing.Type == o.Type {
			return ErrDuplicateOverride
		}
	}
	o.StaffID = s.ID
	s.Overrides = append(s.Overrides, o)
	sort.SliceStable(s.Overrides, func(i, j int) bool { return s.Overrides[i].Day().Before(s.Overrides[j].Day()) })
	return nil
}

// OverridesOn возвращает все исключения на календарную дату.
func (s Staff) OverridesOn(date time.Time) []AvailabilityOverride {
	var out []AvailabilityOverride
	for _, o := range s.Overrides {
		if sameDate(o.Day(), date) {
			out = append(out, o)
		}
	}
	return out
}

// AssignService добавляет услугу в набор того, что умеет мастер.
func (s *Staff) AssignService(serviceID uuid.UUID) {
	for _, c := range s.Capabilities {
		if c.ServiceID == serviceID {
			return
		}
	}
	s.Capabilities = append(s.Capabilities, StaffService{StaffID: s.ID, ServiceID: serviceID})
}

// CanPerformAll проверяет, что мастер умеет каждую из услуг.
func (s Staff) CanPerformAll(serviceIDs []uuid.UUID) bool {
	have := make(map[uuid.UUID]struct{}, len(s.Capabilities))
	for _, c := range s.Capabilities {
		have[c.ServiceID] = struct{}{}
	}
	for _, id := range serviceIDs {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}

// staff_schedules
type StaffSchedule struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey"`
	StaffID   uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:ux_staff_schedule_day"`
	DayOfWeek time.Weekday `gorm:"not null;uniqueIndex:ux_staff_schedule_day"`

	IsWorking bool            `gorm:"not null;default:false"`
	StartTime *datatypes.Time `gorm:"type:time"`
	EndTime   *datatypes.Time `gorm:"type:time"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (sc *StaffSchedule) BeforeCreate(*gorm.DB) error {
	ensureID(&sc.ID)
	return nil
}

// Window возвращает рабочие часы дня как смещения от полуночи.
func (sc StaffSchedule) Window() (start, end time.Duration, ok bool) {
	if !sc.IsWorking || sc.StartTime == nil || sc.EndTime == nil {
		return 0, 0, false
	}
	return time.Duration(*sc.StartTime), time.Duration(*sc.EndTime), true
}

// Тип исключения из расписания.
type AvailabilityType string

const (
	AvailabilityUnavailable       AvailabilityType = "unavailable"
	AvailabilityAvailableOverride AvailabilityType = "available_override"
)

// staff_availability_overrides
type AvailabilityOverride struct {
	ID      uuid.UUID        `gorm:"type:uuid;primaryKey"`
	StaffID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:ux_staff_override"`
	Date    datatypes.Date   `gorm:"type:date;not null;uniqueIndex:ux_staff_override"`
	Type    AvailabilityType `gorm:"type:varchar(32);not null;uniqueIndex:ux_staff_override"`

	// unavailable без времени закрывает весь день.
	StartTime *datatypes.Time `gorm:"type:time"`
	EndTime   *datatypes.Time `gorm:"type:time"`

	Reason string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (AvailabilityOverride) TableName() string {
	return "staff_availability_overrides"
}

func (o *AvailabilityOverride) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// Validate проверяет инварианты исключения.
func (o AvailabilityOverride) Validate() error {
	switch o.Type {
	case AvailabilityAvailableOverride:
		if o.StartTime == nil || o.EndTime == nil || time.Duration(*o.StartTime) >= time.Duration(*o.EndTime) {
			return ErrInvalidWorkingHours
		}
	case AvailabilityUnavailable:
		if (o.StartTime == nil) != (o.EndTime == nil) {
			return ErrInvalidWorkingHours
		}
		if o.StartTime != nil && time.Duration(*o.StartTime) >= time.Duration(*o.EndTime) {
			return ErrInvalidWorkingHours
		}
	default:
		return errors.New("unknown availability override type")
	}
	return nil
}

// Day возвращает дату исключения (полночь UTC).
func (o AvailabilityOverride) Day() time.Time {
	y, m, d := time.Time(o.Date).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WholeDay: unavailable без интервала.
func (o AvailabilityOverride) WholeDay() bool {
	return o.StartTime == nil || o.EndTime == nil
}

// Window возвращает интервал исключения как смещения от полуночи.
func (o AvailabilityOverride) Window() (start, end time.Duration, ok bool) {
	if o.WholeDay() {
		return 0, 0, false
	}
	return time.Duration(*o.StartTime), time.Duration(*o.EndTime), true
}

// DateOf превращает момент времени в datatypes.Date (UTC).
func DateOf(t time.Time) datatypes.Date {
	y, m, d := t.UTC().Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
