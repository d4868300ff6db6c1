package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-core/internal/calendar"
	"github.com/Leganyst/booking-core/internal/model"
	"github.com/Leganyst/booking-core/internal/repository"
)

// SlotQuery — параметры поиска свободного времени.
type SlotQuery struct {
	BusinessID       uuid.UUID
	ServiceIDs       []uuid.UUID
	PreferredStaffID *uuid.UUID
	From             time.Time
	To               time.Time
}

// SlotResult — ответ FindSlots.
type SlotResult struct {
	StartDate               time.Time       `json:"start_date"`
	RequiredDurationMinutes int             `json:"required_duration_minutes"`
	Slots                   []calendar.Slot `json:"slots"`
}

// SlotService подбирает свободное время. Чтение оптимистичное:
// блокировок нет, при бронировании слот проверяется заново.
type SlotService struct {
	store  *repository.Store
	cache  SlotCache
	policy Policy
	logger *zap.Logger
	now    func() time.Time
}

func NewSlotService(store *repository.Store, cache SlotCache, policy Policy, logger *zap.Logger) *SlotService {
	return &SlotService{
		store:  store,
		cache:  cache,
		policy: policy.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *SlotService) WithClock(now func() time.Time) *SlotService {
	s.now = now
	return s
}

// FindSlots возвращает свободные слоты по всем подходящим мастерам,
// отсортированные по времени начала.
func (s *SlotService) FindSlots(ctx context.Context, q SlotQuery) (*SlotResult, error) {
	ctx, span := tracer.Start(ctx, "SlotService.FindSlots", trace.WithAttributes(
		attribute.String("business.id", q.BusinessID.String()),
		attribute.Int("services.count", len(q.ServiceIDs)),
	))
	defer span.End()

	res, err := s.findSlots(ctx, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("slots.count", len(res.Slots)))
	return res, nil
}

func (s *SlotService) findSlots(ctx context.Context, q SlotQuery) (*SlotResult, error) {
	serviceIDs := uniqueIDs(q.ServiceIDs)
	if len(serviceIDs) == 0 {
		return nil, newError(CodeServicesRequired, "at least one service must be selected")
	}

	from, to := q.From.UTC(), q.To.UTC()
	if !to.After(from) {
		return nil, newError(CodeInvalidDateRange, "end date must be after start date")
	}
	if to.Sub(from) > time.Duration(s.policy.MaxSearchDays)*24*time.Hour {
		return nil, newError(CodeInvalidDateRange, "date range cannot exceed %d days", s.policy.MaxSearchDays)
	}

	now := s.now().UTC()
	key := slotCacheKey(q, serviceIDs)
	cached, gen, ok := s.cached(ctx, q.BusinessID, key)
	if ok {
		return dropPast(cached, now), nil
	}

	services, err := s.store.Services.ListActiveByIDs(ctx, q.BusinessID, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	if len(services) != len(serviceIDs) {
		return nil, newError(CodeSomeServicesNotFound, "some services were not found or are inactive")
	}

	var required time.Duration
	for _, svc := range services {
		required += svc.OccupiedDuration()
	}

	business, err := s.store.Businesses.GetWithHours(ctx, q.BusinessID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(CodeBusinessNotFound, "business %s not found", q.BusinessID)
	}
	if err != nil {
		return nil, fmt.Errorf("get business: %w", err)
	}
	if err := calendar.ValidateOperatingHours(business.OperatingHours); err != nil {
		return nil, newError(CodeInvalidOperatingHours, "%v", err)
	}

	staff, err := s.eligibleStaff(ctx, q, serviceIDs, from, to)
	if err != nil {
		return nil, err
	}

	staffIDs := make([]uuid.UUID, 0, len(staff))
	for _, st := range staff {
		staffIDs = append(staffIDs, st.ID)
	}
	dayFrom := calendar.DateOnly(from)
	dayTo := calendar.DateOnly(to).AddDate(0, 0, 1)
	existing, err := s.store.Appointments.ListActiveByStaffRange(ctx, staffIDs, dayFrom, dayTo)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	occupancy := make([]calendar.Occupancy, 0, len(existing))
	for _, a := range existing {
		occupancy = append(occupancy, calendar.OccupancyOf(a))
	}

	slots := make([]calendar.Slot, 0)
	for _, day := range calendar.Days(from, to) {
		for _, st := range staff {
			window, ok := calendar.ResolveWorkingWindow(day, business.OperatingHours, st)
			if !ok {
				continue
			}
			busy := append(calendar.BusyRanges(st.ID, occupancy), calendar.BlockedIntervals(day, st)...)
			for _, c := range calendar.CandidateStarts(window, required, s.policy.SlotStep, busy, now) {
				slots = append(slots, calendar.Slot{TimeRange: c, StaffID: st.ID, StaffName: st.FullName()})
			}
		}
	}
	calendar.SortSlots(slots)

	res := &SlotResult{
		StartDate:               from,
		RequiredDurationMinutes: int(required / time.Minute),
		Slots:                   slots,
	}
	s.remember(ctx, q.BusinessID, gen, key, res)

	s.logger.Debug("slots found",
		zap.String("business_id", q.BusinessID.String()),
		zap.Int("staff", len(staff)),
		zap.Int("slots", len(slots)))
	return res, nil
}

// eligibleStaff: предпочтительный мастер, если он активен и умеет все услуги,
// иначе все такие мастера бизнеса.
func (s *SlotService) eligibleStaff(ctx context.Context, q SlotQuery, serviceIDs []uuid.UUID, from, to time.Time) ([]model.Staff, error) {
	staff, err := s.store.Staff.ListCapable(ctx, q.BusinessID, serviceIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	if q.PreferredStaffID != nil {
		for _, st := range staff {
			if st.ID == *q.PreferredStaffID {
				return []model.Staff{st}, nil
			}
		}
	}
	if len(staff) == 0 {
		return nil, newError(CodeNoEligibleStaff, "no active staff can perform all selected services")
	}
	return staff, nil
}

// noGeneration: поколение неизвестно, ответ не кешируется.
const noGeneration int64 = -1

func (s *SlotService) cached(ctx context.Context, businessID uuid.UUID, key string) (*SlotResult, int64, bool) {
	if s.cache == nil {
		return nil, noGeneration, false
	}
	raw, gen, ok, err := s.cache.Get(ctx, businessID, key)
	if err != nil {
		s.logger.Warn("slot cache get failed", zap.String("business_id", businessID.String()), zap.Error(err))
		return nil, noGeneration, false
	}
	if !ok {
		return nil, gen, false
	}
	var res SlotResult
	if err := json.Unmarshal(raw, &res); err != nil {
		s.logger.Warn("slot cache entry is corrupted", zap.String("key", key), zap.Error(err))
		return nil, gen, false
	}
	return &res, gen, true
}

func (s *SlotService) remember(ctx context.Context, businessID uuid.UUID, gen int64, key string, res *SlotResult) {
	if s.cache == nil || gen == noGeneration {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		s.logger.Warn("slot cache marshal failed", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, businessID, gen, key, raw); err != nil {
		s.logger.Warn("slot cache set failed", zap.String("business_id", businessID.String()), zap.Error(err))
	}
}

// dropPast убирает слоты, начало которых уже прошло с момента кеширования.
func dropPast(res *SlotResult, now time.Time) *SlotResult {
	kept := res.Slots[:0]
	for _, sl := range res.Slots {
		if !sl.Start.Before(now) {
			kept = append(kept, sl)
		}
	}
	res.Slots = kept
	return res
}

func slotCacheKey(q SlotQuery, serviceIDs []uuid.UUID) string {
	ids := make([]string, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)

	preferred := ""
	if q.PreferredStaffID != nil {
		preferred = q.PreferredStaffID.String()
	}

	raw := strings.Join([]string{
		strings.Join(ids, ","),
		preferred,
		q.From.UTC().Format(time.RFC3339),
		q.To.UTC().Format(time.RFC3339),
	}, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
