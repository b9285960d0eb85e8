package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fisioflow/scheduler-api/internal/model"
	"github.com/fisioflow/scheduler-api/internal/repository"
	apperrors "github.com/fisioflow/scheduler-api/pkg/errors"
	"github.com/fisioflow/scheduler-api/pkg/metrics"
	"github.com/fisioflow/scheduler-api/pkg/tenant"
)

// Service is the calendar read model: a pure projection over the persisted
// appointment set. It never mutates anything and is safe to call repeatedly.
type Service struct {
	repo    repository.AppointmentRepository
	metrics *metrics.Metrics
}

func NewService(repo repository.AppointmentRepository, metrics *metrics.Metrics) *Service {
	return &Service{repo: repo, metrics: metrics}
}

// Range projects the appointments in the filter's date range, ordered by
// date then start time, annotated for calendar rendering.
func (s *Service) Range(ctx context.Context, filter model.CalendarFilter) ([]model.CalendarEntry, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("missing tenant scope")
	}

	if filter.To.Before(filter.From) {
		return nil, apperrors.Validation("invalid date range", map[string]string{"to": "must not precede from"})
	}

	appointments, err := s.repo.ListRange(ctx, scope.OrganizationID, filter)
	if err != nil {
		return nil, err
	}

	entries := make([]model.CalendarEntry, 0, len(appointments))
	for _, a := range appointments {
		entries = append(entries, model.NewCalendarEntry(a))
	}

	s.metrics.CalendarProjectionSize.Observe(float64(len(entries)))
	return entries, nil
}

// CurrentNext is the practitioner dashboard lookup: "current" is the active
// appointment whose interval contains now, "next" the earliest active one
// still ahead of it.
func (s *Service) CurrentNext(ctx context.Context, practitionerID uuid.UUID, now time.Time) (*model.PractitionerNow, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("missing tenant scope")
	}

	// Appointment dates scan as UTC midnight, so the day cursor has to live
	// in UTC regardless of the host zone.
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	filter := model.CalendarFilter{
		From:           today,
		To:             today.AddDate(0, 0, 7),
		PractitionerID: &practitionerID,
	}

	appointments, err := s.repo.ListRange(ctx, scope.OrganizationID, filter)
	if err != nil {
		return nil, err
	}

	nowClock := model.ClockTime(now.Hour()*60 + now.Minute())
	result := &model.PractitionerNow{}

	// Appointments arrive ordered by date then start time, so the first
	// match in each category is the earliest.
	for _, a := range appointments {
		if !a.Status.IsActive() {
			continue
		}

		sameDay := a.AppointmentDate.Year() == today.Year() && a.AppointmentDate.YearDay() == today.YearDay()
		switch {
		case sameDay && a.StartTime <= nowClock && nowClock < a.End():
			if result.Current == nil {
				entry := model.NewCalendarEntry(a)
				result.Current = &entry
			}
		case sameDay && a.StartTime > nowClock, a.AppointmentDate.After(today):
			if result.Next == nil {
				entry := model.NewCalendarEntry(a)
				result.Next = &entry
			}
		}

		if result.Current != nil && result.Next != nil {
			break
		}
	}

	return result, nil
}
