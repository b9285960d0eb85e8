package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fisioflow/scheduler-api/internal/model"
	"github.com/fisioflow/scheduler-api/internal/repository"
	"github.com/fisioflow/scheduler-api/internal/service/audit"
	apperrors "github.com/fisioflow/scheduler-api/pkg/errors"
	"github.com/fisioflow/scheduler-api/pkg/metrics"
	"github.com/fisioflow/scheduler-api/pkg/tenant"
)

const dateLayout = "2006-01-02"

// Service orchestrates appointment booking: it validates input, runs the
// conflict check, applies state machine transitions and persists the result.
// The persisted write re-checks conflicts under a per-slot lock, so the
// check here is a fast reject and the source of the user-facing conflict
// list, not the correctness guarantee.
type Service struct {
	repo    repository.AppointmentRepository
	auditor *audit.Service
	metrics *metrics.Metrics
}

func NewService(repo repository.AppointmentRepository, auditor *audit.Service, metrics *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		metrics: metrics,
	}
}

func scopeFrom(ctx context.Context) (tenant.Scope, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.Scope{}, apperrors.Unauthorized("missing tenant scope")
	}
	return scope, nil
}

// CheckConflicts returns every active appointment for the practitioner and
// date whose interval overlaps the candidate slot, excluding excludeID when
// set. An empty result means the slot is free at the time of the read.
func (s *Service) CheckConflicts(ctx context.Context, practitionerID uuid.UUID, date time.Time, slot model.TimeRange, excludeID *uuid.UUID) ([]model.ConflictSummary, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	overlapping, err := s.repo.FindOverlapping(ctx, scope.OrganizationID, practitionerID, date, slot, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}

	summaries := make([]model.ConflictSummary, 0, len(overlapping))
	for _, a := range overlapping {
		summaries = append(summaries, a.Summary())
	}
	return summaries, nil
}

type eventPayload struct {
	Appointment *model.Appointment `json:"appointment"`
	ActorID     uuid.UUID          `json:"actor_id"`
}

// Create books a new appointment in scheduled status.
func (s *Service) Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	timer := prometheus.NewTimer(s.metrics.SchedulingLatency.WithLabelValues("create"))
	defer timer.ObserveDuration()

	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	date, start, fieldErrs := parseSlot(req.AppointmentDate, req.StartTime, req.DurationMinutes)
	if !req.AppointmentType.IsValid() {
		fieldErrs = appendFieldError(fieldErrs, "appointment_type", "unknown appointment type")
	}
	if req.PatientID == uuid.Nil {
		fieldErrs = appendFieldError(fieldErrs, "patient_id", "patient is required")
	}
	if req.PractitionerID == uuid.Nil {
		fieldErrs = appendFieldError(fieldErrs, "practitioner_id", "practitioner is required")
	}
	if len(fieldErrs) > 0 {
		return nil, apperrors.Validation("invalid appointment request", fieldErrs)
	}

	slot := model.NewTimeRange(start, req.DurationMinutes)
	conflicts, err := s.CheckConflicts(ctx, req.PractitionerID, date, slot, nil)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.metrics.SchedulingConflicts.Inc()
		return nil, apperrors.SchedulingConflict(conflicts)
	}

	now := time.Now()
	appointment := &model.Appointment{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		OrganizationID:    scope.OrganizationID,
		PatientID:         req.PatientID,
		PractitionerID:    req.PractitionerID,
		AppointmentDate:   date,
		StartTime:         start,
		DurationMinutes:   req.DurationMinutes,
		AppointmentType:   req.AppointmentType,
		Status:            model.AppointmentStatusScheduled,
		Notes:             req.Notes,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
		CreatedBy:         scope.UserID,
		UpdatedBy:         scope.UserID,
	}

	evt, err := model.NewOutboxEvent(model.EventAppointmentCreated, eventPayload{Appointment: appointment, ActorID: scope.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox event: %w", err)
	}

	if err := s.repo.Insert(ctx, appointment, evt); err != nil {
		return nil, err
	}

	s.metrics.AppointmentsCreated.Inc()
	s.auditor.Record(ctx, scope.OrganizationID, scope.UserID, model.AuditOpCreate,
		model.AuditEntityAppointment, appointment.ID, appointment, nil)

	return appointment, nil
}

// Get loads an appointment scoped to the caller's organization. Cross-tenant
// ids are indistinguishable from missing ones.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, scope.OrganizationID, id)
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope.OrganizationID, filters)
}

// Update applies partial changes. Time and type fields may only change while
// the appointment is still active; status changes go through the state
// machine. All changes commit atomically or not at all.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	timer := prometheus.NewTimer(s.metrics.SchedulingLatency.WithLabelValues("update"))
	defer timer.ObserveDuration()

	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, scope.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	if current.Status.IsTerminal() && (req.TouchesTime() || req.AppointmentType != nil) {
		return nil, apperrors.ImmutableRecord(string(current.Status))
	}

	updated := *current

	if req.Status != nil && *req.Status != current.Status {
		if !req.Status.IsValid() {
			return nil, apperrors.Validation("invalid status", fieldErrors{"status": "unknown status"})
		}
		if err := model.ValidateTransition(current.Status, *req.Status); err != nil {
			return nil, err
		}
		updated.Status = *req.Status
		if *req.Status == model.AppointmentStatusCancelled {
			now := time.Now()
			updated.CancelledAt = &now
			updated.CancelledBy = &scope.UserID
		}
	}

	var fieldErrs fieldErrors
	if req.AppointmentDate != nil {
		date, err := time.Parse(dateLayout, *req.AppointmentDate)
		if err != nil {
			fieldErrs = appendFieldError(fieldErrs, "appointment_date", "expected YYYY-MM-DD")
		} else {
			updated.AppointmentDate = date
		}
	}
	if req.StartTime != nil {
		start, err := model.ParseClock(*req.StartTime)
		if err != nil {
			fieldErrs = appendFieldError(fieldErrs, "start_time", "expected HH:MM")
		} else {
			updated.StartTime = start
		}
	}
	if req.DurationMinutes != nil {
		updated.DurationMinutes = *req.DurationMinutes
	}
	if req.AppointmentType != nil {
		if !req.AppointmentType.IsValid() {
			fieldErrs = appendFieldError(fieldErrs, "appointment_type", "unknown appointment type")
		} else {
			updated.AppointmentType = *req.AppointmentType
		}
	}
	if req.Notes != nil {
		updated.Notes = *req.Notes
	}

	fieldErrs = validateSlotBounds(fieldErrs, updated.StartTime, updated.DurationMinutes)
	if len(fieldErrs) > 0 {
		return nil, apperrors.Validation("invalid appointment update", fieldErrs)
	}

	// The candidate interval falls back to existing values for fields the
	// update leaves unspecified.
	if req.TouchesTime() && updated.Status.IsActive() {
		conflicts, err := s.CheckConflicts(ctx, updated.PractitionerID, updated.AppointmentDate, updated.Range(), &updated.ID)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			s.metrics.SchedulingConflicts.Inc()
			return nil, apperrors.SchedulingConflict(conflicts)
		}
	}

	updated.UpdatedAt = time.Now()
	updated.UpdatedBy = scope.UserID

	evt, err := model.NewOutboxEvent(model.EventAppointmentUpdated, eventPayload{Appointment: &updated, ActorID: scope.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox event: %w", err)
	}

	if err := s.repo.Update(ctx, &updated, evt); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, scope.OrganizationID, scope.UserID, model.AuditOpUpdate,
		model.AuditEntityAppointment, updated.ID, req, map[string]interface{}{"previous_status": current.Status})

	return &updated, nil
}

// Move reschedules the appointment to a new date and start time. It is
// atomic from the caller's perspective: a failed move leaves the original
// slot booked.
func (s *Service) Move(ctx context.Context, id uuid.UUID, req *model.MoveAppointmentRequest) (*model.Appointment, error) {
	timer := prometheus.NewTimer(s.metrics.SchedulingLatency.WithLabelValues("move"))
	defer timer.ObserveDuration()

	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, scope.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	if current.Status.IsTerminal() {
		return nil, apperrors.ImmutableRecord(string(current.Status))
	}

	date, start, fieldErrs := parseSlot(req.AppointmentDate, req.StartTime, current.DurationMinutes)
	if len(fieldErrs) > 0 {
		return nil, apperrors.Validation("invalid move request", fieldErrs)
	}

	slot := model.NewTimeRange(start, current.DurationMinutes)
	conflicts, err := s.CheckConflicts(ctx, current.PractitionerID, date, slot, &current.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.metrics.SchedulingConflicts.Inc()
		return nil, apperrors.SchedulingConflict(conflicts)
	}

	moved := *current
	moved.AppointmentDate = date
	moved.StartTime = start
	moved.UpdatedAt = time.Now()
	moved.UpdatedBy = scope.UserID

	evt, err := model.NewOutboxEvent(model.EventAppointmentMoved, eventPayload{Appointment: &moved, ActorID: scope.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox event: %w", err)
	}

	if err := s.repo.Update(ctx, &moved, evt); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, scope.OrganizationID, scope.UserID, model.AuditOpMove,
		model.AuditEntityAppointment, moved.ID, req, map[string]interface{}{
			"previous_date":  current.AppointmentDate.Format(dateLayout),
			"previous_start": current.StartTime.String(),
		})

	return &moved, nil
}

// Cancel transitions the appointment to cancelled, recording the reason,
// actor and timestamp. The record is retained; its interval no longer
// counts against the calendar.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Appointment, error) {
	timer := prometheus.NewTimer(s.metrics.SchedulingLatency.WithLabelValues("cancel"))
	defer timer.ObserveDuration()

	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, scope.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	switch current.Status {
	case model.AppointmentStatusCompleted:
		return nil, apperrors.CannotCancelCompleted()
	case model.AppointmentStatusCancelled:
		return nil, apperrors.AlreadyCancelled()
	}
	if err := model.ValidateTransition(current.Status, model.AppointmentStatusCancelled); err != nil {
		return nil, err
	}

	now := time.Now()
	cancelled := *current
	cancelled.Status = model.AppointmentStatusCancelled
	cancelled.CancellationReason = &reason
	cancelled.CancelledAt = &now
	cancelled.CancelledBy = &scope.UserID
	cancelled.UpdatedAt = now
	cancelled.UpdatedBy = scope.UserID

	evt, err := model.NewOutboxEvent(model.EventAppointmentCancelled, eventPayload{Appointment: &cancelled, ActorID: scope.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox event: %w", err)
	}

	if err := s.repo.Update(ctx, &cancelled, evt); err != nil {
		return nil, err
	}

	s.metrics.AppointmentsCancelled.Inc()
	s.auditor.Record(ctx, scope.OrganizationID, scope.UserID, model.AuditOpCancel,
		model.AuditEntityAppointment, cancelled.ID, map[string]interface{}{
			"status":              cancelled.Status,
			"cancellation_reason": reason,
		}, nil)

	return &cancelled, nil
}

type fieldErrors map[string]string

func appendFieldError(errs fieldErrors, field, message string) fieldErrors {
	if errs == nil {
		errs = make(fieldErrors)
	}
	errs[field] = message
	return errs
}

// parseSlot validates the date, start time and duration of a candidate
// booking. The end time is always derived from the duration.
func parseSlot(dateStr, startStr string, durationMinutes int) (time.Time, model.ClockTime, fieldErrors) {
	var errs fieldErrors

	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		errs = appendFieldError(errs, "appointment_date", "expected YYYY-MM-DD")
	}

	start, err := model.ParseClock(startStr)
	if err != nil {
		errs = appendFieldError(errs, "start_time", "expected HH:MM")
	}

	errs = validateSlotBounds(errs, start, durationMinutes)
	return date, start, errs
}

func validateSlotBounds(errs fieldErrors, start model.ClockTime, durationMinutes int) fieldErrors {
	if durationMinutes < model.MinAppointmentDuration || durationMinutes > model.MaxAppointmentDuration {
		errs = appendFieldError(errs, "duration_minutes",
			fmt.Sprintf("must be between %d and %d minutes", model.MinAppointmentDuration, model.MaxAppointmentDuration))
	} else if start.Add(durationMinutes) > model.EndOfDay {
		errs = appendFieldError(errs, "start_time", "appointment must end on the same day")
	}
	return errs
}
