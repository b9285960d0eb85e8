package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fisioflow/scheduler-api/internal/model"
	apperrors "github.com/fisioflow/scheduler-api/pkg/errors"
)

const appointmentColumns = `
	id, organization_id, patient_id, practitioner_id,
	appointment_date, start_time, duration_minutes,
	appointment_type, status, notes, cancellation_reason,
	is_recurring, recurrence_pattern, reminder_sent,
	created_at, created_by, updated_at, updated_by,
	cancelled_at, cancelled_by`

// exclusionViolation is raised by the appointments_no_overlap constraint
// when a write slips past the advisory lock (e.g. out-of-band inserts).
const exclusionViolation = "23P01"

func (r *appointmentRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id = $1 AND organization_id = $2
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, orgID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE organization_id = $1
	`
	args := []interface{}{orgID}
	argCount := 2

	if filters != nil {
		if filters.PractitionerID != nil {
			query += fmt.Sprintf(" AND practitioner_id = $%d", argCount)
			args = append(args, *filters.PractitionerID)
			argCount++
		}
		if filters.PatientID != nil {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, *filters.PatientID)
			argCount++
		}
		if filters.Status != nil {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, *filters.Status)
			argCount++
		}
		if filters.From != nil {
			query += fmt.Sprintf(" AND appointment_date >= $%d", argCount)
			args = append(args, *filters.From)
			argCount++
		}
		if filters.To != nil {
			query += fmt.Sprintf(" AND appointment_date <= $%d", argCount)
			args = append(args, *filters.To)
			argCount++
		}
	}

	query += " ORDER BY appointment_date ASC, start_time ASC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListRange(ctx context.Context, orgID uuid.UUID, filter model.CalendarFilter) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE organization_id = $1
		AND appointment_date >= $2
		AND appointment_date <= $3
	`
	args := []interface{}{orgID, filter.From, filter.To}

	if filter.PractitionerID != nil {
		query += " AND practitioner_id = $4"
		args = append(args, *filter.PractitionerID)
	}

	query += " ORDER BY appointment_date ASC, start_time ASC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments in range: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) FindOverlapping(ctx context.Context, orgID, practitionerID uuid.UUID, date time.Time, slot model.TimeRange, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	return findOverlapping(ctx, r.db, orgID, practitionerID, date, slot, excludeID)
}

// findOverlapping selects every ACTIVE appointment for the practitioner and
// date whose half-open interval intersects the candidate slot. Back-to-back
// bookings do not match.
func findOverlapping(ctx context.Context, q sqlx.QueryerContext, orgID, practitionerID uuid.UUID, date time.Time, slot model.TimeRange, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE organization_id = $1
		AND practitioner_id = $2
		AND appointment_date = $3
		AND status IN ('scheduled', 'confirmed', 'in_progress')
		AND start_time < $5::time
		AND (start_time + make_interval(mins => duration_minutes)) > $4::time
	`
	args := []interface{}{orgID, practitionerID, date, slot.Start, slot.End}

	if excludeID != nil {
		query += " AND id != $6"
		args = append(args, *excludeID)
	}

	query += " ORDER BY start_time ASC"

	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, q, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find overlapping appointments: %w", err)
	}
	return appointments, nil
}

// lockSlot serializes writers on the practitioner's calendar day. The lock
// is released when the transaction commits or rolls back.
func lockSlot(ctx context.Context, tx *sqlx.Tx, practitionerID uuid.UUID, date time.Time) error {
	key := fmt.Sprintf("%s|%s", practitionerID, date.Format("2006-01-02"))
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("failed to acquire slot lock: %w", err)
	}
	return nil
}

func conflictSummaries(appointments []*model.Appointment) []model.ConflictSummary {
	summaries := make([]model.ConflictSummary, 0, len(appointments))
	for _, a := range appointments {
		summaries = append(summaries, a.Summary())
	}
	return summaries
}

func (r *appointmentRepository) Insert(ctx context.Context, appointment *model.Appointment, evt *model.OutboxEvent) error {
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSlot(ctx, tx, appointment.PractitionerID, appointment.AppointmentDate); err != nil {
			return err
		}

		overlapping, err := findOverlapping(ctx, tx, appointment.OrganizationID, appointment.PractitionerID,
			appointment.AppointmentDate, appointment.Range(), nil)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return apperrors.SchedulingConflict(conflictSummaries(overlapping))
		}

		query := `
			INSERT INTO appointments (
				id, organization_id, patient_id, practitioner_id,
				appointment_date, start_time, duration_minutes,
				appointment_type, status, notes,
				is_recurring, recurrence_pattern, reminder_sent,
				created_at, created_by, updated_at, updated_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`
		if _, err := tx.ExecContext(ctx, query,
			appointment.ID,
			appointment.OrganizationID,
			appointment.PatientID,
			appointment.PractitionerID,
			appointment.AppointmentDate,
			appointment.StartTime,
			appointment.DurationMinutes,
			appointment.AppointmentType,
			appointment.Status,
			appointment.Notes,
			appointment.IsRecurring,
			appointment.RecurrencePattern,
			appointment.ReminderSent,
			appointment.CreatedAt,
			appointment.CreatedBy,
			appointment.UpdatedAt,
			appointment.UpdatedBy,
		); err != nil {
			return fmt.Errorf("failed to insert appointment: %w", err)
		}

		return insertOutboxTx(ctx, tx, evt)
	})
	return mapExclusionError(err)
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment, evt *model.OutboxEvent) error {
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSlot(ctx, tx, appointment.PractitionerID, appointment.AppointmentDate); err != nil {
			return err
		}

		// Terminal appointments no longer occupy the calendar; skip the
		// overlap re-check when the write releases the slot.
		if appointment.Status.IsActive() {
			overlapping, err := findOverlapping(ctx, tx, appointment.OrganizationID, appointment.PractitionerID,
				appointment.AppointmentDate, appointment.Range(), &appointment.ID)
			if err != nil {
				return err
			}
			if len(overlapping) > 0 {
				return apperrors.SchedulingConflict(conflictSummaries(overlapping))
			}
		}

		query := `
			UPDATE appointments
			SET appointment_date = $1,
				start_time = $2,
				duration_minutes = $3,
				appointment_type = $4,
				status = $5,
				notes = $6,
				cancellation_reason = $7,
				updated_at = $8,
				updated_by = $9,
				cancelled_at = $10,
				cancelled_by = $11
			WHERE id = $12 AND organization_id = $13
		`
		result, err := tx.ExecContext(ctx, query,
			appointment.AppointmentDate,
			appointment.StartTime,
			appointment.DurationMinutes,
			appointment.AppointmentType,
			appointment.Status,
			appointment.Notes,
			appointment.CancellationReason,
			appointment.UpdatedAt,
			appointment.UpdatedBy,
			appointment.CancelledAt,
			appointment.CancelledBy,
			appointment.ID,
			appointment.OrganizationID,
		)
		if err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return apperrors.NotFound("appointment")
		}

		return insertOutboxTx(ctx, tx, evt)
	})
	return mapExclusionError(err)
}

// mapExclusionError converts a violation of the no-overlap exclusion
// constraint into the domain conflict error.
func mapExclusionError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == exclusionViolation {
		return apperrors.SchedulingConflict(nil)
	}
	return err
}
