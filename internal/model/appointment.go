package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentType string

const (
	AppointmentTypeConsultation AppointmentType = "consultation"
	AppointmentTypeFollowUp     AppointmentType = "follow_up"
	AppointmentTypeEvaluation   AppointmentType = "evaluation"
	AppointmentTypeTherapy      AppointmentType = "therapy"
	AppointmentTypeReEvaluation AppointmentType = "re_evaluation"
	AppointmentTypeEmergency    AppointmentType = "emergency"
)

func (t AppointmentType) IsValid() bool {
	switch t {
	case AppointmentTypeConsultation, AppointmentTypeFollowUp, AppointmentTypeEvaluation,
		AppointmentTypeTherapy, AppointmentTypeReEvaluation, AppointmentTypeEmergency:
		return true
	}
	return false
}

// Duration bounds in minutes
const (
	MinAppointmentDuration = 15
	MaxAppointmentDuration = 240
)

// Appointment is a booking of a practitioner's time for a patient. It is
// never physically deleted; cancellation is a terminal status.
type Appointment struct {
	Base
	OrganizationID     uuid.UUID         `db:"organization_id" json:"organization_id"`
	PatientID          uuid.UUID         `db:"patient_id" json:"patient_id"`
	PractitionerID     uuid.UUID         `db:"practitioner_id" json:"practitioner_id"`
	AppointmentDate    time.Time         `db:"appointment_date" json:"appointment_date"`
	StartTime          ClockTime         `db:"start_time" json:"start_time"`
	DurationMinutes    int               `db:"duration_minutes" json:"duration_minutes"`
	AppointmentType    AppointmentType   `db:"appointment_type" json:"appointment_type"`
	Status             AppointmentStatus `db:"status" json:"status"`
	Notes              string            `db:"notes" json:"notes,omitempty"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	IsRecurring        bool              `db:"is_recurring" json:"is_recurring"`
	RecurrencePattern  *string           `db:"recurrence_pattern" json:"recurrence_pattern,omitempty"`
	ReminderSent       bool              `db:"reminder_sent" json:"reminder_sent"`
	CreatedBy          uuid.UUID         `db:"created_by" json:"created_by"`
	UpdatedBy          uuid.UUID         `db:"updated_by" json:"updated_by"`
	CancelledAt        *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy        *uuid.UUID        `db:"cancelled_by" json:"cancelled_by,omitempty"`
}

// End is the derived end time, always start + duration.
func (a *Appointment) End() ClockTime {
	return a.StartTime.Add(a.DurationMinutes)
}

// Range is the half-open interval the appointment occupies.
func (a *Appointment) Range() TimeRange {
	return NewTimeRange(a.StartTime, a.DurationMinutes)
}

// ConflictSummary identifies an overlapping appointment in a 409 response.
type ConflictSummary struct {
	ID              uuid.UUID         `json:"id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	PractitionerID  uuid.UUID         `json:"practitioner_id"`
	AppointmentDate time.Time         `json:"appointment_date"`
	StartTime       ClockTime         `json:"start_time"`
	EndTime         ClockTime         `json:"end_time"`
	Status          AppointmentStatus `json:"status"`
}

// Summary projects the appointment into its conflict representation.
func (a *Appointment) Summary() ConflictSummary {
	return ConflictSummary{
		ID:              a.ID,
		PatientID:       a.PatientID,
		PractitionerID:  a.PractitionerID,
		AppointmentDate: a.AppointmentDate,
		StartTime:       a.StartTime,
		EndTime:         a.End(),
		Status:          a.Status,
	}
}

type CreateAppointmentRequest struct {
	PatientID         uuid.UUID       `json:"patient_id" binding:"required"`
	PractitionerID    uuid.UUID       `json:"practitioner_id" binding:"required"`
	AppointmentDate   string          `json:"appointment_date" binding:"required,datetime=2006-01-02"`
	StartTime         string          `json:"start_time" binding:"required,clocktime"`
	DurationMinutes   int             `json:"duration_minutes" binding:"required,min=15,max=240"`
	AppointmentType   AppointmentType `json:"appointment_type" binding:"required,oneof=consultation follow_up evaluation therapy re_evaluation emergency"`
	Notes             string          `json:"notes" binding:"max=2000"`
	IsRecurring       bool            `json:"is_recurring"`
	RecurrencePattern *string         `json:"recurrence_pattern"`
}

// UpdateAppointmentRequest carries partial changes. Nil fields keep their
// current values.
type UpdateAppointmentRequest struct {
	AppointmentDate *string            `json:"appointment_date" binding:"omitempty,datetime=2006-01-02"`
	StartTime       *string            `json:"start_time" binding:"omitempty,clocktime"`
	DurationMinutes *int               `json:"duration_minutes" binding:"omitempty,min=15,max=240"`
	AppointmentType *AppointmentType   `json:"appointment_type" binding:"omitempty,oneof=consultation follow_up evaluation therapy re_evaluation emergency"`
	Status          *AppointmentStatus `json:"status"`
	Notes           *string            `json:"notes" binding:"omitempty,max=2000"`
}

// TouchesTime reports whether the update changes the occupied interval.
func (r *UpdateAppointmentRequest) TouchesTime() bool {
	return r.AppointmentDate != nil || r.StartTime != nil || r.DurationMinutes != nil
}

// MoveAppointmentRequest is the drag-and-drop reschedule payload.
type MoveAppointmentRequest struct {
	AppointmentDate string `json:"appointment_date" binding:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time" binding:"required,clocktime"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// AppointmentFilters narrows list queries. OrganizationID always comes from
// the tenant scope, never from here.
type AppointmentFilters struct {
	PractitionerID *uuid.UUID
	PatientID      *uuid.UUID
	Status         *AppointmentStatus
	From           *time.Time
	To             *time.Time
}
