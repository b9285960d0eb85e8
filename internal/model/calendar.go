package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CalendarEntry is the projection consumed by week/day grid views. All
// fields are derived from the persisted appointment; the projection never
// mutates anything.
type CalendarEntry struct {
	ID              uuid.UUID         `json:"id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	PractitionerID  uuid.UUID         `json:"practitioner_id"`
	AppointmentDate time.Time         `json:"appointment_date"`
	StartTime       ClockTime         `json:"start_time"`
	EndTime         ClockTime         `json:"end_time"`
	DurationMinutes int               `json:"duration_minutes"`
	DurationLabel   string            `json:"duration_label"`
	AppointmentType AppointmentType   `json:"appointment_type"`
	Status          AppointmentStatus `json:"status"`
	StatusLabel     string            `json:"status_label"`
	Notes           string            `json:"notes,omitempty"`
}

// NewCalendarEntry projects an appointment for calendar rendering.
func NewCalendarEntry(a *Appointment) CalendarEntry {
	return CalendarEntry{
		ID:              a.ID,
		PatientID:       a.PatientID,
		PractitionerID:  a.PractitionerID,
		AppointmentDate: a.AppointmentDate,
		StartTime:       a.StartTime,
		EndTime:         a.End(),
		DurationMinutes: a.DurationMinutes,
		DurationLabel:   FormatDuration(a.DurationMinutes),
		AppointmentType: a.AppointmentType,
		Status:          a.Status,
		StatusLabel:     a.Status.Label(),
		Notes:           a.Notes,
	}
}

// FormatDuration renders a minute count the way the calendar displays it.
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dh%02d", minutes/60, minutes%60)
}

// CalendarFilter selects the date range and optional practitioner for a
// calendar projection.
type CalendarFilter struct {
	From           time.Time
	To             time.Time
	PractitionerID *uuid.UUID
}

// PractitionerNow is the dashboard lookup: the appointment whose interval
// contains "now" and the earliest one still ahead.
type PractitionerNow struct {
	Current *CalendarEntry `json:"current,omitempty"`
	Next    *CalendarEntry `json:"next,omitempty"`
}
