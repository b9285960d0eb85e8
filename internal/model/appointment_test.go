package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAppointmentDerivedInterval(t *testing.T) {
	a := &Appointment{
		StartTime:       9*60 + 30,
		DurationMinutes: 45,
	}

	assert.Equal(t, "10:15", a.End().String())
	assert.Equal(t, TimeRange{Start: 9*60 + 30, End: 10*60 + 15}, a.Range())
	assert.Equal(t, 45, a.Range().Duration())
}

func TestAppointmentSummary(t *testing.T) {
	a := &Appointment{
		Base:            Base{ID: uuid.New()},
		PatientID:       uuid.New(),
		PractitionerID:  uuid.New(),
		AppointmentDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		StartTime:       14 * 60,
		DurationMinutes: 60,
		Status:          AppointmentStatusConfirmed,
	}

	s := a.Summary()
	assert.Equal(t, a.ID, s.ID)
	assert.Equal(t, a.PatientID, s.PatientID)
	assert.Equal(t, a.PractitionerID, s.PractitionerID)
	assert.Equal(t, a.StartTime, s.StartTime)
	assert.Equal(t, a.End(), s.EndTime)
	assert.Equal(t, AppointmentStatusConfirmed, s.Status)
}

func TestUpdateRequestTouchesTime(t *testing.T) {
	assert.False(t, (&UpdateAppointmentRequest{}).TouchesTime())

	notes := "rescheduling note"
	assert.False(t, (&UpdateAppointmentRequest{Notes: &notes}).TouchesTime())

	date := "2026-09-16"
	start := "11:00"
	duration := 30
	assert.True(t, (&UpdateAppointmentRequest{AppointmentDate: &date}).TouchesTime())
	assert.True(t, (&UpdateAppointmentRequest{StartTime: &start}).TouchesTime())
	assert.True(t, (&UpdateAppointmentRequest{DurationMinutes: &duration}).TouchesTime())
}

func TestAppointmentTypeIsValid(t *testing.T) {
	for _, at := range []AppointmentType{
		AppointmentTypeConsultation, AppointmentTypeFollowUp, AppointmentTypeEvaluation,
		AppointmentTypeTherapy, AppointmentTypeReEvaluation, AppointmentTypeEmergency,
	} {
		assert.True(t, at.IsValid(), string(at))
	}
	assert.False(t, AppointmentType("massage").IsValid())
	assert.False(t, AppointmentType("").IsValid())
}
