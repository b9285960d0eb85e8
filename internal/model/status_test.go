package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fisioflow/scheduler-api/pkg/errors"
)

var allStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusConfirmed,
	AppointmentStatusInProgress,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
	AppointmentStatusNoShow,
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[AppointmentStatus][]AppointmentStatus{
		AppointmentStatusScheduled:  {AppointmentStatusConfirmed, AppointmentStatusCancelled, AppointmentStatusNoShow},
		AppointmentStatusConfirmed:  {AppointmentStatusInProgress, AppointmentStatusCancelled, AppointmentStatusNoShow},
		AppointmentStatusInProgress: {AppointmentStatusCompleted, AppointmentStatusCancelled},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, from := range allStatuses {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range allStatuses {
			assert.False(t, from.CanTransitionTo(to), "%s must not transition to %s", from, to)
		}
	}
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(AppointmentStatusScheduled, AppointmentStatusConfirmed))

	err := ValidateTransition(AppointmentStatusScheduled, AppointmentStatusCompleted)
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.ErrInvalidTransition, appErr.Code)
}

func TestIsActive(t *testing.T) {
	assert.True(t, AppointmentStatusScheduled.IsActive())
	assert.True(t, AppointmentStatusConfirmed.IsActive())
	assert.True(t, AppointmentStatusInProgress.IsActive())
	assert.False(t, AppointmentStatusCompleted.IsActive())
	assert.False(t, AppointmentStatusCancelled.IsActive())
	assert.False(t, AppointmentStatusNoShow.IsActive())
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range allStatuses {
		assert.True(t, s.IsValid())
	}
	assert.False(t, AppointmentStatus("rescheduled").IsValid())
	assert.False(t, AppointmentStatus("").IsValid())
}
