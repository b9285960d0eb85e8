package model

import (
	apperrors "github.com/fisioflow/scheduler-api/pkg/errors"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

// statusTransitions is the full set of legal status changes. Terminal
// statuses have no entry: nothing transitions out of them.
var statusTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {
		AppointmentStatusConfirmed,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow,
	},
	AppointmentStatusConfirmed: {
		AppointmentStatusInProgress,
		AppointmentStatusCancelled,
		AppointmentStatusNoShow,
	},
	AppointmentStatusInProgress: {
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
	},
}

// ActiveStatuses are the statuses that occupy calendar time and participate
// in conflict checks.
var ActiveStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusConfirmed,
	AppointmentStatusInProgress,
}

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusInProgress,
		AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

// IsActive reports whether the appointment still occupies its time slot.
func (s AppointmentStatus) IsActive() bool {
	return !s.IsTerminal()
}

// CanTransitionTo reports whether the status change is in the legal set.
func (s AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns InvalidTransition unless from -> to is legal.
func ValidateTransition(from, to AppointmentStatus) error {
	if !from.CanTransitionTo(to) {
		return apperrors.InvalidTransition(string(from), string(to))
	}
	return nil
}

// Label returns the human-readable status name used by calendar views.
func (s AppointmentStatus) Label() string {
	switch s {
	case AppointmentStatusScheduled:
		return "Scheduled"
	case AppointmentStatusConfirmed:
		return "Confirmed"
	case AppointmentStatusInProgress:
		return "In progress"
	case AppointmentStatusCompleted:
		return "Completed"
	case AppointmentStatusCancelled:
		return "Cancelled"
	case AppointmentStatusNoShow:
		return "No-show"
	default:
		return string(s)
	}
}
