package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fisioflow/scheduler-api/internal/model"
)

// All repository interfaces in one file
type (
	// AppointmentRepository persists bookings. Insert and Update run inside a
	// transaction that serializes writers on the (practitioner, date) slot
	// key and re-checks overlap before writing, so the application-level
	// conflict check is only a fast reject. Both also write the outbox event
	// in the same transaction when one is supplied.
	AppointmentRepository interface {
		Get(ctx context.Context, orgID, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, orgID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		ListRange(ctx context.Context, orgID uuid.UUID, filter model.CalendarFilter) ([]*model.Appointment, error)
		FindOverlapping(ctx context.Context, orgID, practitionerID uuid.UUID, date time.Time, slot model.TimeRange, excludeID *uuid.UUID) ([]*model.Appointment, error)
		Insert(ctx context.Context, appointment *model.Appointment, evt *model.OutboxEvent) error
		Update(ctx context.Context, appointment *model.Appointment, evt *model.OutboxEvent) error
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		BeginTx(ctx context.Context) (*sql.Tx, error)
		UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
