package scheduling

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fisioflow/scheduler-api/internal/model"
	"github.com/fisioflow/scheduler-api/internal/service/audit"
	apperrors "github.com/fisioflow/scheduler-api/pkg/errors"
	"github.com/fisioflow/scheduler-api/pkg/metrics"
	"github.com/fisioflow/scheduler-api/pkg/tenant"
)

// Prometheus collectors register globally, so every test shares one set.
var testMetrics = metrics.New("scheduling_test")

// fakeAppointmentRepo keeps appointments in memory and mirrors the overlap
// semantics of the SQL implementation.
type fakeAppointmentRepo struct {
	appointments map[uuid.UUID]*model.Appointment
	events       []*model.OutboxEvent
	updateCalls  int
}

func newFakeRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeAppointmentRepo) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok || a.OrganizationID != orgID {
		return nil, apperrors.NotFound("appointment")
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAppointmentRepo) List(ctx context.Context, orgID uuid.UUID, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, a := range f.appointments {
		if a.OrganizationID != orgID {
			continue
		}
		if filters != nil && filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ListRange(ctx context.Context, orgID uuid.UUID, filter model.CalendarFilter) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, a := range f.appointments {
		if a.OrganizationID != orgID {
			continue
		}
		if a.AppointmentDate.Before(filter.From) || a.AppointmentDate.After(filter.To) {
			continue
		}
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeAppointmentRepo) FindOverlapping(ctx context.Context, orgID, practitionerID uuid.UUID, date time.Time, slot model.TimeRange, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, a := range f.appointments {
		if a.OrganizationID != orgID || a.PractitionerID != practitionerID {
			continue
		}
		if !a.AppointmentDate.Equal(date) || !a.Status.IsActive() {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.Range().Overlaps(slot) {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) Insert(ctx context.Context, a *model.Appointment, evt *model.OutboxEvent) error {
	copied := *a
	f.appointments[a.ID] = &copied
	if evt != nil {
		f.events = append(f.events, evt)
	}
	return nil
}

func (f *fakeAppointmentRepo) Update(ctx context.Context, a *model.Appointment, evt *model.OutboxEvent) error {
	if _, ok := f.appointments[a.ID]; !ok {
		return apperrors.NotFound("appointment")
	}
	copied := *a
	f.appointments[a.ID] = &copied
	if evt != nil {
		f.events = append(f.events, evt)
	}
	f.updateCalls++
	return nil
}

type fakeAuditRepo struct {
	entries []*model.AuditLog
}

func (f *fakeAuditRepo) Create(ctx context.Context, log *model.AuditLog) error {
	f.entries = append(f.entries, log)
	return nil
}

func (f *fakeAuditRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func newTestService() (*Service, *fakeAppointmentRepo, *fakeAuditRepo) {
	repo := newFakeRepo()
	auditRepo := &fakeAuditRepo{}
	return NewService(repo, audit.NewService(auditRepo), testMetrics), repo, auditRepo
}

var (
	testOrgID  = uuid.New()
	testUserID = uuid.New()
)

func testContext() context.Context {
	return tenant.WithScope(context.Background(), tenant.Scope{
		UserID:         testUserID,
		OrganizationID: testOrgID,
		Role:           tenant.RoleReceptionist,
	})
}

func validCreateRequest() *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		PractitionerID:  uuid.New(),
		AppointmentDate: "2026-09-15",
		StartTime:       "09:00",
		DurationMinutes: 45,
		AppointmentType: model.AppointmentTypeTherapy,
	}
}

func TestCreateAppointment(t *testing.T) {
	svc, repo, auditRepo := newTestService()

	created, err := svc.Create(testContext(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusScheduled, created.Status)
	assert.Equal(t, testOrgID, created.OrganizationID)
	assert.Equal(t, testUserID, created.CreatedBy)
	assert.Equal(t, model.ClockTime(9*60), created.StartTime)
	assert.Equal(t, model.ClockTime(9*60+45), created.End())

	require.Len(t, repo.events, 1)
	assert.Equal(t, model.EventAppointmentCreated, repo.events[0].EventType)
	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, model.AuditOpCreate, auditRepo.entries[0].Operation)
}

func TestCreateWithoutScope(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.AsAppError(err).Code)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService()

	tests := []struct {
		name   string
		mutate func(*model.CreateAppointmentRequest)
		field  string
	}{
		{name: "bad date", mutate: func(r *model.CreateAppointmentRequest) { r.AppointmentDate = "15/09/2026" }, field: "appointment_date"},
		{name: "bad time", mutate: func(r *model.CreateAppointmentRequest) { r.StartTime = "25:00" }, field: "start_time"},
		{name: "too short", mutate: func(r *model.CreateAppointmentRequest) { r.DurationMinutes = 10 }, field: "duration_minutes"},
		{name: "too long", mutate: func(r *model.CreateAppointmentRequest) { r.DurationMinutes = 300 }, field: "duration_minutes"},
		{name: "crosses midnight", mutate: func(r *model.CreateAppointmentRequest) { r.StartTime = "23:30"; r.DurationMinutes = 60 }, field: "start_time"},
		{name: "unknown type", mutate: func(r *model.CreateAppointmentRequest) { r.AppointmentType = "massage" }, field: "appointment_type"},
		{name: "missing patient", mutate: func(r *model.CreateAppointmentRequest) { r.PatientID = uuid.Nil }, field: "patient_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)

			_, err := svc.Create(testContext(), req)
			require.Error(t, err)

			appErr := apperrors.AsAppError(err)
			assert.Equal(t, apperrors.ErrValidation, appErr.Code)
			fields, ok := appErr.Details.(fieldErrors)
			require.True(t, ok)
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestCreateEndingAtMidnight(t *testing.T) {
	svc, _, _ := newTestService()

	req := validCreateRequest()
	req.StartTime = "23:00"
	req.DurationMinutes = 60

	created, err := svc.Create(testContext(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EndOfDay, created.End())
}

func TestCreateConflictListsAllOverlaps(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	practitioner := uuid.New()

	first := validCreateRequest()
	first.PractitionerID = practitioner
	first.StartTime = "09:00"
	a1, err := svc.Create(ctx, first)
	require.NoError(t, err)

	second := validCreateRequest()
	second.PractitionerID = practitioner
	second.StartTime = "10:00"
	a2, err := svc.Create(ctx, second)
	require.NoError(t, err)

	// 09:30-10:30 overlaps both bookings.
	third := validCreateRequest()
	third.PractitionerID = practitioner
	third.StartTime = "09:30"
	third.DurationMinutes = 60

	_, err = svc.Create(ctx, third)
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.ErrSchedulingConflict, appErr.Code)

	conflicts, ok := appErr.Details.([]model.ConflictSummary)
	require.True(t, ok)
	require.Len(t, conflicts, 2)
	ids := []uuid.UUID{conflicts[0].ID, conflicts[1].ID}
	assert.Contains(t, ids, a1.ID)
	assert.Contains(t, ids, a2.ID)
}

func TestCreateBackToBackSlots(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	practitioner := uuid.New()

	first := validCreateRequest()
	first.PractitionerID = practitioner
	first.StartTime = "09:00"
	first.DurationMinutes = 60
	_, err := svc.Create(ctx, first)
	require.NoError(t, err)

	// Starts exactly where the first one ends.
	second := validCreateRequest()
	second.PractitionerID = practitioner
	second.StartTime = "10:00"
	second.DurationMinutes = 60
	_, err = svc.Create(ctx, second)
	assert.NoError(t, err)
}

func TestDifferentPractitionersDoNotConflict(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	first := validCreateRequest()
	_, err := svc.Create(ctx, first)
	require.NoError(t, err)

	second := validCreateRequest()
	second.StartTime = first.StartTime
	_, err = svc.Create(ctx, second)
	assert.NoError(t, err)
}

func TestCancelFreesSlot(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	practitioner := uuid.New()

	first := validCreateRequest()
	first.PractitionerID = practitioner
	created, err := svc.Create(ctx, first)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, created.ID, "patient request")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "patient request", *cancelled.CancellationReason)
	assert.NotNil(t, cancelled.CancelledAt)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, testUserID, *cancelled.CancelledBy)

	// The freed slot is bookable again.
	second := validCreateRequest()
	second.PractitionerID = practitioner
	second.StartTime = first.StartTime
	_, err = svc.Create(ctx, second)
	assert.NoError(t, err)
}

func TestCancelTerminalStates(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := testContext()

	seed := func(status model.AppointmentStatus) uuid.UUID {
		a := &model.Appointment{
			Base:            model.Base{ID: uuid.New()},
			OrganizationID:  testOrgID,
			PatientID:       uuid.New(),
			PractitionerID:  uuid.New(),
			AppointmentDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
			StartTime:       model.ClockTime(9 * 60),
			DurationMinutes: 45,
			AppointmentType: model.AppointmentTypeTherapy,
			Status:          status,
		}
		repo.appointments[a.ID] = a
		return a.ID
	}

	_, err := svc.Cancel(ctx, seed(model.AppointmentStatusCompleted), "late")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCannotCancelCompleted, apperrors.AsAppError(err).Code)
	assert.Equal(t, http.StatusBadRequest, apperrors.AsAppError(err).HTTPStatus())

	_, err = svc.Cancel(ctx, seed(model.AppointmentStatusCancelled), "again")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrAlreadyCancelled, apperrors.AsAppError(err).Code)
	assert.Equal(t, http.StatusBadRequest, apperrors.AsAppError(err).HTTPStatus())

	// Cancelling a no-show is an illegal transition and still renders as a
	// bad request, matching the other terminal cancellations.
	_, err = svc.Cancel(ctx, seed(model.AppointmentStatusNoShow), "no show")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.AsAppError(err).Code)
	assert.Equal(t, http.StatusBadRequest, apperrors.AsAppError(err).HTTPStatus())
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	created, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	confirmed := model.AppointmentStatusConfirmed
	updated, err := svc.Update(ctx, created.ID, &model.UpdateAppointmentRequest{Status: &confirmed})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, updated.Status)

	// scheduled -> completed skips the mandatory in_progress step.
	other, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	completed := model.AppointmentStatusCompleted
	_, err = svc.Update(ctx, other.ID, &model.UpdateAppointmentRequest{Status: &completed})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.AsAppError(err).Code)
}

func TestUpdateTerminalRecordIsImmutable(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	created, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, created.ID, "done")
	require.NoError(t, err)

	newStart := "11:00"
	_, err = svc.Update(ctx, created.ID, &model.UpdateAppointmentRequest{StartTime: &newStart})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrImmutableRecord, apperrors.AsAppError(err).Code)

	// Notes remain editable on terminal records.
	notes := "arrived late"
	updated, err := svc.Update(ctx, created.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
}

func TestUpdateRescheduleChecksConflicts(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	practitioner := uuid.New()

	first := validCreateRequest()
	first.PractitionerID = practitioner
	first.StartTime = "09:00"
	_, err := svc.Create(ctx, first)
	require.NoError(t, err)

	second := validCreateRequest()
	second.PractitionerID = practitioner
	second.StartTime = "11:00"
	target, err := svc.Create(ctx, second)
	require.NoError(t, err)

	// Moving onto the first booking fails.
	clash := "09:15"
	_, err = svc.Update(ctx, target.ID, &model.UpdateAppointmentRequest{StartTime: &clash})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrSchedulingConflict, apperrors.AsAppError(err).Code)

	// Shifting within the appointment's own previous slot succeeds: the
	// record excludes itself from the check.
	shift := "11:15"
	updated, err := svc.Update(ctx, target.ID, &model.UpdateAppointmentRequest{StartTime: &shift})
	require.NoError(t, err)
	assert.Equal(t, model.ClockTime(11*60+15), updated.StartTime)
}

func TestMove(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := testContext()

	practitioner := uuid.New()

	first := validCreateRequest()
	first.PractitionerID = practitioner
	first.StartTime = "09:00"
	blocker, err := svc.Create(ctx, first)
	require.NoError(t, err)

	second := validCreateRequest()
	second.PractitionerID = practitioner
	second.StartTime = "14:00"
	target, err := svc.Create(ctx, second)
	require.NoError(t, err)

	updatesBefore := repo.updateCalls

	// Conflicting move leaves the original slot untouched.
	_, err = svc.Move(ctx, target.ID, &model.MoveAppointmentRequest{
		AppointmentDate: "2026-09-15",
		StartTime:       "09:15",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrSchedulingConflict, apperrors.AsAppError(err).Code)
	assert.Equal(t, updatesBefore, repo.updateCalls)

	kept, err := svc.Get(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClockTime(14*60), kept.StartTime)

	// A free slot on another day works and keeps the duration.
	moved, err := svc.Move(ctx, target.ID, &model.MoveAppointmentRequest{
		AppointmentDate: "2026-09-16",
		StartTime:       "09:00",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ClockTime(9*60), moved.StartTime)
	assert.Equal(t, 45, moved.DurationMinutes)
	assert.Equal(t, time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC), moved.AppointmentDate)

	// Moving the blocker onto its own slot is allowed.
	_, err = svc.Move(ctx, blocker.ID, &model.MoveAppointmentRequest{
		AppointmentDate: "2026-09-15",
		StartTime:       "09:15",
	})
	assert.NoError(t, err)
}

func TestMoveTerminalRecord(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	created, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, created.ID, "gone")
	require.NoError(t, err)

	_, err = svc.Move(ctx, created.ID, &model.MoveAppointmentRequest{
		AppointmentDate: "2026-09-16",
		StartTime:       "09:00",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrImmutableRecord, apperrors.AsAppError(err).Code)
}

func TestCrossTenantLookupIsNotFound(t *testing.T) {
	svc, _, _ := newTestService()

	created, err := svc.Create(testContext(), validCreateRequest())
	require.NoError(t, err)

	otherOrg := tenant.WithScope(context.Background(), tenant.Scope{
		UserID:         uuid.New(),
		OrganizationID: uuid.New(),
		Role:           tenant.RoleAdmin,
	})

	_, err = svc.Get(otherOrg, created.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.AsAppError(err).Code)
}

func TestOperationsEmitOutboxEvents(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := testContext()

	created, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = svc.Move(ctx, created.ID, &model.MoveAppointmentRequest{
		AppointmentDate: "2026-09-16",
		StartTime:       "10:00",
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, created.ID, "patient request")
	require.NoError(t, err)

	require.Len(t, repo.events, 3)
	assert.Equal(t, model.EventAppointmentCreated, repo.events[0].EventType)
	assert.Equal(t, model.EventAppointmentMoved, repo.events[1].EventType)
	assert.Equal(t, model.EventAppointmentCancelled, repo.events[2].EventType)
	for _, evt := range repo.events {
		assert.Equal(t, model.OutboxStatusPending, evt.Status)
	}
}

func TestOperationsRecordMetrics(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	createdBefore := testutil.ToFloat64(testMetrics.AppointmentsCreated)
	cancelledBefore := testutil.ToFloat64(testMetrics.AppointmentsCancelled)
	conflictsBefore := testutil.ToFloat64(testMetrics.SchedulingConflicts)

	practitioner := uuid.New()

	first := validCreateRequest()
	first.PractitionerID = practitioner
	created, err := svc.Create(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, createdBefore+1, testutil.ToFloat64(testMetrics.AppointmentsCreated))

	// A rejected booking counts as a conflict, not a creation.
	clash := validCreateRequest()
	clash.PractitionerID = practitioner
	clash.StartTime = first.StartTime
	_, err = svc.Create(ctx, clash)
	require.Error(t, err)
	assert.Equal(t, createdBefore+1, testutil.ToFloat64(testMetrics.AppointmentsCreated))
	assert.Equal(t, conflictsBefore+1, testutil.ToFloat64(testMetrics.SchedulingConflicts))

	_, err = svc.Cancel(ctx, created.ID, "patient request")
	require.NoError(t, err)
	assert.Equal(t, cancelledBefore+1, testutil.ToFloat64(testMetrics.AppointmentsCancelled))
}
