package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop-scheduler/internal/apperr"
	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/schedule"
	"workshop-scheduler/internal/store"
	"workshop-scheduler/internal/storetest"
)

func newChecker(t *testing.T, loaners int) (*Checker, store.Store) {
	t.Helper()
	s := store.NewGormStore(storetest.Open(t))
	_, err := s.EnsureSettings(context.Background(), model.ShopSettings{DefaultBreakMinutes: 30, LoanerVehicleCount: loaners})
	require.NoError(t, err)
	return NewChecker(s), s
}

func addLoaner(t *testing.T, s store.Store, day string) model.Appointment {
	t.Helper()
	a := model.Appointment{Date: day, ArrivalTime: 480, NominalMinutes: 60, LoanerRequested: true}
	require.NoError(t, s.CreateAppointment(context.Background(), &a))
	return a
}

func TestLoanersExcludeSoftDeleted(t *testing.T) {
	ctx := context.Background()
	c, s := newChecker(t, 3)

	addLoaner(t, s, "2026-03-02")
	addLoaner(t, s, "2026-03-02")
	deleted := addLoaner(t, s, "2026-03-02")
	require.NoError(t, s.SoftDeleteAppointment(ctx, deleted.ID))

	res, err := c.Loaners(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Booked)
	assert.Equal(t, 1, res.Available)
	assert.False(t, res.Overbooked)
	assert.NotContains(t, res.AppointmentIDs, deleted.ID)

	require.NoError(t, s.RestoreAppointment(ctx, deleted.ID))
	res, err = c.Loaners(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Available)
}

func TestLoanersIgnoreCancelledAndClampOverbooking(t *testing.T) {
	ctx := context.Background()
	c, s := newChecker(t, 1)

	cancelled := addLoaner(t, s, "2026-03-02")
	require.NoError(t, s.UpdateStatus(ctx, cancelled.ID, model.StatusCancelled, time.Now()))
	res, err := c.Loaners(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Available)

	addLoaner(t, s, "2026-03-02")
	addLoaner(t, s, "2026-03-02")
	res, err = c.Loaners(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Booked)
	assert.Equal(t, 0, res.Available)
	assert.True(t, res.Overbooked)
}

func TestLoanersRejectBadDate(t *testing.T) {
	c, _ := newChecker(t, 2)
	_, err := c.Loaners(context.Background(), "tomorrow")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestTechnicianConflict(t *testing.T) {
	ctx := context.Background()
	c, s := newChecker(t, 2)

	tech := model.Person{Name: "Max", Role: model.RoleTechnician, Active: true, WeeklyHours: 40, WorkDaysPerWeek: 5, BreakStart: 720}
	require.NoError(t, s.CreatePerson(ctx, &tech))

	booked := model.Appointment{Date: "2026-03-02", ArrivalTime: 540, NominalMinutes: 60, AssignedPersonID: &tech.ID}
	require.NoError(t, s.CreateAppointment(ctx, &booked))
	cancelled := model.Appointment{Date: "2026-03-02", ArrivalTime: 840, NominalMinutes: 60, AssignedPersonID: &tech.ID}
	require.NoError(t, s.CreateAppointment(ctx, &cancelled))
	require.NoError(t, s.UpdateStatus(ctx, cancelled.ID, model.StatusCancelled, time.Now()))

	res, err := c.TechnicianConflict(ctx, tech.ID, "2026-03-02", schedule.Span{Start: 570, End: 630}, nil)
	require.NoError(t, err)
	assert.True(t, res.Conflict)
	assert.Equal(t, []uint{booked.ID}, res.AppointmentIDs)

	res, err = c.TechnicianConflict(ctx, tech.ID, "2026-03-02", schedule.Span{Start: 600, End: 660}, nil)
	require.NoError(t, err)
	assert.False(t, res.Conflict, "adjacent windows do not overlap")

	res, err = c.TechnicianConflict(ctx, tech.ID, "2026-03-02", schedule.Span{Start: 570, End: 630}, &booked.ID)
	require.NoError(t, err)
	assert.False(t, res.Conflict, "the edited appointment is excluded")

	res, err = c.TechnicianConflict(ctx, tech.ID, "2026-03-02", schedule.Span{Start: 850, End: 870}, nil)
	require.NoError(t, err)
	assert.False(t, res.Conflict, "cancelled appointments do not block")

	require.NoError(t, s.SoftDeleteAppointment(ctx, booked.ID))
	res, err = c.TechnicianConflict(ctx, tech.ID, "2026-03-02", schedule.Span{Start: 570, End: 630}, nil)
	require.NoError(t, err)
	assert.False(t, res.Conflict, "deleted appointments do not block")

	_, err = c.TechnicianConflict(ctx, 999, "2026-03-02", schedule.Span{Start: 570, End: 630}, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = c.TechnicianConflict(ctx, tech.ID, "2026-03-02", schedule.Span{Start: 630, End: 630}, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestTechnicianConflictFlagsWeekendHours(t *testing.T) {
	ctx := context.Background()
	c, s := newChecker(t, 2)

	sam := model.Person{Name: "Sam", Role: model.RoleTechnician, Active: true, WeeklyHours: 40, WorkDaysPerWeek: 5,
		BreakStart: 720, SaturdayEnabled: true, SaturdayStart: 480, SaturdayEnd: 780}
	require.NoError(t, s.CreatePerson(ctx, &sam))
	lea := model.Person{Name: "Lea", Role: model.RoleTechnician, Active: true, WeeklyHours: 40, WorkDaysPerWeek: 5, BreakStart: 720}
	require.NoError(t, s.CreatePerson(ctx, &lea))

	res, err := c.TechnicianConflict(ctx, sam.ID, "2026-03-07", schedule.Span{Start: 540, End: 600}, nil)
	require.NoError(t, err)
	assert.False(t, res.OutsideHours)

	res, err = c.TechnicianConflict(ctx, sam.ID, "2026-03-07", schedule.Span{Start: 720, End: 840}, nil)
	require.NoError(t, err)
	assert.True(t, res.OutsideHours, "ends after the Saturday hours")

	res, err = c.TechnicianConflict(ctx, lea.ID, "2026-03-07", schedule.Span{Start: 540, End: 600}, nil)
	require.NoError(t, err)
	assert.True(t, res.OutsideHours, "Lea does not work Saturdays")

	res, err = c.TechnicianConflict(ctx, sam.ID, "2026-03-08", schedule.Span{Start: 540, End: 600}, nil)
	require.NoError(t, err)
	assert.True(t, res.OutsideHours)

	res, err = c.TechnicianConflict(ctx, lea.ID, "2026-03-02", schedule.Span{Start: 540, End: 600}, nil)
	require.NoError(t, err)
	assert.False(t, res.OutsideHours)
}

func TestNextBusinessDay(t *testing.T) {
	ctx := context.Background()
	c, s := newChecker(t, 2)

	saturday := model.Person{Name: "Sam", Role: model.RoleTechnician, Active: true, WeeklyHours: 40, WorkDaysPerWeek: 5, BreakStart: 720, SaturdayEnabled: true}
	weekday := model.Person{Name: "Wen", Role: model.RoleTechnician, Active: true, WeeklyHours: 40, WorkDaysPerWeek: 5, BreakStart: 720}
	require.NoError(t, s.CreatePerson(ctx, &saturday))
	require.NoError(t, s.CreatePerson(ctx, &weekday))

	friday := "2026-03-06"
	got, err := c.NextBusinessDay(ctx, friday, &saturday.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-07", got)

	got, err = c.NextBusinessDay(ctx, friday, &weekday.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", got)

	got, err = c.NextBusinessDay(ctx, friday, nil)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", got)

	missing := uint(999)
	_, err = c.NextBusinessDay(ctx, friday, &missing)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestLoanersSubtractBlockedVehicles(t *testing.T) {
	ctx := context.Background()
	c, s := newChecker(t, 3)

	until := "2026-03-03"
	repair := model.LoanerBlock{Note: "windscreen", Until: &until}
	require.NoError(t, s.CreateLoanerBlock(ctx, &repair))
	require.NoError(t, s.CreateLoanerBlock(ctx, &model.LoanerBlock{Note: "sold"}))
	addLoaner(t, s, "2026-03-03")

	res, err := c.Loaners(ctx, "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Blocked)
	assert.Equal(t, 0, res.Available)
	assert.False(t, res.Overbooked)

	res, err = c.Loaners(ctx, "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Blocked, "the repair block has run out")
	assert.Equal(t, 2, res.Available)

	addLoaner(t, s, "2026-03-03")
	res, err = c.Loaners(ctx, "2026-03-03")
	require.NoError(t, err)
	assert.True(t, res.Overbooked)

	require.NoError(t, s.DeleteLoanerBlock(ctx, repair.ID))
	res, err = c.Loaners(ctx, "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Blocked)
	assert.Equal(t, 0, res.Available)
	assert.False(t, res.Overbooked)

	assert.True(t, apperr.IsKind(s.DeleteLoanerBlock(ctx, repair.ID), apperr.KindNotFound))
	bad := "someday"
	assert.True(t, apperr.IsKind(s.CreateLoanerBlock(ctx, &model.LoanerBlock{Until: &bad}), apperr.KindValidation))
}
