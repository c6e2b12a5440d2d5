package breaks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop-scheduler/internal/apperr"
	"workshop-scheduler/internal/events"
	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/store"
	"workshop-scheduler/internal/storetest"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Kind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

const day = "2026-03-02"

// fixture is one technician with a day of appointments:
//
//	early   08:00-09:00 planned (before the break, untouched)
//	running 11:00-12:00 in progress
//	later   13:00-14:00 planned
//	foreign 13:00-14:00 planned, another person
type fixture struct {
	store   store.Store
	clock   *fakeClock
	rec     *recorder
	tracker *Tracker
	tech    model.Person
	early   model.Appointment
	running model.Appointment
	later   model.Appointment
	foreign model.Appointment
}

func clockAt(t *testing.T, s string) model.Clock {
	t.Helper()
	c, err := model.ParseClock(s)
	require.NoError(t, err)
	return c
}

func newFixture(t *testing.T, breakMinutes int) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewGormStore(storetest.Open(t))
	_, err := s.EnsureSettings(ctx, model.ShopSettings{DefaultBreakMinutes: 30, LoanerVehicleCount: 2})
	require.NoError(t, err)

	f := &fixture{
		store: s,
		clock: &fakeClock{t: time.Date(2026, 3, 2, 11, 45, 0, 0, time.UTC)},
		rec:   &recorder{},
	}
	f.tracker = NewTracker(s, f.rec, WithClock(f.clock.Now), WithLocation(time.UTC), WithLogger(zerolog.Nop()))

	f.tech = model.Person{Name: "Max", Role: model.RoleTechnician, Active: true, WeeklyHours: 40,
		WorkDaysPerWeek: 5, BreakStart: clockAt(t, "12:00"), BreakDurationMinutes: breakMinutes}
	require.NoError(t, s.CreatePerson(ctx, &f.tech))
	other := model.Person{Name: "Eva", Role: model.RoleTechnician, Active: true, WeeklyHours: 40,
		WorkDaysPerWeek: 5, BreakStart: clockAt(t, "12:00")}
	require.NoError(t, s.CreatePerson(ctx, &other))

	create := func(start string, person uint) model.Appointment {
		a := model.Appointment{Date: day, ArrivalTime: clockAt(t, start), NominalMinutes: 60, AssignedPersonID: &person}
		require.NoError(t, s.CreateAppointment(ctx, &a))
		return a
	}
	f.early = create("08:00", f.tech.ID)
	f.running = create("11:00", f.tech.ID)
	f.later = create("13:00", f.tech.ID)
	f.foreign = create("13:00", other.ID)
	require.NoError(t, s.UpdateStatus(ctx, f.running.ID, model.StatusInProgress, f.clock.Now()))
	return f
}

func (f *fixture) reload(t *testing.T, a model.Appointment) model.Appointment {
	t.Helper()
	got, err := f.store.GetAppointment(context.Background(), a.ID)
	require.NoError(t, err)
	return got
}

func TestStartShiftsLaterAppointments(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	res, err := f.tracker.Start(ctx, f.tech.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Session.ExpectedMinutes, "shop default applies without a personal value")
	assert.ElementsMatch(t, []uint{f.running.ID, f.later.ID}, res.Shifted)
	require.NotNil(t, res.Session.LinkedNextAppointmentID)
	assert.Equal(t, f.later.ID, *res.Session.LinkedNextAppointmentID)

	assert.Equal(t, "08:00", f.reload(t, f.early).StartTime.String())
	running := f.reload(t, f.running)
	assert.Equal(t, "11:00", running.StartTime.String())
	assert.Equal(t, "12:30", running.ComputedEnd.String())
	later := f.reload(t, f.later)
	assert.Equal(t, "13:30", later.StartTime.String())
	assert.Equal(t, "14:30", later.ComputedEnd.String())
	assert.Equal(t, "13:00", f.reload(t, f.foreign).StartTime.String())

	assert.Equal(t, []events.Kind{events.KindBreakStarted}, f.rec.kinds())
}

func TestStartUsesPersonalBreakDuration(t *testing.T) {
	f := newFixture(t, 45)

	res, err := f.tracker.Start(context.Background(), f.tech.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 45, res.Session.ExpectedMinutes)
	assert.Equal(t, "13:45", f.reload(t, f.later).StartTime.String())
}

func TestSecondStartConflicts(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, f.tech.ID, nil)
	require.NoError(t, err)

	_, err = f.tracker.Start(ctx, f.tech.ID, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Equal(t, "13:30", f.reload(t, f.later).StartTime.String(), "no second shift")
}

func TestConcurrentStartsAdmitOne(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.tracker.Start(ctx, f.tech.ID, nil)
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsKind(err, apperr.KindConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, conflicts)
}

func TestStartUnknownPerson(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.tracker.Start(context.Background(), 999, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestEndCorrectsToRealizedDuration(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, f.tech.ID, nil)
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	res, err := f.tracker.End(ctx, f.tech.ID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyClosed)
	assert.Equal(t, 20, res.RealizedMinutes)
	assert.Equal(t, -10, res.DeltaMinutes)
	assert.ElementsMatch(t, []uint{f.running.ID, f.later.ID}, res.Corrected)
	require.NotNil(t, res.Started)
	assert.Equal(t, f.later.ID, *res.Started)

	later := f.reload(t, f.later)
	assert.Equal(t, "13:20", later.StartTime.String())
	assert.Equal(t, model.StatusInProgress, later.Status)
	assert.Equal(t, "12:20", f.reload(t, f.running).ComputedEnd.String())

	open, err := f.store.OpenBreak(ctx, f.tech.ID)
	require.NoError(t, err)
	assert.Nil(t, open)

	assert.Equal(t, []events.Kind{events.KindBreakStarted, events.KindBreakEnded}, f.rec.kinds())
	ended := f.rec.events[1]
	require.NotNil(t, ended.AppointmentID)
	assert.Equal(t, f.later.ID, *ended.AppointmentID, "the ended event names the started appointment")
}

func TestEndWithoutOpenBreakIsNoop(t *testing.T) {
	f := newFixture(t, 0)

	res, err := f.tracker.End(context.Background(), f.tech.ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyClosed)
	assert.Empty(t, f.rec.kinds())
}

func TestEndSkipsFinishedAppointments(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, f.tech.ID, nil)
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateStatus(ctx, f.later.ID, model.StatusDone, f.clock.Now()))

	f.clock.Advance(20 * time.Minute)
	res, err := f.tracker.End(ctx, f.tech.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{f.running.ID}, res.Corrected)
	assert.Nil(t, res.Started)

	later := f.reload(t, f.later)
	assert.Equal(t, "13:30", later.StartTime.String(), "done appointment keeps its shifted time")
}

func TestEndSkipsDeletedAppointments(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, f.tech.ID, nil)
	require.NoError(t, err)
	require.NoError(t, f.store.SoftDeleteAppointment(ctx, f.later.ID))

	f.clock.Advance(40 * time.Minute)
	res, err := f.tracker.End(ctx, f.tech.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, res.DeltaMinutes)
	assert.Equal(t, []uint{f.running.ID}, res.Corrected)
	assert.Nil(t, res.Started)
}

func TestExpireDueClosesAtSweepTime(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	started, err := f.tracker.Start(ctx, f.tech.ID, nil)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	n, err := f.tracker.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "not due yet")

	f.clock.Advance(21 * time.Minute)
	sweeper := NewSweeper(f.tracker, time.Minute, zerolog.Nop())
	assert.Equal(t, 1, sweeper.SweepOnce(ctx))

	later := f.reload(t, f.later)
	assert.Equal(t, model.StatusInProgress, later.Status)
	assert.Equal(t, "13:31", later.StartTime.String(), "the sweep ran a minute after the expected end")

	var session model.BreakSession
	require.NoError(t, f.store.DB().First(&session, started.Session.ID).Error)
	require.NotNil(t, session.EndedAt)
	assert.WithinDuration(t, f.clock.Now(), *session.EndedAt, time.Second)
	assert.Equal(t, 31, session.ShiftedMinutes)

	active, err := f.tracker.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestActiveReportsRemaining(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, f.tech.ID, &f.foreign.ID)
	require.NoError(t, err)
	f.clock.Advance(12 * time.Minute)

	active, err := f.tracker.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Max", active[0].PersonName)
	assert.Equal(t, 18, active[0].RemainingMinutes)
	require.NotNil(t, active[0].LinkedNextAppointmentID)
	assert.Equal(t, f.foreign.ID, *active[0].LinkedNextAppointmentID)

	f.clock.Advance(time.Hour)
	active, err = f.tracker.Active(ctx)
	require.NoError(t, err)
	assert.Zero(t, active[0].RemainingMinutes)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewSweeper(f.tracker, time.Hour, zerolog.Nop()).Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

// staleStore answers OpenBreak with a session read before another process
// closed it.
type staleStore struct {
	store.Store
	open model.BreakSession
}

func (s staleStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return s.Store.WithTx(ctx, func(tx store.Store) error {
		return fn(staleStore{Store: tx, open: s.open})
	})
}

func (s staleStore) OpenBreak(context.Context, uint) (*model.BreakSession, error) {
	b := s.open
	return &b, nil
}

func TestCloseFromSecondProcessLeavesScheduleAlone(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	started, err := f.tracker.Start(ctx, f.tech.ID, nil)
	require.NoError(t, err)

	// A sweeper in another process has its own locks and read the session
	// while it was still open.
	f.clock.Advance(35 * time.Minute)
	sweepProcess := NewTracker(staleStore{Store: f.store, open: started.Session}, nil,
		WithClock(f.clock.Now), WithLocation(time.UTC))

	manual, err := f.tracker.End(ctx, f.tech.ID)
	require.NoError(t, err)
	require.False(t, manual.AlreadyClosed)
	assert.Equal(t, 5, manual.DeltaMinutes)

	expired, err := sweepProcess.expire(ctx, f.tech.ID)
	require.NoError(t, err)
	assert.True(t, expired.AlreadyClosed)
	assert.Empty(t, expired.Corrected)

	assert.Equal(t, "13:35", f.reload(t, f.later).StartTime.String(), "only the manual correction applies")

	shifts, err := f.store.ShiftsForSession(ctx, started.Session.ID)
	require.NoError(t, err)
	for _, sh := range shifts {
		assert.Equal(t, 35, sh.Minutes)
	}
	var session model.BreakSession
	require.NoError(t, f.store.DB().First(&session, started.Session.ID).Error)
	require.NotNil(t, session.EndedAt)
	assert.Equal(t, 35, session.ShiftedMinutes)
	assert.True(t, session.EndedAt.Equal(f.clock.Now()), "end time of the manual close is kept")
}
