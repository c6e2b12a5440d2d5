// Package breaks tracks live breaks per person and keeps the person's schedule
// in step with them. All mutations for one person are serialized through a
// per-person lock, whether they come from a user or from the expiry sweeper.
package breaks

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"workshop-scheduler/internal/apperr"
	"workshop-scheduler/internal/events"
	"workshop-scheduler/internal/metrics"
	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/schedule"
	"workshop-scheduler/internal/store"
)

const (
	ReasonManual  = "manual"
	ReasonExpired = "expired"
)

// ActiveBreak is an open session with its person resolved.
type ActiveBreak struct {
	SessionID               uint      `json:"sessionId"`
	PersonID                uint      `json:"personId"`
	PersonName              string    `json:"personName"`
	Date                    string    `json:"date"`
	StartedAt               time.Time `json:"startedAt"`
	ExpectedEnd             time.Time `json:"expectedEnd"`
	ExpectedMinutes         int       `json:"expectedMinutes"`
	RemainingMinutes        int       `json:"remainingMinutes"`
	LinkedNextAppointmentID *uint     `json:"linkedNextAppointmentId,omitempty"`
}

// StartResult describes a started break.
type StartResult struct {
	Session model.BreakSession `json:"session"`
	// Shifted lists the appointments moved by the expected duration.
	Shifted []uint `json:"shifted"`
}

// EndResult describes a closed break. AlreadyClosed is set when the person had
// no open session; nothing else is filled in then.
type EndResult struct {
	AlreadyClosed   bool               `json:"alreadyClosed"`
	Session         model.BreakSession `json:"session"`
	Reason          string             `json:"reason,omitempty"`
	RealizedMinutes int                `json:"realizedMinutes"`
	DeltaMinutes    int                `json:"deltaMinutes"`
	// Corrected lists the appointments moved by the realized-minus-expected delta.
	Corrected []uint `json:"corrected,omitempty"`
	// Started is the linked appointment moved to in_progress, if any.
	Started *uint `json:"started,omitempty"`
}

// Tracker runs the per-person break state machine Idle -> OnBreak -> Idle.
type Tracker struct {
	store   store.Store
	pub     events.Publisher
	metrics *metrics.Metrics
	log     zerolog.Logger
	loc     *time.Location
	now     func() time.Time
	locks   personLocks
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

// WithLocation sets the shop's time zone, which decides the calendar day and
// the time of day of a break.
func WithLocation(loc *time.Location) Option { return func(t *Tracker) { t.loc = loc } }

// WithMetrics records break activity.
func WithMetrics(m *metrics.Metrics) Option { return func(t *Tracker) { t.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(t *Tracker) { t.log = l } }

// NewTracker creates a Tracker. A nil publisher drops events.
func NewTracker(s store.Store, pub events.Publisher, opts ...Option) *Tracker {
	if pub == nil {
		pub = events.Discard{}
	}
	t := &Tracker{
		store: s,
		pub:   pub,
		log:   zerolog.Nop(),
		loc:   time.Local,
		now:   time.Now,
		locks: personLocks{m: make(map[uint]*sync.Mutex)},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start opens a break for personID. The person's later planned appointments of
// the day move back by the person's configured break duration and a running
// appointment is extended by it. linkedNext names the appointment to start when
// the break expires; without it the first moved appointment is used.
func (t *Tracker) Start(ctx context.Context, personID uint, linkedNext *uint) (StartResult, error) {
	const op = "breaks.Start"
	unlock := t.locks.lock(personID)
	defer unlock()

	now := t.now().In(t.loc)
	day, at := model.DayOf(now), model.ClockOf(now)

	var res StartResult
	var person model.Person
	err := t.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		person, err = tx.GetPerson(ctx, personID)
		if err != nil {
			return err
		}
		open, err := tx.OpenBreak(ctx, personID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperr.Conflict(op, "person %d is already on a break since %s", personID, open.StartedAt.In(t.loc).Format("15:04"))
		}
		settings, err := tx.Settings(ctx)
		if err != nil {
			return err
		}
		expected := schedule.BreakMinutesFor(person, settings)

		if linkedNext != nil {
			if _, err := tx.GetAppointment(ctx, *linkedNext); err != nil {
				return err
			}
		}

		appts, err := tx.AppointmentsForPersonOnDate(ctx, personID, day)
		if err != nil {
			return err
		}

		session := model.BreakSession{
			PersonID:                personID,
			Date:                    day,
			StartedAt:               now,
			ExpectedMinutes:         expected,
			ShiftedMinutes:          expected,
			LinkedNextAppointmentID: linkedNext,
		}
		if err := tx.CreateBreak(ctx, &session); err != nil {
			return err
		}

		for i := range appts {
			a := &appts[i]
			var running bool
			switch {
			case a.Status == model.StatusInProgress:
				running = true
			case a.Status == model.StatusPlanned && a.StartTime >= at:
			default:
				continue
			}
			schedule.Shift(a, expected, running)
			if err := tx.SaveComputed(ctx, a); err != nil {
				return err
			}
			if err := tx.RecordShift(ctx, &model.BreakShift{
				SessionID:     session.ID,
				AppointmentID: a.ID,
				Running:       running,
				Minutes:       expected,
			}); err != nil {
				return err
			}
			res.Shifted = append(res.Shifted, a.ID)
			if !running && session.LinkedNextAppointmentID == nil {
				id := a.ID
				session.LinkedNextAppointmentID = &id
			}
		}
		if linkedNext == nil && session.LinkedNextAppointmentID != nil {
			if err := tx.SaveBreak(ctx, &session); err != nil {
				return err
			}
		}
		res.Session = session
		return nil
	})
	if err != nil {
		return StartResult{}, err
	}

	t.metrics.BreakStarted()
	t.metrics.AppointmentsShifted("start", len(res.Shifted))
	t.log.Info().Uint("person_id", personID).Int("expected_minutes", res.Session.ExpectedMinutes).
		Int("shifted", len(res.Shifted)).Msg("Break started")
	t.pub.Publish(events.New(events.KindBreakStarted, now, t.active(res.Session, person, now)).ForPerson(personID))
	return res, nil
}

// End closes the person's open break now and corrects the schedule from the
// expected to the realized duration. Ending when no break is open is not an
// error; the result reports AlreadyClosed.
func (t *Tracker) End(ctx context.Context, personID uint) (EndResult, error) {
	unlock := t.locks.lock(personID)
	defer unlock()
	return t.close(ctx, personID, ReasonManual)
}

// Active returns all open breaks with the remaining time.
func (t *Tracker) Active(ctx context.Context) ([]ActiveBreak, error) {
	sessions, err := t.store.ListOpenBreaks(ctx)
	if err != nil {
		return nil, err
	}
	now := t.now()
	out := make([]ActiveBreak, 0, len(sessions))
	for _, s := range sessions {
		person, err := t.store.GetPerson(ctx, s.PersonID)
		if err != nil {
			return nil, err
		}
		out = append(out, t.active(s, person, now))
	}
	return out, nil
}

// ExpireDue closes every open break whose expected end has passed. Like a
// manual end, the session closes at the current time, so a late sweep is
// corrected for. It returns the number of sessions closed.
func (t *Tracker) ExpireDue(ctx context.Context) (int, error) {
	sessions, err := t.store.ListOpenBreaks(ctx)
	if err != nil {
		return 0, err
	}
	now := t.now()
	closed := 0
	for _, s := range sessions {
		if now.Before(s.ExpectedEnd()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return closed, err
		}
		res, err := t.expire(ctx, s.PersonID)
		if err != nil {
			t.log.Error().Err(err).Uint("person_id", s.PersonID).Msg("Failed to expire break")
			continue
		}
		if !res.AlreadyClosed {
			closed++
		}
	}
	if open, err := t.store.ListOpenBreaks(ctx); err == nil {
		t.metrics.SetOpenBreaks(len(open))
	}
	return closed, nil
}

func (t *Tracker) expire(ctx context.Context, personID uint) (EndResult, error) {
	unlock := t.locks.lock(personID)
	defer unlock()
	return t.close(ctx, personID, ReasonExpired)
}

// close must be called with the person's lock held.
func (t *Tracker) close(ctx context.Context, personID uint, reason string) (EndResult, error) {
	now := t.now()
	res := EndResult{Reason: reason}
	err := t.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetPerson(ctx, personID); err != nil {
			return err
		}
		open, err := tx.OpenBreak(ctx, personID)
		if err != nil {
			return err
		}
		if open == nil {
			res.AlreadyClosed = true
			return nil
		}

		endAt := now
		// The session may have been replaced since the sweep listed it.
		if reason == ReasonExpired && now.Before(open.ExpectedEnd()) {
			res.AlreadyClosed = true
			return nil
		}

		res.RealizedMinutes = realizedMinutes(open.StartedAt, endAt)
		res.DeltaMinutes = res.RealizedMinutes - open.ShiftedMinutes

		// Claim the session first; a concurrent close from another process
		// finds it completed and leaves the schedule to the winner.
		claimed, err := tx.CloseBreak(ctx, open.ID, endAt, res.RealizedMinutes)
		if err != nil {
			return err
		}
		if !claimed {
			res = EndResult{Reason: reason, AlreadyClosed: true}
			return nil
		}
		open.EndedAt = &endAt
		open.Completed = true
		open.ShiftedMinutes = res.RealizedMinutes

		if res.DeltaMinutes != 0 {
			corrected, err := correct(ctx, tx, open.ID, res.DeltaMinutes)
			if err != nil {
				return err
			}
			res.Corrected = corrected
		}

		if open.LinkedNextAppointmentID != nil {
			next, err := tx.GetAppointment(ctx, *open.LinkedNextAppointmentID)
			switch {
			case apperr.IsKind(err, apperr.KindNotFound):
			case err != nil:
				return err
			case next.Status == model.StatusPlanned:
				if err := tx.UpdateStatus(ctx, next.ID, model.StatusInProgress, endAt); err != nil {
					return err
				}
				res.Started = &next.ID
			}
		}
		res.Session = *open
		return nil
	})
	if err != nil || res.AlreadyClosed {
		return res, err
	}

	t.metrics.BreakEnded(reason)
	t.metrics.AppointmentsShifted("correction", len(res.Corrected))
	t.log.Info().Uint("person_id", personID).Str("reason", reason).
		Int("realized_minutes", res.RealizedMinutes).Int("delta_minutes", res.DeltaMinutes).Msg("Break ended")
	ev := events.New(events.KindBreakEnded, now, res).ForPerson(personID)
	if res.Started != nil {
		ev = ev.ForAppointment(*res.Started)
	}
	t.pub.Publish(ev)
	return res, nil
}

// correct moves the appointments the session shifted by delta. Appointments
// that are no longer open (done, cancelled) or were deleted keep their times.
func correct(ctx context.Context, tx store.Store, sessionID uint, delta int) ([]uint, error) {
	shifts, err := tx.ShiftsForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var corrected []uint
	for i := range shifts {
		sh := &shifts[i]
		a, err := tx.GetAppointment(ctx, sh.AppointmentID)
		if apperr.IsKind(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !a.Status.Open() {
			continue
		}
		schedule.Shift(&a, delta, sh.Running)
		if err := tx.SaveComputed(ctx, &a); err != nil {
			return nil, err
		}
		sh.Minutes += delta
		if err := tx.RecordShift(ctx, sh); err != nil {
			return nil, err
		}
		corrected = append(corrected, a.ID)
	}
	return corrected, nil
}

func (t *Tracker) active(s model.BreakSession, p model.Person, now time.Time) ActiveBreak {
	remaining := s.ExpectedEnd().Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return ActiveBreak{
		SessionID:               s.ID,
		PersonID:                s.PersonID,
		PersonName:              p.Name,
		Date:                    s.Date,
		StartedAt:               s.StartedAt.In(t.loc),
		ExpectedEnd:             s.ExpectedEnd().In(t.loc),
		ExpectedMinutes:         s.ExpectedMinutes,
		RemainingMinutes:        int(math.Ceil(remaining.Minutes())),
		LinkedNextAppointmentID: s.LinkedNextAppointmentID,
	}
}

func realizedMinutes(start, end time.Time) int {
	m := int(math.Round(end.Sub(start).Minutes()))
	if m < 0 {
		return 0
	}
	return m
}

// personLocks hands out one mutex per person.
type personLocks struct {
	mu sync.Mutex
	m  map[uint]*sync.Mutex
}

func (l *personLocks) lock(id uint) func() {
	l.mu.Lock()
	mu, ok := l.m[id]
	if !ok {
		mu = &sync.Mutex{}
		l.m[id] = mu
	}
	l.mu.Unlock()
	mu.Lock()
	return mu.Unlock
}
