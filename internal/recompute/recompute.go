// Package recompute re-resolves the windows of many appointments at once, for
// example after the shop defaults changed. A run is all-or-nothing: it commits
// in one transaction or rolls back on error, cancellation or timeout.
package recompute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"workshop-scheduler/internal/apperr"
	"workshop-scheduler/internal/events"
	"workshop-scheduler/internal/metrics"
	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/parse"
	"workshop-scheduler/internal/schedule"
	"workshop-scheduler/internal/store"
)

const (
	StepLoad      = "load"
	StepResolve   = "resolve"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// Progress is reported after every appointment and at the end of a run.
type Progress struct {
	OperationID uuid.UUID `json:"operationId"`
	Step        string    `json:"step"`
	Done        int       `json:"done"`
	Total       int       `json:"total"`
}

// Result summarizes a run.
type Result struct {
	OperationID uuid.UUID     `json:"operationId"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Total       int           `json:"total"`
	Updated     []uint        `json:"updated"`
	Skipped     []uint        `json:"skipped,omitempty"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Service runs bulk recomputes.
type Service struct {
	store   store.Store
	pub     events.Publisher
	metrics *metrics.Metrics
	log     zerolog.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewService creates a Service. A non-positive timeout means five minutes.
func NewService(s store.Store, pub events.Publisher, m *metrics.Metrics, log zerolog.Logger, timeout time.Duration) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Service{store: s, pub: pub, metrics: m, log: log, timeout: timeout, now: time.Now}
}

// Run recomputes all planned and in-progress appointments dated from..to
// (inclusive). Appointments currently moved by an open break are skipped so
// the live shift survives. onProgress may be nil.
func (s *Service) Run(ctx context.Context, from, to string, onProgress func(Progress)) (Result, error) {
	const op = "recompute.Run"
	res := Result{OperationID: uuid.New(), From: from, To: to}
	for _, d := range []string{from, to} {
		if _, err := parse.Date(d); err != nil {
			return res, &apperr.Error{Kind: apperr.KindValidation, Op: op, Msg: "invalid date", Err: err}
		}
	}
	if to < from {
		return res, apperr.Validation(op, "range %s..%s is reversed", from, to)
	}

	started := s.now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report := func(step string, done, total int) {
		p := Progress{OperationID: res.OperationID, Step: step, Done: done, Total: total}
		if onProgress != nil {
			onProgress(p)
		}
		s.pub.Publish(events.New(events.KindOperationProgress, s.now(), p))
	}

	var updated, skipped []uint
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		report(StepLoad, 0, 0)
		appts, err := tx.AppointmentsInRange(ctx, from, to, model.StatusPlanned, model.StatusInProgress)
		if err != nil {
			return err
		}
		live, err := liveShifted(ctx, tx)
		if err != nil {
			return err
		}
		extended, err := runningExtensions(ctx, tx, appts)
		if err != nil {
			return err
		}
		lookup, err := tx.ProfileLookup(ctx)
		if err != nil {
			return err
		}
		res.Total = len(appts)

		for i := range appts {
			if err := ctx.Err(); err != nil {
				return err
			}
			a := &appts[i]
			if live[a.ID] {
				skipped = append(skipped, a.ID)
			} else {
				before := snapshot(*a)
				if _, err := schedule.ApplyToAppointment(a, lookup); err != nil {
					return fmt.Errorf("appointment %s: %w", a.Number, err)
				}
				schedule.Shift(a, extended[a.ID], true)
				if changed(before, snapshot(*a)) {
					if err := tx.SaveComputed(ctx, a); err != nil {
						return err
					}
					updated = append(updated, a.ID)
				}
			}
			report(StepResolve, i+1, len(appts))
		}
		return ctx.Err()
	})

	res.Duration = s.now().Sub(started)
	if err != nil {
		res.Status = StepFailed
		res.Error = err.Error()
		s.metrics.RecomputeFinished(StepFailed, res.Duration)
		report(StepFailed, 0, res.Total)
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.Error().Str("operation_id", res.OperationID.String()).Dur("timeout", s.timeout).
				Msg("Recompute timed out, changes rolled back")
		} else {
			s.log.Error().Err(err).Str("operation_id", res.OperationID.String()).Msg("Recompute failed, changes rolled back")
		}
		return res, err
	}

	res.Status = StepCompleted
	res.Updated = updated
	res.Skipped = skipped
	s.metrics.RecomputeFinished(StepCompleted, res.Duration)
	report(StepCompleted, res.Total, res.Total)
	s.pub.Publish(events.New(events.KindWindowRecomputed, s.now(), res))
	s.log.Info().Str("operation_id", res.OperationID.String()).Int("total", res.Total).
		Int("updated", len(updated)).Msg("Recompute finished")
	return res, nil
}

// liveShifted returns the appointments moved by currently open breaks.
func liveShifted(ctx context.Context, tx store.Store) (map[uint]bool, error) {
	open, err := tx.ListOpenBreaks(ctx)
	if err != nil {
		return nil, err
	}
	live := make(map[uint]bool)
	for _, b := range open {
		shifts, err := tx.ShiftsForSession(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		for _, sh := range shifts {
			live[sh.AppointmentID] = true
		}
	}
	return live, nil
}

// runningExtensions sums, per appointment, the minutes closed breaks added to
// its end while it was in progress. The window resolver does not know about
// them, so they are added back after resolving.
func runningExtensions(ctx context.Context, tx store.Store, appts []model.Appointment) (map[uint]int, error) {
	ids := make([]uint, 0, len(appts))
	for _, a := range appts {
		ids = append(ids, a.ID)
	}
	shifts, err := tx.ShiftsForAppointments(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int)
	for _, sh := range shifts {
		if sh.Running {
			out[sh.AppointmentID] += sh.Minutes
		}
	}
	return out, nil
}

type computed struct {
	start, end         model.Clock
	effective, breakMn int
}

// snapshot captures the schedule-derived fields of a and its items.
func snapshot(a model.Appointment) []computed {
	out := []computed{{a.StartTime, a.ComputedEnd, a.EffectiveMinutes, a.BreakMinutes}}
	for _, it := range a.Items {
		out = append(out, computed{it.StartTime, it.ComputedEnd, it.EffectiveMinutes, it.BreakMinutes})
	}
	return out
}

func changed(before, after []computed) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		if before[i] != after[i] {
			return true
		}
	}
	return false
}
