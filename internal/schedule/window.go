package schedule

import (
	"time"

	"workshop-scheduler/internal/apperr"
	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/parse"
)

// Window is a resolved work window.
type Window struct {
	Start             model.Clock `json:"startTime"`
	End               model.Clock `json:"endTime"`
	EffectiveMinutes  int         `json:"effectiveMinutes"`
	BreakInserted     bool        `json:"breakInserted"`
	BreakMinutesAdded int         `json:"breakMinutesAdded"`
	TotalMinutes      int         `json:"totalMinutes"`
	// FactorFallback is set when the person's factor was unusable and the
	// nominal duration was used instead. FactorErr carries the reason.
	FactorFallback bool  `json:"factorFallback,omitempty"`
	FactorErr      error `json:"-"`
}

// ResolveWindow runs the duration calculator and the break inserter for one
// piece of work and returns its window. The end is start + effective + break,
// without wrapping at midnight.
func ResolveWindow(start model.Clock, nominal int, p Profile) (Window, error) {
	if nominal <= 0 {
		return Window{}, apperr.Validation("schedule.ResolveWindow", "nominal duration must be positive, got %d", nominal)
	}
	if start < 0 || int(start) >= parse.MinutesPerDay {
		return Window{}, apperr.Validation("schedule.ResolveWindow", "start time %d is outside the day", int(start))
	}

	w := Window{Start: start}
	d, err := EffectiveDuration(nominal, p)
	if err != nil {
		w.FactorFallback = true
		w.FactorErr = err
	}
	w.EffectiveMinutes = d.EffectiveMinutes

	br := InsertBreak(start, d.EffectiveMinutes, p)
	w.BreakInserted = br.Inserted
	w.BreakMinutesAdded = br.AddedMinutes
	w.TotalMinutes = w.EffectiveMinutes + w.BreakMinutesAdded
	w.End = start.Add(w.TotalMinutes)
	return w, nil
}

// ProfileLookup returns the profile for a possibly nil person id.
type ProfileLookup func(personID *uint) (Profile, error)

// ApplyToAppointment resolves every work item of a and stores the computed
// values on the items and the appointment. Without items, the appointment's own
// nominal duration and assignee are used. The returned windows are the ones
// whose factor fell back to nominal.
func ApplyToAppointment(a *model.Appointment, lookup ProfileLookup) ([]Window, error) {
	var fallbacks []Window

	if len(a.Items) == 0 {
		prof, err := lookup(a.AssignedPersonID)
		if err != nil {
			return nil, err
		}
		w, err := ResolveWindow(a.StartTime, a.NominalMinutes, prof)
		if err != nil {
			return nil, err
		}
		if w.FactorFallback {
			fallbacks = append(fallbacks, w)
		}
		a.ComputedEnd = w.End
		a.EffectiveMinutes = w.EffectiveMinutes
		a.BreakMinutes = w.BreakMinutesAdded
		return fallbacks, nil
	}

	effective, breakMinutes := 0, 0
	for i := range a.Items {
		it := &a.Items[i]
		prof, err := lookup(it.PersonID)
		if err != nil {
			return nil, err
		}
		w, err := ResolveWindow(it.StartTime, it.NominalMinutes, prof)
		if err != nil {
			return nil, err
		}
		if w.FactorFallback {
			fallbacks = append(fallbacks, w)
		}
		it.Role = prof.Role
		it.ComputedEnd = w.End
		it.EffectiveMinutes = w.EffectiveMinutes
		it.BreakMinutes = w.BreakMinutesAdded
		effective += w.EffectiveMinutes
		breakMinutes += w.BreakMinutesAdded
	}
	span := ItemSpan(a.Items)
	a.StartTime = span.Start
	a.ComputedEnd = span.End
	a.EffectiveMinutes = effective
	a.BreakMinutes = breakMinutes
	return fallbacks, nil
}

// Span is a half-open interval [Start, End) of a day.
type Span struct {
	Start model.Clock `json:"start"`
	End   model.Clock `json:"end"`
}

// Overlaps reports whether two half-open spans share any minute.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// ItemSpan returns [earliest item start, latest item end].
func ItemSpan(items []model.WorkItem) Span {
	if len(items) == 0 {
		return Span{}
	}
	s := Span{Start: items[0].StartTime, End: items[0].ComputedEnd}
	for _, it := range items[1:] {
		if it.StartTime < s.Start {
			s.Start = it.StartTime
		}
		if it.ComputedEnd > s.End {
			s.End = it.ComputedEnd
		}
	}
	return s
}

// DisplayWindow is what a display surface shows for an appointment.
type DisplayWindow struct {
	Span
	// Realized is true when End comes from the recorded completion time.
	Realized bool `json:"realized"`
}

// AppointmentWindow returns the display window of a. For a done appointment with
// a recorded completion timestamp the realized time replaces the estimate.
func AppointmentWindow(a model.Appointment, loc *time.Location) DisplayWindow {
	var dw DisplayWindow
	if len(a.Items) > 0 {
		dw.Span = ItemSpan(a.Items)
	} else {
		dw.Span = Span{Start: a.StartTime, End: a.ComputedEnd}
	}
	if a.Status == model.StatusDone && a.CompletedAt != nil {
		if loc == nil {
			loc = time.UTC
		}
		dw.End = model.ClockOf(a.CompletedAt.In(loc))
		dw.Realized = true
	}
	return dw
}
