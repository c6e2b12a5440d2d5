// Package availability answers capacity questions: free loaner vehicles,
// double-booked technicians and the next valid work day.
package availability

import (
	"context"
	"time"

	"workshop-scheduler/internal/apperr"
	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/parse"
	"workshop-scheduler/internal/schedule"
	"workshop-scheduler/internal/store"
)

// Loaners is the loaner vehicle situation of one day.
type Loaners struct {
	Date  string `json:"date"`
	Total int    `json:"total"`
	// Blocked vehicles are out of the pool for the day.
	Blocked   int `json:"blocked"`
	Booked    int `json:"booked"`
	Available int `json:"available"`
	// Overbooked is set when more vehicles are booked than are usable; Available
	// is clamped to zero then.
	Overbooked     bool   `json:"overbooked"`
	AppointmentIDs []uint `json:"appointmentIds"`
}

// Conflict is the result of a technician double-booking check.
type Conflict struct {
	Conflict       bool   `json:"conflict"`
	AppointmentIDs []uint `json:"appointmentIds,omitempty"`
	// OutsideHours is set for weekend windows the person does not work:
	// Sundays, and Saturdays outside the person's Saturday hours.
	OutsideHours bool `json:"outsideHours,omitempty"`
}

// Checker answers availability questions from the store.
type Checker struct {
	store store.Store
}

// NewChecker creates a Checker.
func NewChecker(s store.Store) *Checker {
	return &Checker{store: s}
}

// Loaners counts the loaner vehicles booked on day against the pool size minus
// the blocked vehicles.
func (c *Checker) Loaners(ctx context.Context, day string) (Loaners, error) {
	if _, err := parse.Date(day); err != nil {
		return Loaners{}, &apperr.Error{Kind: apperr.KindValidation, Op: "availability.Loaners", Msg: "invalid date", Err: err}
	}
	settings, err := c.store.Settings(ctx)
	if err != nil {
		return Loaners{}, err
	}
	bookings, err := c.store.LoanerBookings(ctx, day)
	if err != nil {
		return Loaners{}, err
	}
	blocks, err := c.store.LoanerBlocksOn(ctx, day)
	if err != nil {
		return Loaners{}, err
	}

	res := Loaners{
		Date:           day,
		Total:          settings.LoanerVehicleCount,
		Booked:         len(bookings),
		AppointmentIDs: make([]uint, 0, len(bookings)),
	}
	for _, a := range bookings {
		res.AppointmentIDs = append(res.AppointmentIDs, a.ID)
	}
	for _, b := range blocks {
		if b.BlocksOn(day) {
			res.Blocked++
		}
	}
	if res.Blocked > res.Total {
		res.Blocked = res.Total
	}
	res.Available = res.Total - res.Blocked - res.Booked
	if res.Available < 0 {
		res.Available = 0
		res.Overbooked = true
	}
	return res, nil
}

// TechnicianConflict reports whether any other non-cancelled appointment of the
// person on day overlaps window. exclude skips the appointment being edited.
func (c *Checker) TechnicianConflict(ctx context.Context, personID uint, day string, window schedule.Span, exclude *uint) (Conflict, error) {
	const op = "availability.TechnicianConflict"
	d, err := parse.Date(day)
	if err != nil {
		return Conflict{}, &apperr.Error{Kind: apperr.KindValidation, Op: op, Msg: "invalid date", Err: err}
	}
	if window.End <= window.Start {
		return Conflict{}, apperr.Validation(op, "window %s-%s is empty", window.Start, window.End)
	}
	person, err := c.store.GetPerson(ctx, personID)
	if err != nil {
		return Conflict{}, err
	}
	appts, err := c.store.AppointmentsForPersonOnDate(ctx, personID, day)
	if err != nil {
		return Conflict{}, err
	}

	var res Conflict
	switch d.Weekday() {
	case time.Sunday:
		res.OutsideHours = true
	case time.Saturday:
		res.OutsideHours = !person.WorksSaturday() ||
			window.Start < person.SaturdayStart || window.End > person.SaturdayEnd
	}
	for _, a := range appts {
		if a.Status == model.StatusCancelled || a.IsDeleted() {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		for _, span := range personSpans(a, personID) {
			if span.Overlaps(window) {
				res.Conflict = true
				res.AppointmentIDs = append(res.AppointmentIDs, a.ID)
				break
			}
		}
	}
	return res, nil
}

// personSpans returns the parts of a that occupy the person.
func personSpans(a model.Appointment, personID uint) []schedule.Span {
	var spans []schedule.Span
	for _, it := range a.Items {
		if it.PersonID != nil && *it.PersonID == personID {
			spans = append(spans, schedule.Span{Start: it.StartTime, End: it.ComputedEnd})
		}
	}
	if a.AssignedPersonID != nil && *a.AssignedPersonID == personID {
		if len(a.Items) == 0 {
			spans = append(spans, schedule.Span{Start: a.StartTime, End: a.ComputedEnd})
		} else if len(spans) == 0 {
			spans = append(spans, schedule.ItemSpan(a.Items))
		}
	}
	return spans
}

// NextBusinessDay returns the next work day after day, for a person when
// personID is given or shop-wide otherwise.
func (c *Checker) NextBusinessDay(ctx context.Context, day string, personID *uint) (string, error) {
	d, err := parse.Date(day)
	if err != nil {
		return "", &apperr.Error{Kind: apperr.KindValidation, Op: "availability.NextBusinessDay", Msg: "invalid date", Err: err}
	}
	var person *model.Person
	if personID != nil {
		p, err := c.store.GetPerson(ctx, *personID)
		if err != nil {
			return "", err
		}
		person = &p
	}
	return model.DayOf(schedule.NextBusinessDay(d, person)), nil
}
