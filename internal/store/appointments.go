package store

import (
	"context"
	"strconv"
	"time"

	"workshop-scheduler/internal/apperr"
	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/parse"
	"workshop-scheduler/internal/schedule"
)

var computedColumns = []string{"start_time", "computed_end", "effective_minutes", "break_minutes"}

// transitions lists the allowed status changes.
var transitions = map[model.Status][]model.Status{
	model.StatusPlanned:    {model.StatusInProgress, model.StatusDone, model.StatusCancelled},
	model.StatusInProgress: {model.StatusDone, model.StatusCancelled},
}

// CreateAppointment resolves the appointment's window, issues its number and
// stores it together with its work items.
func (s *gormStore) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	return s.WithTx(ctx, func(tx Store) error {
		return tx.(*gormStore).create(ctx, a)
	})
}

// CreateExtension stores a as a follow-up of parentID. Extensions draw their
// number from the same sequence as every other appointment.
func (s *gormStore) CreateExtension(ctx context.Context, parentID uint, a *model.Appointment) error {
	return s.WithTx(ctx, func(tx Store) error {
		parent, err := tx.GetAppointment(ctx, parentID)
		if err != nil {
			return err
		}
		a.ParentID = &parent.ID
		if a.Date == "" {
			a.Date = parent.Date
		}
		if a.AssignedPersonID == nil && len(a.Items) == 0 {
			a.AssignedPersonID = parent.AssignedPersonID
		}
		return tx.(*gormStore).create(ctx, a)
	})
}

func (s *gormStore) create(ctx context.Context, a *model.Appointment) error {
	const op = "store.CreateAppointment"
	if err := prepare(op, a); err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = model.StatusPlanned
	}
	if err := s.resolve(ctx, a); err != nil {
		return err
	}
	day, _ := parse.Date(a.Date)
	number, err := s.NextNumber(ctx, day.Year())
	if err != nil {
		return err
	}
	a.Number = number
	a.ID = 0
	for i := range a.Items {
		a.Items[i].ID = 0
	}
	return wrap(op, s.db.WithContext(ctx).Create(a).Error, "create appointment %s", a.Number)
}

// UpdateAppointment re-resolves a and replaces its stored fields and work items.
func (s *gormStore) UpdateAppointment(ctx context.Context, a *model.Appointment) error {
	const op = "store.UpdateAppointment"
	if err := prepare(op, a); err != nil {
		return err
	}
	return s.WithTx(ctx, func(txs Store) error {
		tx := txs.(*gormStore)
		current, err := tx.GetAppointment(ctx, a.ID)
		if err != nil {
			return err
		}
		if !current.Status.Open() {
			return apperr.Conflict(op, "appointment %d is %s", a.ID, current.Status)
		}
		if err := tx.resolve(ctx, a); err != nil {
			return err
		}
		cols := append([]string{"date", "arrival_time", "nominal_minutes", "assigned_person_id",
			"loaner_requested", "loaner_until"}, computedColumns...)
		if err := tx.db.WithContext(ctx).Model(a).Select(cols).Updates(a).Error; err != nil {
			return wrap(op, err, "update appointment %d", a.ID)
		}
		if err := tx.db.WithContext(ctx).Where("appointment_id = ?", a.ID).Delete(&model.WorkItem{}).Error; err != nil {
			return wrap(op, err, "replace items of appointment %d", a.ID)
		}
		for i := range a.Items {
			a.Items[i].ID = 0
			a.Items[i].AppointmentID = a.ID
		}
		if len(a.Items) > 0 {
			if err := tx.db.WithContext(ctx).Create(&a.Items).Error; err != nil {
				return wrap(op, err, "replace items of appointment %d", a.ID)
			}
		}
		return nil
	})
}

// prepare validates input and fills derived fields before resolution.
func prepare(op string, a *model.Appointment) error {
	if err := validDate(op, a.Date); err != nil {
		return err
	}
	if a.LoanerUntil != nil {
		if err := validDate(op, *a.LoanerUntil); err != nil {
			return err
		}
		if *a.LoanerUntil < a.Date {
			return apperr.Validation(op, "loaner return %s is before the appointment date %s", *a.LoanerUntil, a.Date)
		}
	}
	if len(a.Items) > 0 {
		total := 0
		for i, it := range a.Items {
			if it.NominalMinutes <= 0 {
				return apperr.Validation(op, "work item %d: nominal duration must be positive, got %d", i+1, it.NominalMinutes)
			}
			if it.StartTime < a.ArrivalTime {
				return apperr.Validation(op, "work item %d starts at %s, before the arrival at %s", i+1, it.StartTime, a.ArrivalTime)
			}
			total += it.NominalMinutes
		}
		if a.NominalMinutes <= 0 {
			a.NominalMinutes = total
		}
	} else if a.StartTime == 0 {
		a.StartTime = a.ArrivalTime
	}
	if a.NominalMinutes <= 0 {
		return apperr.Validation(op, "nominal duration must be positive, got %d", a.NominalMinutes)
	}
	return nil
}

func (s *gormStore) resolve(ctx context.Context, a *model.Appointment) error {
	lookup, err := s.ProfileLookup(ctx)
	if err != nil {
		return err
	}
	fallbacks, err := schedule.ApplyToAppointment(a, lookup)
	if err != nil {
		return err
	}
	for _, w := range fallbacks {
		s.log.Warn().Err(w.FactorErr).Str("date", a.Date).Msg("Using nominal duration for work item")
	}
	return nil
}

// NextNumber is the single generator of appointment numbers. Deleted
// appointments keep their numbers, so the scan ignores the soft-delete scope.
func (s *gormStore) NextNumber(ctx context.Context, year int) (string, error) {
	prefix := "T-" + strconv.Itoa(year) + "-"
	var numbers []string
	err := s.db.WithContext(ctx).Unscoped().Model(&model.Appointment{}).
		Where("number LIKE ?", prefix+"%").
		Order("LENGTH(number) DESC, number DESC").
		Limit(1).
		Pluck("number", &numbers).Error
	if err != nil {
		return "", wrap("store.NextNumber", err, "scan numbers of %d", year)
	}
	seq := 1
	if len(numbers) > 0 {
		last, err := parse.Number(numbers[0])
		if err != nil {
			return "", wrap("store.NextNumber", err, "last number of %d", year)
		}
		seq = last.Seq + 1
	}
	return parse.FormatNumber(year, seq), nil
}

func (s *gormStore) GetAppointment(ctx context.Context, id uint) (model.Appointment, error) {
	var a model.Appointment
	err := s.db.WithContext(ctx).Preload("Items").First(&a, id).Error
	return a, wrap("store.GetAppointment", err, "appointment %d", id)
}

// SaveComputed writes back the schedule-derived fields of a and its items.
func (s *gormStore) SaveComputed(ctx context.Context, a *model.Appointment) error {
	const op = "store.SaveComputed"
	if err := s.db.WithContext(ctx).Model(a).Select(computedColumns).Updates(a).Error; err != nil {
		return wrap(op, err, "appointment %d", a.ID)
	}
	for i := range a.Items {
		it := &a.Items[i]
		if err := s.db.WithContext(ctx).Model(it).Select(append([]string{"role"}, computedColumns...)).Updates(it).Error; err != nil {
			return wrap(op, err, "work item %d", it.ID)
		}
	}
	return nil
}

func (s *gormStore) UpdateStatus(ctx context.Context, id uint, status model.Status, at time.Time) error {
	const op = "store.UpdateStatus"
	return s.WithTx(ctx, func(tx Store) error {
		a, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == status {
			return nil
		}
		allowed := false
		for _, next := range transitions[a.Status] {
			if next == status {
				allowed = true
			}
		}
		if !allowed {
			return apperr.Validation(op, "appointment %d cannot move from %s to %s", id, a.Status, status)
		}
		updates := map[string]any{"status": status}
		if status == model.StatusDone {
			updates["completed_at"] = at
		}
		err = tx.DB().WithContext(ctx).Model(&model.Appointment{}).Where("id = ?", id).Updates(updates).Error
		return wrap(op, err, "appointment %d", id)
	})
}

func (s *gormStore) SoftDeleteAppointment(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Appointment{}, id)
	if res.Error != nil {
		return wrap("store.SoftDeleteAppointment", res.Error, "appointment %d", id)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("store.SoftDeleteAppointment", "appointment %d", id)
	}
	return nil
}

func (s *gormStore) RestoreAppointment(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Unscoped().Model(&model.Appointment{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Update("deleted_at", nil)
	if res.Error != nil {
		return wrap("store.RestoreAppointment", res.Error, "appointment %d", id)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("store.RestoreAppointment", "deleted appointment %d", id)
	}
	return nil
}

func (s *gormStore) ListDeletedAppointments(ctx context.Context) ([]model.Appointment, error) {
	var out []model.Appointment
	err := s.db.WithContext(ctx).Unscoped().Preload("Items").
		Where("deleted_at IS NOT NULL").Order("deleted_at DESC").Find(&out).Error
	return out, wrap("store.ListDeletedAppointments", err, "list deleted appointments")
}

// PurgeAppointment removes a soft-deleted appointment for good. Break sessions
// and extensions only hold weak references to it, which are cleared.
func (s *gormStore) PurgeAppointment(ctx context.Context, id uint) error {
	const op = "store.PurgeAppointment"
	return s.WithTx(ctx, func(txs Store) error {
		db := txs.DB().WithContext(ctx)
		var a model.Appointment
		if err := db.Unscoped().First(&a, id).Error; err != nil {
			return wrap(op, err, "appointment %d", id)
		}
		if !a.IsDeleted() {
			return apperr.Conflict(op, "appointment %d must be deleted before it is purged", id)
		}
		steps := []func() error{
			func() error {
				return db.Model(&model.BreakSession{}).Where("linked_next_appointment_id = ?", id).
					Update("linked_next_appointment_id", nil).Error
			},
			func() error {
				return db.Unscoped().Model(&model.Appointment{}).Where("parent_id = ?", id).
					Update("parent_id", nil).Error
			},
			func() error { return db.Where("appointment_id = ?", id).Delete(&model.BreakShift{}).Error },
			func() error { return db.Where("appointment_id = ?", id).Delete(&model.WorkItem{}).Error },
			func() error { return db.Unscoped().Delete(&model.Appointment{}, id).Error },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return wrap(op, err, "purge appointment %d", id)
			}
		}
		return nil
	})
}

// AppointmentsForPersonOnDate returns the appointments on date that are
// assigned to the person directly or through one of their work items.
func (s *gormStore) AppointmentsForPersonOnDate(ctx context.Context, personID uint, date string) ([]model.Appointment, error) {
	items := s.db.Model(&model.WorkItem{}).Select("appointment_id").Where("person_id = ?", personID)
	var out []model.Appointment
	err := s.db.WithContext(ctx).Preload("Items").
		Where("date = ?", date).
		Where("(assigned_person_id = ? OR id IN (?))", personID, items).
		Order("start_time, id").
		Find(&out).Error
	return out, wrap("store.AppointmentsForPersonOnDate", err, "appointments of person %d on %s", personID, date)
}

func (s *gormStore) AppointmentsInRange(ctx context.Context, from, to string, statuses ...model.Status) ([]model.Appointment, error) {
	q := s.db.WithContext(ctx).Preload("Items").Where("date >= ? AND date <= ?", from, to)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []model.Appointment
	err := q.Order("date, start_time, id").Find(&out).Error
	return out, wrap("store.AppointmentsInRange", err, "appointments %s..%s", from, to)
}

// LoanerBookings returns the appointments holding a loaner vehicle on day.
// Soft-deleted rows are excluded by the model's DeletedAt scope, the same
// predicate model.Appointment.IsDeleted checks in memory.
func (s *gormStore) LoanerBookings(ctx context.Context, day string) ([]model.Appointment, error) {
	var rows []model.Appointment
	err := s.db.WithContext(ctx).
		Where("loaner_requested = ?", true).
		Where("status <> ?", model.StatusCancelled).
		Where("(date = ? OR (loaner_until IS NOT NULL AND date <= ? AND loaner_until >= ?))", day, day, day).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, wrap("store.LoanerBookings", err, "loaner bookings on %s", day)
	}
	out := rows[:0]
	for _, a := range rows {
		if a.UsesLoanerOn(day) {
			out = append(out, a)
		}
	}
	return out, nil
}
