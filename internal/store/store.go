package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workshop-scheduler/internal/apperr"
	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/parse"
	"workshop-scheduler/internal/schedule"
)

// Store defines the interface for all database operations.
type Store interface {
	// WithTx runs fn against a store bound to one transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
	DB() *gorm.DB

	Settings(ctx context.Context) (model.ShopSettings, error)
	EnsureSettings(ctx context.Context, defaults model.ShopSettings) (model.ShopSettings, error)
	UpdateSettings(ctx context.Context, s *model.ShopSettings) error
	ProfileLookup(ctx context.Context) (schedule.ProfileLookup, error)

	CreatePerson(ctx context.Context, p *model.Person) error
	GetPerson(ctx context.Context, id uint) (model.Person, error)
	ListPersons(ctx context.Context, activeOnly bool) ([]model.Person, error)

	CreateAppointment(ctx context.Context, a *model.Appointment) error
	CreateExtension(ctx context.Context, parentID uint, a *model.Appointment) error
	UpdateAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, id uint) (model.Appointment, error)
	SaveComputed(ctx context.Context, a *model.Appointment) error
	UpdateStatus(ctx context.Context, id uint, status model.Status, at time.Time) error
	SoftDeleteAppointment(ctx context.Context, id uint) error
	RestoreAppointment(ctx context.Context, id uint) error
	ListDeletedAppointments(ctx context.Context) ([]model.Appointment, error)
	PurgeAppointment(ctx context.Context, id uint) error
	AppointmentsForPersonOnDate(ctx context.Context, personID uint, date string) ([]model.Appointment, error)
	AppointmentsInRange(ctx context.Context, from, to string, statuses ...model.Status) ([]model.Appointment, error)
	LoanerBookings(ctx context.Context, day string) ([]model.Appointment, error)
	NextNumber(ctx context.Context, year int) (string, error)

	CreateLoanerBlock(ctx context.Context, b *model.LoanerBlock) error
	DeleteLoanerBlock(ctx context.Context, id uint) error
	LoanerBlocksOn(ctx context.Context, day string) ([]model.LoanerBlock, error)

	OpenBreak(ctx context.Context, personID uint) (*model.BreakSession, error)
	ListOpenBreaks(ctx context.Context) ([]model.BreakSession, error)
	CreateBreak(ctx context.Context, b *model.BreakSession) error
	SaveBreak(ctx context.Context, b *model.BreakSession) error
	CloseBreak(ctx context.Context, id uint, endedAt time.Time, realizedMinutes int) (bool, error)
	RecordShift(ctx context.Context, sh *model.BreakShift) error
	ShiftsForSession(ctx context.Context, sessionID uint) ([]model.BreakShift, error)
	ShiftsForAppointments(ctx context.Context, ids []uint) ([]model.BreakShift, error)

	SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeletePushSubscription(ctx context.Context, endpoint string) error
	GetPushSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Option configures the store.
type Option func(*gormStore)

// WithLogger sets the logger for duration fallbacks and other soft failures.
func WithLogger(l zerolog.Logger) Option { return func(s *gormStore) { s.log = l } }

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) Store {
	s := &gormStore{db: db, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gormStore) DB() *gorm.DB { return s.db }

func (s *gormStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, log: s.log})
	})
}

// wrap maps gorm errors into the apperr taxonomy.
func wrap(op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Msg: msg}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &apperr.Error{Kind: apperr.KindConflict, Op: op, Msg: msg, Err: err}
	}
	return fmt.Errorf("%s: %s: %w", op, msg, err)
}

// --- settings ---

func (s *gormStore) Settings(ctx context.Context) (model.ShopSettings, error) {
	var st model.ShopSettings
	err := s.db.WithContext(ctx).First(&st, model.SettingsID).Error
	return st, wrap("store.Settings", err, "shop settings")
}

// EnsureSettings seeds the settings row with defaults if it does not exist yet
// and returns the stored row.
func (s *gormStore) EnsureSettings(ctx context.Context, defaults model.ShopSettings) (model.ShopSettings, error) {
	defaults.ID = model.SettingsID
	var st model.ShopSettings
	err := s.db.WithContext(ctx).Where(model.ShopSettings{ID: model.SettingsID}).
		Attrs(defaults).FirstOrCreate(&st).Error
	return st, wrap("store.EnsureSettings", err, "seed shop settings")
}

func (s *gormStore) UpdateSettings(ctx context.Context, st *model.ShopSettings) error {
	if st.DefaultBreakMinutes <= 0 {
		return apperr.Validation("store.UpdateSettings", "default break duration must be positive, got %d", st.DefaultBreakMinutes)
	}
	if st.DefaultOverheadPercent < 0 || st.LoanerVehicleCount < 0 {
		return apperr.Validation("store.UpdateSettings", "overhead and loaner count must not be negative")
	}
	st.ID = model.SettingsID
	return wrap("store.UpdateSettings", s.db.WithContext(ctx).Save(st).Error, "save shop settings")
}

// ProfileLookup loads the shop settings once and resolves persons on demand.
func (s *gormStore) ProfileLookup(ctx context.Context) (schedule.ProfileLookup, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	cache := make(map[uint]schedule.Profile)
	return func(personID *uint) (schedule.Profile, error) {
		if personID == nil {
			return schedule.Profile{}, nil
		}
		if p, ok := cache[*personID]; ok {
			return p, nil
		}
		person, err := s.GetPerson(ctx, *personID)
		if err != nil {
			return schedule.Profile{}, err
		}
		p := schedule.NewProfile(&person, settings)
		cache[*personID] = p
		return p, nil
	}, nil
}

// --- persons ---

func (s *gormStore) CreatePerson(ctx context.Context, p *model.Person) error {
	if p.Role != model.RoleTechnician && p.Role != model.RoleApprentice {
		return apperr.Validation("store.CreatePerson", "unknown role %q", p.Role)
	}
	if p.WorkDaysPerWeek < 0 || p.WeeklyHours < 0 || p.BreakDurationMinutes < 0 {
		return apperr.Validation("store.CreatePerson", "working time values must not be negative")
	}
	return wrap("store.CreatePerson", s.db.WithContext(ctx).Create(p).Error, "create person %q", p.Name)
}

func (s *gormStore) GetPerson(ctx context.Context, id uint) (model.Person, error) {
	var p model.Person
	err := s.db.WithContext(ctx).First(&p, id).Error
	return p, wrap("store.GetPerson", err, "person %d", id)
}

func (s *gormStore) ListPersons(ctx context.Context, activeOnly bool) ([]model.Person, error) {
	q := s.db.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var persons []model.Person
	return persons, wrap("store.ListPersons", q.Find(&persons).Error, "list persons")
}

// --- break sessions ---

// OpenBreak returns the person's open session, or nil when the person is not on
// a break.
func (s *gormStore) OpenBreak(ctx context.Context, personID uint) (*model.BreakSession, error) {
	var b model.BreakSession
	res := s.db.WithContext(ctx).Where("person_id = ? AND completed = ?", personID, false).Limit(1).Find(&b)
	if res.Error != nil {
		return nil, wrap("store.OpenBreak", res.Error, "open break of person %d", personID)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &b, nil
}

func (s *gormStore) ListOpenBreaks(ctx context.Context) ([]model.BreakSession, error) {
	var out []model.BreakSession
	err := s.db.WithContext(ctx).Where("completed = ?", false).Order("started_at").Find(&out).Error
	return out, wrap("store.ListOpenBreaks", err, "list open breaks")
}

func (s *gormStore) CreateBreak(ctx context.Context, b *model.BreakSession) error {
	err := s.db.WithContext(ctx).Create(b).Error
	return wrap("store.CreateBreak", err, "person %d already has an open break", b.PersonID)
}

func (s *gormStore) SaveBreak(ctx context.Context, b *model.BreakSession) error {
	return wrap("store.SaveBreak", s.db.WithContext(ctx).Save(b).Error, "save break %d", b.ID)
}

// CloseBreak marks an open session completed. It reports false when the
// session was already closed, possibly by another process; the caller must
// then leave the schedule alone.
func (s *gormStore) CloseBreak(ctx context.Context, id uint, endedAt time.Time, realizedMinutes int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.BreakSession{}).
		Where("id = ? AND completed = ?", id, false).
		Updates(map[string]any{
			"ended_at":        endedAt,
			"completed":       true,
			"shifted_minutes": realizedMinutes,
		})
	if res.Error != nil {
		return false, wrap("store.CloseBreak", res.Error, "close break %d", id)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) RecordShift(ctx context.Context, sh *model.BreakShift) error {
	return wrap("store.RecordShift", s.db.WithContext(ctx).Save(sh).Error,
		"record shift of appointment %d", sh.AppointmentID)
}

func (s *gormStore) ShiftsForSession(ctx context.Context, sessionID uint) ([]model.BreakShift, error) {
	var out []model.BreakShift
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("appointment_id").Find(&out).Error
	return out, wrap("store.ShiftsForSession", err, "shifts of break %d", sessionID)
}

func (s *gormStore) ShiftsForAppointments(ctx context.Context, ids []uint) ([]model.BreakShift, error) {
	var out []model.BreakShift
	if len(ids) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).Where("appointment_id IN ?", ids).Order("session_id").Find(&out).Error
	return out, wrap("store.ShiftsForAppointments", err, "shifts of %d appointments", len(ids))
}

// --- loaner blocks ---

func (s *gormStore) CreateLoanerBlock(ctx context.Context, b *model.LoanerBlock) error {
	const op = "store.CreateLoanerBlock"
	if b.Until != nil {
		if err := validDate(op, *b.Until); err != nil {
			return err
		}
	}
	return wrap(op, s.db.WithContext(ctx).Create(b).Error, "block loaner vehicle")
}

func (s *gormStore) DeleteLoanerBlock(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.LoanerBlock{}, id)
	if res.Error != nil {
		return wrap("store.DeleteLoanerBlock", res.Error, "loaner block %d", id)
	}
	if res.RowsAffected == 0 {
		return &apperr.Error{Kind: apperr.KindNotFound, Op: "store.DeleteLoanerBlock", Msg: fmt.Sprintf("loaner block %d", id)}
	}
	return nil
}

// LoanerBlocksOn lists the blocks that hold on day.
func (s *gormStore) LoanerBlocksOn(ctx context.Context, day string) ([]model.LoanerBlock, error) {
	if err := validDate("store.LoanerBlocksOn", day); err != nil {
		return nil, err
	}
	var out []model.LoanerBlock
	err := s.db.WithContext(ctx).Where("blocked_until IS NULL OR blocked_until >= ?", day).Order("id").Find(&out).Error
	return out, wrap("store.LoanerBlocksOn", err, "loaner blocks on %s", day)
}

// --- push subscriptions ---

// SavePushSubscription creates the subscription or replaces the keys and the
// person binding of an existing endpoint.
func (s *gormStore) SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "person_id"}),
	}).Create(sub).Error
	return wrap("store.SavePushSubscription", err, "save subscription")
}

func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{}).Error
	return wrap("store.DeletePushSubscription", err, "delete subscription")
}

func (s *gormStore) GetPushSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	return sub, wrap("store.GetPushSubscription", err, "subscription %q", endpoint)
}

// validDate is shared by the appointment writers.
func validDate(op, day string) error {
	if _, err := parse.Date(day); err != nil {
		return &apperr.Error{Kind: apperr.KindValidation, Op: op, Msg: "invalid date", Err: err}
	}
	return nil
}
