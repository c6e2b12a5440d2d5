package db

import (
	"fmt"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"workshop-scheduler/config"
	"workshop-scheduler/internal/model"
)

// Init opens the database configured in cfg and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", driverName(cfg)).Msg("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info().Msg("Database initialization complete.")
	return db, nil
}

// Open connects without migrating.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driverName(cfg) {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         sqlLogger(stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags), cfg.LogSQL),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

// sqlLogger logs slow queries and errors, or every statement when verbose.
// Missing rows are an expected outcome of lookups and are not logged.
func sqlLogger(w logger.Writer, verbose bool) logger.Interface {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.ShopSettings{},
		&model.Person{},
		&model.Appointment{},
		&model.WorkItem{},
		&model.BreakSession{},
		&model.BreakShift{},
		&model.PushSubscription{},
		&model.LoanerBlock{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// driverName falls back to guessing from the DSN when no driver is configured.
func driverName(cfg *config.DatabaseConfig) string {
	if cfg.Driver != "" {
		return strings.ToLower(cfg.Driver)
	}
	if strings.HasPrefix(cfg.DSN, "file:") || strings.HasSuffix(cfg.DSN, ".db") {
		return "sqlite"
	}
	return "postgres"
}
