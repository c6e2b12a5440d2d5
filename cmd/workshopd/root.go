package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"workshop-scheduler/config"
	"workshop-scheduler/internal/breaks"
	"workshop-scheduler/internal/db"
	"workshop-scheduler/internal/events"
	"workshop-scheduler/internal/logger"
	"workshop-scheduler/internal/metrics"
	"workshop-scheduler/internal/model"
	"workshop-scheduler/internal/store"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "workshopd",
	Short:         "Workshop scheduling engine",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	def := os.Getenv("CONFIG_PATH")
	if def == "" {
		def = "./config/config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", def, "configuration file")
}

// app bundles what every command needs.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	db      *gorm.DB
	store   store.Store
	metrics *metrics.Metrics
	bus     *events.Bus
	tracker *breaks.Tracker
}

func setup(ctx context.Context, component string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	log := logger.New(component, logger.Options{Level: cfg.Logging.Level, Console: cfg.Logging.Console})
	zlog.Logger = log
	log.Info().Str("path", cfgPath).Msg("configuration loaded")

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	s := store.NewGormStore(gormDB, store.WithLogger(log.With().Str("component", "store").Logger()))
	settings, err := s.EnsureSettings(ctx, model.ShopSettings{
		DefaultOverheadPercent: cfg.Shop.DefaultOverheadPercent,
		DefaultBreakMinutes:    cfg.Shop.DefaultBreakMinutes,
		LoanerVehicleCount:     cfg.Shop.LoanerVehicleCount,
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("default_break_minutes", settings.DefaultBreakMinutes).
		Int("loaner_vehicles", settings.LoanerVehicleCount).
		Msg("shop settings ready")

	bus := events.NewBus(64)
	tracker := breaks.NewTracker(s, bus,
		breaks.WithLocation(cfg.Scheduling.Location),
		breaks.WithMetrics(m),
		breaks.WithLogger(log.With().Str("component", "breaks").Logger()),
	)
	return &app{cfg: cfg, log: log, db: gormDB, store: s, metrics: m, bus: bus, tracker: tracker}, nil
}

func (rt *app) Close() {
	rt.bus.Close()
	if sqlDB, err := rt.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
