package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/belfry/internal/bell"
	"github.com/friendsincode/belfry/internal/clock"
	"github.com/friendsincode/belfry/internal/config"
	"github.com/friendsincode/belfry/internal/db"
	"github.com/friendsincode/belfry/internal/events"
	"github.com/friendsincode/belfry/internal/logbuffer"
	"github.com/friendsincode/belfry/internal/logging"
	"github.com/friendsincode/belfry/internal/schedule"
	"github.com/friendsincode/belfry/internal/server"
	"github.com/friendsincode/belfry/internal/telemetry"
	"github.com/friendsincode/belfry/internal/timesource"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
	logBuf *logbuffer.Buffer
)

var rootCmd = &cobra.Command{
	Use:   "belfry",
	Short: "Belfry - School bell scheduler",
	Long:  "Belfry keeps a virtual clock in sync with a real-time source and rings work/break bells from the published timetable.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Belfry server",
	Long:  "Start the virtual clock, the bell channels, and the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBuf = logbuffer.New(cfg.LogBufferSize)
	logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logBuf, nil))
	return nil
}

func newTimeSource() timesource.Source {
	if !cfg.ClockSyncEnabled {
		return timesource.System{}
	}
	return &timesource.Fallback{
		Primary:   timesource.NewAPI(cfg.TimeAPIURL, cfg.TimeAPITimeout),
		Secondary: timesource.System{},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("Belfry starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "belfry",
		ServiceVersion: "0.1.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	bus := events.NewBus()
	keeper := schedule.NewKeeper(cfg, database, bus, logger)

	var opts []clock.Option
	if cfg.StrictOrdering {
		opts = append(opts, clock.WithStrictOrdering())
	}
	vclock := clock.New(newTimeSource(), logger, opts...)

	profile, err := bell.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return fmt.Errorf("load bell profile: %w", err)
	}
	ringer, err := newRinger(profile, database, bus)
	if err != nil {
		return fmt.Errorf("initialize ringer: %w", err)
	}
	defer func() {
		if err := ringer.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to release gpio lines")
		}
	}()

	checkpoints, badCheckpoints := schedule.Normalize(cfg.SyncCheckpoints)
	for _, badErr := range badCheckpoints {
		logger.Warn().Err(badErr).Msg("dropping malformed sync checkpoint")
	}

	// resync is the checkpoint routine: rebase the clock, refresh the
	// timetable, and swap in the fresh boundary list. Each leg degrades
	// independently; a dead time API must not stop the schedule refresh.
	resync := func(ctx context.Context) error {
		if cfg.ClockSyncEnabled {
			if err := vclock.SyncTime(ctx); err != nil {
				logger.Warn().Err(err).Msg("clock resync failed, keeping virtual time")
			}
		}
		if cfg.ScheduleSyncEnabled {
			if err := keeper.Refresh(ctx); err != nil {
				logger.Warn().Err(err).Msg("schedule refresh failed, keeping current timetable")
			}
		}
		vclock.SetTimestamps(keeper.Boundaries())
		bus.Publish(events.EventClockResync, events.Payload{
			"now":        vclock.Now(),
			"boundaries": len(vclock.Boundaries()),
		})
		return nil
	}

	vclock.AddWBCallbacks(
		boundaryHandler(vclock, ringer, bell.KindWork),
		boundaryHandler(vclock, ringer, bell.KindBreak),
	)
	vclock.AddTimestampCallback(checkpoints, resync)

	// First resync before the channels start; a source outage here falls
	// back to the stored snapshot inside the keeper.
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	_ = resync(startCtx)
	cancel()

	srv := server.New(cfg, database, bus, logBuf, vclock, keeper, ringer, resync, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-quit:
	}

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Close(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("Belfry stopped")
	return nil
}

// boundaryHandler rings the bell for one boundary kind. With
// BELFRY_SYNC_AFTER_CALLBACKS set the clock rebases right after the
// ring, so drift accumulated since the last checkpoint is corrected
// while the channel is already awake.
func boundaryHandler(vclock *clock.VirtualClock, ringer *bell.Ringer, kind string) clock.Callback {
	return func(ctx context.Context) error {
		err := ringer.Ring(ctx, kind, "schedule")
		if cfg.SyncAfterCallbacks && cfg.ClockSyncEnabled {
			if syncErr := vclock.SyncTime(ctx); syncErr != nil {
				logger.Warn().Err(syncErr).Msg("post-ring clock sync failed")
			}
		}
		return err
	}
}

func newRinger(profile bell.Profile, database *gorm.DB, bus *events.Bus) (*bell.Ringer, error) {
	var chip bell.Chip
	if profile.GPIO.Enabled {
		chip = &bell.SysfsChip{}
	}
	var player bell.Player = bell.NopPlayer{}
	if profile.Audio.Enabled {
		player = &bell.AplayPlayer{
			Device:      profile.Audio.Device,
			MaxDuration: profile.Audio.MaxDuration(),
		}
	}
	return bell.NewRinger(profile, chip, player, database, bus, logger)
}

// initDatabase initializes the database connection (used by subcommands)
func initDatabase() (*gorm.DB, error) {
	return db.Connect(cfg)
}
