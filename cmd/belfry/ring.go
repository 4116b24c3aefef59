package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/belfry/internal/bell"
	"github.com/friendsincode/belfry/internal/db"
	"github.com/friendsincode/belfry/internal/events"
)

var ringKind string

var ringCmd = &cobra.Command{
	Use:   "ring",
	Short: "Ring the bell once, for wiring checks",
	RunE:  runRing,
}

func init() {
	ringCmd.Flags().StringVar(&ringKind, "kind", bell.KindTest, "ring kind: work, break, or test")
	rootCmd.AddCommand(ringCmd)
}

func runRing(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	switch ringKind {
	case bell.KindWork, bell.KindBreak, bell.KindTest:
	default:
		return fmt.Errorf("kind must be work, break, or test")
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	profile, err := bell.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return fmt.Errorf("load bell profile: %w", err)
	}
	ringer, err := newRinger(profile, database, events.NewBus())
	if err != nil {
		return fmt.Errorf("initialize ringer: %w", err)
	}
	defer ringer.Close()

	return ringer.Ring(cmd.Context(), ringKind, "manual")
}
