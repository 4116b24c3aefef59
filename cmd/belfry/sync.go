package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/belfry/internal/db"
	"github.com/friendsincode/belfry/internal/events"
	"github.com/friendsincode/belfry/internal/schedule"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the timetable once and print the resulting bell schedule",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	keeper := schedule.NewKeeper(cfg, database, events.NewBus(), logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()
	if err := keeper.Refresh(ctx); err != nil {
		return err
	}

	info := keeper.Info()
	fmt.Printf("branch %d (%s), fetched %s\n", info.Branch, info.SourceURL, info.FetchedAt.Format(time.RFC3339))
	for _, lesson := range keeper.Lessons() {
		fmt.Printf("  lesson %s - %s\n", lesson.Start, lesson.End)
	}
	fmt.Println("boundaries:")
	for _, ev := range keeper.Boundaries() {
		fmt.Printf("  %s %s\n", ev.Time, ev.Kind)
	}
	return nil
}
