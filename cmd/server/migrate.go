package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpattn/projectledger/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the database schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(db.Up), string(db.Down)},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := db.Up
		if len(args) == 1 {
			direction = db.Direction(args[0])
		}
		if err := db.RunMigrations(cfg.Database, direction, logger); err != nil {
			return fmt.Errorf("migrate %s: %w", direction, err)
		}
		return nil
	},
}
