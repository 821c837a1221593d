package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jandubois/zkcheck/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run journal database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("down", false, "Roll back all migrations")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	path := app.cfg.Journal.Path
	if path == "" {
		return fmt.Errorf("--journal is required")
	}
	down, _ := cmd.Flags().GetBool("down")
	ctx := cmd.Context()

	if down {
		app.log.Info("rolling back all migrations")
		if err := db.RollbackMigrations(ctx, path); err != nil {
			return err
		}
		app.log.Info("migrations rolled back")
	} else {
		app.log.Info("running migrations")
		if err := db.RunMigrations(ctx, path); err != nil {
			return err
		}
		app.log.Info("migrations complete")
	}

	return nil
}
