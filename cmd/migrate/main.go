// AngelaMos | 2026
// main.go

package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/lms-backend/internal/config"
	"github.com/carterperez-dev/templates/lms-backend/internal/core"
	"github.com/carterperez-dev/templates/lms-backend/internal/db"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Manage the LMS database schema",
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(func(r *db.Runner) error {
			return r.Up(cmd.Context())
		})
	},
}

var downTo int64

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration, or down to --to",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(func(r *db.Runner) error {
			return r.Down(cmd.Context(), downTo)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(func(r *db.Runner) error {
			return r.Status(cmd.Context())
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	downCmd.Flags().Int64Var(&downTo, "to", 0, "target version to roll back to")

	rootCmd.AddCommand(upCmd, downCmd, statusCmd)
}

func withRunner(fn func(*db.Runner) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := core.NewLogger(cfg.Log)

	conn, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close() //nolint:errcheck // process exits right after

	runner, err := db.NewRunner(conn, logger)
	if err != nil {
		return err
	}
	return fn(runner)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
