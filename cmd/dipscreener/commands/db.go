package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/dipscreener/pkg/config"
	"github.com/wonny/dipscreener/pkg/database"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "PostgreSQL connection check and schema migration",
	Long: `Checks the database connection or applies the schema.

Subcommands:
  check    - ping the database and show pool statistics
  migrate  - apply the schema (every statement is idempotent)

Example:
  dipscreener db check
  dipscreener db migrate --env production`,
}

var (
	dbCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Ping the database",
		RunE:  runDBCheck,
	}

	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema",
		RunE:  runDBMigrate,
	}
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbCheckCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}

func openDB(ctx context.Context) (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreDriver != "postgres" {
		return nil, fmt.Errorf("STORE_DRIVER=%s has no database", cfg.StoreDriver)
	}

	fmt.Printf("Connecting to %s\n", maskPassword(cfg.Database.URL))
	return database.New(ctx, cfg)
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	PrintSuccess("Database reachable")
	PrintKeyValue("Response time", status.ResponseTime.String(), 14)
	PrintKeyValue("Max conns", fmt.Sprintf("%d", status.Stats.MaxConns), 14)
	PrintKeyValue("Total conns", fmt.Sprintf("%d", status.Stats.TotalConns), 14)
	PrintKeyValue("Acquired", fmt.Sprintf("%d", status.Stats.AcquiredConns), 14)
	PrintKeyValue("Idle", fmt.Sprintf("%d", status.Stats.IdleConns), 14)
	return nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("Schema applied (%d statements)", len(database.Statements())))
	return nil
}

// maskPassword hides the password of a database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
