package main // Entry point package

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/database"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("env: %v", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags override the matching environment variables.
type globalFlags struct {
	driver     string
	sqlitePath string
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "restaurant",
		Short:         "Restaurant reservation and table allocation server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.driver, "db-driver", "", "store driver: mysql or sqlite (overrides DB_DRIVER)")
	root.PersistentFlags().StringVar(&g.sqlitePath, "sqlite-path", "", "SQLite database file (overrides SQLITE_PATH)")

	root.AddCommand(newServeCmd(&g))
	root.AddCommand(newMigrateCmd(&g))
	root.AddCommand(newSweepCmd(&g))
	root.AddCommand(newSeedTablesCmd(&g))
	root.AddCommand(newCreateUserCmd(&g))
	root.AddCommand(newNotifyConsumerCmd())
	return root
}

func (g *globalFlags) load() (config.Config, error) {
	if g.driver != "" {
		os.Setenv("DB_DRIVER", g.driver)
	}
	if g.sqlitePath != "" {
		os.Setenv("SQLITE_PATH", g.sqlitePath)
	}
	return config.Load()
}

// open connects to the store and applies the embedded migrations.
func (g *globalFlags) open(cmd *cobra.Command, migrate bool) (config.Config, *database.Store, error) {
	cfg, err := g.load()
	if err != nil {
		return cfg, nil, err
	}
	st, err := database.Open(cfg.DB)
	if err != nil {
		return cfg, nil, fmt.Errorf("open %s store: %w", cfg.DB.Driver, err)
	}
	if migrate {
		if err := st.Migrate(cmd.Context()); err != nil {
			_ = st.Close()
			return cfg, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return cfg, st, nil
}
