package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/jsonhost/internal/config"
	"github.com/sakif/jsonhost/internal/server"
)

// flags holds command-line overrides. Zero values mean "not given".
type flags struct {
	port        int
	dbDriver    string
	dbPath      string
	databaseURL string
}

// apply copies every flag that was set onto cfg.
func (f *flags) apply(cmd *cobra.Command, cfg *config.Config) {
	pf := cmd.Flags()
	if pf.Changed("port") {
		cfg.Server.Port = f.port
	}
	if pf.Changed("db-driver") {
		cfg.DB.Driver = f.dbDriver
	}
	if pf.Changed("db-path") {
		cfg.DB.Path = f.dbPath
	}
	if pf.Changed("database-url") {
		cfg.DB.URL = f.databaseURL
	}
}

// load reads the environment, applies flags and validates the result.
func (f *flags) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg := config.Load()
	f.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := cfg.Log.SlogLevel()
	logger := newLogger(os.Stdout, cfg.Log.Format, level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "server",
		Short:         "JSON file hosting service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntVar(&f.port, "port", 8080, "HTTP port (env PORT)")
	root.PersistentFlags().StringVar(&f.dbDriver, "db-driver", config.DriverSQLite, "sqlite or postgres (env DB_DRIVER)")
	root.PersistentFlags().StringVar(&f.dbPath, "db-path", "data/jsonhost.db", "SQLite database file (env DB_PATH)")
	root.PersistentFlags().StringVar(&f.databaseURL, "database-url", "", "Postgres connection string (env DATABASE_URL)")

	serve := newServeCmd(f)
	root.RunE = serve.RunE
	root.AddCommand(serve, newMigrateCmd(f))
	return root
}

func newServeCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.load(cmd)
			if err != nil {
				return err
			}

			store, err := server.OpenStore(cmd.Context(), cfg.DB)
			if err != nil {
				return fmt.Errorf("opening %s store: %w", cfg.DB.Driver, err)
			}

			srv, err := server.New(cfg, store, logger)
			if err != nil {
				store.Close()
				return fmt.Errorf("creating server: %w", err)
			}

			// Start closes the store on return.
			return srv.Start()
		},
	}
}

func newMigrateCmd(f *flags) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, f, func(ctx context.Context, store server.MigratableStore, logger *slog.Logger) error {
				// Opening the store already migrated; this is a no-op that
				// confirms the schema is current.
				if err := store.Migrate(ctx); err != nil {
					return err
				}
				logger.Info("migrations applied")
				return nil
			})
		},
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE:  migrate.RunE,
	}, &cobra.Command{
		Use:   "status",
		Short: "Print applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, f, func(ctx context.Context, store server.MigratableStore, _ *slog.Logger) error {
				return store.MigrationStatus(ctx)
			})
		},
	})

	return migrate
}

func withStore(cmd *cobra.Command, f *flags, fn func(context.Context, server.MigratableStore, *slog.Logger) error) error {
	cfg, logger, err := f.load(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := server.OpenStore(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.DB.Driver, err)
	}
	defer store.Close()

	return fn(ctx, store, logger)
}
