package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"datum/internal/config"
	"datum/internal/repository/postgres"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "datumctl",
		Short:         "Administrative tasks for the Datum backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file (silently ignore if it doesn't exist - for production)
			_ = godotenv.Load()
		},
	}

	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(dropCmd())
	rootCmd.AddCommand(bootstrapAdminCmd())
	rootCmd.AddCommand(orphansCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// env holds what every subcommand needs to reach the database.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	closer io.Closer
}

func openEnv(ctx context.Context) (*env, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	logger, closer, err := config.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: 2}, logger)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		tables: postgres.NewTableNames(cfg.TablePrefix),
		closer: closer,
	}, nil
}

func (e *env) Close() {
	e.pool.Close()
	e.closer.Close()
}

func (e *env) repoConfig() *postgres.RepositoryConfig {
	return &postgres.RepositoryConfig{
		Pool:   e.pool,
		Tables: e.tables,
		Logger: e.logger,
	}
}
