package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"datum/internal/config"
	"datum/internal/repository/postgres"
)

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := postgres.EnsureSchema(cmd.Context(), e.pool, e.tables); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (environment: %s, prefix: %q)\n", e.cfg.Environment, e.cfg.TablePrefix)
			return nil
		},
	}
}

func dropCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop all tables (refused in production)",
		Long: `Drop the users, folders and purchases tables for the configured
table prefix. Documents in OpenKM are not touched.

Examples:
  datumctl drop --force
  TABLE_PREFIX=test_ datumctl drop --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to drop tables without --force")
			}

			if cfg := config.Load(); cfg.IsProduction() {
				return fmt.Errorf("refusing to drop tables in the %s environment", cfg.Environment)
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := postgres.DropSchema(cmd.Context(), e.pool, e.tables); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s, %s, %s\n", e.tables.Purchases, e.tables.Folders, e.tables.Users)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm the destructive operation")
	return cmd
}
