package main

import (
	"fmt"

	"github.com/kron12345/coreplanx/internal/db"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the timetable schema",
		Long:  "Migrates all timetable tables and ensures storage for every configured productive variant.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if gormDB == nil {
		return fmt.Errorf("storage is disabled in %s", configPath)
	}
	fmt.Fprintf(out, "Connected to %s storage\n", cfg.Storage.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	svc := newService(cfg, gormDB)
	for _, v := range cfg.Variants.Productive {
		if err := svc.EnsureVariant(cmd.Context(), v); err != nil {
			return err
		}
		fmt.Fprintf(out, "Variant %s ready\n", v)
	}
	return nil
}
