package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kron12345/coreplanx/internal/config"
	"github.com/kron12345/coreplanx/internal/db"
	"github.com/kron12345/coreplanx/internal/partition"
	"github.com/kron12345/coreplanx/internal/timetable"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const defaultConfigPath = "coreplanx.yaml"

// scopeFlags are the --variant/--stage flags shared by data commands.
type scopeFlags struct {
	configPath string
	variantID  string
	stageID    string
}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to CorePlanX config file")
}

func addScopeFlags(cmd *cobra.Command, s *scopeFlags, withStage bool) {
	addConfigFlag(cmd, &s.configPath)
	cmd.Flags().StringVar(&s.variantID, "variant", timetable.DefaultVariantID, "variant id")
	if withStage {
		cmd.Flags().StringVar(&s.stageID, "stage", timetable.DefaultStageID, "planning stage (base, operations, dispatch)")
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// connectFromConfig loads the config and opens the storage connection. The
// returned DB is nil when storage is disabled.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Storage.IsEnabled() {
		return cfg, nil, nil
	}
	gormDB, err := db.Connect(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s storage: %w", cfg.Storage.Driver, err)
	}
	return cfg, gormDB, nil
}

func storeOptions(cfg *config.Config) timetable.Options {
	return timetable.Options{
		BatchSize:      cfg.Storage.BatchSize,
		DefaultTimeout: cfg.Timeouts.Default,
		ReplaceTimeout: cfg.Timeouts.Replace,
		IsProductive:   cfg.Variants.IsProductive,
	}
}

func newService(cfg *config.Config, gormDB *gorm.DB) *timetable.Service {
	return timetable.NewService(timetable.NewStore(gormDB, storeOptions(cfg)), partition.NewManager(gormDB))
}

func serviceFromConfig(configPath string) (*config.Config, *timetable.Service, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newService(cfg, gormDB), nil
}

// optString turns an empty flag value into nil.
func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const timeLayout = "2006-01-02 15:04"
