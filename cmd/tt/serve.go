package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kron12345/coreplanx/internal/api"
	"github.com/kron12345/coreplanx/internal/config"
	"github.com/kron12345/coreplanx/internal/timetable"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the timetable HTTP API",
		Long:  "Serves the timetable API and runs scheduled maintenance such as dangling link pruning.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, svc, err := serviceFromConfig(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.API.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if svc.Store.Enabled() {
		sched, err := schedulePrune(ctx, svc, cfg.Maintenance)
		if err != nil {
			return err
		}
		if sched != nil {
			sched.Start()
			defer sched.Stop()
		}
	}

	return api.Start(ctx, api.StartOpts{
		Service: svc,
		Port:    port,
		Out:     cmd.OutOrStdout(),
	})
}

// schedulePrune registers the dangling link prune job. It returns nil when
// no schedule is configured.
func schedulePrune(ctx context.Context, svc *timetable.Service, mc config.MaintenanceConfig) (*cron.Cron, error) {
	if mc.PruneLinksCron == "" {
		return nil, nil
	}
	sched := cron.New()
	_, err := sched.AddFunc(mc.PruneLinksCron, func() {
		if _, err := svc.PruneServicePartLinks(ctx, "", mc.LinkGrace); err != nil {
			log.Printf("serve: prune links: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule link pruning %q: %w", mc.PruneLinksCron, err)
	}
	return sched, nil
}
