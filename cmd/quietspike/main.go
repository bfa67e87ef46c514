package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"QuietSpike/internal/di"
	"QuietSpike/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "quietspike",
	Short: "Quiet-period volume spike screener for A-share daily bars",
	Long: `quietspike syncs daily bars from an AKTools-compatible market-data API,
stores them, and screens a universe of symbols for volume and price spikes
that follow a quiet accumulation period.

Examples:
  quietspike universe refresh
  quietspike sync --start 20240101
  quietspike screen
  quietspike scan --symbols 600000,000001
  quietspike serve`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

// withServices wires the CLI dependencies, runs fn and releases them.
func withServices(fn func(*di.Services) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := di.InitializeServices(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()
	return fn(svc)
}
