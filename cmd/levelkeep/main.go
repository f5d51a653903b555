package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/datallboy/levelkeep/internal/app"
	"github.com/datallboy/levelkeep/internal/infra/config"
	"github.com/datallboy/levelkeep/internal/infra/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "levelkeep",
	Short: "Download, install and launch custom levels under Wine",
	Long: `levelkeep keeps a catalog of custom levels and works out where each one
is in its install lifecycle by looking at the filesystem. Installing a level
downloads its archive, unpacks it and links or copies it into the game root.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $XDG_CONFIG_HOME/levelkeep/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stdout as well as the log file")
}

func main() {
	// Setup Signal Handling for Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadApp reads the config, opens the log and wires the level machine.
// Interactive commands keep the log off stdout unless --verbose is set;
// the server honours log.include_stdout. Callers must Close the result.
func loadApp(ctx context.Context, serving bool) (*app.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), verbose || (serving && cfg.Log.IncludeStdout))
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	a := app.NewContext(cfg, log)
	if err := a.Init(ctx); err != nil {
		return nil, err
	}
	return a, nil
}
