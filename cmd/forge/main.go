// Package main implements the forge CLI: it runs generation sessions, analyzes
// existing artifacts against a specification and browses archived sessions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forge/internal/config"
	"forge/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "forge - dual-producer UI generation loop",
	Long: `forge generates UI components from a specification and keeps the
specification and the implementation honest with each other.

Each session runs a bounded plan -> dispatch -> analyze -> evaluate loop.
Consistency analyzers compare the two producers' outputs and record
conflicts in a negotiation ledger instead of silently editing either side.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(cfg.Logging.ToLogging()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.BootDebug("config loaded from %s (provider=%s max_steps=%d)", configPath, cfg.LLM.Provider, cfg.Loop.MaxSteps)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".forge/config.yaml", "Config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	rootCmd.AddCommand(runCmd, analyzeCmd, skillsCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext returns a context bounded by --timeout and canceled on
// SIGINT or SIGTERM.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}
