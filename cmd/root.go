package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Flags
	flagConfig   string
	flagLogLevel string
	flagUsername string
	flagHub      string
)

var rootCmd = &cobra.Command{
	Use:   "hw-bridge",
	Short: "Control HomeWizard Lite smart switches from the command line",
	Long: `hw-bridge talks to the HomeWizard Lite cloud. It logs in with your account,
discovers the switches of a hub and turns them on or off.

Sessions are cached for an hour and renewed transparently. Every network call is
retried with exponential backoff.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: $XDG_CONFIG_HOME/hw-bridge/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagUsername, "username", "", "Account username (env: HW_USERNAME)")
	rootCmd.PersistentFlags().StringVar(&flagHub, "hub", "", "Hub name (env: HW_HUB)")
}

// Execute runs the root command.
func Execute(version string) {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("hw-bridge %s\n", version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
