package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tinkerbelle-io/hw-bridge/internal/config"
	"github.com/tinkerbelle-io/hw-bridge/internal/logging"
)

var (
	flagInitPassword  string
	flagInitRetries   int
	flagInitBackoff   time.Duration
	flagInitAuditLog  string
	flagInitOverwrite bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file",
	Long: `Write a config file with your account and hub.

This command:
  1. Takes --username and --hub (required)
  2. Prompts for the password when --password is not given
  3. Writes the config with mode 0600

Existing files are kept unless --force is given.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&flagInitPassword, "password", "", "Account password (prompted when omitted)")
	initCmd.Flags().IntVar(&flagInitRetries, "max-retries", 5, "Retries per network call")
	initCmd.Flags().DurationVar(&flagInitBackoff, "initial-backoff", time.Second, "First backoff delay, doubled per retry")
	initCmd.Flags().StringVar(&flagInitAuditLog, "audit-log", "", "Audit log path (empty disables the audit trail)")
	initCmd.Flags().BoolVar(&flagInitOverwrite, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	logging.Setup(flagLogLevel)

	if flagUsername == "" {
		return fmt.Errorf("--username is required")
	}
	if flagHub == "" {
		return fmt.Errorf("--hub is required")
	}

	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !flagInitOverwrite {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	password := flagInitPassword
	if password == "" {
		p, err := promptPassword(cmd)
		if err != nil {
			return err
		}
		password = p
	}

	cfg := config.Default()
	cfg.Username = flagUsername
	cfg.Password = password
	cfg.Hub = flagHub
	cfg.MaxRetries = flagInitRetries
	cfg.InitialBackoff = flagInitBackoff
	cfg.AuditLog = flagInitAuditLog
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
	return nil
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(raw), nil
}
