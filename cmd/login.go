package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tinkerbelle-io/hw-bridge/internal/audit"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the HomeWizard cloud and report the session lifetime",
	RunE:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	b, err := newBridge(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := b.withTimeout(cmd.Context())
	defer cancel()

	err = b.flows.Authenticate(ctx)
	b.record(audit.AuditEntry{EventType: audit.EventLogin}.WithResult(err))
	if err != nil {
		return err
	}

	s := b.flows.Session()
	fmt.Fprintf(cmd.OutOrStdout(), "Authenticated as %s\n", b.cfg.Username)
	fmt.Fprintf(cmd.OutOrStdout(), "Session valid until %s\n", s.ExpiresAt().Local().Format(time.RFC1123))
	return nil
}
