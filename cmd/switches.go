package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tinkerbelle-io/hw-bridge/internal/audit"
)

var flagJSON bool

var switchesCmd = &cobra.Command{
	Use:   "switches",
	Short: "List the switches of a hub",
	Long: `List the switches of the configured hub (or --hub).

A hub name that does not exist prints an empty list; the vendor API does not
distinguish an empty hub from a missing one.`,
	RunE: runSwitches,
}

func init() {
	switchesCmd.Flags().BoolVar(&flagJSON, "json", false, "Print switches as JSON")
	rootCmd.AddCommand(switchesCmd)
}

func runSwitches(cmd *cobra.Command, args []string) error {
	b, err := newBridge(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.cfg.Hub == "" {
		return fmt.Errorf("--hub or HW_HUB is required")
	}

	ctx, cancel := b.withTimeout(cmd.Context())
	defer cancel()

	switches, err := b.flows.ListSwitches(ctx, b.cfg.Hub)
	b.record(audit.AuditEntry{EventType: audit.EventDiscover, Hub: b.cfg.Hub}.WithResult(err))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(switches)
	}

	if len(switches) == 0 {
		fmt.Fprintf(out, "No switches found in hub %q\n", b.cfg.Hub)
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tHUB ID")
	for _, sw := range switches {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", sw.ID, sw.Name, sw.HubID)
	}
	return tw.Flush()
}
