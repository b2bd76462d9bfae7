package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tinkerbelle-io/hw-bridge/internal/audit"
	"github.com/tinkerbelle-io/hw-bridge/internal/flows"
	"github.com/tinkerbelle-io/hw-bridge/internal/homewizard"
)

var flagHubID string

var onCmd = &cobra.Command{
	Use:   "on <switch>",
	Short: "Turn a switch on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetSwitch(cmd, args[0], true)
	},
}

var offCmd = &cobra.Command{
	Use:   "off <switch>",
	Short: "Turn a switch off",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetSwitch(cmd, args[0], false)
	},
}

func init() {
	for _, c := range []*cobra.Command{onCmd, offCmd} {
		c.Long = `<switch> is a switch id when --hub-id is given. Otherwise it is looked up by
id or name among the switches of the configured hub.`
		c.Flags().StringVar(&flagHubID, "hub-id", "", "Hub id; skips switch discovery")
		rootCmd.AddCommand(c)
	}
}

func runSetSwitch(cmd *cobra.Command, ref string, on bool) error {
	b, err := newBridge(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := b.withTimeout(cmd.Context())
	defer cancel()

	target := flows.Switch{ID: ref, Name: ref, HubID: flagHubID}
	if target.HubID == "" {
		if b.cfg.Hub == "" {
			return fmt.Errorf("--hub-id, --hub or HW_HUB is required")
		}
		switches, err := b.flows.ListSwitches(ctx, b.cfg.Hub)
		b.record(audit.AuditEntry{EventType: audit.EventDiscover, Hub: b.cfg.Hub}.WithResult(err))
		if err != nil {
			return err
		}
		sw, ok := flows.Resolve(switches, ref)
		if !ok {
			return fmt.Errorf("switch %q not found in hub %q", ref, b.cfg.Hub)
		}
		target = sw
	}

	_, err = b.flows.SetSwitchState(ctx, target.ID, target.HubID, on)
	b.record(audit.AuditEntry{
		EventType: audit.EventSwitchSet,
		Hub:       target.HubID,
		Target:    target.ID,
		Action:    homewizard.Action(on),
	}.WithResult(err))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", target.Name, homewizard.Action(on))
	return nil
}
