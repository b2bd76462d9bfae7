package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tinkerbelle-io/hw-bridge/internal/audit"
	"github.com/tinkerbelle-io/hw-bridge/internal/config"
	"github.com/tinkerbelle-io/hw-bridge/internal/flows"
	"github.com/tinkerbelle-io/hw-bridge/internal/homewizard"
	"github.com/tinkerbelle-io/hw-bridge/internal/logging"
)

// bridge bundles what every vendor-facing command needs.
type bridge struct {
	cfg       *config.Config
	flows     *flows.Orchestrator
	audit     *audit.AuditLogger
	requestID string
	log       *slog.Logger
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagUsername != "" {
		cfg.Username = flagUsername
	}
	if flagHub != "" {
		cfg.Hub = flagHub
	}
	if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newBridge(cmd *cobra.Command) (*bridge, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel)

	b := &bridge{
		cfg:       cfg,
		requestID: audit.NewRequestID(),
	}
	b.log = slog.Default().With("component", "bridge", "request_id", b.requestID)

	client := homewizard.NewClient(
		homewizard.WithLoginURL(cfg.LoginURL),
		homewizard.WithPlugsURL(cfg.PlugsURL),
	)
	b.flows = flows.New(client,
		flows.Credentials{Username: cfg.Username, Password: cfg.Password},
		cfg.RetryPolicy(),
		flows.WithLogger(slog.Default().With("component", "flows", "request_id", b.requestID)),
	)

	if cfg.AuditLog != "" {
		al, err := audit.NewAuditLogger(cfg.AuditLog)
		if err != nil {
			return nil, err
		}
		b.audit = al
	}
	return b, nil
}

// withTimeout returns a context bounded by the configured operation timeout.
func (b *bridge) withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, b.cfg.Timeout)
}

// record appends an entry to the audit trail when one is configured.
// A failing audit write is logged, never fatal.
func (b *bridge) record(entry audit.AuditEntry) {
	if b.audit == nil {
		return
	}
	entry.RequestID = b.requestID
	if err := b.audit.Log(entry); err != nil {
		b.log.Warn("audit write failed", "error", err)
	}
}

func (b *bridge) Close() error {
	if b.audit == nil {
		return nil
	}
	return b.audit.Close()
}
