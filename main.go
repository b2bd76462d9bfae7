// hw-bridge: HomeWizard Lite cloud bridge
//
// Logs in to the HomeWizard cloud, discovers the switches of a hub and turns
// them on or off. Sessions are cached and renewed; network calls are retried
// with exponential backoff.
//
// Usage:
//
//	hw-bridge init --username me@example.com --hub living-room
//	hw-bridge switches                    # list switches of the configured hub
//	hw-bridge on "Desk lamp"              # resolve by name and switch on
//	hw-bridge off id-3 --hub-id 12345     # skip discovery
package main

import "github.com/tinkerbelle-io/hw-bridge/cmd"

var version = "dev"

func main() {
	cmd.Execute(version)
}
