// Package audit keeps a tamper-evident trail of the commands hw-bridge sent to
// the vendor cloud.
package audit

import "time"

// EventType constants for audit log entries.
const (
	EventLogin     = "LOGIN"
	EventDiscover  = "DISCOVER"
	EventSwitchSet = "SWITCH_SET"
)

// Outcome values.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	EventType string    `json:"event_type"`
	Hub       string    `json:"hub,omitempty"`
	Target    string    `json:"target,omitempty"`
	Action    string    `json:"action,omitempty"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	EntryHash string    `json:"entry_hash"`
}

// WithResult fills Outcome and Error from err.
func (e AuditEntry) WithResult(err error) AuditEntry {
	if err != nil {
		e.Outcome = OutcomeFailed
		e.Error = err.Error()
		return e
	}
	e.Outcome = OutcomeOK
	return e
}
