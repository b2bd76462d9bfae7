package audit

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditLogger writes append-only, hash-chained audit entries to a JSON-lines file.
type AuditLogger struct {
	mu       sync.Mutex
	file     *os.File
	prevHash string
}

// DefaultPath returns the per-user default audit log path.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "audit.log"
	}
	return filepath.Join(dir, "hw-bridge", "audit.log")
}

// NewRequestID returns an id that groups the entries of one invocation.
func NewRequestID() string {
	return uuid.NewString()
}

// NewAuditLogger opens (or creates) the audit log file at path.
// The directory is created with 0700; the file with 0600.
// It reads existing entries to recover the last hash for chain continuity.
func NewAuditLogger(path string) (*AuditLogger, error) {
	if path == "" {
		path = DefaultPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create dir %s: %w", dir, err)
	}

	prevHash := ""
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		lines := splitLines(data)
		for i := len(lines) - 1; i >= 0; i-- {
			if len(lines[i]) == 0 {
				continue
			}
			var entry AuditEntry
			if json.Unmarshal(lines[i], &entry) == nil {
				prevHash = entry.EntryHash
			}
			break
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	return &AuditLogger{file: f, prevHash: prevHash}, nil
}

// Log writes an audit entry, computing its hash chain value.
func (l *AuditLogger) Log(entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	hash, err := chainHash(l.prevHash, entry)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}
	entry.EntryHash = hash
	l.prevHash = hash

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal final: %w", err)
	}
	line = append(line, '\n')

	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Verify re-computes the chain of the file at path. It returns the number of
// valid entries and an error naming the first line that does not match.
func Verify(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("audit: read %s: %w", path, err)
	}

	prevHash := ""
	count := 0
	for i, ln := range splitLines(data) {
		if len(ln) == 0 {
			continue
		}
		var entry AuditEntry
		if err := json.Unmarshal(ln, &entry); err != nil {
			return count, fmt.Errorf("audit: line %d: %w", i+1, err)
		}
		want, err := chainHash(prevHash, entry)
		if err != nil {
			return count, fmt.Errorf("audit: line %d: %w", i+1, err)
		}
		if entry.EntryHash != want {
			return count, fmt.Errorf("audit: line %d: hash chain broken", i+1)
		}
		prevHash = entry.EntryHash
		count++
	}
	return count, nil
}

// chainHash computes SHA256(prevHash + json_without_hash).
func chainHash(prevHash string, entry AuditEntry) (string, error) {
	entry.EntryHash = ""
	raw, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(append([]byte(prevHash), raw...))
	return fmt.Sprintf("%x", h), nil
}

// splitLines splits data into JSON-lines (byte slices).
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
