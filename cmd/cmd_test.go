package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tinkerbelle-io/hw-bridge/internal/audit"
	"github.com/tinkerbelle-io/hw-bridge/internal/config"
	"github.com/tinkerbelle-io/hw-bridge/internal/flows"
)

// fakeCloud serves the three vendor endpoints.
type fakeCloud struct {
	mu      sync.Mutex
	logins  int
	lists   int
	actions []string // "hub/switch/action"
	status  string
}

func (f *fakeCloud) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /account/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		fmt.Fprint(w, `{"session":"dummy-session-token"}`)
	})
	mux.HandleFunc("GET /plugs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lists++
		f.mu.Unlock()
		if r.Header.Get("X-Session-Token") != "dummy-session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var devices []string
		for i := 1; i <= 5; i++ {
			devices = append(devices, fmt.Sprintf(`{"id":"id-%d","name":"switch%d","typeName":"flamingo_switch"}`, i, i))
		}
		fmt.Fprintf(w, `[{"id":"dummy-id","name":"dummy-name","devices":[%s]}]`, strings.Join(devices, ","))
	})
	mux.HandleFunc("POST /plugs/{hub}/devices/{id}/action", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Action string `json:"action"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.actions = append(f.actions, r.PathValue("hub")+"/"+r.PathValue("id")+"/"+body.Action)
		status := f.status
		f.mu.Unlock()
		if status == "" {
			status = "Success"
		}
		fmt.Fprintf(w, `{"status":%q}`, status)
	})
	return mux
}

type testEnv struct {
	cloud      *fakeCloud
	configPath string
	auditPath  string
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	for _, k := range []string{"HW_USERNAME", "HW_PASSWORD", "HW_HUB", "HW_MAX_RETRIES", "HW_INITIAL_BACKOFF", "HW_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cloud := &fakeCloud{}
	srv := httptest.NewServer(cloud.handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	env := &testEnv{
		cloud:      cloud,
		configPath: filepath.Join(dir, "config.yaml"),
		auditPath:  filepath.Join(dir, "audit.log"),
	}

	cfg := config.Default()
	cfg.Username = "dummy-username"
	cfg.Password = "dummy-password"
	cfg.Hub = "dummy-name"
	cfg.MaxRetries = 1
	cfg.InitialBackoff = time.Millisecond
	cfg.LoginURL = srv.URL + "/account/login"
	cfg.PlugsURL = srv.URL + "/plugs"
	cfg.AuditLog = env.auditPath
	cfg.LogLevel = "error"
	if err := config.Save(env.configPath, cfg); err != nil {
		t.Fatal(err)
	}
	return env
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagConfig, flagUsername, flagHub, flagHubID = "", "", "", ""
	flagLogLevel = "info"
	flagJSON = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginCommand(t *testing.T) {
	env := setup(t)

	out, err := runCLI(t, "login", "--config", env.configPath)
	if err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Authenticated as dummy-username") {
		t.Errorf("output = %q", out)
	}
	if env.cloud.logins != 1 {
		t.Errorf("logins = %d, want 1", env.cloud.logins)
	}
}

func TestSwitchesJSON(t *testing.T) {
	env := setup(t)

	out, err := runCLI(t, "switches", "--config", env.configPath, "--json")
	if err != nil {
		t.Fatalf("switches: %v\n%s", err, out)
	}

	var switches []flows.Switch
	if err := json.Unmarshal([]byte(out), &switches); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(switches) != 5 {
		t.Fatalf("got %d switches, want 5", len(switches))
	}
	if switches[4].ID != "id-5" || switches[4].HubID != "dummy-id" {
		t.Errorf("switch[4] = %+v", switches[4])
	}
}

func TestSwitchesMissingHub(t *testing.T) {
	env := setup(t)

	out, err := runCLI(t, "switches", "--config", env.configPath, "--hub", "missing-hub")
	if err != nil {
		t.Fatalf("switches: %v", err)
	}
	if !strings.Contains(out, `No switches found in hub "missing-hub"`) {
		t.Errorf("output = %q", out)
	}
}

func TestSwitchesMissingHubJSON(t *testing.T) {
	env := setup(t)

	out, err := runCLI(t, "switches", "--config", env.configPath, "--hub", "missing-hub", "--json")
	if err != nil {
		t.Fatalf("switches: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("json output = %q, want []", out)
	}
}

func TestOnResolvesByName(t *testing.T) {
	env := setup(t)

	out, err := runCLI(t, "on", "switch2", "--config", env.configPath)
	if err != nil {
		t.Fatalf("on: %v\n%s", err, out)
	}
	if !strings.Contains(out, "switch2: On") {
		t.Errorf("output = %q", out)
	}
	if len(env.cloud.actions) != 1 || env.cloud.actions[0] != "dummy-id/id-2/On" {
		t.Errorf("actions = %v", env.cloud.actions)
	}

	n, err := audit.Verify(env.auditPath)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if n != 2 {
		t.Errorf("audit entries = %d, want 2 (discover + switch)", n)
	}
}

func TestOffWithHubIDSkipsDiscovery(t *testing.T) {
	env := setup(t)

	if _, err := runCLI(t, "off", "id-3", "--hub-id", "dummy-id", "--config", env.configPath); err != nil {
		t.Fatal(err)
	}
	if env.cloud.lists != 0 {
		t.Errorf("lists = %d, want 0", env.cloud.lists)
	}
	if len(env.cloud.actions) != 1 || env.cloud.actions[0] != "dummy-id/id-3/Off" {
		t.Errorf("actions = %v", env.cloud.actions)
	}
}

func TestOnUnknownSwitch(t *testing.T) {
	env := setup(t)

	_, err := runCLI(t, "on", "garage", "--config", env.configPath)
	if err == nil || !strings.Contains(err.Error(), `switch "garage" not found`) {
		t.Errorf("error = %v", err)
	}
}

func TestOnRejectedStatus(t *testing.T) {
	env := setup(t)
	env.cloud.status = "Failed"

	_, err := runCLI(t, "on", "id-1", "--hub-id", "dummy-id", "--config", env.configPath)
	if err == nil || !strings.Contains(err.Error(), "switch state rejected") {
		t.Fatalf("error = %v, want rejection", err)
	}
	if len(env.cloud.actions) != 1 {
		t.Errorf("actions = %d, want 1 (no retry on rejection)", len(env.cloud.actions))
	}
}

func TestStatusMasksPassword(t *testing.T) {
	env := setup(t)

	out, err := runCLI(t, "status", "--config", env.configPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "dummy-password") || strings.Contains(out, "du...rd") {
		t.Error("status must not print the password")
	}
	if !strings.Contains(out, "Password:   ****\n") {
		t.Errorf("password line missing from output %q", out)
	}
	if !strings.Contains(out, "Hub:        dummy-name") {
		t.Errorf("output = %q", out)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "n/a"},
		{"short", "****"},
		{"hunter2pass", "****"},
		{"dummy-password", "****"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
