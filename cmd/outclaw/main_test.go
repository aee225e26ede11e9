package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupWiresComponents(t *testing.T) {
	dir := t.TempDir()

	routesPath := filepath.Join(dir, "routes.toml")
	if err := os.WriteFile(routesPath, []byte(`
[routes.update_profile]
method = "PUT"
path   = "/v1/profile"
`), 0640); err != nil {
		t.Fatalf("write routes: %v", err)
	}

	configPath := filepath.Join(dir, "outclaw.json")
	if err := os.WriteFile(configPath, []byte(`{
		"server": {"dataDir": "`+dir+`"},
		"dispatch": {
			"baseUrl": "https://api.example.com",
			"deviceId": "dev-1",
			"routesPath": "`+routesPath+`"
		}
	}`), 0640); err != nil {
		t.Fatalf("write config: %v", err)
	}

	app, err := setup(configPath)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	if app.Queue == nil || app.Monitor == nil || app.APIServer == nil || app.Watcher == nil {
		t.Fatalf("components not wired: %+v", app)
	}
	if app.Runner == nil {
		t.Fatal("default interval schedule should create a runner")
	}
	if !app.Monitor.Online() {
		t.Fatal("manual monitor should assume online when mqtt is disabled")
	}
}

func TestSetupRejectsMissingConfig(t *testing.T) {
	if _, err := setup(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
