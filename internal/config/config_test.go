package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CODEBREAK_CONFIG", "LOG_LEVEL", "LISTEN_ADDR", "TURN_SECONDS", "JOIN_SECRET", "RESULTS_DB", "PING_SECONDS"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Load() = %+v want %+v", cfg, Default())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "codebreak.yaml")
	yml := "listen_addr: \":9000\"\nturn_seconds: 45\njoin_secret: from-file\nresults_db: ./data/results.db\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CODEBREAK_CONFIG", path)
	t.Setenv("TURN_SECONDS", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9000" || cfg.JoinSecret != "from-file" || cfg.ResultsDB != "./data/results.db" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.TurnSeconds != 60 {
		t.Fatalf("TurnSeconds = %d want env override 60", cfg.TurnSeconds)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "turn too short", env: map[string]string{"TURN_SECONDS": "2"}},
		{name: "turn too long", env: map[string]string{"TURN_SECONDS": "500"}},
		{name: "turn not a number", env: map[string]string{"TURN_SECONDS": "soon"}},
		{name: "bad ping", env: map[string]string{"PING_SECONDS": "0"}},
		{name: "missing file", env: map[string]string{"CODEBREAK_CONFIG": "/nonexistent/codebreak.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("Load succeeded, want error")
			}
		})
	}
}

func TestReadTimeoutOutlastsPing(t *testing.T) {
	for _, ping := range []string{"1", "30", "59", "60", "90", "300"} {
		t.Run(ping, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PING_SECONDS", ping)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got, want := cfg.ReadTimeout(), 2*cfg.PingInterval(); got != want {
				t.Fatalf("ReadTimeout = %v want %v", got, want)
			}
			if cfg.ReadTimeout() <= cfg.PingInterval() {
				t.Fatalf("ReadTimeout %v does not outlast ping %v", cfg.ReadTimeout(), cfg.PingInterval())
			}
		})
	}

	if got := Default().ReadTimeout(); got != time.Minute {
		t.Fatalf("default ReadTimeout = %v want 1m", got)
	}
}
