package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCAddr != "127.0.0.1:7437" {
		t.Errorf("RPCAddr = %q", cfg.RPCAddr)
	}
	if cfg.TransportTimeout != 10*time.Second {
		t.Errorf("TransportTimeout = %v", cfg.TransportTimeout)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir should receive a derived default")
	}
	if got := cfg.DBPath(); got != filepath.Join(cfg.DataDir, "cache.db") {
		t.Errorf("DBPath = %q", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UNITIME_BASE_URL", "https://api.other.example")
	t.Setenv("UNITIME_DATA_DIR", "/var/lib/unitime")
	t.Setenv("UNITIME_TRANSPORT_TIMEOUT", "3s")
	t.Setenv("UNITIME_GROUP", "CS-201")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://api.other.example" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.DataDir != "/var/lib/unitime" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.TransportTimeout != 3*time.Second {
		t.Errorf("TransportTimeout = %v", cfg.TransportTimeout)
	}
	if cfg.Group != "CS-201" {
		t.Errorf("Group = %q", cfg.Group)
	}
}
