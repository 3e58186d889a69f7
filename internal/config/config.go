// Package config loads daemon configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the unitime daemon.
type Config struct {
	// BaseURL is the origin API root.
	BaseURL string `env:"UNITIME_BASE_URL" envDefault:"https://api.university.example/v1"`
	// RelayURL is the forwarding service used when the origin is
	// unreachable directly. Empty disables the relay fallback.
	RelayURL string `env:"UNITIME_RELAY_URL" envDefault:"https://relay.university.example/fetch"`
	// ProxyURL is an optional outbound proxy (http, https or socks5).
	ProxyURL string `env:"UNITIME_PROXY_URL"`
	// DataDir holds the cache database.
	DataDir string `env:"UNITIME_DATA_DIR"`
	// RPCAddr is where the JSON-RPC bridge listens.
	RPCAddr string `env:"UNITIME_RPC_ADDR" envDefault:"127.0.0.1:7437"`
	// TransportTimeout bounds each single transport attempt.
	TransportTimeout time.Duration `env:"UNITIME_TRANSPORT_TIMEOUT" envDefault:"10s"`
	// ProbeAddr is dialed to sample connectivity before fetching.
	ProbeAddr string `env:"UNITIME_PROBE_ADDR" envDefault:"1.1.1.1:53"`
	// Group is the default group whose schedule is refreshed and
	// planned in the background. Empty disables background planning.
	Group string `env:"UNITIME_GROUP"`
	// NewsCron controls the background news refresh.
	NewsCron string `env:"UNITIME_NEWS_CRON" envDefault:"*/30 * * * *"`
	// ScheduleCron controls the background schedule refresh.
	ScheduleCron string `env:"UNITIME_SCHEDULE_CRON" envDefault:"0 * * * *"`
	// SlotsCron controls the background time-slot table refresh.
	SlotsCron string `env:"UNITIME_SLOTS_CRON" envDefault:"0 6 * * 1"`
}

// Load parses the environment into a Config and applies derived
// defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		cfg.DataDir = filepath.Join(home, ".unitime")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("UNITIME_BASE_URL must not be empty")
	}
	return &cfg, nil
}

// DBPath returns the cache database location under DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}
