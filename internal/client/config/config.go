package config

import "time"

// Config holds runtime settings for the garrison device.
//
// Fields:
//   - ServerURL: base URL of the sync server, POST /sync is appended.
//   - SyncInterval: how often the background scheduler runs a sync cycle.
//   - DatabasePath: SQLite file holding the local store.
//   - SyncTimeout: upper bound for the push/pull exchange of one cycle.
//   - AuthToken: bearer token used when none was saved with the login command.
type Config struct {
	ServerURL    string
	SyncInterval time.Duration
	DatabasePath string
	SyncTimeout  time.Duration
	AuthToken    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.SyncInterval = 60 * time.Second
	c.DatabasePath = "garrison.db"
	c.SyncTimeout = 30 * time.Second
	c.AuthToken = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
