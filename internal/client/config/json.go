package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/garrison/internal/flagx"
	"github.com/dmitrijs2005/garrison/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerURL    string         `json:"server_url"`
	SyncInterval timex.Duration `json:"sync_interval"`
	DatabasePath string         `json:"database_path"`
	SyncTimeout  timex.Duration `json:"sync_timeout"`
	AuthToken    string         `json:"auth_token"`
}

// parseJson overlays Config with the non-empty values of the JSON file named
// by -c/-config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.SyncTimeout.Duration > 0 {
		cfg.SyncTimeout = jc.SyncTimeout.Duration
	}
	if jc.AuthToken != "" {
		cfg.AuthToken = jc.AuthToken
	}
}
