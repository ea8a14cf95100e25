// Package config loads runtime configuration for the garrison device.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the sync server
//	-i int      sync interval (seconds)
//	-d string   path of the SQLite database
//	-t int      sync timeout (seconds)
//	-k string   bearer token
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be either strings like "60s"
// or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "sync_interval": "60s",
//	  "database_path": "garrison.db",
//	  "sync_timeout": "30s",
//	  "auth_token": ""
//	}
//
// Missing JSON keys keep the default value.
package config
