package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd", "-a", "http://10.0.0.1:9090", "-i", "10", "-d", "/tmp/g.db", "-t", "5", "-k", "tok"},
			expected: &Config{ServerURL: "http://10.0.0.1:9090", SyncInterval: 10 * time.Second, DatabasePath: "/tmp/g.db", SyncTimeout: 5 * time.Second, AuthToken: "tok"}},
		{name: "unknown flags ignored", args: []string{"cmd", "-c", "cfg.json", "-x", "-i", "7"},
			expected: &Config{SyncInterval: 7 * time.Second}},
		{name: "incorrect interval", args: []string{"cmd", "-i", "abc"}, expectPanic: true},
		{name: "zero interval", args: []string{"cmd", "-i", "0"}, expectPanic: true},
		{name: "negative interval", args: []string{"cmd", "-i=-5"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
