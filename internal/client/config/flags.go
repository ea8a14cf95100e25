package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/garrison/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. Only the flags
// declared here are taken from os.Args; the rest are left for other parsers.
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the sync server")
	interval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local database")
	timeout := fs.Int("t", int(cfg.SyncTimeout.Seconds()), "sync timeout (in seconds)")
	fs.StringVar(&cfg.AuthToken, "k", cfg.AuthToken, "bearer token")

	if err := flagx.ParseKnown(fs, os.Args[1:]); err != nil {
		panic(err)
	}
	if *interval <= 0 {
		panic(fmt.Sprintf("sync interval must be positive, got %d", *interval))
	}

	cfg.SyncInterval = time.Duration(*interval) * time.Second
	cfg.SyncTimeout = time.Duration(*timeout) * time.Second
}
