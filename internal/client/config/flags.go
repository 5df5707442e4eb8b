package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the sync server
//	-t int      request timeout in seconds
//	-i int      online check interval in seconds
//	-d string   path of the local database
//	-k string   path of the device key file
//	-l string   path of the log file
//	-trailing   run one trailing sync for changes made during a sync
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-i", "-d", "-k", "-l", "-trailing"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "base URL of the sync server")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.KeyFile, "k", cfg.KeyFile, "device key file path")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "log file path")
	fs.BoolVar(&cfg.TrailingSync, "trailing", cfg.TrailingSync, "schedule a trailing sync pass")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
