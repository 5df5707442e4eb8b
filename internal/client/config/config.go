package config

import "time"

// Config holds runtime settings for the gophnotes client.
//
// Units: durations are time.Duration values (e.g., 3*time.Second).
type Config struct {
	// ServerBaseURL is the root of the sync server, e.g. http://127.0.0.1:8080.
	ServerBaseURL string
	// RequestTimeout bounds every network call.
	RequestTimeout time.Duration
	// OnlineCheckInterval is how often server reachability is probed.
	OnlineCheckInterval time.Duration
	// DatabasePath is the local SQLite file.
	DatabasePath string
	// KeyFile holds the device secret protecting stored credentials.
	KeyFile string
	// LogFile receives the client log, rotated by size.
	LogFile  string
	LogLevel string
	// TrailingSync schedules one follow-up sync for changes made while a sync
	// is running instead of waiting for the next change.
	TrailingSync bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.DatabasePath = "notes.db"
	c.KeyFile = "notes.key"
	c.LogFile = "notes.log"
	c.LogLevel = "info"
	c.TrailingSync = false
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
