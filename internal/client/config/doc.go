// Package config loads runtime configuration for the gophnotes client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags -c or -config,
//     or the GOPHNOTES_CONFIG environment variable.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Durations use timex.Duration, so values can be either strings like "3s" or
// integer nanoseconds:
//
//	{
//	  "server_base_url": "http://127.0.0.1:8080",
//	  "request_timeout": "10s",
//	  "online_check_interval": "3s",
//	  "database_path": "notes.db",
//	  "key_file": "notes.key",
//	  "log_file": "notes.log",
//	  "log_level": "info",
//	  "trailing_sync": false
//	}
package config
