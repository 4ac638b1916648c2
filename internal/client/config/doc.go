// Package config loads runtime configuration for the FinMate client shell.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   backend base URL
//	-t int      request timeout (seconds)
//	-r int      refresh timeout (seconds)
//	-s string   credential store driver: sqlite, bbolt, redis or memory
//	-d string   credential store DSN (file path or redis:// URL)
//	-n string   device name sent as User-Agent
//	-l string   log format
//	-v string   log level
//
// # JSON schema
//
// Durations are timex.Duration, so "15s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8000",
//	  "request_timeout": "30s",
//	  "refresh_timeout": "15s",
//	  "store_driver": "bbolt",
//	  "store_dsn": "finmate.bolt",
//	  "device_name": "work laptop",
//	  "log_format": "json",
//	  "log_level": "debug"
//	}
//
// Missing JSON fields keep their default.
package config
