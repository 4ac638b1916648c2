package config

import "time"

// Config holds runtime settings for the FinMate client shell.
//
// Fields:
//   - ServerURL: base URL of the backend, e.g. "http://127.0.0.1:8000".
//   - RequestTimeout: per-request HTTP timeout.
//   - RefreshTimeout: bound on one access token refresh.
//   - StoreDriver / StoreDSN: credential store backend, see tokenstore.Open.
//   - DeviceName: User-Agent sent with every call; shown in the session list.
//   - LogFormat / LogLevel: see logging.New.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration
	RefreshTimeout time.Duration
	StoreDriver    string
	StoreDSN       string
	DeviceName     string
	LogFormat      string
	LogLevel       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000"
	c.RequestTimeout = 30 * time.Second
	c.RefreshTimeout = 15 * time.Second
	c.StoreDriver = "sqlite"
	c.StoreDSN = "finmate.db"
	c.DeviceName = "FinMate CLI"
	c.LogFormat = "text"
	c.LogLevel = "warn"
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
