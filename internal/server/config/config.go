// Package config handles configuration for the development backend,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the development backend.
//
// Fields:
//   - EndpointAddr: bind address for the REST endpoint.
//   - SecretKey: HMAC secret for signing access tokens (HS256). Do not use test defaults in prod.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - ResetTokenValidityDuration: lifetime of password reset links.
//   - Issuer: label shown by authenticator apps.
//   - AutoVerifyEmail: mark new accounts verified without the email link.
//   - DatabaseDSN: SQLite file for users and sessions; empty keeps them in memory.
//   - LogFormat / LogLevel: see logging.New.
type Config struct {
	EndpointAddr                 string
	SecretKey                    string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	ResetTokenValidityDuration   time.Duration
	Issuer                       string
	AutoVerifyEmail              bool
	DatabaseDSN                  string
	LogFormat                    string
	LogLevel                     string
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8000"
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 5 * time.Minute
	c.RefreshTokenValidityDuration = 24 * time.Hour
	c.ResetTokenValidityDuration = time.Hour
	c.Issuer = "FinMate"
	c.AutoVerifyEmail = false
	c.DatabaseDSN = ""
	c.LogFormat = "text"
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
