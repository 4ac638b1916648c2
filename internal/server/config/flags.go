package config

import (
	"flag"
	"os"
	"time"

	"github.com/anayy09/FinMate/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string       REST bind address (e.g., ":8000")
//	-s string       JWT HMAC secret key
//	-t int          access token validity, minutes
//	-r int          refresh token validity, minutes
//	-i string       issuer shown in authenticator apps
//	-l string       log format: text, json or zerolog
//	-v string       log level
//	-auto-verify    skip email verification for new accounts
//	-d string       SQLite DSN for users and sessions
//
// Duration flags are whole minutes.
func parseFlags(config *Config) {
	args := flagx.Select(os.Args[1:], "a", "s", "t", "r", "i", "l", "v", "auto-verify", "d")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.Issuer, "i", config.Issuer, "TOTP issuer")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.BoolVar(&config.AutoVerifyEmail, "auto-verify", config.AutoVerifyEmail, "mark new accounts verified")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
}
