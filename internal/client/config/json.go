package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/anayy09/FinMate/internal/flagx"
	"github.com/anayy09/FinMate/internal/timex"
)

// JsonConfig is the on-disk shape of Config.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	RefreshTimeout timex.Duration `json:"refresh_timeout"`
	StoreDriver    string         `json:"store_driver"`
	StoreDSN       string         `json:"store_dsn"`
	DeviceName     string         `json:"device_name"`
	LogFormat      string         `json:"log_format"`
	LogLevel       string         `json:"log_level"`
}

// parseJson overlays cfg with the file named by -c / -config, if any.
// Read or decode errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	overlay(&cfg.ServerURL, jc.ServerURL)
	overlayDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	overlayDuration(&cfg.RefreshTimeout, jc.RefreshTimeout)
	overlay(&cfg.StoreDriver, jc.StoreDriver)
	overlay(&cfg.StoreDSN, jc.StoreDSN)
	overlay(&cfg.DeviceName, jc.DeviceName)
	overlay(&cfg.LogFormat, jc.LogFormat)
	overlay(&cfg.LogLevel, jc.LogLevel)
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overlayDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
