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
		{name: "all flags", args: []string{"cmd",
			"-a", "http://10.0.0.2:8000", "-t", "5", "-r", "2",
			"-s", "bbolt", "-d", "creds.bolt", "-n", "phone", "-l", "zerolog", "-v", "debug",
		}, expected: &Config{
			ServerURL:      "http://10.0.0.2:8000",
			RequestTimeout: 5 * time.Second,
			RefreshTimeout: 2 * time.Second,
			StoreDriver:    "bbolt",
			StoreDSN:       "creds.bolt",
			DeviceName:     "phone",
			LogFormat:      "zerolog",
			LogLevel:       "debug",
		}},
		{name: "incorrect refresh timeout", args: []string{"cmd", "-r", "abc"}, expectPanic: true},
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
