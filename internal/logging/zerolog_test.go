package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLogger_WritesLevelMessageAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	log.With("module", "gateway").Warn(context.Background(), "refresh failed", "attempt", 1)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "warn", got["level"])
	assert.Equal(t, "refresh failed", got["message"])
	assert.Equal(t, "gateway", got["module"])
	assert.EqualValues(t, 1, got["attempt"])
}

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		want    string
		wantErr bool
	}{
		{name: "text", format: FormatText, level: "info", want: "msg=hello"},
		{name: "json", format: FormatJSON, level: "debug", want: `"msg":"hello"`},
		{name: "zerolog", format: FormatZerolog, level: "info", want: `"message":"hello"`},
		{name: "unknown format", format: "xml", level: "info", wantErr: true},
		{name: "bad level", format: FormatText, level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log, err := New(tt.format, tt.level, &buf)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			log.Info(context.Background(), "hello")
			assert.True(t, strings.Contains(buf.String(), tt.want), buf.String())
		})
	}
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(FormatText, "warn", &buf)
	require.NoError(t, err)

	log.Info(context.Background(), "quiet")
	assert.Empty(t, buf.String())
}

func TestNop_Discards(t *testing.T) {
	log := Nop().With("k", "v")
	log.Error(context.Background(), "nothing")
}

func TestZerologLogger_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologLogger(zerolog.New(&buf))

	ctx := WithAttrs(context.Background(), "request_id", "r-9")
	log.Info(ctx, "login rejected", "status", 401)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "r-9", got["request_id"])
	assert.EqualValues(t, 401, got["status"])
}
