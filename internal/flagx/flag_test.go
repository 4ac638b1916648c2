package flagx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		names []string
		want  []string
	}{
		{
			name:  "separate value",
			args:  []string{"-a", "http://127.0.0.1:8000", "-x", "1"},
			names: []string{"a"},
			want:  []string{"-a", "http://127.0.0.1:8000"},
		},
		{
			name:  "attached value with double dash",
			args:  []string{"--d=finmate.db", "-v", "debug"},
			names: []string{"d"},
			want:  []string{"--d=finmate.db"},
		},
		{
			name:  "boolean flag followed by another flag",
			args:  []string{"-auto-verify", "-a", ":8000"},
			names: []string{"auto-verify", "a"},
			want:  []string{"-auto-verify", "-a", ":8000"},
		},
		{
			name:  "trailing flag without value",
			args:  []string{"-n"},
			names: []string{"n"},
			want:  []string{"-n"},
		},
		{
			name:  "positional arguments dropped",
			args:  []string{"login", "-", "--", "-v", "info"},
			names: []string{"v"},
			want:  []string{"-v", "info"},
		},
		{
			name:  "nothing owned",
			args:  []string{"-x", "1"},
			names: []string{"a"},
			want:  []string{},
		},
		{
			name:  "repeats keep order",
			args:  []string{"-c", "one.json", "-config=two.json"},
			names: []string{"c", "config"},
			want:  []string{"-c", "one.json", "-config=two.json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(tt.args, tt.names...)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Select() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "/etc/finmate.json", ConfigPath([]string{"-a", ":8000", "-c", "/etc/finmate.json"}))
	assert.Equal(t, "b.json", ConfigPath([]string{"-c", "a.json", "--config=b.json"}))
	assert.Empty(t, ConfigPath([]string{"-v", "debug"}))
	assert.Empty(t, ConfigPath(nil))
}
