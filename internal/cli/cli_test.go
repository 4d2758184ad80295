package cli

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cubeproducts/internal/app"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want *app.Config
	}{
		{
			name: "positional paths",
			args: []string{"a.hcl", "more"},
			want: &app.Config{ConfigPaths: []string{"a.hcl", "more"}, LogFormat: "json", LogLevel: "info"},
		},
		{
			name: "flag path comes first",
			args: []string{"-c", "base.hcl", "-log-format", "TEXT", "-log-level", "debug", "override.hcl"},
			want: &app.Config{ConfigPaths: []string{"base.hcl", "override.hcl"}, LogFormat: "text", LogLevel: "debug"},
		},
		{
			name: "run options",
			args: []string{
				"-config", "p.yaml", "-workers", "4", "-dry-run", "-healthcheck-port", "8080",
				"-targets", "ngc0628, ngc4321", "-configs", "12m+7m", "-products", "co21,,",
			},
			want: &app.Config{
				ConfigPaths:     []string{"p.yaml"},
				LogFormat:       "json",
				LogLevel:        "info",
				HealthcheckPort: 8080,
				Workers:         4,
				DryRun:          true,
				Targets:         []string{"ngc0628", "ngc4321"},
				Configs:         []string{"12m+7m"},
				Products:        []string{"co21"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, exit, err := Parse(tc.args, &bytes.Buffer{})
			require.NoError(t, err)
			assert.False(t, exit)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_UsageWithoutPath(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"-log-format", "xml", "a.hcl"},
		{"-log-level", "trace", "a.hcl"},
		{"-workers", "-2", "a.hcl"},
		{"-unknown"},
	} {
		_, _, err := Parse(args, &bytes.Buffer{})
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr, "args %v", args)
		assert.Equal(t, 2, exitErr.Code)
	}
}
