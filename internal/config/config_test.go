package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polystore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
planner:
  default_target: JDBC_pg
  max_applications: 500
  timeout: 2s
catalog:
  specs_dir: decls
logging:
  level: debug
  format: json
metrics:
  enabled: true
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "JDBC_pg", cfg.Planner.DefaultTarget)
	assert.Equal(t, 500, cfg.Planner.MaxApplications)
	assert.Equal(t, 2*time.Second, cfg.Planner.Timeout)
	assert.Equal(t, "decls", cfg.Catalog.SpecsDir)
	assert.Equal(t, ".polystore/catalog.db", cfg.Catalog.StorePath, "unset fields are defaulted")
	assert.True(t, cfg.Metrics.Enabled)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ENUMERABLE", cfg.Planner.DefaultTarget)
	assert.Equal(t, 10000, cfg.Planner.MaxApplications)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 4, cfg.Harness.Parallelism)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"none target", "planner: {default_target: NONE}", "planner.default_target"},
		{"negative budget", "planner: {max_applications: -1}", "planner.max_applications"},
		{"bad level", "logging: {level: loud}", "logging.level"},
		{"bad format", "logging: {format: xml}", "logging.format"},
		{"not yaml", "planner: [", "failed to parse"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "warn"

	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "target", "ENUMERABLE")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"target":"ENUMERABLE"`)
}
