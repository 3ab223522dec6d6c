package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommand_Passes(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS scan_orders")
	assert.Contains(t, out, "PASS filter_customers_jdbc")
	assert.Contains(t, out, "PASS orders_to_jdbc")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
}

func TestTestCommand_Filter(t *testing.T) {
	var result TestResult
	out, err := execute(t, "--format", "json", "test", "testdata/scenarios", "--filter", "scan_*")
	require.NoError(t, err)
	decodeData(t, out, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "scan_orders", result.Scenarios[0].Name)
	assert.Nil(t, result.Metrics)
}

func TestTestCommand_UpdateAndCompareGolden(t *testing.T) {
	golden := t.TempDir()

	_, err := execute(t, "test", "testdata/scenarios", "--golden-dir", golden, "--update")
	require.NoError(t, err)
	written, err := os.ReadFile(filepath.Join(golden, "scan_orders.golden"))
	require.NoError(t, err)
	committed, err := os.ReadFile("testdata/scenarios/golden/scan_orders.golden")
	require.NoError(t, err)
	assert.Equal(t, string(committed), string(written))

	_, err = execute(t, "test", "testdata/scenarios", "--golden-dir", golden)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(golden, "orders_to_jdbc.golden"), []byte("{}"), 0644))
	out, err := execute(t, "test", "testdata/scenarios", "--golden-dir", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL orders_to_jdbc")
	assert.Contains(t, out, "plan does not match golden file")
}

func TestTestCommand_Metrics(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "polystore.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("metrics:\n  enabled: true\n"), 0644))

	var result TestResult
	out, err := execute(t, "--config", cfgPath, "--format", "json", "test", "testdata/scenarios")
	require.NoError(t, err)
	decodeData(t, out, &result)
	assert.Equal(t, float64(3), result.Metrics["polystore_planner_conversions_total"])
	assert.Positive(t, result.Metrics["polystore_planner_rule_applications_total"])
}

func TestTestCommand_Errors(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")

	_, err = execute(t, "test", "testdata/scenarios", "--filter", "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No scenarios found")
}
