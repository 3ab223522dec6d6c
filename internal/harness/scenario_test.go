package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content to a temp file whose catalog directory is the
// shared test catalog.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	catalogDir, err := filepath.Abs("testdata/catalog")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	content = "catalog: " + catalogDir + "\n" + content
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
target: ENUMERABLE
request_id: fixed
plan:
  project:
    input:
      scan: orders
    fields:
      - name: doubled
        call: "*"
        operands:
          - field: amount
          - literal: 2
assertions:
  - type: planned
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "ENUMERABLE", scenario.Target)
	assert.Equal(t, "fixed", scenario.RequestID)
	require.NotNil(t, scenario.Plan.Project)
	assert.Equal(t, "orders", scenario.Plan.Project.Input.Scan)
	require.Len(t, scenario.Plan.Project.Fields, 1)
	assert.Equal(t, "doubled", scenario.Plan.Project.Fields[0].Name)
	assert.Equal(t, "*", scenario.Plan.Project.Fields[0].Call)
	assert.Len(t, scenario.Plan.Project.Fields[0].Operands, 2)
}

func TestLoadScenario_RelativeCatalog(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/scan_orders.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "catalog"), scenario.Catalog)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "description: d\ntarget: ENUMERABLE\nplan: {scan: orders}\nassertions: [{type: planned}]\n",
			want:    "name is required",
		},
		{
			name:    "empty plan",
			content: "name: n\ndescription: d\ntarget: ENUMERABLE\nplan: {}\nassertions: [{type: planned}]\n",
			want:    "plan: exactly one of",
		},
		{
			name:    "two plan nodes",
			content: "name: n\ndescription: d\ntarget: ENUMERABLE\nplan: {scan: orders, values: {fields: [{name: a, type: INT}]}}\nassertions: [{type: planned}]\n",
			want:    "plan: exactly one of",
		},
		{
			name:    "nested empty input",
			content: "name: n\ndescription: d\ntarget: ENUMERABLE\nplan: {filter: {condition: {literal: true}}}\nassertions: [{type: planned}]\n",
			want:    "plan.filter.input",
		},
		{
			name:    "no assertions",
			content: "name: n\ndescription: d\ntarget: ENUMERABLE\nplan: {scan: orders}\n",
			want:    "assertions list is required",
		},
		{
			name:    "error_code without code",
			content: "name: n\ndescription: d\ntarget: ENUMERABLE\nplan: {scan: orders}\nassertions: [{type: error_code}]\n",
			want:    "code is required",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\ntarget: ENUMERABLE\nplan: {scan: orders}\nassertions: [{type: trace_order}]\n",
			want:    `unknown assertion type "trace_order"`,
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\ntarget: ENUMERABLE\nflow: []\nplan: {scan: orders}\nassertions: [{type: planned}]\n",
			want:    "failed to parse YAML",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadScenario_MissingCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	content := "name: n\ndescription: d\ncatalog: nowhere\ntarget: ENUMERABLE\nplan: {scan: orders}\nassertions: [{type: planned}]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog directory not found")
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 8)
	assert.Equal(t, "budget_exceeded", scenarios[0].Name, "sorted by file name")

	_, err = LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenarios found")
}

func TestLoadDir_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile("testdata/scenarios/scan_orders.yaml")
	require.NoError(t, err)
	catalogDir, err := filepath.Abs("testdata/catalog")
	require.NoError(t, err)
	content := strings.Replace(string(data), "catalog: ../catalog", "catalog: "+catalogDir, 1)
	for _, name := range []string{"a.yaml", "b.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	_, err = LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario "scan_orders" is defined in both`)
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "planned", AssertPlanned)
	assert.Equal(t, "error_code", AssertErrorCode)
	assert.Equal(t, "explain_contains", AssertExplainContains)
	assert.Equal(t, "conventions", AssertConventions)
	assert.Equal(t, "sql", AssertSQL)
	assert.Equal(t, "find", AssertFind)
}
