package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplain_Text(t *testing.T) {
	out, err := execute(t, "explain", "testdata/scenarios/filter_customers_jdbc.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Scenario filter_customers_jdbc -> JDBC_pg (request test-request-default)")
	assert.Contains(t, out, "Calc[JDBC_pg](id=$0, name=$1, tier=$2, condition=>($2, 2))\n")
	assert.Contains(t, out, `SQL: SELECT "id" AS "id"`)
	assert.Contains(t, out, "[2]")
}

func TestExplain_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "explain", "testdata/scenarios/scan_orders.yaml")
	require.NoError(t, err)

	var data struct {
		Scenario    string   `json:"scenario"`
		Target      string   `json:"target"`
		Explain     string   `json:"explain"`
		Conventions []string `json:"conventions"`
		SQL         string   `json:"sql"`
	}
	decodeData(t, out, &data)
	assert.Equal(t, "scan_orders", data.Scenario)
	assert.Equal(t, []string{"ENUMERABLE"}, data.Conventions)
	assert.Contains(t, data.Explain, "table=orders")
	assert.Empty(t, data.SQL)
}

func TestExplain_TargetOverride(t *testing.T) {
	out, err := execute(t, "--format", "json", "explain", "testdata/scenarios/scan_orders.yaml", "--target", "JDBC_pg")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePlanning, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "UNSUPPORTED: cannot convert Scan of orders to JDBC_pg")
}

func TestExplain_MissingScenario(t *testing.T) {
	out, err := execute(t, "explain", "testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
}
