package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertSQL,
		Expected: "SELECT 1",
		Actual:   "SELECT 2",
		Explain:  "Calc[JDBC_pg](a=$0)\n  Scan[JDBC_pg](table=t)\n",
	}
	assert.Equal(t,
		"Assertion failed: sql\n"+
			"  Expected: SELECT 1\n"+
			"  Actual: SELECT 2\n"+
			"\nPlan:\n"+
			"  Calc[JDBC_pg](a=$0)\n"+
			"    Scan[JDBC_pg](table=t)\n",
		err.Error())

	bare := &AssertionError{Type: AssertPlanned, Expected: "x", Actual: "y"}
	assert.NotContains(t, bare.Error(), "Plan:")
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/filter_customers_jdbc.yaml")
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)

	assert.Empty(t, EvaluateAssertions(result, []Assertion{
		{Type: AssertPlanned},
		{Type: AssertConventions, Conventions: []string{"JDBC_pg", "JDBC_pg"}},
		{Type: AssertExplainContains, Text: "table=customers"},
	}))
}

func TestEvaluateAssertions_SQLParams(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/filter_customers_jdbc.yaml")
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	sql := s.Assertions[2].SQL

	tests := []struct {
		name   string
		params []any
		pass   bool
	}{
		{"yaml int", []any{2}, true},
		{"int64", []any{int64(2)}, true},
		{"wrong value", []any{3}, false},
		{"missing", nil, false},
		{"string", []any{"2"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			failed := EvaluateAssertions(result, []Assertion{{Type: AssertSQL, SQL: sql, Params: tc.params}})
			if tc.pass {
				assert.Empty(t, failed)
			} else {
				require.Len(t, failed, 1)
				assert.Contains(t, failed[0], "params")
			}
		})
	}
}

func TestEvaluateAssertions_AgainstFailedPlan(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/orders_to_jdbc.yaml")
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)

	failed := EvaluateAssertions(result, []Assertion{
		{Type: AssertErrorCode, Code: "UNSUPPORTED"},
		{Type: AssertErrorCode, Code: "CANCELLED"},
		{Type: AssertExplainContains, Text: "Scan"},
		{Type: AssertConventions, Conventions: []string{"ENUMERABLE"}},
		{Type: AssertSQL, SQL: "SELECT 1"},
		{Type: AssertFind, Find: "{}"},
	})
	require.Len(t, failed, 5)
	assert.Contains(t, failed[0], "Expected: CANCELLED")
	assert.Contains(t, failed[0], "Actual: UNSUPPORTED: cannot convert Scan of orders to JDBC_pg")
	assert.Contains(t, failed[1], "planning failed: UNSUPPORTED")
	assert.Contains(t, failed[3], "planning failed")
	assert.Contains(t, failed[4], "planning failed")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	failed := EvaluateAssertions(&Result{}, []Assertion{{Type: "trace_order"}})
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "unknown assertion type: trace_order")
}
