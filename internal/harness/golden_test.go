package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/filter_customers_jdbc.yaml")
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)

	require.NoError(t, AssertGolden(t, "filter_customers_jdbc", result))
}

func TestMarshalGolden(t *testing.T) {
	planned := &Result{
		Scenario:    "s",
		Target:      "ENUMERABLE",
		RequestID:   "r",
		Explain:     "Join[ENUMERABLE](type=inner)\n  Values[ENUMERABLE](tuples=[])\n",
		Conventions: []string{"ENUMERABLE"},
	}
	data, err := MarshalGolden(planned)
	require.NoError(t, err)
	assert.Equal(t,
		`{"conventions":["ENUMERABLE"],"explain":["Join[ENUMERABLE](type=inner)","  Values[ENUMERABLE](tuples=[])"],"request_id":"r","scenario":"s","target":"ENUMERABLE"}`,
		string(data))

	failed := &Result{
		Scenario:  "s",
		Target:    "JDBC_pg",
		RequestID: "r",
		Code:      "UNSUPPORTED",
		Error:     `UNSUPPORTED: cannot convert Scan of "x" & <y>`,
	}
	data, err = MarshalGolden(failed)
	require.NoError(t, err)
	assert.Equal(t,
		`{"code":"UNSUPPORTED","error":"UNSUPPORTED: cannot convert Scan of \"x\" & <y>","request_id":"r","scenario":"s","target":"JDBC_pg"}`,
		string(data))
}
