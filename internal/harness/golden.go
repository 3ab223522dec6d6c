package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/polystore/internal/codec"
)

// PlanSnapshot is the golden form of a scenario result.
type PlanSnapshot struct {
	Scenario    string
	Target      string
	RequestID   string
	Code        string
	Error       string
	Explain     string
	Conventions []string
}

// canonical converts the snapshot into a codec object. Explain is split into
// lines so golden files stay readable.
func (s *PlanSnapshot) canonical() codec.Object {
	obj := codec.Object{
		"scenario":   codec.String(s.Scenario),
		"target":     codec.String(s.Target),
		"request_id": codec.String(s.RequestID),
	}
	if s.Code != "" {
		obj["code"] = codec.String(s.Code)
		obj["error"] = codec.String(s.Error)
		return obj
	}
	obj["conventions"] = codec.Strings(s.Conventions)
	obj["explain"] = codec.Strings(strings.Split(strings.TrimSuffix(s.Explain, "\n"), "\n"))
	return obj
}

// MarshalGolden renders a result as canonical JSON.
func MarshalGolden(r *Result) ([]byte, error) {
	snap := PlanSnapshot{
		Scenario:    r.Scenario,
		Target:      r.Target,
		RequestID:   r.RequestID,
		Code:        r.Code,
		Error:       r.Error,
		Explain:     r.Explain,
		Conventions: r.Conventions,
	}
	return codec.MarshalCanonical(snap.canonical())
}

// RunWithGolden runs a scenario and compares its plan against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()
	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the golden file name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	data, err := MarshalGolden(result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
