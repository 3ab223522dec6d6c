package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/polystore/internal/adapter/document"
	"github.com/roach88/polystore/internal/adapter/jdbc"
	"github.com/roach88/polystore/internal/algebra"
)

// AssertionError is returned when an assertion fails. Explain carries the
// converted plan for context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Explain  string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Explain != "" {
		fmt.Fprintf(&buf, "\nPlan:\n")
		for _, line := range strings.Split(strings.TrimSuffix(e.Explain, "\n"), "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against r and returns the
// messages of those that failed.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var failed []string
	for _, a := range assertions {
		if err := evaluate(r, a); err != nil {
			failed = append(failed, err.Error())
		}
	}
	return failed
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertPlanned:
		return assertPlanned(r)
	case AssertErrorCode:
		return assertErrorCode(r, a)
	case AssertExplainContains:
		return assertExplainContains(r, a)
	case AssertConventions:
		return assertConventions(r, a)
	case AssertSQL:
		return assertSQL(r, a)
	case AssertFind:
		return assertFind(r, a)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

func assertPlanned(r *Result) error {
	if r.plan == nil {
		return &AssertionError{
			Type:     AssertPlanned,
			Expected: "plan in " + r.Target,
			Actual:   r.Error,
		}
	}
	if got := r.plan.Convention().String(); got != r.Target || !algebra.IsPlanned(r.plan) {
		return &AssertionError{
			Type:     AssertPlanned,
			Expected: "fully planned tree in " + r.Target,
			Actual:   "root in " + got,
			Explain:  r.Explain,
		}
	}
	return nil
}

func assertErrorCode(r *Result, a Assertion) error {
	if r.Code == a.Code {
		return nil
	}
	actual := "no error"
	if r.Code != "" {
		actual = r.Error
	}
	return &AssertionError{
		Type:     AssertErrorCode,
		Expected: a.Code,
		Actual:   actual,
		Explain:  r.Explain,
	}
}

func assertExplainContains(r *Result, a Assertion) error {
	if r.plan != nil && strings.Contains(r.Explain, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertExplainContains,
		Expected: fmt.Sprintf("explain containing %q", a.Text),
		Actual:   actualPlan(r),
		Explain:  r.Explain,
	}
}

// assertConventions compares convention sets; order and repeats are ignored.
func assertConventions(r *Result, a Assertion) error {
	want := slices.Clone(a.Conventions)
	slices.Sort(want)
	want = slices.Compact(want)
	got := slices.Clone(r.Conventions)
	slices.Sort(got)
	if r.plan != nil && slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertConventions,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Explain:  r.Explain,
	}
}

func assertSQL(r *Result, a Assertion) error {
	if r.plan == nil {
		return &AssertionError{Type: AssertSQL, Expected: a.SQL, Actual: actualPlan(r)}
	}
	stmt, err := jdbc.Compile(r.plan)
	if err != nil {
		return &AssertionError{Type: AssertSQL, Expected: a.SQL, Actual: err.Error(), Explain: r.Explain}
	}
	if stmt.SQL != a.SQL {
		return &AssertionError{Type: AssertSQL, Expected: a.SQL, Actual: stmt.SQL, Explain: r.Explain}
	}
	want := make([]any, len(a.Params))
	for i, p := range a.Params {
		want[i] = normalizeLiteral(p)
	}
	got := stmt.Params
	if got == nil {
		got = []any{}
	}
	if !reflect.DeepEqual(want, got) {
		return &AssertionError{
			Type:     AssertSQL,
			Expected: fmt.Sprintf("params %v", want),
			Actual:   fmt.Sprintf("params %v", got),
			Explain:  r.Explain,
		}
	}
	return nil
}

func assertFind(r *Result, a Assertion) error {
	if r.plan == nil {
		return &AssertionError{Type: AssertFind, Expected: a.Find, Actual: actualPlan(r)}
	}
	spec, err := document.Compile(r.plan)
	if err != nil {
		return &AssertionError{Type: AssertFind, Expected: a.Find, Actual: err.Error(), Explain: r.Explain}
	}
	if string(spec) != a.Find {
		return &AssertionError{Type: AssertFind, Expected: a.Find, Actual: string(spec), Explain: r.Explain}
	}
	return nil
}

func actualPlan(r *Result) string {
	if r.plan == nil {
		return "planning failed: " + r.Error
	}
	return "plan in " + r.plan.Convention().String()
}
