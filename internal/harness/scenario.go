package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one planning test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Catalog is the CUE declaration directory, relative to the scenario
	// file.
	Catalog string `yaml:"catalog"`

	// Target is the requested convention. Empty means the harness default.
	Target string `yaml:"target"`

	// Plan is the logical tree to convert.
	Plan PlanSpec `yaml:"plan"`

	// MaxApplications overrides the planner budget when positive.
	MaxApplications int `yaml:"max_applications,omitempty"`

	// RequestID is the fixed planning request id. Defaults to
	// "test-request-default".
	RequestID string `yaml:"request_id,omitempty"`

	Assertions []Assertion `yaml:"assertions"`

	// path is the file the scenario was loaded from.
	path string
}

// PlanSpec is a plan node. Exactly one field is set.
type PlanSpec struct {
	Scan    string       `yaml:"scan,omitempty"`
	Filter  *FilterSpec  `yaml:"filter,omitempty"`
	Project *ProjectSpec `yaml:"project,omitempty"`
	Join    *JoinSpec    `yaml:"join,omitempty"`
	Sort    *SortSpec    `yaml:"sort,omitempty"`
	Values  *ValuesSpec  `yaml:"values,omitempty"`
}

// FilterSpec keeps the input rows satisfying a condition.
type FilterSpec struct {
	Input     PlanSpec `yaml:"input"`
	Condition ExprSpec `yaml:"condition"`
}

// ProjectSpec computes named fields over the input.
type ProjectSpec struct {
	Input  PlanSpec     `yaml:"input"`
	Fields []NamedExpr `yaml:"fields"`
}

// NamedExpr is a projected field.
type NamedExpr struct {
	Name     string `yaml:"name"`
	ExprSpec `yaml:",inline"`
}

// JoinSpec joins two inputs. Condition fields resolve against the
// concatenated row, left first.
type JoinSpec struct {
	Left      PlanSpec `yaml:"left"`
	Right     PlanSpec `yaml:"right"`
	Type      string   `yaml:"type,omitempty"`
	Condition ExprSpec `yaml:"condition"`
}

// SortSpec orders the input and optionally limits it.
type SortSpec struct {
	Input  PlanSpec  `yaml:"input"`
	Keys   []SortKey `yaml:"keys"`
	Offset *int64    `yaml:"offset,omitempty"`
	Fetch  *int64    `yaml:"fetch,omitempty"`
}

// SortKey is one sort field.
type SortKey struct {
	Field string `yaml:"field"`
	Desc  bool   `yaml:"desc,omitempty"`
}

// ValuesSpec is a literal relation.
type ValuesSpec struct {
	Fields []FieldSpec `yaml:"fields"`
	Rows   [][]any     `yaml:"rows"`
}

// FieldSpec declares a values field.
type FieldSpec struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable,omitempty"`
}

// ExprSpec is a scalar expression. Exactly one of Field, Ref, Literal, Null
// and Call is set.
type ExprSpec struct {
	Field    string     `yaml:"field,omitempty"`
	Ref      *int       `yaml:"ref,omitempty"`
	Literal  any        `yaml:"literal,omitempty"`
	Null     bool       `yaml:"null,omitempty"`
	Call     string     `yaml:"call,omitempty"`
	Operands []ExprSpec `yaml:"operands,omitempty"`
	Cast     string     `yaml:"cast,omitempty"`
}

// Assertion checks the outcome of a scenario.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Code is the expected PlanningError code (error_code).
	Code string `yaml:"code,omitempty"`

	// Text is the expected explain substring (explain_contains).
	Text string `yaml:"text,omitempty"`

	// Conventions is the expected convention set (conventions).
	Conventions []string `yaml:"conventions,omitempty"`

	// SQL and Params are the expected statement (sql).
	SQL    string `yaml:"sql,omitempty"`
	Params []any  `yaml:"params,omitempty"`

	// Find is the expected canonical find document (find).
	Find string `yaml:"find,omitempty"`
}

// Assertion type constants.
const (
	AssertPlanned         = "planned"
	AssertErrorCode       = "error_code"
	AssertExplainContains = "explain_contains"
	AssertConventions     = "conventions"
	AssertSQL             = "sql"
	AssertFind            = "find"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.path = path

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}
	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		if other, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("scenario %q is defined in both %s and %s", s.Name, other, p)
		}
		names[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if _, err := os.Stat(s.Catalog); err != nil {
		return fmt.Errorf("catalog directory not found: %s", s.Catalog)
	}
	if err := validatePlan("plan", &s.Plan); err != nil {
		return err
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validatePlan(path string, p *PlanSpec) error {
	set := 0
	for _, ok := range []bool{p.Scan != "", p.Filter != nil, p.Project != nil, p.Join != nil, p.Sort != nil, p.Values != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%s: exactly one of scan, filter, project, join, sort, values is required", path)
	}
	switch {
	case p.Filter != nil:
		return validatePlan(path+".filter.input", &p.Filter.Input)
	case p.Project != nil:
		if len(p.Project.Fields) == 0 {
			return fmt.Errorf("%s.project: fields are required", path)
		}
		return validatePlan(path+".project.input", &p.Project.Input)
	case p.Join != nil:
		if err := validatePlan(path+".join.left", &p.Join.Left); err != nil {
			return err
		}
		return validatePlan(path+".join.right", &p.Join.Right)
	case p.Sort != nil:
		return validatePlan(path+".sort.input", &p.Sort.Input)
	case p.Values != nil:
		if len(p.Values.Fields) == 0 {
			return fmt.Errorf("%s.values: fields are required", path)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertPlanned:
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	case AssertExplainContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for explain_contains", index)
		}
	case AssertConventions:
		if len(a.Conventions) == 0 {
			return fmt.Errorf("assertions[%d]: conventions list is required for conventions", index)
		}
	case AssertSQL:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for sql", index)
		}
	case AssertFind:
		if a.Find == "" {
			return fmt.Errorf("assertions[%d]: find is required for find", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
