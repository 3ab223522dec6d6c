package planner

import (
	"fmt"

	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/rex"
)

// CoreRules returns the normalization rules every planner needs: Project,
// Filter and DocumentProject become Calc, and a Calc over a Calc is merged.
func CoreRules() []Rule {
	return []Rule{
		ProjectToCalcRule(),
		FilterToCalcRule(),
		DocumentProjectToCalcRule(),
		CalcMergeRule(),
	}
}

// ProjectToCalcRule rewrites a Project into a Calc without a condition.
func ProjectToCalcRule() Rule {
	return &ConverterRule{
		Description: "ProjectToCalcRule",
		Source:      Operand{Op: algebra.OpProject, In: algebra.None},
		Target:      algebra.None,
		Fn: func(call *Call) (algebra.Node, error) {
			p := call.Node.(*algebra.Project)
			return projectCalc(call, p.Exprs())
		},
	}
}

// DocumentProjectToCalcRule rewrites a DocumentProject into a Calc.
func DocumentProjectToCalcRule() Rule {
	return &ConverterRule{
		Description: "DocumentProjectToCalcRule",
		Source:      Operand{Op: algebra.OpDocumentProject, In: algebra.None},
		Target:      algebra.None,
		Fn: func(call *Call) (algebra.Node, error) {
			p := call.Node.(*algebra.DocumentProject)
			return projectCalc(call, p.Exprs())
		},
	}
}

// FilterToCalcRule rewrites a Filter into an identity Calc with a condition.
func FilterToCalcRule() Rule {
	return &ConverterRule{
		Description: "FilterToCalcRule",
		Source:      Operand{Op: algebra.OpFilter, In: algebra.None},
		Target:      algebra.None,
		Fn: func(call *Call) (algebra.Node, error) {
			f := call.Node.(*algebra.Filter)
			input := algebra.Input(f)
			row := input.RowType()
			identity := rex.IdentityProgram(row)
			program, err := rex.CreateProgram(row, identity.Projects(), f.Condition(), row, call.Builder())
			if err != nil {
				return nil, fmt.Errorf("filter to calc: %w", err)
			}
			return newCalc(input, program)
		},
	}
}

// CalcMergeRule merges a logical Calc into the logical Calc below it.
func CalcMergeRule() Rule {
	return &ConverterRule{
		Description: "CalcMergeRule",
		Source:      Operand{Op: algebra.OpCalc, In: algebra.None},
		Target:      algebra.None,
		Predicate: func(call *Call) bool {
			bottom, ok := algebra.Input(call.Node).(*algebra.Calc)
			return ok && bottom.Convention().IsNone()
		},
		Fn: func(call *Call) (algebra.Node, error) {
			top := call.Node.(*algebra.Calc)
			bottom := algebra.Input(top).(*algebra.Calc)
			merged, err := rex.Merge(bottom.Program(), top.Program(), call.Builder())
			if err != nil {
				return nil, fmt.Errorf("merge calc: %w", err)
			}
			return newCalc(algebra.Input(bottom), merged)
		},
	}
}

func projectCalc(call *Call, exprs []rex.Node) (algebra.Node, error) {
	input := algebra.Input(call.Node)
	program, err := rex.CreateProgram(input.RowType(), exprs, nil, call.Node.RowType(), call.Builder())
	if err != nil {
		return nil, fmt.Errorf("project to calc: %w", err)
	}
	return newCalc(input, program)
}

func newCalc(input algebra.Node, program *rex.Program) (algebra.Node, error) {
	calc, err := algebra.NewCalc(input, program)
	if err != nil {
		return nil, err
	}
	return calc, nil
}
