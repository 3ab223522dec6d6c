// Package enumerable provides the built-in in-process convention.
//
// Scan-type adapters execute in ENUMERABLE. Their only rule is the scan rule;
// the convention rules (calc, join, sort, values) are shared and registered
// once per planner through Rules.
package enumerable

import (
	"fmt"

	"github.com/roach88/polystore/internal/adapter"
	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/planner"
)

// Adapter is a scan-type adapter.
type Adapter struct {
	info entity.Adapter
}

// New returns the adapter for a scan-type catalog record.
func New(info entity.Adapter) (adapter.Adapter, error) {
	if info.Type != entity.AdapterScan {
		return nil, fmt.Errorf("enumerable adapter requires type %q, got %q", entity.AdapterScan, info.Type)
	}
	if info.Convention != "" && info.Convention != string(algebra.Enumerable) {
		return nil, fmt.Errorf("enumerable adapter cannot execute in %s", info.Convention)
	}
	return &Adapter{info: info}, nil
}

func (a *Adapter) Info() entity.Adapter { return a.info }
func (a *Adapter) Convention() algebra.Convention { return algebra.Enumerable }

func (a *Adapter) Rules() []planner.Rule {
	return []planner.Rule{adapter.ScanRule(a.info, algebra.Enumerable)}
}

// Rules returns the convention rules of ENUMERABLE. Every logical Calc,
// Join, Sort and Values can run in process once its inputs do.
func Rules() []planner.Rule {
	return []planner.Rule{
		nodeRule("EnumerableCalcRule", algebra.OpCalc),
		nodeRule("EnumerableJoinRule", algebra.OpJoin),
		nodeRule("EnumerableSortRule", algebra.OpSort),
		nodeRule("EnumerableValuesRule", algebra.OpValues),
	}
}

func nodeRule(name string, op algebra.Op) planner.Rule {
	return &planner.ConverterRule{
		Description: name,
		Source:      planner.Operand{Op: op, In: algebra.None},
		Target:      algebra.Enumerable,
		Fn: func(call *planner.Call) (algebra.Node, error) {
			return adapter.ConvertInputsTo(call, algebra.Enumerable)
		},
	}
}
