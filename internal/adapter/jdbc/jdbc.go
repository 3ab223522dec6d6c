// Package jdbc provides the convention of SQL databases reached through a
// JDBC-style driver.
//
// Each adapter gets its own convention JDBC_<name>. Scans, calcs whose
// expressions all translate to SQL, and sorts can run in the database; a
// converter rule hands the rows to ENUMERABLE. Compile renders a planned
// JDBC subtree as one parameterized SQL statement.
package jdbc

import (
	"fmt"

	"github.com/roach88/polystore/internal/adapter"
	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/planner"
	"github.com/roach88/polystore/internal/rex"
)

// Adapter is a JDBC adapter.
type Adapter struct {
	info entity.Adapter
	conv algebra.Convention
}

// New returns the adapter for a jdbc-type catalog record.
func New(info entity.Adapter) (adapter.Adapter, error) {
	if info.Type != entity.AdapterJDBC {
		return nil, fmt.Errorf("jdbc adapter requires type %q, got %q", entity.AdapterJDBC, info.Type)
	}
	conv := algebra.JDBC(info.Name)
	if info.Convention != "" && info.Convention != string(conv) {
		return nil, fmt.Errorf("jdbc adapter %q must use convention %s, got %s", info.Name, conv, info.Convention)
	}
	return &Adapter{info: info, conv: conv}, nil
}

func (a *Adapter) Info() entity.Adapter { return a.info }
func (a *Adapter) Convention() algebra.Convention { return a.conv }

func (a *Adapter) Rules() []planner.Rule {
	return []planner.Rule{
		adapter.ScanRule(a.info, a.conv),
		a.calcRule(),
		a.sortRule(),
		adapter.ConverterRule(a.conv, algebra.Enumerable),
	}
}

// calcRule pushes a calc into the database when SQL can express it.
func (a *Adapter) calcRule() planner.Rule {
	return &planner.ConverterRule{
		Description: "JdbcCalcRule(" + a.info.Name + ")",
		Source:      planner.Operand{Op: algebra.OpCalc, In: algebra.None},
		Target:      a.conv,
		Predicate: func(call *planner.Call) bool {
			return Translatable(call.Node.(*algebra.Calc).Program())
		},
		Fn: func(call *planner.Call) (algebra.Node, error) {
			return adapter.ConvertInputsTo(call, a.conv)
		},
	}
}

func (a *Adapter) sortRule() planner.Rule {
	return &planner.ConverterRule{
		Description: "JdbcSortRule(" + a.info.Name + ")",
		Source:      planner.Operand{Op: algebra.OpSort, In: algebra.None},
		Target:      a.conv,
		Fn: func(call *planner.Call) (algebra.Node, error) {
			return adapter.ConvertInputsTo(call, a.conv)
		},
	}
}

// Translatable reports whether every expression of p has a SQL rendering.
func Translatable(p *rex.Program) bool {
	exprs := p.Projects()
	if c := p.Condition(); c != nil {
		exprs = append(exprs, c)
	}
	for _, e := range exprs {
		ok := true
		rex.Walk(e, func(n rex.Node) bool {
			if c, isCall := n.(rex.Call); isCall && c.Op == rex.OpItem {
				ok = false
			}
			return ok
		})
		if !ok {
			return false
		}
	}
	return true
}
