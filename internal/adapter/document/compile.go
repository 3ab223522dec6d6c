package document

import (
	"fmt"
	"strings"

	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/codec"
	"github.com/roach88/polystore/internal/rex"
)

// Compile renders a planned subtree whose nodes are all in one DOCUMENT
// convention as a canonical JSON find specification:
//
//	{"collections":[...],"fields":[...],"filter":{...},"namespace":"...","projection":[...]}
//
// fields is only present when a calc was pushed into the find.
// A calc must read a scan directly; the planner merges stacked calcs before
// placement.
func Compile(n algebra.Node) ([]byte, error) {
	if n == nil {
		return nil, fmt.Errorf("cannot compile nil node")
	}
	conv := n.Convention()
	if !strings.HasPrefix(string(conv), "DOCUMENT_") {
		return nil, fmt.Errorf("cannot compile %s in %s: not a document convention", n.Op(), conv)
	}

	spec, err := algebra.Fold(n, algebra.Dispatch[codec.Object]{
		Scan: func(s *algebra.Scan, _ []codec.Object) (codec.Object, error) {
			if s.Convention() != conv {
				return nil, fmt.Errorf("scan of %s is in %s", s.Entity().Name, s.Convention())
			}
			return scanSpec(s)
		},
		Calc: func(c *algebra.Calc, in []codec.Object) (codec.Object, error) {
			if c.Convention() != conv {
				return nil, fmt.Errorf("calc is in %s", c.Convention())
			}
			if _, ok := algebra.Input(c).(*algebra.Scan); !ok {
				return nil, fmt.Errorf("calc over %s cannot be pushed into a find", algebra.Input(c).Op())
			}
			return calcSpec(c, in[0])
		},
		Default: func(n algebra.Node, _ []codec.Object) (codec.Object, error) {
			return nil, fmt.Errorf("unsupported node for a find: %s", n.Op())
		},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", conv, err)
	}
	return codec.MarshalCanonical(spec)
}

func scanSpec(s *algebra.Scan) (codec.Object, error) {
	p, ok := s.Placement()
	if !ok || len(p.Partitions) == 0 {
		return nil, fmt.Errorf("scan of %s has no placement", s.Entity().Name)
	}
	collections := make(codec.Array, len(p.Partitions))
	for i, part := range p.Partitions {
		name := part.PhysicalName
		if name == "" {
			name = s.Entity().Name
		}
		collections[i] = codec.String(name)
	}
	return codec.Object{
		"namespace":   codec.String(p.NamespaceName),
		"collections": collections,
		"projection":  codec.Strings(s.RowType().Names()),
		"filter":      codec.Object{},
	}, nil
}

func calcSpec(c *algebra.Calc, input codec.Object) (codec.Object, error) {
	program := c.Program()
	if !Pushable(program) {
		return nil, fmt.Errorf("calc %s cannot be pushed into a find", program)
	}
	inputNames := program.Input().Names()

	filter := codec.Object{}
	if cond := program.Condition(); cond != nil {
		eqs, err := equalities(cond)
		if err != nil {
			return nil, err
		}
		for _, eq := range eqs {
			v, err := codec.FromAny(eq.value)
			if err != nil {
				return nil, fmt.Errorf("filter on %s: %w", inputNames[eq.field], err)
			}
			filter[inputNames[eq.field]] = v
		}
	}

	// fields maps each output name to the stored field it reads.
	fields := make(codec.Array, 0, program.Output().Arity())
	for i, e := range program.Projects() {
		fields = append(fields, codec.Object{
			"as":   codec.String(program.Output().Field(i).Name),
			"from": codec.String(inputNames[e.(rex.InputRef).Index]),
		})
	}

	out := codec.Object{}
	for k, v := range input {
		out[k] = v
	}
	out["filter"] = filter
	out["fields"] = fields
	out["projection"] = codec.Strings(program.Output().Names())
	return out, nil
}
