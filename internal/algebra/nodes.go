package algebra

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/rex"
	"github.com/roach88/polystore/internal/types"
)

// Partition is one allocation read by a placed scan.
type Partition struct {
	AllocationID int64
	PhysicalID   int64
	PhysicalName string
	Qualifiers   []string
}

// Placement records which adapter a scan reads from.
type Placement struct {
	AdapterID     int64
	AdapterName   string
	NamespaceName string
	Partitions    []Partition
}

// Scan reads every row of a logical entity.
type Scan struct {
	base
	entity    entity.Logical
	placement *Placement
}

// NewScan returns an unplanned scan of e.
func NewScan(e entity.Logical) *Scan {
	ts := NewTraitSet(None, Trait{Kind: TraitModel, Value: string(e.DataModel)})
	return &Scan{base: newBase(ts, e.RowType), entity: e}
}

// Entity returns the scanned logical entity.
func (s *Scan) Entity() entity.Logical { return s.entity }

// Placement returns the adapter placement of a planned scan.
func (s *Scan) Placement() (Placement, bool) {
	if s.placement == nil {
		return Placement{}, false
	}
	return *s.placement, true
}

// Place returns a copy of the scan reading from p in convention c.
func (s *Scan) Place(p Placement, c Convention) *Scan {
	out := *s
	out.base = s.base.retraited(s.traits.WithConvention(c))
	out.placement = &p
	return &out
}

func (s *Scan) Op() Op { return OpScan }

func (s *Scan) WithInputs(inputs []Node) Node {
	out := *s
	out.base = s.base.rebuilt(inputs)
	return &out
}

func (s *Scan) WithTraits(ts TraitSet) Node {
	out := *s
	out.base = s.base.retraited(ts)
	return &out
}

func (s *Scan) Attributes() []Attribute {
	attrs := []Attribute{{"table", s.entity.Name}}
	if s.placement != nil {
		allocs := make([]string, len(s.placement.Partitions))
		phys := make([]string, len(s.placement.Partitions))
		for i, p := range s.placement.Partitions {
			allocs[i] = strconv.FormatInt(p.AllocationID, 10)
			phys[i] = strconv.FormatInt(p.PhysicalID, 10)
		}
		attrs = append(attrs,
			Attribute{"adapter", strconv.FormatInt(s.placement.AdapterID, 10)},
			Attribute{"allocations", "[" + strings.Join(allocs, ", ") + "]"},
			Attribute{"physicals", "[" + strings.Join(phys, ", ") + "]"},
		)
	}
	return attrs
}

// Project computes one expression per output field.
type Project struct {
	base
	exprs []rex.Node
}

// NewProject returns an unplanned projection of input.
func NewProject(input Node, exprs []rex.Node, names []string) (*Project, error) {
	row, err := projectedRow(input, exprs, names)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	return &Project{base: newBase(NewTraitSet(None), row, input), exprs: exprs}, nil
}

// Exprs returns the projected expressions.
func (p *Project) Exprs() []rex.Node { return append([]rex.Node(nil), p.exprs...) }

func (p *Project) Op() Op { return OpProject }

func (p *Project) WithInputs(inputs []Node) Node {
	out := *p
	out.base = p.base.rebuilt(inputs)
	return &out
}

func (p *Project) WithTraits(ts TraitSet) Node {
	out := *p
	out.base = p.base.retraited(ts)
	return &out
}

func (p *Project) Attributes() []Attribute {
	return exprAttributes(p.rowType, p.exprs)
}

// Filter keeps the input rows satisfying a condition.
type Filter struct {
	base
	condition rex.Node
}

// NewFilter returns an unplanned filter over input.
func NewFilter(input Node, condition rex.Node) (*Filter, error) {
	t, err := rex.NewBuilder().TypeOf(condition, input.RowType())
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	if t.Kind != types.Boolean && t.Kind != types.Any {
		return nil, fmt.Errorf("filter: condition must be BOOLEAN, got %s", t)
	}
	return &Filter{base: newBase(NewTraitSet(None), input.RowType(), input), condition: condition}, nil
}

// Condition returns the filter condition.
func (f *Filter) Condition() rex.Node { return f.condition }

func (f *Filter) Op() Op { return OpFilter }

func (f *Filter) WithInputs(inputs []Node) Node {
	out := *f
	out.base = f.base.rebuilt(inputs)
	return &out
}

func (f *Filter) WithTraits(ts TraitSet) Node {
	out := *f
	out.base = f.base.retraited(ts)
	return &out
}

func (f *Filter) Attributes() []Attribute {
	return []Attribute{{"condition", f.condition.String()}}
}

// Calc evaluates an expression program over its input.
type Calc struct {
	base
	program *rex.Program
}

// NewCalc returns an unplanned calc over input.
func NewCalc(input Node, program *rex.Program) (*Calc, error) {
	if !program.Input().Equal(input.RowType()) {
		return nil, fmt.Errorf("calc: program input %s does not match input row type %s", program.Input(), input.RowType())
	}
	return &Calc{base: newBase(NewTraitSet(None), program.Output(), input), program: program}, nil
}

// Program returns the calc's program.
func (c *Calc) Program() *rex.Program { return c.program }

func (c *Calc) Op() Op { return OpCalc }

func (c *Calc) WithInputs(inputs []Node) Node {
	out := *c
	out.base = c.base.rebuilt(inputs)
	return &out
}

func (c *Calc) WithTraits(ts TraitSet) Node {
	out := *c
	out.base = c.base.retraited(ts)
	return &out
}

func (c *Calc) Attributes() []Attribute {
	attrs := exprAttributes(c.rowType, c.program.Projects())
	if cond := c.program.Condition(); cond != nil {
		attrs = append(attrs, Attribute{"condition", cond.String()})
	}
	return attrs
}

// DocumentProject projects paths out of documents. It is the document-model
// counterpart of Project.
type DocumentProject struct {
	base
	exprs []rex.Node
}

// NewDocumentProject returns an unplanned document projection of input.
func NewDocumentProject(input Node, exprs []rex.Node, names []string) (*DocumentProject, error) {
	row, err := projectedRow(input, exprs, names)
	if err != nil {
		return nil, fmt.Errorf("document project: %w", err)
	}
	ts := NewTraitSet(None, Trait{Kind: TraitModel, Value: string(entity.ModelDocument)})
	return &DocumentProject{base: newBase(ts, row, input), exprs: exprs}, nil
}

// Exprs returns the projected expressions.
func (p *DocumentProject) Exprs() []rex.Node { return append([]rex.Node(nil), p.exprs...) }

func (p *DocumentProject) Op() Op { return OpDocumentProject }

func (p *DocumentProject) WithInputs(inputs []Node) Node {
	out := *p
	out.base = p.base.rebuilt(inputs)
	return &out
}

func (p *DocumentProject) WithTraits(ts TraitSet) Node {
	out := *p
	out.base = p.base.retraited(ts)
	return &out
}

func (p *DocumentProject) Attributes() []Attribute {
	return exprAttributes(p.rowType, p.exprs)
}

// JoinType is the kind of join.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
)

// Join combines two inputs. The condition references the concatenation of
// the left and right row types.
type Join struct {
	base
	joinType  JoinType
	condition rex.Node
}

// NewJoin returns an unplanned join.
func NewJoin(left, right Node, condition rex.Node, joinType JoinType) (*Join, error) {
	combined := left.RowType().Concat(right.RowType())
	t, err := rex.NewBuilder().TypeOf(condition, combined)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	if t.Kind != types.Boolean && t.Kind != types.Any {
		return nil, fmt.Errorf("join: condition must be BOOLEAN, got %s", t)
	}
	row := combined
	switch joinType {
	case JoinInner:
	case JoinLeft:
		row = left.RowType().Concat(right.RowType().Nullable())
	default:
		return nil, fmt.Errorf("join: unknown join type %q", joinType)
	}
	return &Join{base: newBase(NewTraitSet(None), row, left, right), joinType: joinType, condition: condition}, nil
}

// JoinType returns the join type.
func (j *Join) JoinType() JoinType { return j.joinType }

// Condition returns the join condition.
func (j *Join) Condition() rex.Node { return j.condition }

func (j *Join) Op() Op { return OpJoin }

func (j *Join) WithInputs(inputs []Node) Node {
	out := *j
	out.base = j.base.rebuilt(inputs)
	return &out
}

func (j *Join) WithTraits(ts TraitSet) Node {
	out := *j
	out.base = j.base.retraited(ts)
	return &out
}

func (j *Join) Attributes() []Attribute {
	return []Attribute{{"type", string(j.joinType)}, {"condition", j.condition.String()}}
}

// FieldCollation orders by one input field.
type FieldCollation struct {
	Index      int
	Descending bool
}

func (fc FieldCollation) String() string {
	if fc.Descending {
		return strconv.Itoa(fc.Index) + " DESC"
	}
	return strconv.Itoa(fc.Index) + " ASC"
}

// Sort orders its input and optionally applies offset and fetch.
// A negative offset or fetch means none.
type Sort struct {
	base
	collation []FieldCollation
	offset    int64
	fetch     int64
}

// NewSort returns an unplanned sort. The collation is recorded as a trait.
func NewSort(input Node, collation []FieldCollation, offset, fetch int64) (*Sort, error) {
	for _, fc := range collation {
		if fc.Index < 0 || fc.Index >= input.RowType().Arity() {
			return nil, fmt.Errorf("sort: field %d out of range for %d input fields", fc.Index, input.RowType().Arity())
		}
	}
	ts := NewTraitSet(None, Trait{Kind: TraitCollation, Value: collationString(collation)})
	return &Sort{
		base:      newBase(ts, input.RowType(), input),
		collation: append([]FieldCollation(nil), collation...),
		offset:    offset,
		fetch:     fetch,
	}, nil
}

// Collation returns the sort keys.
func (s *Sort) Collation() []FieldCollation { return append([]FieldCollation(nil), s.collation...) }

// Offset returns the number of rows skipped, or -1.
func (s *Sort) Offset() int64 { return s.offset }

// Fetch returns the maximum number of rows returned, or -1.
func (s *Sort) Fetch() int64 { return s.fetch }

func (s *Sort) Op() Op { return OpSort }

func (s *Sort) WithInputs(inputs []Node) Node {
	out := *s
	out.base = s.base.rebuilt(inputs)
	return &out
}

func (s *Sort) WithTraits(ts TraitSet) Node {
	out := *s
	out.base = s.base.retraited(ts)
	return &out
}

func (s *Sort) Attributes() []Attribute {
	attrs := []Attribute{{"sort", collationString(s.collation)}}
	if s.offset >= 0 {
		attrs = append(attrs, Attribute{"offset", strconv.FormatInt(s.offset, 10)})
	}
	if s.fetch >= 0 {
		attrs = append(attrs, Attribute{"fetch", strconv.FormatInt(s.fetch, 10)})
	}
	return attrs
}

// Values is a leaf producing literal rows.
type Values struct {
	base
	tuples [][]rex.Literal
}

// NewValues returns an unplanned values node.
func NewValues(row types.RowType, tuples [][]rex.Literal) (*Values, error) {
	for i, tuple := range tuples {
		if len(tuple) != row.Arity() {
			return nil, fmt.Errorf("values: tuple %d has %d fields, row type has %d", i, len(tuple), row.Arity())
		}
		for j, lit := range tuple {
			if !lit.Type().AssignableTo(row.Field(j).Type) {
				return nil, fmt.Errorf("values: tuple %d field %d: %s is not assignable to %s", i, j, lit.Type(), row.Field(j).Type)
			}
		}
	}
	return &Values{base: newBase(NewTraitSet(None), row), tuples: tuples}, nil
}

// Tuples returns the literal rows.
func (v *Values) Tuples() [][]rex.Literal { return v.tuples }

func (v *Values) Op() Op { return OpValues }

func (v *Values) WithInputs(inputs []Node) Node {
	out := *v
	out.base = v.base.rebuilt(inputs)
	return &out
}

func (v *Values) WithTraits(ts TraitSet) Node {
	out := *v
	out.base = v.base.retraited(ts)
	return &out
}

func (v *Values) Attributes() []Attribute {
	rows := make([]string, len(v.tuples))
	for i, tuple := range v.tuples {
		vals := make([]string, len(tuple))
		for j, lit := range tuple {
			vals[j] = lit.String()
		}
		rows[i] = "[" + strings.Join(vals, ", ") + "]"
	}
	return []Attribute{{"tuples", "[" + strings.Join(rows, ", ") + "]"}}
}

// Converter moves rows from its input's convention into its own.
type Converter struct {
	base
}

// NewConverter returns a converter from input's convention to target.
func NewConverter(input Node, target Convention) *Converter {
	return &Converter{base: newBase(input.Traits().WithConvention(target), input.RowType(), input)}
}

// From returns the convention rows are converted from.
func (c *Converter) From() Convention { return c.inputs[0].Convention() }

func (c *Converter) Op() Op { return OpConverter }

func (c *Converter) WithInputs(inputs []Node) Node {
	out := *c
	out.base = c.base.rebuilt(inputs)
	return &out
}

func (c *Converter) WithTraits(ts TraitSet) Node {
	out := *c
	out.base = c.base.retraited(ts)
	return &out
}

func (c *Converter) Attributes() []Attribute {
	return []Attribute{{"from", c.From().String()}}
}

// Retarget returns n with its convention replaced.
func Retarget(n Node, c Convention) Node {
	return n.WithTraits(n.Traits().WithConvention(c))
}

func projectedRow(input Node, exprs []rex.Node, names []string) (types.RowType, error) {
	if len(exprs) != len(names) {
		return types.RowType{}, fmt.Errorf("%d expressions but %d names", len(exprs), len(names))
	}
	b := rex.NewBuilder()
	fields := make([]types.Field, len(exprs))
	for i, e := range exprs {
		t, err := b.TypeOf(e, input.RowType())
		if err != nil {
			return types.RowType{}, fmt.Errorf("expression %d: %w", i, err)
		}
		fields[i] = types.Field{Name: names[i], Type: t}
	}
	return types.RowType{Fields: fields}, nil
}

func exprAttributes(row types.RowType, exprs []rex.Node) []Attribute {
	attrs := make([]Attribute, len(exprs))
	for i, e := range exprs {
		attrs[i] = Attribute{row.Field(i).Name, e.String()}
	}
	return attrs
}

func collationString(collation []FieldCollation) string {
	parts := make([]string, len(collation))
	for i, fc := range collation {
		parts[i] = fc.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
