package jdbc

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/rex"
	"github.com/roach88/polystore/internal/types"
)

// Statement is a parameterized SQL statement. Values are never interpolated
// into SQL; each ? placeholder binds the next entry of Params.
type Statement struct {
	SQL    string
	Params []any
}

// unboundedLimit is bound as LIMIT when only an offset is set. SQLite, MySQL
// and HSQLDB reject OFFSET without LIMIT.
const unboundedLimit int64 = math.MaxInt64

type query struct {
	sql    string
	params []any
}

// Compile renders a planned subtree whose nodes are all in one JDBC
// convention as a single SQL statement.
func Compile(n algebra.Node) (Statement, error) {
	if n == nil {
		return Statement{}, fmt.Errorf("cannot compile nil node")
	}
	conv := n.Convention()
	if !strings.HasPrefix(string(conv), "JDBC_") {
		return Statement{}, fmt.Errorf("cannot compile %s in %s: not a JDBC convention", n.Op(), conv)
	}

	c := &compiler{conv: conv}
	q, err := algebra.Fold(n, algebra.Dispatch[query]{
		Scan: c.scan,
		Calc: c.calc,
		Sort: c.sort,
		Default: func(n algebra.Node, _ []query) (query, error) {
			return query{}, fmt.Errorf("unsupported node for SQL: %s", n.Op())
		},
	})
	if err != nil {
		return Statement{}, fmt.Errorf("compile %s: %w", conv, err)
	}
	return Statement{SQL: q.sql, Params: q.params}, nil
}

type compiler struct {
	conv    algebra.Convention
	aliases int
}

func (c *compiler) check(n algebra.Node) error {
	if n.Convention() != c.conv {
		return fmt.Errorf("%s is in %s, expected %s", n.Op(), n.Convention(), c.conv)
	}
	return nil
}

func (c *compiler) alias() string {
	c.aliases++
	return quoteIdent(fmt.Sprintf("t%d", c.aliases))
}

// scan selects every field of every placed partition, in partition order.
func (c *compiler) scan(s *algebra.Scan, _ []query) (query, error) {
	if err := c.check(s); err != nil {
		return query{}, err
	}
	p, ok := s.Placement()
	if !ok || len(p.Partitions) == 0 {
		return query{}, fmt.Errorf("scan of %s has no placement", s.Entity().Name)
	}

	cols := make([]string, s.RowType().Arity())
	for i, f := range s.RowType().Fields {
		cols[i] = quoteIdent(f.Name)
	}
	selects := make([]string, len(p.Partitions))
	for i, part := range p.Partitions {
		table := part.PhysicalName
		if table == "" {
			table = s.Entity().Name
		}
		from := quoteIdent(table)
		if p.NamespaceName != "" {
			from = quoteIdent(p.NamespaceName) + "." + from
		}
		selects[i] = "SELECT " + strings.Join(cols, ", ") + " FROM " + from
	}
	return query{sql: strings.Join(selects, " UNION ALL ")}, nil
}

// calc wraps its input as a derived table. Placeholders bind in text order:
// select list, then input, then WHERE.
func (c *compiler) calc(n *algebra.Calc, in []query) (query, error) {
	if err := c.check(n); err != nil {
		return query{}, err
	}
	program := n.Program()
	inputRow := program.Input()

	var selectParams []any
	projects := program.Projects()
	cols := make([]string, len(projects))
	for i, e := range projects {
		sql, err := renderExpr(e, inputRow, &selectParams)
		if err != nil {
			return query{}, fmt.Errorf("field %d: %w", i, err)
		}
		cols[i] = sql + " AS " + quoteIdent(program.Output().Field(i).Name)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM (")
	b.WriteString(in[0].sql)
	b.WriteString(") AS ")
	b.WriteString(c.alias())

	params := append(selectParams, in[0].params...)
	if cond := program.Condition(); cond != nil {
		var whereParams []any
		sql, err := renderExpr(cond, inputRow, &whereParams)
		if err != nil {
			return query{}, fmt.Errorf("condition: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(sql)
		params = append(params, whereParams...)
	}
	return query{sql: b.String(), params: params}, nil
}

func (c *compiler) sort(n *algebra.Sort, in []query) (query, error) {
	if err := c.check(n); err != nil {
		return query{}, err
	}
	row := n.RowType()

	var b strings.Builder
	b.WriteString("SELECT * FROM (")
	b.WriteString(in[0].sql)
	b.WriteString(") AS ")
	b.WriteString(c.alias())
	params := append([]any(nil), in[0].params...)

	if coll := n.Collation(); len(coll) > 0 {
		keys := make([]string, len(coll))
		for i, fc := range coll {
			dir := "ASC"
			if fc.Descending {
				dir = "DESC"
			}
			keys[i] = quoteIdent(row.Field(fc.Index).Name) + " " + dir
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(keys, ", "))
	}
	switch {
	case n.Fetch() >= 0:
		b.WriteString(" LIMIT ?")
		params = append(params, n.Fetch())
	case n.Offset() >= 0:
		b.WriteString(" LIMIT ?")
		params = append(params, unboundedLimit)
	}
	if n.Offset() >= 0 {
		b.WriteString(" OFFSET ?")
		params = append(params, n.Offset())
	}
	return query{sql: b.String(), params: params}, nil
}

func renderExpr(n rex.Node, row types.RowType, params *[]any) (string, error) {
	switch x := n.(type) {
	case rex.InputRef:
		if x.Index < 0 || x.Index >= row.Arity() {
			return "", fmt.Errorf("input reference $%d out of range", x.Index)
		}
		return quoteIdent(row.Field(x.Index).Name), nil
	case rex.Literal:
		*params = append(*params, x.Value)
		return "?", nil
	case rex.Call:
		return renderCall(x, row, params)
	default:
		return "", fmt.Errorf("unsupported expression %T", n)
	}
}

func renderCall(c rex.Call, row types.RowType, params *[]any) (string, error) {
	operands := make([]string, len(c.Operands))
	for i, o := range c.Operands {
		sql, err := renderExpr(o, row, params)
		if err != nil {
			return "", err
		}
		operands[i] = sql
	}

	switch {
	case c.Op.IsComparison(), c.Op.IsArithmetic(), c.Op == rex.OpLike:
		if len(operands) != 2 {
			return "", fmt.Errorf("%s expects 2 operands, got %d", c.Op, len(operands))
		}
		return "(" + operands[0] + " " + string(c.Op) + " " + operands[1] + ")", nil
	case c.Op == rex.OpAnd, c.Op == rex.OpOr:
		return "(" + strings.Join(operands, " "+string(c.Op)+" ") + ")", nil
	case c.Op == rex.OpNot:
		return "(NOT " + operands[0] + ")", nil
	case c.Op == rex.OpIsNull, c.Op == rex.OpIsNotNull:
		return "(" + operands[0] + " " + string(c.Op) + ")", nil
	case c.Op == rex.OpCast:
		return "CAST(" + operands[0] + " AS " + string(c.T.Kind) + ")", nil
	}
	return "", fmt.Errorf("operator %s has no SQL rendering", c.Op)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
