package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/polystore/internal/adapter/document"
	"github.com/roach88/polystore/internal/adapter/jdbc"
	"github.com/roach88/polystore/internal/harness"
)

// renderStatement compiles a plan rooted in an adapter convention. Plans in
// ENUMERABLE have no statement.
func renderStatement(r *harness.Result) (sql, find string) {
	plan := r.Plan()
	if plan == nil {
		return "", ""
	}
	conv := plan.Convention().String()
	switch {
	case strings.HasPrefix(conv, "JDBC_"):
		stmt, err := jdbc.Compile(plan)
		if err != nil {
			return "", ""
		}
		if len(stmt.Params) == 0 {
			return stmt.SQL, ""
		}
		return fmt.Sprintf("%s %v", stmt.SQL, stmt.Params), ""
	case strings.HasPrefix(conv, "DOCUMENT_"):
		spec, err := document.Compile(plan)
		if err != nil {
			return "", ""
		}
		return "", string(spec)
	}
	return "", ""
}
