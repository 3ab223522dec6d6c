// Package harness runs planning scenarios.
//
// A scenario names a catalog declaration directory, a logical plan written
// in YAML, a target convention and assertions on the outcome. It is the
// in-repo stand-in for a query front end.
//
// # Scenario Format
//
//	name: filter_pushdown
//	description: "A filter on customers runs in the database"
//	catalog: ../catalogs/store
//	target: JDBC_pg
//	plan:
//	  filter:
//	    input: {scan: public.customers}
//	    condition: {call: ">", operands: [{field: tier}, {literal: 2}]}
//	assertions:
//	  - type: planned
//	  - type: explain_contains
//	    text: "Calc[JDBC_pg]"
//	  - type: sql
//	    sql: 'SELECT ...'
//	    params: [2]
//
// # Plan Nodes
//
// Each plan node sets exactly one of scan, filter, project, join, sort and
// values. Expressions set one of field, ref, literal, null or call;
// cast wraps the expression in a CAST to the named type.
//
// # Assertion Types
//
//   - planned: planning succeeded and every node is planned
//   - error_code: planning failed with the given PlanningError code
//   - explain_contains: the explain text contains text
//   - conventions: the plan uses exactly the listed conventions
//   - sql: the plan compiles to the given JDBC statement
//   - find: the plan compiles to the given document find
//
// # Determinism
//
// Scenarios plan with a fixed request id so golden output is stable. The
// golden file of a scenario holds its explain text, or its error when
// planning fails.
package harness
