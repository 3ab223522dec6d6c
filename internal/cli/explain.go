package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/polystore/internal/harness"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Target string // overrides the scenario target
}

// ExplainResult is the output of explain.
type ExplainResult struct {
	*harness.Result
	SQL  string `json:"sql,omitempty"`
	Find string `json:"find,omitempty"`
}

func (r ExplainResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario %s -> %s (request %s)\n", r.Scenario, r.Target, r.RequestID)
	b.WriteString(r.Explain)
	if r.SQL != "" {
		fmt.Fprintf(&b, "SQL: %s\n", r.SQL)
	}
	if r.Find != "" {
		fmt.Fprintf(&b, "Find: %s\n", r.Find)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <scenario.yaml>",
		Short: "Plan a scenario and print the converted tree",
		Long: `Build the logical plan of a scenario, convert it to the target convention
and print the result one node per line. A plan rooted in a JDBC or DOCUMENT
convention is also rendered as the statement the adapter would run.

Exit codes:
  0 - Plan converted
  1 - Planning failed
  2 - Command error (invalid scenario, missing catalog, etc.)

Examples:
  polystore explain scenarios/join.yaml
  polystore explain scenarios/join.yaml --target JDBC_pg --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmdContext(cmd), opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Target, "target", "", "target convention (default from the scenario)")
	return cmd
}

func runExplain(ctx context.Context, opts *ExplainOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg := opts.config()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = f.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load scenario", err)
	}
	if opts.Target != "" {
		scenario.Target = opts.Target
	}
	if scenario.MaxApplications == 0 {
		scenario.MaxApplications = cfg.Planner.MaxApplications
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Planner.Timeout)
	defer cancel()

	h := harness.New(
		harness.WithLogger(opts.logger()),
		harness.WithDefaultTarget(cfg.Planner.DefaultTarget),
	)
	result, err := h.Run(ctx, scenario)
	if err != nil {
		_ = f.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run scenario", err)
	}
	if result.Code != "" {
		_ = f.Error(ErrCodePlanning, result.Error, map[string]string{
			"code":       result.Code,
			"request_id": result.RequestID,
		})
		return NewExitError(ExitFailure, result.Error)
	}

	out := ExplainResult{Result: result}
	out.SQL, out.Find = renderStatement(result)
	f.VerboseLog("Planned %s with request id %s", scenario.Name, result.RequestID)
	return f.Success(out)
}
