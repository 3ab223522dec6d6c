package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/polystore/internal/catalog"
	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/pattern"
	"github.com/roach88/polystore/internal/schema"
	"github.com/roach88/polystore/internal/snapshot"
	"github.com/roach88/polystore/internal/store"
)

// CatalogOptions holds flags for the catalog commands.
type CatalogOptions struct {
	*RootOptions
	DB string // catalog store path, overrides catalog.store_path
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the persisted catalog",
		Long: `Apply CUE declarations to the persisted catalog and inspect it.

Each apply commits one catalog generation to the SQLite store.`,
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "catalog store path (default from config)")

	cmd.AddCommand(newCatalogApplyCommand(opts))
	cmd.AddCommand(newCatalogShowCommand(opts))
	cmd.AddCommand(newCatalogHistoryCommand(opts))
	return cmd
}

func (o *CatalogOptions) storePath() string {
	if o.DB != "" {
		return o.DB
	}
	return o.config().Catalog.StorePath
}

// ApplyResult is the output of catalog apply.
type ApplyResult struct {
	Generation int64  `json:"generation"`
	Digest     string `json:"digest"`
	Adapters   int    `json:"adapters"`
	Namespaces int    `json:"namespaces"`
}

func (r ApplyResult) String() string {
	return fmt.Sprintf("Committed generation %d (%d adapter(s), %d namespace(s))\nDigest: %s",
		r.Generation, r.Adapters, r.Namespaces, r.Digest)
}

func newCatalogApplyCommand(opts *CatalogOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply [specs-dir]",
		Short: "Apply CUE declarations to the catalog",
		Long: `Compile the CUE declarations in specs-dir and commit them on top of the
latest stored generation. Declarations are additive: re-declaring an existing
namespace or adapter is rejected and nothing is committed.

Examples:
  polystore catalog apply ./specs
  polystore catalog apply --db /tmp/catalog.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.config().Catalog.SpecsDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runCatalogApply(cmdContext(cmd), opts, dir, cmd)
		},
	}
}

func runCatalogApply(ctx context.Context, opts *CatalogOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if _, err := os.Stat(dir); err != nil {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("specs directory not found: %s", dir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("specs directory not found: %s", dir))
	}
	decls, err := schema.LoadDir(dir)
	if err != nil {
		var ce *schema.CompileError
		if errors.As(err, &ce) {
			_ = f.Error(ErrCodeDeclarations, ce.Error(), map[string]string{"field": ce.Field})
		} else {
			_ = f.Error(ErrCodeDeclarations, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "load declarations", err)
	}
	f.VerboseLog("Loaded %d adapter(s) and %d namespace(s) from %s", len(decls.Adapters), len(decls.Namespaces), dir)

	st, c, err := openCatalog(ctx, opts)
	if err != nil {
		_ = f.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open catalog", err)
	}
	defer st.Close()

	snap, err := decls.Apply(ctx, c)
	if err != nil {
		details := map[string]bool{"invariant_violation": catalog.IsInvariantViolation(err)}
		_ = f.Error(ErrCodeCatalog, err.Error(), details)
		return WrapExitError(ExitFailure, "apply declarations", err)
	}

	digest, err := snap.Digest()
	if err != nil {
		return WrapExitError(ExitCommandError, "digest snapshot", err)
	}
	return f.Success(ApplyResult{
		Generation: snap.Generation(),
		Digest:     digest,
		Adapters:   len(snap.Adapters()),
		Namespaces: len(snap.Namespaces()),
	})
}

// openCatalog opens the store and restores its latest generation into a
// catalog that persists every commit back to the store.
func openCatalog(ctx context.Context, opts *CatalogOptions) (*store.Store, *catalog.Catalog, error) {
	st, err := store.Open(opts.storePath())
	if err != nil {
		return nil, nil, err
	}
	c := catalog.New(catalog.WithPersister(st), catalog.WithLogger(opts.logger()))
	contents, ok, err := st.Load(ctx)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	if ok {
		if err := c.Restore(contents); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("restore generation %d: %w", contents.Generation, err)
		}
	}
	return st, c, nil
}

// loadSnapshot returns the latest stored snapshot; an empty store yields the
// empty snapshot.
func loadSnapshot(ctx context.Context, path string) (*snapshot.Snapshot, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	contents, ok, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return snapshot.Empty(), nil
	}
	return snapshot.New(contents), nil
}

// CatalogView is the output of catalog show.
type CatalogView struct {
	Generation int64           `json:"generation"`
	Adapters   []AdapterView   `json:"adapters"`
	Namespaces []NamespaceView `json:"namespaces"`
}

// AdapterView describes one adapter.
type AdapterView struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Convention string `json:"convention"`
}

// NamespaceView describes one namespace and its tables.
type NamespaceView struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Model  string       `json:"model"`
	Tables []EntityView `json:"tables"`
}

// EntityView describes one logical entity and where its partitions live.
type EntityView struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Columns    []string `json:"columns"`
	Placements []string `json:"placements"`
}

func (v CatalogView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generation %d\n", v.Generation)
	fmt.Fprintf(&b, "Adapters:\n")
	for _, a := range v.Adapters {
		fmt.Fprintf(&b, "  %s (id=%d, type=%s, convention=%s)\n", a.Name, a.ID, a.Type, a.Convention)
	}
	for _, ns := range v.Namespaces {
		fmt.Fprintf(&b, "Namespace %s (id=%d, model=%s):\n", ns.Name, ns.ID, ns.Model)
		for _, e := range ns.Tables {
			fmt.Fprintf(&b, "  %s %s (id=%d) [%s]\n", e.Type, e.Name, e.ID, strings.Join(e.Columns, ", "))
			for _, p := range e.Placements {
				fmt.Fprintf(&b, "    %s\n", p)
			}
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewCatalogView summarizes snap, listing the tables whose names match p.
func NewCatalogView(snap *snapshot.Snapshot, p pattern.Pattern) CatalogView {
	view := CatalogView{
		Generation: snap.Generation(),
		Adapters:   []AdapterView{},
		Namespaces: []NamespaceView{},
	}
	adapterNames := make(map[int64]string)
	for _, a := range snap.Adapters() {
		adapterNames[a.ID] = a.Name
		view.Adapters = append(view.Adapters, AdapterView{
			ID:         a.ID,
			Name:       a.Name,
			Type:       string(a.Type),
			Convention: a.Convention,
		})
	}
	for _, ns := range snap.Namespaces() {
		nv := NamespaceView{ID: ns.ID, Name: ns.Name, Model: string(ns.Model), Tables: []EntityView{}}
		for _, e := range snap.Entities(ns.ID, p) {
			logical, ok := e.(entity.Logical)
			if !ok {
				continue
			}
			ev := EntityView{
				ID:         logical.ID,
				Name:       logical.Name,
				Type:       string(logical.Type()),
				Columns:    []string{},
				Placements: []string{},
			}
			for i := 0; i < logical.RowType.Arity(); i++ {
				f := logical.RowType.Field(i)
				ev.Columns = append(ev.Columns, f.Name+" "+f.Type.String())
			}
			for _, alloc := range snap.Allocations(logical.ID) {
				for _, ph := range snap.Physicals(alloc.ID) {
					ev.Placements = append(ev.Placements, fmt.Sprintf("allocation %d -> %s on %s (physical %d)",
						alloc.ID, ph.Name, adapterNames[ph.AdapterID], ph.ID))
				}
			}
			nv.Tables = append(nv.Tables, ev)
		}
		view.Namespaces = append(view.Namespaces, nv)
	}
	return view
}

func newCatalogShowCommand(opts *CatalogOptions) *cobra.Command {
	var tables string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the latest catalog generation",
		Long: `Show the adapters, namespaces and tables of the latest stored generation.

--tables filters tables with a name pattern: % matches any run of
characters, _ matches one character and \ escapes the next one.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			p, err := pattern.Compile(tables)
			if err != nil {
				_ = f.Error(ErrCodeGeneric, err.Error(), nil)
				return WrapExitError(ExitCommandError, "invalid --tables pattern", err)
			}
			snap, err := loadSnapshot(cmdContext(cmd), opts.storePath())
			if err != nil {
				_ = f.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "load catalog", err)
			}
			return f.Success(NewCatalogView(snap, p))
		},
	}
	cmd.Flags().StringVar(&tables, "tables", "%", "table name pattern")
	return cmd
}

// HistoryView is the output of catalog history.
type HistoryView struct {
	Generations []store.GenerationRecord `json:"generations"`
}

func (v HistoryView) String() string {
	if len(v.Generations) == 0 {
		return "No generations committed."
	}
	var b strings.Builder
	for _, g := range v.Generations {
		fmt.Fprintf(&b, "%d  %s  %d entities\n", g.Generation, g.Digest, g.EntityCount)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func newCatalogHistoryCommand(opts *CatalogOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history",
		Short:         "List committed catalog generations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			st, err := store.Open(opts.storePath())
			if err != nil {
				_ = f.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "open store", err)
			}
			defer st.Close()
			history, err := st.History(cmdContext(cmd))
			if err != nil {
				_ = f.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "read history", err)
			}
			return f.Success(HistoryView{Generations: history})
		},
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
