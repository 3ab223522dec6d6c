package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/polystore/internal/adapter/builtin"
	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/catalog"
	"github.com/roach88/polystore/internal/planner"
	"github.com/roach88/polystore/internal/schema"
	"github.com/roach88/polystore/internal/snapshot"
	"github.com/roach88/polystore/internal/testutil"
)

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to catalogs and planners. The default
// discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithParallelism bounds the scenarios RunAll plans at once.
func WithParallelism(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.parallelism = n
		}
	}
}

// WithDefaultTarget sets the convention used by scenarios that name none.
// The default is ENUMERABLE.
func WithDefaultTarget(target string) Option {
	return func(h *Harness) {
		if target != "" {
			h.defaultTarget = target
		}
	}
}

// WithMetrics shares planner metrics across every scenario.
func WithMetrics(m *planner.Metrics) Option {
	return func(h *Harness) {
		h.metrics = m
	}
}

// Harness runs scenarios. Catalog directories are loaded once and the
// resulting snapshots are shared by every scenario that names them.
//
// Thread-safety: a Harness is safe for concurrent use.
type Harness struct {
	logger        *slog.Logger
	parallelism   int
	defaultTarget string
	metrics       *planner.Metrics

	mu    sync.Mutex
	snaps map[string]*snapshot.Snapshot
}

// New returns a harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		parallelism:   4,
		defaultTarget: "ENUMERABLE",
		snaps:         make(map[string]*snapshot.Snapshot),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run runs a scenario with a default harness.
func Run(s *Scenario) (*Result, error) {
	return New().Run(context.Background(), s)
}

// Snapshot loads the declarations in dir into a fresh catalog and returns
// its first generation.
func (h *Harness) Snapshot(ctx context.Context, dir string) (*snapshot.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if snap, ok := h.snaps[dir]; ok {
		return snap, nil
	}
	decls, err := schema.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", dir, err)
	}
	snap, err := decls.Apply(ctx, catalog.New(catalog.WithLogger(h.logger)))
	if err != nil {
		return nil, fmt.Errorf("apply catalog %s: %w", dir, err)
	}
	h.snaps[dir] = snap
	return snap, nil
}

// Run plans a scenario and evaluates its assertions. A planning failure is
// part of the result; the error is reserved for scenarios that cannot run.
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Result, error) {
	snap, err := h.Snapshot(ctx, s.Catalog)
	if err != nil {
		return nil, err
	}
	tree, err := Build(snap, s.Plan)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	ids := testutil.NewFixedRequestIDs(s.RequestID)
	opts := []planner.Option{
		planner.WithLogger(h.logger),
		planner.WithRequestIDGenerator(ids),
		planner.WithMaxApplications(s.MaxApplications),
	}
	if h.metrics != nil {
		opts = append(opts, planner.WithMetrics(h.metrics))
	}
	p, err := builtin.Planner(snap, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	result := NewResult(s)
	if result.Target == "" {
		result.Target = h.defaultTarget
	}
	result.RequestID = ids.Generate()
	out, err := p.Convert(ctx, tree, algebra.Convention(result.Target), snap)
	if err != nil {
		var pe *planner.PlanningError
		if !errors.As(err, &pe) {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		result.Code = string(pe.Code)
		result.Error = pe.Error()
	} else {
		result.plan = out
		result.Explain = algebra.Explain(out)
		for _, c := range algebra.Conventions(out) {
			result.Conventions = append(result.Conventions, c.String())
		}
	}

	for _, msg := range EvaluateAssertions(result, s.Assertions) {
		result.AddError(msg)
	}
	h.logger.Debug("scenario run",
		"scenario", s.Name,
		"target", result.Target,
		"pass", result.Pass,
		"code", result.Code,
	)
	return result, nil
}

// RunAll runs scenarios concurrently. Results are in scenario order. The
// first scenario that cannot run cancels the rest.
func (h *Harness) RunAll(ctx context.Context, scenarios []*Scenario) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallelism)
	for i, s := range scenarios {
		g.Go(func() error {
			r, err := h.Run(gctx, s)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
