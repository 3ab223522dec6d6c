// Package planner converts logical algebra trees into executable trees.
//
// A Planner holds a registry of rules. Convert walks a tree top-down and
// converts it bottom-up: a rule on a parent converts the parent's inputs
// through Call.ConvertInput before building its replacement. For each node
// the planner tries, in order:
//
//  1. rules producing the requested convention directly,
//  2. normalization rules (Out == None) followed by a retry of the result,
//  3. rules producing another convention followed by a conversion of the
//     result to the requested one (converter rules).
//
// Within a phase rules are tried in comparator order, with registration
// order breaking ties, and the first success wins. A node no rule chain can
// convert fails the whole call with an UNSUPPORTED PlanningError.
//
// Conversion never modifies the input tree or the snapshot, so one Planner
// can serve concurrent calls.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/polystore/internal/algebra"
	"github.com/roach88/polystore/internal/rex"
	"github.com/roach88/polystore/internal/snapshot"
)

// DefaultMaxApplications is the default rule-application budget of one
// planning call.
const DefaultMaxApplications = 10000

// RequestIDGenerator produces planning request ids.
type RequestIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 request ids.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Option configures a Planner.
type Option func(*Planner)

// WithComparator orders competing rules. A negative result tries a first.
func WithComparator(cmp func(a, b Rule) int) Option {
	return func(p *Planner) {
		p.compare = cmp
	}
}

// WithMaxApplications bounds the rule applications of one planning call.
// Values below 1 are ignored.
func WithMaxApplications(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxApplications = n
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRegisterer registers the planner metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Planner) {
		p.metrics = NewMetrics(reg)
	}
}

// WithMetrics shares an existing metrics set between planners.
func WithMetrics(m *Metrics) Option {
	return func(p *Planner) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithRequestIDGenerator sets the request id source.
func WithRequestIDGenerator(g RequestIDGenerator) Option {
	return func(p *Planner) {
		if g != nil {
			p.requestIDs = g
		}
	}
}

// Planner holds the rule registry.
type Planner struct {
	mu    sync.RWMutex
	rules []Rule
	names map[string]bool

	compare         func(a, b Rule) int
	maxApplications int
	logger          *slog.Logger
	metrics         *Metrics
	requestIDs      RequestIDGenerator
}

// New returns a planner with no rules.
func New(opts ...Option) *Planner {
	p := &Planner{
		names:           make(map[string]bool),
		maxApplications: DefaultMaxApplications,
		logger:          slog.Default(),
		requestIDs:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	return p
}

// Register adds rules to the registry. Rule names must be unique.
func (p *Planner) Register(rules ...Rule) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		name := r.Name()
		if name == "" {
			return errors.New("register rule: empty name")
		}
		if p.names[name] || seen[name] {
			return fmt.Errorf("register rule: duplicate rule %q", name)
		}
		seen[name] = true
	}
	for _, r := range rules {
		p.rules = append(p.rules, r)
		p.names[r.Name()] = true
	}
	return nil
}

// Rules returns the registered rules in registration order.
func (p *Planner) Rules() []Rule {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.rules)
}

// IsTerminal reports whether conv is executable: it is not None and no
// registered rule converts a node in conv to another convention.
func (p *Planner) IsTerminal(conv algebra.Convention) bool {
	if conv.IsNone() {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.rules {
		if r.Operand().In.String() == conv.String() && r.Out() != conv {
			return false
		}
	}
	return true
}

// Convert returns a copy of root in which every node is planned, with root
// itself in target. snap is the catalog view rules consult; nil means an
// empty catalog.
func (p *Planner) Convert(ctx context.Context, root algebra.Node, target algebra.Convention, snap *snapshot.Snapshot) (algebra.Node, error) {
	if snap == nil {
		snap = snapshot.Empty()
	}
	start := time.Now()
	r := p.newRun(ctx, snap)
	logger := p.logger.With("request_id", r.requestID)

	var (
		out algebra.Node
		err error
	)
	if target.IsNone() {
		err = newPlanningError(ErrCodeUnsupported, root, target, 0, "target convention must not be NONE")
	} else {
		out, err = r.convert(root, target, 0)
		if err == nil && !algebra.IsPlanned(out) {
			out, err = nil, newPlanningError(ErrCodeUnsupported, root, target, 0, "result contains unplanned nodes")
		}
	}

	elapsed := time.Since(start)
	result := "ok"
	var pe *PlanningError
	if errors.As(err, &pe) {
		result = strings.ToLower(string(pe.Code))
	} else if err != nil {
		result = "error"
	}
	p.metrics.RecordConversion(target.String(), result, elapsed.Seconds())

	if err != nil {
		logger.Warn("planning failed",
			"target", target,
			"generation", snap.Generation(),
			"applications", r.applications,
			"error", err,
		)
		return nil, err
	}
	logger.Info("plan converted",
		"target", target,
		"generation", snap.Generation(),
		"applications", r.applications,
		"duration", elapsed,
	)
	return out, nil
}

// run is the state of one Convert call.
type run struct {
	ctx          context.Context
	p            *Planner
	rules        []Rule
	snap         *snapshot.Snapshot
	builder      *rex.Builder
	requestID    string
	logger       *slog.Logger
	applications int

	// active holds the (tree, target) pairs on the current search path.
	active map[string]bool
}

func (p *Planner) newRun(ctx context.Context, snap *snapshot.Snapshot) *run {
	rules := p.Rules()
	if p.compare != nil {
		slices.SortStableFunc(rules, p.compare)
	}
	id := p.requestIDs.Generate()
	return &run{
		ctx:       ctx,
		p:         p,
		rules:     rules,
		snap:      snap,
		builder:   rex.NewBuilder(),
		requestID: id,
		logger:    p.logger.With("request_id", id),
		active:    make(map[string]bool),
	}
}

func (r *run) convert(n algebra.Node, target algebra.Convention, depth int) (algebra.Node, error) {
	return r.convertFrom(n, n, target, depth)
}

// convertFrom converts n, which a chain of rules derived from origin.
// Failures to convert n are reported against origin.
func (r *run) convertFrom(n, origin algebra.Node, target algebra.Convention, depth int) (algebra.Node, error) {
	if err := r.ctx.Err(); err != nil {
		pe := newPlanningError(ErrCodeCancelled, n, target, depth, "%v", err)
		pe.Cause = err
		return nil, pe
	}
	if n.Convention() == target && algebra.IsPlanned(n) {
		return n, nil
	}

	key := algebra.Explain(n) + "->" + target.String()
	if r.active[key] {
		return nil, newPlanningError(ErrCodeUnsupported, origin, target, depth, "conversion cycle")
	}
	r.active[key] = true
	defer delete(r.active, key)

	call := &Call{Node: n, Snapshot: r.snap, Target: target, run: r, depth: depth}
	var direct, normalize, intermediate []Rule
	for _, rule := range r.rules {
		if !rule.Operand().matches(n) || !rule.Matches(call) {
			continue
		}
		switch out := rule.Out(); {
		case out == target:
			direct = append(direct, rule)
		case out.IsNone():
			normalize = append(normalize, rule)
		case out != n.Convention():
			intermediate = append(intermediate, rule)
		}
	}

	var best *PlanningError
	for _, rule := range direct {
		out, err := r.apply(rule, call)
		if err == nil {
			if out.Convention() == target && algebra.IsPlanned(out) {
				return out, nil
			}
			err = r.ruleFailed(rule, call, "produced %s with unplanned nodes or in %s", out.Op(), out.Convention())
		}
		if abort := keepDeepest(&best, err); abort != nil {
			return nil, abort
		}
	}

	for _, rule := range normalize {
		out, err := r.apply(rule, call)
		if err == nil {
			out, err = r.convertFrom(out, origin, target, depth+1)
			if err == nil {
				return out, nil
			}
		}
		if abort := keepDeepest(&best, err); abort != nil {
			return nil, abort
		}
	}

	for _, rule := range intermediate {
		out, err := r.apply(rule, call)
		if err == nil && out.Convention() != rule.Out() {
			err = r.ruleFailed(rule, call, "produced %s in %s", out.Op(), out.Convention())
		}
		if err == nil {
			out, err = r.convertFrom(out, origin, target, depth+1)
			if err == nil {
				return out, nil
			}
		}
		if abort := keepDeepest(&best, err); abort != nil {
			return nil, abort
		}
	}

	if best != nil {
		return nil, best
	}
	return nil, newPlanningError(ErrCodeUnsupported, origin, target, depth, "no rule converts %s from %s", n.Op(), n.Convention())
}

func (r *run) apply(rule Rule, call *Call) (algebra.Node, error) {
	r.applications++
	if r.applications > r.p.maxApplications {
		return nil, newPlanningError(ErrCodeBudgetExceeded, call.Node, call.Target, call.depth,
			"more than %d rule applications", r.p.maxApplications)
	}
	r.p.metrics.RuleApplications.WithLabelValues(rule.Name()).Inc()

	out, err := rule.Convert(call)
	if err != nil {
		r.p.metrics.RuleFailures.WithLabelValues(rule.Name()).Inc()
		var pe *PlanningError
		if errors.As(err, &pe) {
			return nil, err
		}
		failed := r.ruleFailed(rule, call, "%v", err)
		failed.Cause = err
		return nil, failed
	}
	if out == nil {
		return nil, r.ruleFailed(rule, call, "returned no node")
	}

	r.logger.Debug("rule applied",
		"rule", rule.Name(),
		"node", call.Node.Op(),
		"from", call.Node.Convention(),
		"to", out.Convention(),
		"depth", call.depth,
	)
	return out, nil
}

func (r *run) ruleFailed(rule Rule, call *Call, format string, args ...any) *PlanningError {
	pe := newPlanningError(ErrCodeRuleFailed, call.Node, call.Target, call.depth, format, args...)
	pe.Rule = rule.Name()
	return pe
}

// keepDeepest records err in best when it is deeper than the current one.
// It returns err when it must end the planning call.
func keepDeepest(best **PlanningError, err error) error {
	var pe *PlanningError
	if !errors.As(err, &pe) {
		return err
	}
	if pe.aborts() {
		return pe
	}
	if *best == nil || pe.depth > (*best).depth {
		*best = pe
	}
	return nil
}
