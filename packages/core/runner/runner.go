package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/assertions"
	"github.com/abdul-hamid-achik/sheetspec/packages/builder"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/env"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/abdul-hamid-achik/sheetspec/packages/fields"
	"github.com/abdul-hamid-achik/sheetspec/packages/http"
)

// Transport sends one request and blocks until the response is read.
// *http.Client satisfies it.
type Transport interface {
	Send(ctx context.Context, req *http.Request) (*http.Response, error)
}

type Config struct {
	// BaseURL is prefixed to endpoint paths that are not absolute URLs.
	BaseURL   string
	Variables map[string]any
	// IDs and Tags select the cases to run; empty selects every runnable case.
	IDs     []string
	Tags    []string
	Timeout time.Duration
}

type Runner struct {
	config     *Config
	transport  Transport
	store      *fields.Store
	generator  env.Generator
	resolver   *env.Resolver
	builder    *builder.Builder
	validators map[string]assertions.Validator
	sink       ResultSink
	logger     *slog.Logger
}

// Option is a functional option for configuring a Runner.
type Option func(*Runner)

func WithTransport(t Transport) Option {
	return func(r *Runner) {
		r.transport = t
	}
}

// WithStore sets the saved-field store shared by every step of a run.
func WithStore(s *fields.Store) Option {
	return func(r *Runner) {
		r.store = s
	}
}

func WithGenerator(g env.Generator) Option {
	return func(r *Runner) {
		r.generator = g
	}
}

// WithValidator registers the validator answering external checks for store.
func WithValidator(store string, v assertions.Validator) Option {
	return func(r *Runner) {
		r.validators[store] = v
	}
}

func WithSink(s ResultSink) Option {
	return func(r *Runner) {
		r.sink = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{
		config:     cfg,
		validators: make(map[string]assertions.Validator),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.store == nil {
		r.store = fields.NewStore()
	}
	if r.transport == nil {
		var clientOpts []http.ClientOption
		if cfg.Timeout > 0 {
			clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
		}
		r.transport = http.NewClient(clientOpts...)
	}
	if r.sink == nil {
		r.sink = SinkFunc(func(*StepResult) {})
	}

	resolverOpts := []env.ResolverOption{
		env.WithFields(r.store),
		env.WithWarnFunc(func(format string, args ...any) {
			r.logger.Warn(fmt.Sprintf(format, args...))
		}),
	}
	if r.generator != nil {
		resolverOpts = append(resolverOpts, env.WithGenerator(r.generator))
	}
	r.resolver = env.NewResolver(resolverOpts...)
	r.resolver.SetVariables(cfg.Variables)
	r.builder = builder.NewBuilder(r.resolver)

	return r
}

// Store returns the saved-field store the runner reads and writes.
func (r *Runner) Store() *fields.Store {
	return r.store
}

// Run executes the selected cases of suite. Suite setups of all selected
// cases run first, each at most once, then every case in sheet order, then
// the suite teardowns. One case failing never stops the others; ctx is
// checked between cases and a cancelled run returns the partial result with
// ctx.Err().
func (r *Runner) Run(ctx context.Context, suite *parser.Suite) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{Path: suite.Path}

	st := newRunState(suite)
	for _, c := range st.graph.Cycles() {
		r.logger.Warn("dependency cycle", "path", c.Error())
	}

	selected := suite.Select(r.config.IDs, r.config.Tags)
	r.logger.Info("running suite", "path", suite.Path, "cases", len(selected))

	st.collect = &result.Suite
	for _, id := range suiteDirectiveIDs(selected, parser.ScopeSuiteSetup) {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		if err := r.resolveSuite(ctx, st, parser.ScopeSuiteSetup, id); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("suite setup %s: %w", id, err))
		}
	}

	var runErr error
	for _, tc := range selected {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		result.add(r.runSelected(ctx, st, tc))
	}

	// teardowns still run after cancellation; a teardown target may register
	// further teardowns, so the list is re-read on every iteration
	st.collect = &result.Suite
	teardownCtx := context.WithoutCancel(ctx)
	for i := 0; i < len(st.teardowns); i++ {
		id := st.teardowns[i]
		if err := r.resolveSuite(teardownCtx, st, parser.ScopeSuiteTeardown, id); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("suite teardown %s: %w", id, err))
		}
	}

	result.Duration = time.Since(start)
	r.logger.Info("suite finished",
		"passed", result.Passed,
		"failed", result.Failed,
		"not_specified", result.NotSpecified,
		"duration", result.Duration)
	return result, runErr
}

func (r *Runner) runSelected(ctx context.Context, st *runState, tc *parser.TestCase) *CaseResult {
	start := time.Now()
	cr := &CaseResult{TCID: tc.TCID, Description: tc.Description}
	st.collect = &cr.Steps

	run := r.runCase(ctx, st, tc, RolePrimary, "")

	cr.Err = run.err
	cr.Verdict = caseVerdict(run.err, run.steps)
	cr.Reason = reasonFor(run.err)
	if cr.Verdict == assertions.VerdictFail && cr.Reason == ReasonNone {
		for _, s := range run.steps {
			if s.Failed() {
				cr.Reason = s.Reason
				break
			}
		}
	}
	cr.Duration = time.Since(start)

	if cr.Err != nil {
		r.logger.Warn("test case aborted", "tcid", tc.TCID, "reason", string(cr.Reason), "error", cr.Err)
	} else {
		r.logger.Info("test case finished", "tcid", tc.TCID, "verdict", cr.Verdict.String())
	}
	return cr
}

// runCase executes tc with all of its directives. Teardown runs whenever the
// case got past its suite setups.
func (r *Runner) runCase(ctx context.Context, st *runState, tc *parser.TestCase, role Role, parent string) *caseRun {
	run := &caseRun{tc: tc}

	if err := st.graph.Err(tc.TCID); err != nil {
		run.err = err
		return run
	}
	if path := st.cycleTo(tc.TCID); path != nil {
		run.err = NewCycleError(path)
		return run
	}
	st.push(tc.TCID)
	defer st.pop()

	for _, id := range tc.DirectiveIDs(parser.ScopeSuiteTeardown) {
		st.addTeardown(id)
	}

	for _, id := range tc.DirectiveIDs(parser.ScopeSuiteSetup) {
		if err := r.resolveSuite(ctx, st, parser.ScopeSuiteSetup, id); err != nil {
			run.err = &ConditionError{
				Code:       ErrCodeConditionFailed,
				TCID:       tc.TCID,
				Dependency: id,
				Scope:      parser.ScopeSuiteSetup,
				Err:        err,
			}
			return run
		}
	}

	if err := r.resolveTest(ctx, st, tc, parser.ScopeTestSetup); err != nil {
		run.err = err
	} else {
		for _, step := range tc.Steps {
			sr, doc := r.runStep(ctx, st, tc, step, role, parent)
			run.steps = append(run.steps, sr)
			run.last = doc
			if sr.Failed() {
				break
			}
		}
	}

	if err := r.resolveTest(ctx, st, tc, parser.ScopeTestTeardown); err != nil && run.err == nil {
		run.err = err
	}
	return run
}
