package runner

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/sheetspec/packages/assertions"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
)

// directiveState tracks a suite-scoped directive through one run.
type directiveState int

const (
	stateNotRun directiveState = iota
	stateRunning
	stateDone
)

type suiteKey struct {
	scope parser.Scope
	tcid  string
}

type suiteEntry struct {
	state directiveState
	err   error
}

// runState is the mutable bookkeeping of a single Run call.
type runState struct {
	suite      *parser.Suite
	graph      *Graph
	directives map[suiteKey]*suiteEntry
	active     []string
	teardowns  []string
	teardownOf map[string]bool
	// collect receives every finished step of the current scope.
	collect *[]*StepResult
}

func newRunState(suite *parser.Suite) *runState {
	return &runState{
		suite:      suite,
		graph:      BuildGraph(suite),
		directives: make(map[suiteKey]*suiteEntry),
		teardownOf: make(map[string]bool),
	}
}

func (st *runState) record(sr *StepResult) {
	if st.collect != nil {
		*st.collect = append(*st.collect, sr)
	}
}

func (st *runState) push(tcid string) {
	st.active = append(st.active, tcid)
}

func (st *runState) pop() {
	st.active = st.active[:len(st.active)-1]
}

// cycleTo returns the active chain from tcid to the top of the stack, closed
// with tcid, or nil when tcid is not active.
func (st *runState) cycleTo(tcid string) []string {
	for i, id := range st.active {
		if id == tcid {
			path := append([]string{}, st.active[i:]...)
			return append(path, tcid)
		}
	}
	return nil
}

func (st *runState) addTeardown(tcid string) {
	if !st.teardownOf[tcid] {
		st.teardownOf[tcid] = true
		st.teardowns = append(st.teardowns, tcid)
	}
}

// caseRun is one execution of a test case, either as the case under test or
// on behalf of a directive.
type caseRun struct {
	tc    *parser.TestCase
	steps []*StepResult
	err   error
	// last is the parsed response of the final step, used as a snapshot.
	last *extract.Document
}

func (c *caseRun) failed() bool {
	return caseVerdict(c.err, c.steps) == assertions.VerdictFail
}

// failure describes why a failed run failed.
func (c *caseRun) failure() error {
	if c.err != nil {
		return c.err
	}
	for _, s := range c.steps {
		if s.Failed() {
			if s.Err != nil {
				return fmt.Errorf("step %s: %w", s.Name(), s.Err)
			}
			return fmt.Errorf("step %s: %s", s.Name(), ReasonAssertion)
		}
	}
	return nil
}

func roleFor(scope parser.Scope) Role {
	switch scope {
	case parser.ScopeTestTeardown, parser.ScopeSuiteTeardown:
		return RoleTeardown
	default:
		return RoleSetup
	}
}

// resolveSuite runs a suite-scoped directive target at most once per run.
// A target already done returns its recorded outcome; a target reached again
// while still running is a cycle.
func (r *Runner) resolveSuite(ctx context.Context, st *runState, scope parser.Scope, tcid string) error {
	key := suiteKey{scope: scope, tcid: tcid}
	entry, ok := st.directives[key]
	if !ok {
		entry = &suiteEntry{}
		st.directives[key] = entry
	}

	switch entry.state {
	case stateDone:
		return entry.err
	case stateRunning:
		path := st.cycleTo(tcid)
		if path == nil {
			path = []string{tcid, tcid}
		}
		return NewCycleError(path)
	}

	entry.state = stateRunning
	r.logger.Debug("resolving suite directive", "scope", scope.String(), "tcid", tcid)

	if tc, ok := st.suite.Case(tcid); !ok {
		entry.err = fmt.Errorf("no such test case %s", tcid)
	} else if run := r.runCase(ctx, st, tc, roleFor(scope), "suite"); run.failed() {
		entry.err = run.failure()
	}

	entry.state = stateDone
	if entry.err != nil {
		r.logger.Warn("suite directive failed", "scope", scope.String(), "tcid", tcid, "error", entry.err)
	}
	return entry.err
}

// resolveTest runs the test-scoped setup or teardown cases of tc. Setup stops
// at the first failure; teardown runs every target and reports the first failure.
func (r *Runner) resolveTest(ctx context.Context, st *runState, tc *parser.TestCase, scope parser.Scope) error {
	var first error
	for _, id := range tc.DirectiveIDs(scope) {
		dep, ok := st.suite.Case(id)
		var err error
		if !ok {
			err = &ConditionError{Code: ErrCodeUnknownCase, TCID: tc.TCID, Dependency: id, Scope: scope}
		} else if run := r.runCase(ctx, st, dep, roleFor(scope), tc.TCID); run.failed() {
			err = &ConditionError{
				Code:       ErrCodeConditionFailed,
				TCID:       tc.TCID,
				Dependency: id,
				Scope:      scope,
				Err:        run.failure(),
			}
		}
		if err == nil {
			continue
		}
		if scope == parser.ScopeTestSetup {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// checkWith runs every distinct check-with target of step once and returns
// the final response of each successful run. A failed target has no snapshot
// and is reported as a warning.
func (r *Runner) checkWith(ctx context.Context, st *runState, step *parser.TestStep, role Role) (assertions.Snapshots, []string) {
	ids := step.CheckWith()
	if len(ids) == 0 {
		return nil, nil
	}

	snaps := make(assertions.Snapshots, len(ids))
	var warnings []string
	for _, id := range ids {
		dep, ok := st.suite.Case(id)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s %s: no such test case", role, id))
			continue
		}
		run := r.runCase(ctx, st, dep, role, step.Name())
		switch {
		case run.failed():
			warnings = append(warnings, fmt.Sprintf("%s %s failed: %v", role, id, run.failure()))
		case run.last == nil:
			warnings = append(warnings, fmt.Sprintf("%s %s produced no response body", role, id))
		default:
			snaps[id] = run.last
		}
	}
	return snaps, warnings
}

// suiteDirectiveIDs collects the distinct targets of scope across cases.
func suiteDirectiveIDs(cases []*parser.TestCase, scope parser.Scope) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, tc := range cases {
		for _, id := range tc.DirectiveIDs(scope) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
