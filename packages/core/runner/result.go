package runner

import (
	"context"
	"errors"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/assertions"
	"github.com/abdul-hamid-achik/sheetspec/packages/builder"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/abdul-hamid-achik/sheetspec/packages/http"
)

// Role says why a step was executed.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSetup     Role = "setup"
	RoleTeardown  Role = "teardown"
	RoleCheckPre  Role = "check-pre"
	RoleCheckPost Role = "check-post"
)

// Reason classifies a structural step failure. Assertion mismatches are
// reported as ReasonAssertion so they are never confused with the rest.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonAssertion Reason = "assertion failed"
	ReasonParse     Reason = "parse error"
	ReasonFormat    Reason = "format mismatch"
	ReasonBuild     Reason = "build error"
	ReasonTransport Reason = "transport error"
	ReasonCondition Reason = "condition failed"
	ReasonCycle     Reason = "cycle detected"
	ReasonCanceled  Reason = "canceled"
)

func reasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case IsConditionError(err):
		return ReasonCondition
	case IsCycleError(err):
		return ReasonCycle
	case parser.IsParseError(err):
		return ReasonParse
	case errors.Is(err, builder.ErrFormatMismatch):
		return ReasonFormat
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	case http.IsTransportError(err):
		return ReasonTransport
	default:
		return ReasonBuild
	}
}

// StepResult is everything reported for one executed step, whether it ran
// as the step under test or on behalf of a directive.
type StepResult struct {
	TCID string
	TSID string
	Role Role
	// Parent is the step or case a dependency ran for. Empty for primary steps.
	Parent     string
	Method     string
	URL        string
	StatusCode int
	Duration   time.Duration
	Verdict    assertions.Verdict
	Assertions []*assertions.Result
	Saved      map[string]any
	Missing    []string
	Warnings   []string
	Reason     Reason
	Err        error
}

// Name returns "TCID/TSID".
func (s *StepResult) Name() string {
	if s.TSID == "" {
		return s.TCID
	}
	return s.TCID + "/" + s.TSID
}

func (s *StepResult) Failed() bool {
	return s.Verdict == assertions.VerdictFail
}

func (s *StepResult) fail(err error) {
	s.Err = err
	s.Verdict = assertions.VerdictFail
	s.Reason = reasonFor(err)
}

// CaseResult is the outcome of one selected test case. Steps lists every
// step executed for it in order, dependencies included.
type CaseResult struct {
	TCID        string
	Description string
	Verdict     assertions.Verdict
	Steps       []*StepResult
	Reason      Reason
	Err         error
	Duration    time.Duration
}

type RunResult struct {
	Path string
	// Suite holds steps of suite setups run before the first case and suite
	// teardowns run after the last one.
	Suite        []*StepResult
	Cases        []*CaseResult
	Errors       []error
	Duration     time.Duration
	Passed       int
	Failed       int
	NotSpecified int
}

// OK reports whether no case failed and no suite condition failed.
func (r *RunResult) OK() bool {
	return r.Failed == 0 && len(r.Errors) == 0
}

func (r *RunResult) add(c *CaseResult) {
	r.Cases = append(r.Cases, c)
	switch c.Verdict {
	case assertions.VerdictPass:
		r.Passed++
	case assertions.VerdictFail:
		r.Failed++
	default:
		r.NotSpecified++
	}
}

// ResultSink receives every executed step as soon as it finishes.
type ResultSink interface {
	Step(*StepResult)
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc func(*StepResult)

func (f SinkFunc) Step(s *StepResult) {
	f(s)
}

// caseVerdict folds step verdicts: FAIL on any failure or structural error,
// NOT SPECIFIED when no step asserted anything, PASS otherwise.
func caseVerdict(err error, steps []*StepResult) assertions.Verdict {
	if err != nil {
		return assertions.VerdictFail
	}
	v := assertions.VerdictNotSpecified
	for _, s := range steps {
		switch s.Verdict {
		case assertions.VerdictFail:
			return assertions.VerdictFail
		case assertions.VerdictPass:
			v = assertions.VerdictPass
		}
	}
	return v
}
