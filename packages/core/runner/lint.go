package runner

import (
	"fmt"

	"github.com/abdul-hamid-achik/sheetspec/packages/builder"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/env"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
)

// anyFields stands in for the store when linting: every saved field exists
// and is zero, so cells that reference fields saved at run time still parse.
type anyFields struct{}

func (anyFields) Get(string) (any, bool) { return 0.0, true }

var lintResolver = env.NewResolver(env.WithFields(anyFields{}))

// Problem is a defect that makes a case fail before any request is sent.
type Problem struct {
	TCID string
	// TSID is empty for case-level problems.
	TSID string
	Err  error
}

func (p *Problem) Error() string {
	if p.TSID == "" {
		return fmt.Sprintf("%s: %v", p.TCID, p.Err)
	}
	return fmt.Sprintf("%s/%s: %v", p.TCID, p.TSID, p.Err)
}

func (p *Problem) Unwrap() error {
	return p.Err
}

// Lint checks a suite without executing it: load-time case errors, unknown
// or cyclic conditions, references to missing catalog entries and Exp
// Result or Modifications cells that do not parse.
func Lint(suite *parser.Suite) []*Problem {
	graph := BuildGraph(suite)
	var problems []*Problem
	for _, tc := range suite.Cases {
		if err := graph.Err(tc.TCID); err != nil {
			problems = append(problems, &Problem{TCID: tc.TCID, Err: err})
		}
		for _, step := range tc.Steps {
			for _, err := range lintStep(suite, step) {
				problems = append(problems, &Problem{TCID: tc.TCID, TSID: step.TSID, Err: err})
			}
		}
	}
	return problems
}

func lintStep(suite *parser.Suite, step *parser.TestStep) []error {
	var errs []error
	if step.Endpoint == "" {
		errs = append(errs, fmt.Errorf("no endpoint"))
	} else if _, ok := suite.Endpoints[step.Endpoint]; !ok {
		errs = append(errs, fmt.Errorf("unknown endpoint %q", step.Endpoint))
	}
	if step.Template != "" {
		if _, ok := suite.Templates[step.Template]; !ok {
			errs = append(errs, fmt.Errorf("unknown template %q", step.Template))
		}
	}
	if step.Defaults != "" {
		if _, ok := suite.Defaults[step.Defaults]; !ok {
			errs = append(errs, fmt.Errorf("unknown defaults %q", step.Defaults))
		}
	}
	for _, name := range headerNames(step.Headers) {
		if _, ok := suite.Headers[name]; !ok {
			errs = append(errs, fmt.Errorf("unknown headers %q", name))
		}
	}
	if _, _, err := builder.ParseModifications(step.Modifications, anyFields{}); err != nil {
		errs = append(errs, fmt.Errorf("modifications: %w", err))
	}
	if _, err := parser.ParseExpectations(lintResolver.ResolveFields(step.ExpResult)); err != nil {
		errs = append(errs, fmt.Errorf("exp result: %w", err))
	}
	return errs
}
