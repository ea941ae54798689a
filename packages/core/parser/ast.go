package parser

import (
	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
)

// Suite is everything loaded from one workbook: the test cases plus the
// catalogs their steps refer to by name.
type Suite struct {
	Path      string
	Cases     []*TestCase
	Templates map[string]*Template
	Defaults  map[string]map[string]any
	Headers   map[string]map[string]string
	Endpoints map[string]*Endpoint
}

func NewSuite(path string) *Suite {
	return &Suite{
		Path:      path,
		Templates: make(map[string]*Template),
		Defaults:  make(map[string]map[string]any),
		Headers:   make(map[string]map[string]string),
		Endpoints: make(map[string]*Endpoint),
	}
}

// Case looks a test case up by ID, including cases whose Run flag is off.
func (s *Suite) Case(tcid string) (*TestCase, bool) {
	for _, tc := range s.Cases {
		if tc.TCID == tcid {
			return tc, true
		}
	}
	return nil, false
}

// Template is a body skeleton rendered with the merged request document.
type Template struct {
	Name    string
	Content string
	Format  extract.Format
	// Schema is an optional JSON Schema the rendered JSON body must satisfy.
	Schema string
}

// Endpoint maps a logical name to a method and a path or absolute URL.
type Endpoint struct {
	Name   string
	Method string
	Path   string
}

// TestCase is an ordered list of steps sharing one TCID.
type TestCase struct {
	TCID        string
	Description string
	Tags        []string
	Run         bool
	Steps       []*TestStep
	// Err holds a load-time problem such as a malformed directive. A case
	// with Err set fails without sending anything.
	Err error
}

// DirectiveIDs returns the distinct case IDs referenced by directives of the
// given scope across all steps, in first-seen order.
func (tc *TestCase) DirectiveIDs(scope Scope) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, step := range tc.Steps {
		for _, d := range step.Directives {
			if d.Scope != scope {
				continue
			}
			for _, id := range d.TCIDs {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
	}
	return ids
}

// TestStep is one request/response exchange.
type TestStep struct {
	TCID        string
	TSID        string
	Description string
	Conditions  string
	Directives  []*Directive
	Endpoint    string
	Headers     string
	Template    string
	Defaults    string
	// Modifications is the raw JSON or XML text merged over the defaults.
	Modifications string
	// ExpStatus is the expected HTTP status; zero means any 2xx.
	ExpStatus  int
	ExpResult  string
	SaveFields []string
}

// CheckWith returns the distinct case IDs this step is checked against.
func (s *TestStep) CheckWith() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, d := range s.Directives {
		if d.Scope != ScopeCheckWith {
			continue
		}
		for _, id := range d.TCIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Name returns the display name "TCID/TSID".
func (s *TestStep) Name() string {
	if s.TSID == "" {
		return s.TCID
	}
	return s.TCID + "/" + s.TSID
}
