package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Scope says when a referenced test case executes relative to its dependent.
type Scope int

const (
	ScopeTestSetup Scope = iota
	ScopeTestTeardown
	ScopeSuiteSetup
	ScopeSuiteTeardown
	ScopeCheckWith
)

var scopeNames = map[Scope]string{
	ScopeTestSetup:     "test setup",
	ScopeTestTeardown:  "test teardown",
	ScopeSuiteSetup:    "suite setup",
	ScopeSuiteTeardown: "suite teardown",
	ScopeCheckWith:     "check with",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsSuite reports whether the scope runs at most once per run.
func (s Scope) IsSuite() bool {
	return s == ScopeSuiteSetup || s == ScopeSuiteTeardown
}

// Directive is one parsed Conditions line, e.g. "[check with] TC07, TC08".
type Directive struct {
	Scope Scope
	TCIDs []string
	Line  int
}

var (
	directivePattern = regexp.MustCompile(`^\[([^\]]+)\]\s*(.*)$`)
	idSeparator      = regexp.MustCompile(`[,;\s]+`)
	tcidPattern      = regexp.MustCompile(`^[A-Za-z][\w-]*$`)
)

// lookupScope matches tags with case and whitespace ignored, so "TestSetup",
// "[test setup]" and "Checkwith" all name a scope.
func lookupScope(tag string) (Scope, bool) {
	compact := strings.Join(strings.Fields(cases.Fold().String(tag)), "")
	for scope, name := range scopeNames {
		if strings.ReplaceAll(name, " ", "") == compact {
			return scope, true
		}
	}
	return 0, false
}

// ParseDirectives parses a Conditions cell. Tags are matched case- and
// whitespace-insensitively; blank lines are ignored.
func ParseDirectives(text string) ([]*Directive, error) {
	var directives []*Directive
	for i, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lineNo := i + 1

		m := directivePattern.FindStringSubmatch(line)
		if m == nil {
			return nil, &ParseError{Line: lineNo, Text: line, Message: "expected [scope] followed by test case IDs"}
		}

		scope, ok := lookupScope(m[1])
		if !ok {
			return nil, &ParseError{Line: lineNo, Text: line, Message: "unknown condition scope " + strings.TrimSpace(m[1])}
		}

		var ids []string
		for _, id := range idSeparator.Split(strings.TrimSpace(m[2]), -1) {
			if id == "" {
				continue
			}
			if !tcidPattern.MatchString(id) {
				return nil, &ParseError{Line: lineNo, Text: line, Message: "invalid test case ID " + id}
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return nil, &ParseError{Line: lineNo, Text: line, Message: "condition names no test case"}
		}

		directives = append(directives, &Directive{Scope: scope, TCIDs: ids, Line: lineNo})
	}
	return directives, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}
