package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
)

// Phase selects the check-with snapshot taken before or after the primary request.
type Phase int

const (
	PhasePre Phase = iota
	PhasePost
)

func (p Phase) String() string {
	if p == PhasePost {
		return "post"
	}
	return "pre"
}

// Assertion is one parsed Exp Result line: *Direct, *DynamicDiff,
// *PrePostCheck or *ExternalCheck.
type Assertion interface {
	Line() int
	Text() string
	isAssertion()
}

// Pos records where an assertion came from.
type Pos struct {
	LineNo int
	Raw    string
}

func (p Pos) Line() int    { return p.LineNo }
func (p Pos) Text() string { return p.Raw }
func (Pos) isAssertion()   {}

// Direct compares a field of the primary response: $.result.status=success
type Direct struct {
	Pos
	Path     string
	Expected string
}

// DynamicDiff compares post minus pre of a check-with snapshot: TC01.$.total=+5
type DynamicDiff struct {
	Pos
	TCID  string
	Path  string
	Delta float64
	// DeltaText is the delta exactly as written, sign included.
	DeltaText string
}

// PrePostCheck compares a field of one check-with snapshot: TC01.post.$.status=DONE
type PrePostCheck struct {
	Pos
	TCID     string
	Phase    Phase
	Path     string
	Expected string
}

// ExternalCheck is delegated to a named store: DB.accounts.balance[id=7]=100
// Query is everything after the store name.
type ExternalCheck struct {
	Pos
	Store string
	Query string
}

var (
	dynamicDiffPattern = regexp.MustCompile(`^([A-Za-z][\w-]*)\.((?:\$|response)(?:[.\[].*)?)$`)
	prePostPattern     = regexp.MustCompile(`^([A-Za-z][\w-]*)\.((?i:pre|post))\.((?:\$|response)(?:[.\[].*)?)$`)
	externalPattern    = regexp.MustCompile(`^([A-Z][A-Z0-9_]*)\.(\w+)\.(\w+)\s*\[[^\]]*\](?:\s*\[[^\]]*\])?$`)
	signedNumber       = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?$`)
)

// ParseExpectations classifies each non-blank line of an Exp Result cell.
// Priority: dynamic diff, pre/post check, external check, direct. Lines
// starting with # are comments.
func ParseExpectations(text string) ([]Assertion, error) {
	var out []Assertion
	for i, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		a, err := parseExpectation(i+1, line)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseExpectation(lineNo int, line string) (Assertion, error) {
	pos := Pos{LineNo: lineNo, Raw: line}
	fail := func(msg string) (Assertion, error) {
		return nil, &ParseError{Line: lineNo, Text: line, Message: msg}
	}

	lhs, rhs, ok := splitAssignment(line)
	if !ok {
		return fail("expected <path>=<value>")
	}

	if m := dynamicDiffPattern.FindStringSubmatch(lhs); m != nil && !isRootName(m[1]) {
		if !signedNumber.MatchString(rhs) {
			return fail("dynamic check needs a numeric delta such as +5 or -1.25")
		}
		if _, err := extract.Segments(m[2]); err != nil {
			return fail(err.Error())
		}
		delta, _ := strconv.ParseFloat(rhs, 64)
		return &DynamicDiff{Pos: pos, TCID: m[1], Path: m[2], Delta: delta, DeltaText: rhs}, nil
	}

	if m := prePostPattern.FindStringSubmatch(lhs); m != nil && !isRootName(m[1]) {
		if _, err := extract.Segments(m[3]); err != nil {
			return fail(err.Error())
		}
		phase := PhasePre
		if strings.EqualFold(m[2], "post") {
			phase = PhasePost
		}
		return &PrePostCheck{Pos: pos, TCID: m[1], Phase: phase, Path: m[3], Expected: unquoteValue(rhs)}, nil
	}

	if m := externalPattern.FindStringSubmatch(lhs); m != nil {
		store := m[1]
		query := strings.TrimSpace(strings.TrimPrefix(line, store+"."))
		return &ExternalCheck{Pos: pos, Store: store, Query: query}, nil
	}

	if extract.IsPath(lhs) {
		if _, err := extract.Segments(lhs); err != nil {
			return fail(err.Error())
		}
		return &Direct{Pos: pos, Path: lhs, Expected: unquoteValue(rhs)}, nil
	}

	return fail("unrecognised expectation")
}

func isRootName(s string) bool {
	return s == "response"
}

// splitAssignment splits at the first '=' outside brackets and quotes.
func splitAssignment(line string) (string, string, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case depth > 0 && (c == '\'' || c == '"'):
			quote = c
		case c == '[':
			depth++
		case c == ']':
			if depth > 0 {
				depth--
			}
		case c == '=' && depth == 0:
			lhs := strings.TrimSpace(line[:i])
			if lhs == "" {
				return "", "", false
			}
			return lhs, strings.TrimSpace(line[i+1:]), true
		}
	}
	return "", "", false
}

func unquoteValue(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
