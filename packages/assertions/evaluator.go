package assertions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
)

// Snapshots holds check-with responses by TCID. A missing or nil entry is an
// absent snapshot.
type Snapshots map[string]*extract.Document

// Validator answers external store checks such as DB.table.field[id=1]=x.
// The query is everything after the store name. actual is what the store
// held, for reporting.
type Validator interface {
	Check(ctx context.Context, store, query string) (ok bool, actual string, err error)
}

// Resolver resolves placeholders in expected values and queries.
type Resolver interface {
	Resolve(input string) string
}

type Evaluator struct {
	primary    *extract.Document
	pre        Snapshots
	post       Snapshots
	validators map[string]Validator
	resolver   Resolver
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

func WithSnapshots(pre, post Snapshots) EvaluatorOption {
	return func(e *Evaluator) {
		e.pre = pre
		e.post = post
	}
}

// WithValidator registers the validator for one store name.
func WithValidator(store string, v Validator) EvaluatorOption {
	return func(e *Evaluator) {
		e.validators[store] = v
	}
}

func WithResolver(r Resolver) EvaluatorOption {
	return func(e *Evaluator) {
		e.resolver = r
	}
}

// NewEvaluator evaluates against primary, the parsed response of the step
// under test. primary may be nil when the response had no usable body.
func NewEvaluator(primary *extract.Document, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		primary:    primary,
		validators: make(map[string]Validator),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) EvaluateAll(ctx context.Context, as []parser.Assertion) []*Result {
	results := make([]*Result, 0, len(as))
	for _, a := range as {
		results = append(results, e.Evaluate(ctx, a))
	}
	return results
}

func (e *Evaluator) Evaluate(ctx context.Context, a parser.Assertion) *Result {
	r := &Result{Line: a.Line(), Text: a.Text()}

	switch a := a.(type) {
	case *parser.Direct:
		r.Kind = KindDirect
		r.Subject = a.Path
		r.Expected = e.resolve(a.Expected)
		if e.primary == nil {
			return r.fail(ReasonNoBody, "response has no parsed body")
		}
		return e.compareAt(r, e.primary, a.Path)

	case *parser.PrePostCheck:
		r.Kind = KindPrePost
		r.Subject = a.TCID + "." + a.Phase.String() + "." + a.Path
		r.Expected = e.resolve(a.Expected)
		snaps := e.pre
		if a.Phase == parser.PhasePost {
			snaps = e.post
		}
		doc := snaps[a.TCID]
		if doc == nil {
			return r.fail(ReasonSnapshotMissing, "no %s snapshot for %s", a.Phase, a.TCID)
		}
		return e.compareAt(r, doc, a.Path)

	case *parser.DynamicDiff:
		return e.evaluateDiff(r, a)

	case *parser.ExternalCheck:
		return e.evaluateExternal(ctx, r, a)

	default:
		return r.fail(ReasonMismatch, "unsupported assertion %T", a)
	}
}

func (e *Evaluator) resolve(s string) string {
	if e.resolver == nil {
		return s
	}
	return e.resolver.Resolve(s)
}

func (e *Evaluator) compareAt(r *Result, doc *extract.Document, path string) *Result {
	v, err := doc.Get(path)
	if err != nil {
		if errors.Is(err, extract.ErrNotFound) {
			r.Actual = "<not found>"
			return r.fail(ReasonNotFound, "%s not found in response", path)
		}
		return r.fail(ReasonNotFound, "%v", err)
	}

	r.Actual = v.String()
	if equals(v, r.Expected) {
		r.Passed = true
		return r
	}
	return r.fail(ReasonMismatch, "expected %s, got %s", r.Expected, r.Actual)
}

// equals coerces the expected literal to the kind of the actual value.
func equals(v extract.Value, expected string) bool {
	switch v.Kind {
	case extract.KindNumber:
		actual, ok := v.Float()
		if !ok {
			return false
		}
		want, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
		return err == nil && actual == want
	case extract.KindBool:
		want, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(expected)))
		return err == nil && want == v.Interface()
	case extract.KindNull:
		return strings.EqualFold(strings.TrimSpace(expected), "null")
	case extract.KindArray, extract.KindObject:
		var want any
		if err := json.Unmarshal([]byte(expected), &want); err == nil {
			return reflect.DeepEqual(v.Interface(), want)
		}
		return v.String() == expected
	default:
		return v.String() == expected
	}
}

func (e *Evaluator) evaluateDiff(r *Result, a *parser.DynamicDiff) *Result {
	r.Kind = KindDiff
	r.Subject = a.TCID + "." + a.Path
	r.Expected = formatSigned(a.Delta)

	pre, post := e.pre[a.TCID], e.post[a.TCID]
	if pre == nil || post == nil {
		missing := "pre"
		if pre != nil {
			missing = "post"
		}
		return r.fail(ReasonSnapshotMissing, "no %s snapshot for %s", missing, a.TCID)
	}

	before, res := numberAt(r, pre, a.Path, "pre")
	if res != nil {
		return res
	}
	after, res := numberAt(r, post, a.Path, "post")
	if res != nil {
		return res
	}

	r.Actual = formatSigned(after - before)
	if r.Actual == r.Expected {
		r.Passed = true
		return r
	}
	return r.fail(ReasonMismatch, "expected change %s, got %s (pre %s, post %s)",
		r.Expected, r.Actual, strconv.FormatFloat(before, 'f', -1, 64), strconv.FormatFloat(after, 'f', -1, 64))
}

func numberAt(r *Result, doc *extract.Document, path, phase string) (float64, *Result) {
	v, err := doc.Get(path)
	if err != nil {
		return 0, r.fail(ReasonNotFound, "%s not found in %s snapshot", path, phase)
	}
	f, ok := v.Float()
	if !ok {
		return 0, r.fail(ReasonNotNumeric, "%s snapshot value %s is not numeric", phase, v.String())
	}
	return f, nil
}

// round2 rounds to two decimals.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// formatSigned renders a value rounded to two decimals with its sign.
// Zero is always "+0.00".
func formatSigned(f float64) string {
	r := round2(f)
	if r == 0 {
		r = 0
	}
	return fmt.Sprintf("%+.2f", r)
}

func (e *Evaluator) evaluateExternal(ctx context.Context, r *Result, a *parser.ExternalCheck) *Result {
	r.Kind = KindExternal
	r.Subject = a.Store
	query := e.resolve(a.Query)
	if _, want, ok := strings.Cut(lastAssignment(query), "="); ok {
		r.Expected = want
	}

	v, ok := e.validators[a.Store]
	if !ok || v == nil {
		return r.fail(ReasonNoValidator, "no validator registered for store %s", a.Store)
	}

	passed, actual, err := v.Check(ctx, a.Store, query)
	r.Actual = actual
	if err != nil {
		return r.fail(ReasonValidatorError, "%s check failed: %v", a.Store, err)
	}
	if !passed {
		return r.fail(ReasonMismatch, "expected %s, got %s", r.Expected, actual)
	}
	r.Passed = true
	return r
}

// lastAssignment returns the part of a query after its filter brackets.
func lastAssignment(query string) string {
	if i := strings.LastIndex(query, "]"); i >= 0 {
		return query[i+1:]
	}
	return query
}
