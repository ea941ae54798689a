package assertions

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func doc(t *testing.T, body string) *extract.Document {
	t.Helper()
	d, err := extract.Parse([]byte(body), extract.FormatUnspecified)
	require.NoError(t, err)
	return d
}

func parse(t *testing.T, text string) []parser.Assertion {
	t.Helper()
	as, err := parser.ParseExpectations(text)
	require.NoError(t, err)
	return as
}

type fakeValidator struct {
	ok     bool
	actual string
	err    error
	query  string
}

func (f *fakeValidator) Check(_ context.Context, _ string, query string) (bool, string, error) {
	f.query = query
	return f.ok, f.actual, f.err
}

type mapResolver map[string]string

func (m mapResolver) Resolve(s string) string {
	if v, ok := m[s]; ok {
		return v
	}
	return s
}

func TestEvaluate_Direct(t *testing.T) {
	primary := doc(t, `{"result": {"status": "success", "total": 10, "ok": true, "note": null, "list": [1, 2]}}`)
	e := NewEvaluator(primary)

	tests := []struct {
		line   string
		passed bool
		reason Reason
	}{
		{"$.result.status=success", true, ReasonNone},
		{"$.result.status=failure", false, ReasonMismatch},
		{"$.result.total=10", true, ReasonNone},
		{"$.result.total=10.0", true, ReasonNone},
		{"$.result.total=ten", false, ReasonMismatch},
		{"$.result.ok=True", true, ReasonNone},
		{"$.result.note=null", true, ReasonNone},
		{"$.result.note=", false, ReasonMismatch},
		{"$.result.list=[1,2]", true, ReasonNone},
		{"$.result.list=[2,1]", false, ReasonMismatch},
		{"$.result.missing=x", false, ReasonNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r := e.Evaluate(context.Background(), parse(t, tt.line)[0])
			assert.Equal(t, tt.passed, r.Passed, r.Message)
			assert.Equal(t, tt.reason, r.Reason)
			assert.Equal(t, KindDirect, r.Kind)
		})
	}
}

func TestEvaluate_ScenarioA_DirectPass(t *testing.T) {
	e := NewEvaluator(doc(t, `{"result": {"status": "success"}}`))
	results := e.EvaluateAll(context.Background(), parse(t, "$.result.status=success"))
	require.Len(t, results, 1)
	assert.Equal(t, VerdictPass, results[0].Verdict())
	assert.Equal(t, "success", results[0].Actual)
	assert.Equal(t, VerdictPass, Summarize(results))
}

func TestEvaluate_ScenarioB_DiffPass(t *testing.T) {
	e := NewEvaluator(doc(t, `{}`), WithSnapshots(
		Snapshots{"TC01": doc(t, `{"result": {"total": 10}}`)},
		Snapshots{"TC01": doc(t, `{"result": {"total": 15}}`)},
	))
	r := e.Evaluate(context.Background(), parse(t, "TC01.$.result.total=+5")[0])
	assert.True(t, r.Passed, r.Message)
	assert.Equal(t, "+5.00", r.Actual)
	assert.Equal(t, "+5.00", r.Expected)
	assert.Equal(t, KindDiff, r.Kind)
}

func TestEvaluate_ScenarioC_DiffFail(t *testing.T) {
	e := NewEvaluator(doc(t, `{}`), WithSnapshots(
		Snapshots{"TC01": doc(t, `{"result": {"total": 10}}`)},
		Snapshots{"TC01": doc(t, `{"result": {"total": 14}}`)},
	))
	r := e.Evaluate(context.Background(), parse(t, "TC01.$.result.total=+5")[0])
	assert.False(t, r.Passed)
	assert.Equal(t, ReasonMismatch, r.Reason)
	assert.Equal(t, "+4.00", r.Actual)
	assert.Equal(t, "+5.00", r.Expected)
	assert.Contains(t, r.Message, "pre 10, post 14")
}

func TestEvaluate_ScenarioE_NotFound(t *testing.T) {
	e := NewEvaluator(doc(t, `{"result": {}}`))
	r := e.Evaluate(context.Background(), parse(t, "$.result.absent=1")[0])
	assert.False(t, r.Passed)
	assert.Equal(t, ReasonNotFound, r.Reason)
	assert.Equal(t, VerdictFail, Summarize([]*Result{r}))
}

func TestEvaluate_DiffEdgeCases(t *testing.T) {
	pre := Snapshots{"TC01": doc(t, `{"a": 10.10, "s": "x", "str": "2.5"}`)}
	post := Snapshots{"TC01": doc(t, `{"a": 9.9, "s": "y", "str": "4"}`)}
	e := NewEvaluator(doc(t, `{}`), WithSnapshots(pre, post))

	r := e.Evaluate(context.Background(), parse(t, "TC01.$.a=-0.2")[0])
	assert.True(t, r.Passed, r.Message)
	assert.Equal(t, "-0.20", r.Actual)

	r = e.Evaluate(context.Background(), parse(t, "TC01.$.str=+1.5")[0])
	assert.True(t, r.Passed, r.Message)

	r = e.Evaluate(context.Background(), parse(t, "TC01.$.s=+1")[0])
	assert.Equal(t, ReasonNotNumeric, r.Reason)

	r = e.Evaluate(context.Background(), parse(t, "TC01.$.gone=+1")[0])
	assert.Equal(t, ReasonNotFound, r.Reason)

	r = e.Evaluate(context.Background(), parse(t, "TC02.$.a=+1")[0])
	assert.Equal(t, ReasonSnapshotMissing, r.Reason)
	assert.Contains(t, r.Message, "no pre snapshot for TC02")

	e = NewEvaluator(doc(t, `{}`), WithSnapshots(pre, Snapshots{"TC01": nil}))
	r = e.Evaluate(context.Background(), parse(t, "TC01.$.a=+1")[0])
	assert.Equal(t, ReasonSnapshotMissing, r.Reason)
	assert.Contains(t, r.Message, "no post snapshot")
}

func TestFormatSigned(t *testing.T) {
	assert.Equal(t, "+0.00", formatSigned(0))
	assert.Equal(t, "+0.00", formatSigned(-0.001))
	assert.Equal(t, "-1.25", formatSigned(-1.25))
	assert.Equal(t, "+5.00", formatSigned(5))
	assert.Equal(t, "+0.10", formatSigned(0.1+0.2-0.2))
}

func TestEvaluate_PrePost(t *testing.T) {
	e := NewEvaluator(doc(t, `{}`), WithSnapshots(
		Snapshots{"TC01": doc(t, `{"state": "OPEN"}`)},
		Snapshots{"TC01": doc(t, `<r><state>CLOSED</state></r>`)},
	))

	r := e.Evaluate(context.Background(), parse(t, "TC01.pre.$.state=OPEN")[0])
	assert.True(t, r.Passed, r.Message)
	assert.Equal(t, KindPrePost, r.Kind)

	r = e.Evaluate(context.Background(), parse(t, "TC01.post.$.r.state=CLOSED")[0])
	assert.True(t, r.Passed, r.Message)

	r = e.Evaluate(context.Background(), parse(t, "TC01.post.$.state=OPEN")[0])
	assert.Equal(t, ReasonNotFound, r.Reason)

	r = e.Evaluate(context.Background(), parse(t, "TC09.pre.$.state=OPEN")[0])
	assert.Equal(t, ReasonSnapshotMissing, r.Reason)
}

func TestEvaluate_ResolvesExpected(t *testing.T) {
	e := NewEvaluator(doc(t, `{"token": "abc123"}`), WithResolver(mapResolver{"${TC01.$.token}": "abc123"}))
	r := e.Evaluate(context.Background(), parse(t, "$.token=${TC01.$.token}")[0])
	assert.True(t, r.Passed, r.Message)
	assert.Equal(t, "abc123", r.Expected)
}

func TestEvaluate_NoBody(t *testing.T) {
	r := NewEvaluator(nil).Evaluate(context.Background(), parse(t, "$.a=1")[0])
	assert.Equal(t, ReasonNoBody, r.Reason)
}

func TestEvaluate_External(t *testing.T) {
	line := parse(t, "DB.accounts.balance[id=7]=100")[0]

	v := &fakeValidator{ok: true, actual: "100"}
	r := NewEvaluator(nil, WithValidator("DB", v)).Evaluate(context.Background(), line)
	assert.True(t, r.Passed)
	assert.Equal(t, "accounts.balance[id=7]=100", v.query)
	assert.Equal(t, "100", r.Expected)
	assert.Equal(t, KindExternal, r.Kind)

	v = &fakeValidator{ok: false, actual: "90"}
	r = NewEvaluator(nil, WithValidator("DB", v)).Evaluate(context.Background(), line)
	assert.Equal(t, ReasonMismatch, r.Reason)
	assert.Equal(t, "expected 100, got 90", r.Message)

	v = &fakeValidator{err: errors.New("no such table")}
	r = NewEvaluator(nil, WithValidator("DB", v)).Evaluate(context.Background(), line)
	assert.Equal(t, ReasonValidatorError, r.Reason)

	r = NewEvaluator(nil).Evaluate(context.Background(), line)
	assert.Equal(t, ReasonNoValidator, r.Reason)
}

func TestSummarizeAndStatus(t *testing.T) {
	assert.Equal(t, VerdictNotSpecified, Summarize(nil))
	assert.Equal(t, "NOT SPECIFIED", VerdictNotSpecified.String())

	ok := StatusResult(201, 201)
	assert.True(t, ok.Passed)
	bad := StatusResult(201, 400)
	assert.False(t, bad.Passed)
	assert.Equal(t, "expected status 201, got 400", bad.Message)
	assert.Equal(t, VerdictFail, Summarize([]*Result{ok, bad}))
	assert.Equal(t, "FAIL status=201: expected status 201, got 400", bad.String())
}

func TestDiffSignProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(-1_000_000, 1_000_000).Draw(t, "a")
		b := rapid.IntRange(-1_000_000, 1_000_000).Draw(t, "b")

		snapshot := func(cents int) Snapshots {
			d, err := extract.ParseJSON([]byte(fmt.Sprintf(`{"v": %.2f}`, float64(cents)/100)))
			if err != nil {
				t.Fatal(err)
			}
			return Snapshots{"T": d}
		}
		line := func(cents int) parser.Assertion {
			as, err := parser.ParseExpectations(fmt.Sprintf("T.$.v=%+.2f", float64(cents)/100))
			if err != nil {
				t.Fatal(err)
			}
			return as[0]
		}

		forward := NewEvaluator(nil, WithSnapshots(snapshot(a), snapshot(b)))
		backward := NewEvaluator(nil, WithSnapshots(snapshot(b), snapshot(a)))

		if r := forward.Evaluate(context.Background(), line(b-a)); !r.Passed {
			t.Fatalf("forward: %s", r.Message)
		}
		if r := backward.Evaluate(context.Background(), line(a-b)); !r.Passed {
			t.Fatalf("backward: %s", r.Message)
		}
	})
}
