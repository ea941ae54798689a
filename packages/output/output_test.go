package output

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/assertions"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/runner"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun() *runner.RunResult {
	buildErr := errors.New("step 1 has no endpoint")
	return &runner.RunResult{
		Path:     "bank.xlsx",
		Duration: 1500 * time.Millisecond,
		Passed:   1,
		Failed:   2,
		Cases: []*runner.CaseResult{
			{
				TCID:        "TC1",
				Description: "Check balance",
				Verdict:     assertions.VerdictPass,
				Duration:    12 * time.Millisecond,
				Steps: []*runner.StepResult{{
					TCID: "TC1", TSID: "1", Role: runner.RolePrimary,
					Method: "GET", URL: "http://api.test/balance", StatusCode: 200,
					Duration: 12 * time.Millisecond, Verdict: assertions.VerdictPass,
					Assertions: []*assertions.Result{{
						Line: 1, Text: "balance=100.00", Kind: assertions.KindDirect,
						Expected: "100.00", Actual: "100.00", Passed: true,
					}},
					Saved: map[string]any{"balance": "100.00"},
				}},
			},
			{
				TCID:        "TC2",
				Description: "Deposit",
				Verdict:     assertions.VerdictFail,
				Duration:    30 * time.Millisecond,
				Steps: []*runner.StepResult{
					{
						TCID: "LOGIN", TSID: "1", Role: runner.RoleSetup, Parent: "TC2",
						Method: "POST", URL: "http://api.test/login", StatusCode: 200,
						Duration: 10 * time.Millisecond, Verdict: assertions.VerdictNotSpecified,
					},
					{
						TCID: "TC2", TSID: "1", Role: runner.RolePrimary,
						Method: "POST", URL: "http://api.test/deposit", StatusCode: 201,
						Duration: 20 * time.Millisecond, Verdict: assertions.VerdictFail,
						Reason: runner.ReasonAssertion,
						Assertions: []*assertions.Result{{
							Line: 1, Text: "balance=105.00", Kind: assertions.KindDirect,
							Expected: "105.00", Actual: "104.00", Reason: assertions.ReasonMismatch,
							Message: "expected 105.00, got 104.00",
						}},
					},
				},
			},
			{
				TCID:        "TC3",
				Description: "Broken",
				Verdict:     assertions.VerdictFail,
				Reason:      runner.ReasonBuild,
				Err:         buildErr,
				Steps: []*runner.StepResult{{
					TCID: "TC3", TSID: "1", Role: runner.RolePrimary,
					Verdict: assertions.VerdictFail, Reason: runner.ReasonBuild, Err: buildErr,
				}},
			},
		},
	}
}

func TestJSONFormatter_Golden(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(
		JSONWithWriter(&buf),
		JSONWithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
	result := sampleRun()
	f.FormatResult(result)
	require.NoError(t, f.Flush(result.Duration))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "json_report", buf.Bytes())
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	f.FormatResult(sampleRun())
	require.NoError(t, f.Flush(0))

	want := "TAP version 13\n" +
		"1..3\n" +
		"ok 1 - TC1 Check balance\n" +
		"not ok 2 - TC2 Deposit\n" +
		"  ---\n" +
		"  failures:\n" +
		"    - \"TC2/1 balance=105.00: expected 105.00, got 104.00\"\n" +
		"  ...\n" +
		"not ok 3 - TC3 Broken\n" +
		"  ---\n" +
		"  failures:\n" +
		"    - \"build error: step 1 has no endpoint\"\n" +
		"    - \"TC3/1 build error: step 1 has no endpoint\"\n" +
		"  ...\n" +
		"\n"
	assert.Equal(t, want, buf.String())
}

func TestTAPFormatter_SuiteErrorsAndNotSpecified(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	f.FormatResult(&runner.RunResult{
		Errors:       []error{errors.New("suite setup SEED failed")},
		NotSpecified: 1,
		Cases: []*runner.CaseResult{
			{TCID: "TC9", Verdict: assertions.VerdictNotSpecified},
		},
	})
	require.NoError(t, f.Flush(0))

	out := buf.String()
	assert.Contains(t, out, "1..2\n")
	assert.Contains(t, out, "not ok 1 - suite conditions\n")
	assert.Contains(t, out, "ok 2 - TC9 # SKIP not specified\n")
}

func TestConsoleFormatter_FormatResult(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatResult(sampleRun())

	out := buf.String()
	assert.Contains(t, out, "Workbook: bank.xlsx")
	assert.Contains(t, out, "✓ TC1 Check balance (12ms)")
	assert.Contains(t, out, "✗ TC2 Deposit (30ms)")
	assert.Contains(t, out, "→ TC2/1 balance=105.00")
	assert.Contains(t, out, "Expected: 105.00")
	assert.Contains(t, out, "Actual:   104.00")
	assert.Contains(t, out, "→ build error: step 1 has no endpoint")
	assert.NotContains(t, out, "LOGIN")
	assert.Contains(t, out, "Cases: 1 passed, 2 failed, 3 total")
	assert.Contains(t, out, "over 3 requests")
	assert.Contains(t, out, "Time:  1500ms")
}

func TestConsoleFormatter_Step(t *testing.T) {
	steps := sampleRun().Cases[1].Steps

	t.Run("quiet unless verbose", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
		f.Step(steps[0])
		assert.Empty(t, buf.String())
	})

	t.Run("verbose", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))
		var sink runner.ResultSink = f
		sink.Step(steps[0])
		sink.Step(steps[1])

		out := buf.String()
		assert.Contains(t, out, "    - [setup for TC2] LOGIN/1 POST http://api.test/login (10ms)")
		assert.Contains(t, out, "  ✗ TC2/1 POST http://api.test/deposit (20ms)")
		assert.Contains(t, out, "Status: 201")
	})
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "console", "json", "tap"} {
		f, err := New(name, Options{Writer: &bytes.Buffer{}})
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}
	_, err := New("junit", Options{})
	assert.EqualError(t, err, `unknown reporter "junit"`)

	f, _ := New("json", Options{})
	_, ok := f.(Flushable)
	assert.True(t, ok)
}
