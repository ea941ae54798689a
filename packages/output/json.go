package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Errors   []string    `json:"errors,omitempty"`
	Suite    []JSONStep  `json:"suite,omitempty"`
	Cases    []JSONCase  `json:"cases"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary represents the case summary
type JSONSummary struct {
	Total        int `json:"total"`
	Passed       int `json:"passed"`
	Failed       int `json:"failed"`
	NotSpecified int `json:"notSpecified"`
}

// JSONCase represents a single test case
type JSONCase struct {
	TCID        string     `json:"tcid"`
	Description string     `json:"description,omitempty"`
	Workbook    string     `json:"workbook"`
	Verdict     string     `json:"verdict"`
	Reason      string     `json:"reason,omitempty"`
	Error       string     `json:"error,omitempty"`
	Duration    float64    `json:"duration"`
	Steps       []JSONStep `json:"steps,omitempty"`
}

// JSONStep represents one executed step
type JSONStep struct {
	Name       string          `json:"name"`
	Role       string          `json:"role"`
	Parent     string          `json:"parent,omitempty"`
	Method     string          `json:"method,omitempty"`
	URL        string          `json:"url,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
	Verdict    string          `json:"verdict"`
	Reason     string          `json:"reason,omitempty"`
	Error      string          `json:"error,omitempty"`
	Duration   float64         `json:"duration"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
	Saved      map[string]any  `json:"saved,omitempty"`
	Missing    []string        `json:"missing,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// JSONAssertion represents an assertion result
type JSONAssertion struct {
	Line     int    `json:"line"`
	Text     string `json:"text"`
	Kind     string `json:"kind"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter formats run results as JSON
type JSONFormatter struct {
	writer io.Writer
	now    func() time.Time
	out    JSONOutput
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		now:    time.Now,
		out:    JSONOutput{Cases: make([]JSONCase, 0)},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// JSONWithClock overrides the timestamp source.
func JSONWithClock(now func() time.Time) JSONOption {
	return func(f *JSONFormatter) {
		f.now = now
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	for _, err := range result.Errors {
		f.out.Errors = append(f.out.Errors, err.Error())
	}
	for _, s := range result.Suite {
		f.out.Suite = append(f.out.Suite, jsonStep(s))
	}
	for _, c := range result.Cases {
		jc := JSONCase{
			TCID:        c.TCID,
			Description: c.Description,
			Workbook:    result.Path,
			Verdict:     c.Verdict.String(),
			Reason:      string(c.Reason),
			Duration:    float64(c.Duration.Milliseconds()),
		}
		if c.Err != nil {
			jc.Error = c.Err.Error()
		}
		for _, s := range c.Steps {
			jc.Steps = append(jc.Steps, jsonStep(s))
		}
		f.out.Cases = append(f.out.Cases, jc)
	}
	f.out.Summary.Passed += result.Passed
	f.out.Summary.Failed += result.Failed
	f.out.Summary.NotSpecified += result.NotSpecified
	f.out.Summary.Total += len(result.Cases)
}

func jsonStep(s *runner.StepResult) JSONStep {
	js := JSONStep{
		Name:       s.Name(),
		Role:       string(s.Role),
		Parent:     s.Parent,
		Method:     s.Method,
		URL:        s.URL,
		StatusCode: s.StatusCode,
		Verdict:    s.Verdict.String(),
		Reason:     string(s.Reason),
		Duration:   float64(s.Duration.Milliseconds()),
		Missing:    s.Missing,
		Warnings:   s.Warnings,
	}
	if s.Err != nil {
		js.Error = s.Err.Error()
	}
	if len(s.Saved) > 0 {
		js.Saved = s.Saved
	}
	for _, a := range s.Assertions {
		js.Assertions = append(js.Assertions, JSONAssertion{
			Line:     a.Line,
			Text:     a.Text,
			Kind:     string(a.Kind),
			Expected: a.Expected,
			Actual:   a.Actual,
			Passed:   a.Passed,
			Reason:   string(a.Reason),
			Message:  a.Message,
		})
	}
	return js
}

func (f *JSONFormatter) FormatError(err error) {
	f.out.Errors = append(f.out.Errors, err.Error())
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	f.out.Duration = float64(totalDuration.Milliseconds())
	f.out.Time = f.now().UTC().Format(time.RFC3339)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.out)
}
