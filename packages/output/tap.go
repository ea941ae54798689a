package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/assertions"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/runner"
)

// TAPFormatter formats test cases in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer  io.Writer
	results []tapResult
}

type tapResult struct {
	name     string
	verdict  assertions.Verdict
	failures []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, err := range result.Errors {
		f.results = append(f.results, tapResult{
			name:     "suite conditions",
			verdict:  assertions.VerdictFail,
			failures: []string{err.Error()},
		})
	}
	for _, c := range result.Cases {
		tr := tapResult{name: c.TCID, verdict: c.Verdict}
		if c.Description != "" {
			tr.name += " " + c.Description
		}
		if c.Verdict == assertions.VerdictFail {
			if c.Err != nil {
				tr.failures = append(tr.failures, fmt.Sprintf("%s: %v", c.Reason, c.Err))
			}
			for _, s := range c.Steps {
				if !s.Failed() {
					continue
				}
				for _, msg := range failures(s) {
					tr.failures = append(tr.failures, s.Name()+" "+msg)
				}
			}
		}
		f.results = append(f.results, tr)
	}
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", len(f.results))

	for i, r := range f.results {
		n := i + 1
		switch r.verdict {
		case assertions.VerdictPass:
			fmt.Fprintf(f.writer, "ok %d - %s\n", n, r.name)
		case assertions.VerdictNotSpecified:
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP not specified\n", n, r.name)
		default:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", n, r.name)
			if len(r.failures) > 0 {
				fmt.Fprintf(f.writer, "  ---\n")
				fmt.Fprintf(f.writer, "  failures:\n")
				for _, msg := range r.failures {
					fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(msg))
				}
				fmt.Fprintf(f.writer, "  ...\n")
			}
		}
	}

	fmt.Fprintln(f.writer)
	return nil
}

func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
