package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/sheetspec/packages/assertions"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/runner"
	"github.com/fatih/color"
)

// truncate shortens long values such as whole response bodies.
func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// ConsoleFormatter prints human-readable, colored output. It also acts as a
// runner.ResultSink so steps show up while the run is in progress.
type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func symbol(v assertions.Verdict) string {
	switch v {
	case assertions.VerdictPass:
		return color.New(color.FgGreen).Sprint("✓")
	case assertions.VerdictFail:
		return color.New(color.FgRed).Sprint("✗")
	default:
		return color.New(color.FgYellow).Sprint("-")
	}
}

// Step prints a live line for every step in verbose mode. Dependency steps
// are indented under the role they ran for.
func (f *ConsoleFormatter) Step(s *runner.StepResult) {
	if !f.verbose {
		return
	}
	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	indent := "  "
	label := s.Name()
	if s.Role != runner.RolePrimary {
		indent = "    "
		label = fmt.Sprintf("%s %s", faint("["+string(s.Role)+" for "+s.Parent+"]"), label)
	}
	fmt.Fprintf(f.writer, "%s%s %s %s %s\n", indent, symbol(s.Verdict), label,
		faint(s.Method+" "+s.URL), cyan(fmt.Sprintf("(%dms)", s.Duration.Milliseconds())))
	if s.StatusCode != 0 {
		fmt.Fprintf(f.writer, "%s    Status: %d\n", indent, s.StatusCode)
	}
	for name, value := range s.Saved {
		fmt.Fprintf(f.writer, "%s    Saved: %s = %s\n", indent, name, truncate(fmt.Sprint(value), 100))
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(f.writer, "%s    %s %s\n", indent, color.New(color.FgYellow).Sprint("!"), w)
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Workbook: "+result.Path))

	for _, err := range result.Errors {
		fmt.Fprintf(f.writer, "  %s %v\n", red("x"), err)
	}

	for _, c := range result.Cases {
		name := c.TCID
		if c.Description != "" {
			name += " " + c.Description
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol(c.Verdict), name, cyan(fmt.Sprintf("(%dms)", c.Duration.Milliseconds())))
		if c.Verdict != assertions.VerdictFail {
			continue
		}
		if c.Err != nil {
			fmt.Fprintf(f.writer, "    %s %s: %v\n", red("→"), c.Reason, c.Err)
		}
		for _, s := range c.Steps {
			if !s.Failed() {
				continue
			}
			for _, a := range s.Assertions {
				if a.Passed {
					continue
				}
				fmt.Fprintf(f.writer, "    %s %s %s\n", red("→"), s.Name(), a.Text)
				fmt.Fprintf(f.writer, "      Expected: %s\n", truncate(a.Expected, 100))
				fmt.Fprintf(f.writer, "      Actual:   %s\n", truncate(a.Actual, 100))
				if a.Message != "" {
					fmt.Fprintf(f.writer, "      %s\n", a.Message)
				}
			}
			if s.Err != nil && s.Err != c.Err {
				fmt.Fprintf(f.writer, "    %s %s %s: %v\n", red("→"), s.Name(), s.Reason, s.Err)
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Cases: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.NotSpecified > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d not specified", result.NotSpecified)))
	}
	total := result.Passed + result.Failed + result.NotSpecified
	fmt.Fprintf(f.writer, "%d total\n", total)
	if n := len(result.Errors); n > 0 {
		fmt.Fprintf(f.writer, "Suite: %s\n", red(fmt.Sprintf("%d condition errors", n)))
	}
	if l, ok := latency(result); ok {
		fmt.Fprintf(f.writer, "Latency: p50 %dms, p95 %dms, p99 %dms over %d requests\n",
			l.p50.Milliseconds(), l.p95.Milliseconds(), l.p99.Milliseconds(), l.count)
	}
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("sheetspec"), version)
}

type latencySummary struct {
	count         int64
	p50, p95, p99 time.Duration
}

// latency summarizes the duration of every step that sent a request.
func latency(result *runner.RunResult) (latencySummary, bool) {
	h := hdrhistogram.New(1, 60_000_000, 3)
	record := func(steps []*runner.StepResult) {
		for _, s := range steps {
			if s.StatusCode == 0 {
				continue
			}
			us := s.Duration.Microseconds()
			if us < 1 {
				us = 1
			}
			_ = h.RecordValue(us)
		}
	}
	record(result.Suite)
	for _, c := range result.Cases {
		record(c.Steps)
	}
	if h.TotalCount() == 0 {
		return latencySummary{}, false
	}
	return latencySummary{
		count: h.TotalCount(),
		p50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		p95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		p99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
	}, true
}
