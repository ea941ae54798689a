package output

import (
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/core/runner"
)

// Formatter renders a finished run.
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that buffer results and write them
// in one piece once the run is over.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Options shared by every formatter built with New.
type Options struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
}

// New returns the formatter registered under name: "console", "json" or "tap".
func New(name string, o Options) (Formatter, error) {
	switch name {
	case "", "console":
		opts := []ConsoleOption{WithVerbose(o.Verbose), WithNoColor(o.NoColor)}
		if o.Writer != nil {
			opts = append(opts, WithWriter(o.Writer))
		}
		return NewConsoleFormatter(opts...), nil
	case "json":
		var opts []JSONOption
		if o.Writer != nil {
			opts = append(opts, JSONWithWriter(o.Writer))
		}
		return NewJSONFormatter(opts...), nil
	case "tap":
		var opts []TAPOption
		if o.Writer != nil {
			opts = append(opts, TAPWithWriter(o.Writer))
		}
		return NewTAPFormatter(opts...), nil
	default:
		return nil, fmt.Errorf("unknown reporter %q", name)
	}
}

// failures returns the failed assertions of a step as one-line messages.
func failures(s *runner.StepResult) []string {
	var out []string
	for _, a := range s.Assertions {
		if !a.Passed {
			out = append(out, fmt.Sprintf("%s: %s", a.Text, a.Message))
		}
	}
	if s.Err != nil {
		out = append(out, fmt.Sprintf("%s: %v", s.Reason, s.Err))
	}
	return out
}
