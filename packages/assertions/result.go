package assertions

import "fmt"

// Verdict is the outcome of one assertion or of a whole step.
type Verdict int

const (
	VerdictPass Verdict = iota
	VerdictFail
	// VerdictNotSpecified is a step with no expectations. It is neither a
	// pass nor a failure.
	VerdictNotSpecified
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "PASS"
	case VerdictFail:
		return "FAIL"
	default:
		return "NOT SPECIFIED"
	}
}

// Kind names the assertion form a result came from.
type Kind string

const (
	KindDirect   Kind = "direct"
	KindDiff     Kind = "dynamic-diff"
	KindPrePost  Kind = "pre-post"
	KindExternal Kind = "external"
	KindStatus   Kind = "status"
)

// Reason classifies why an assertion failed.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonMismatch        Reason = "mismatch"
	ReasonNotFound        Reason = "not found"
	ReasonNotNumeric      Reason = "not numeric"
	ReasonSnapshotMissing Reason = "snapshot missing"
	ReasonNoBody          Reason = "no response body"
	ReasonNoValidator     Reason = "no validator"
	ReasonValidatorError  Reason = "validator error"
)

type Result struct {
	Line     int
	Text     string
	Kind     Kind
	Subject  string
	Expected string
	Actual   string
	Passed   bool
	Reason   Reason
	Message  string
}

func (r *Result) Verdict() Verdict {
	if r.Passed {
		return VerdictPass
	}
	return VerdictFail
}

func (r *Result) String() string {
	if r.Passed {
		return fmt.Sprintf("PASS %s", r.Text)
	}
	return fmt.Sprintf("FAIL %s: %s", r.Text, r.Message)
}

func (r *Result) fail(reason Reason, format string, args ...any) *Result {
	r.Passed = false
	r.Reason = reason
	r.Message = fmt.Sprintf(format, args...)
	return r
}

// Summarize folds assertion results into a step verdict: FAIL if any result
// failed, NOT SPECIFIED if there are none, PASS otherwise.
func Summarize(results []*Result) Verdict {
	if len(results) == 0 {
		return VerdictNotSpecified
	}
	for _, r := range results {
		if !r.Passed {
			return VerdictFail
		}
	}
	return VerdictPass
}

// StatusResult checks an expected HTTP status code.
func StatusResult(expected, actual int) *Result {
	r := &Result{
		Text:     fmt.Sprintf("status=%d", expected),
		Kind:     KindStatus,
		Subject:  "status",
		Expected: fmt.Sprint(expected),
		Actual:   fmt.Sprint(actual),
		Passed:   expected == actual,
	}
	if !r.Passed {
		r.fail(ReasonMismatch, "expected status %d, got %d", expected, actual)
	}
	return r
}
