package parser

import (
	"errors"
	"fmt"
)

// ParseError reports a directive or expectation line that matches no known form.
type ParseError struct {
	Line    int
	Text    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %q", e.Line, e.Message, e.Text)
	}
	return fmt.Sprintf("%s: %q", e.Message, e.Text)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
